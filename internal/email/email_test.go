package email

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	mail "github.com/go-mail/mail"
)

type captureSender struct {
	to, subject, html, text string
	err                     error
}

func (c *captureSender) Send(_ context.Context, to, subject, html, text string) error {
	c.to, c.subject, c.html, c.text = to, subject, html, text
	return c.err
}

func TestNewSenderSelection(t *testing.T) {
	s, err := NewSender(SMTPConfig{Host: "smtp.example.com"}, true)
	if err != nil {
		t.Fatalf("smtp sender: %v", err)
	}
	if _, ok := s.(*SMTPSender); !ok {
		t.Fatalf("expected *SMTPSender, got %T", s)
	}

	s, err = NewSender(SMTPConfig{}, false)
	if err != nil {
		t.Fatalf("dev sender: %v", err)
	}
	if _, ok := s.(LogSender); !ok {
		t.Fatalf("expected LogSender outside prod, got %T", s)
	}

	if _, err := NewSender(SMTPConfig{}, true); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("prod without smtp must be ErrNotConfigured, got %v", err)
	}
}

func TestSMTPSenderBuildsMessage(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", From: "no-reply@example.com", TLSMode: "ssl"})
	if s.Port != 587 {
		t.Fatalf("default port = %d", s.Port)
	}

	var got *mail.Message
	var gotDialer *mail.Dialer
	s.dial = func(d *mail.Dialer, m *mail.Message) error {
		got, gotDialer = m, d
		return nil
	}
	if err := s.Send(context.Background(), "alice@example.com", "123456 is your code", "<b>x</b>", "x"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if h := got.GetHeader("To"); len(h) != 1 || h[0] != "alice@example.com" {
		t.Fatalf("to header = %v", h)
	}
	if h := got.GetHeader("Subject"); len(h) != 1 || h[0] != "123456 is your code" {
		t.Fatalf("subject header = %v", h)
	}
	if !gotDialer.SSL {
		t.Fatalf("ssl mode must set Dialer.SSL")
	}

	s.dial = func(*mail.Dialer, *mail.Message) error { return errors.New("connection refused") }
	if err := s.Send(context.Background(), "alice@example.com", "s", "", "t"); err == nil {
		t.Fatalf("dial error must be returned")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Send(ctx, "alice@example.com", "s", "", "t"); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled context: %v", err)
	}
}

func TestCodeMailer(t *testing.T) {
	c := &captureSender{}
	m := NewCodeMailer(c, "Ma Earth", 10*time.Minute)

	if err := m.SendCode(context.Background(), "alice@example.com", "004213", PurposeDisable); err != nil {
		t.Fatalf("send code: %v", err)
	}
	if c.to != "alice@example.com" || !strings.HasPrefix(c.subject, "004213 ") {
		t.Fatalf("to=%q subject=%q", c.to, c.subject)
	}
	for _, body := range []string{c.html, c.text} {
		if !strings.Contains(body, "004213") || !strings.Contains(body, "10 minutes") || !strings.Contains(body, "turn off") {
			t.Fatalf("body missing content: %q", body)
		}
	}

	var nilMailer *CodeMailer
	if err := nilMailer.SendCode(context.Background(), "a@b.co", "1", PurposeVerify); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("nil mailer must be ErrNotConfigured, got %v", err)
	}
}

func TestHumanTTL(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{10 * time.Minute, "10 minutes"},
		{90 * time.Second, "2 minutes"},
		{30 * time.Second, "1 minute"},
		{0, "10 minutes"},
	}
	for _, tc := range cases {
		if got := humanTTL(tc.in); got != tc.want {
			t.Fatalf("humanTTL(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
