package email

import (
	"bytes"
	"context"
	"html/template"
	"strconv"
	texttpl "text/template"
	"time"
)

// Purpose del código; cambia el texto del mensaje.
const (
	PurposeSetup   = "setup"
	PurposeVerify  = "verify"
	PurposeDisable = "disable"
)

type CodeVars struct {
	AppName string
	Code    string
	Action  string
	TTL     string
}

var (
	codeHTML = template.Must(template.New("code_html").Parse(`<!doctype html>
<html><body style="font-family:sans-serif;background:#F2EBE4;padding:24px">
<div style="max-width:420px;margin:auto;background:#fff;border-radius:8px;padding:24px">
<h2 style="color:#4a6741;margin-top:0">{{.AppName}}</h2>
<p>Your code to {{.Action}}:</p>
<p style="font-size:32px;letter-spacing:6px;font-weight:bold">{{.Code}}</p>
<p style="color:#666">It expires in {{.TTL}}. If you did not request it, ignore this email.</p>
</div></body></html>`))

	codeText = texttpl.Must(texttpl.New("code_txt").Parse(`{{.AppName}}

Your code to {{.Action}}: {{.Code}}

It expires in {{.TTL}}. If you did not request it, ignore this email.
`))
)

// CodeMailer renderiza y envía los códigos OTP.
type CodeMailer struct {
	sender  Sender
	appName string
	ttl     time.Duration
}

func NewCodeMailer(sender Sender, appName string, ttl time.Duration) *CodeMailer {
	return &CodeMailer{sender: sender, appName: appName, ttl: ttl}
}

// SendCode envía code a to. purpose es uno de Purpose*.
func (m *CodeMailer) SendCode(ctx context.Context, to, code, purpose string) error {
	if m == nil || m.sender == nil {
		return ErrNotConfigured
	}
	vars := CodeVars{AppName: m.appName, Code: code, Action: action(purpose), TTL: humanTTL(m.ttl)}

	var h, t bytes.Buffer
	if err := codeHTML.Execute(&h, vars); err != nil {
		return err
	}
	if err := codeText.Execute(&t, vars); err != nil {
		return err
	}
	subject := code + " is your " + m.appName + " code"
	return m.sender.Send(ctx, to, subject, h.String(), t.String())
}

func action(purpose string) string {
	switch purpose {
	case PurposeSetup:
		return "confirm this email for two-factor authentication"
	case PurposeDisable:
		return "turn off email two-factor authentication"
	default:
		return "finish signing in"
	}
}

func humanTTL(d time.Duration) string {
	if d <= 0 {
		d = 10 * time.Minute
	}
	n := int(d.Round(time.Minute) / time.Minute)
	if n <= 1 {
		return "1 minute"
	}
	return strconv.Itoa(n) + " minutes"
}
