package email

import (
	"context"
	"errors"
)

// ErrNotConfigured: no hay transporte de email disponible.
var ErrNotConfigured = errors.New("email: transport not configured")

// Sender envía un email con contenido HTML y texto plano.
// El destinatario recibe ambas versiones como multipart/alternative.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// SMTPConfig son los parámetros del servidor SMTP.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TLSMode  string // "auto" | "starttls" | "ssl" | "none"
}

// NewSender elige el transporte: SMTP si hay host; si no, el log sink fuera
// de prod. En prod sin SMTP retorna nil y ErrNotConfigured.
func NewSender(cfg SMTPConfig, prod bool) (Sender, error) {
	if cfg.Host != "" {
		return NewSMTPSender(cfg), nil
	}
	if prod {
		return nil, ErrNotConfigured
	}
	return LogSender{}, nil
}
