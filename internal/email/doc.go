// Package email envía los códigos de un solo uso del segundo factor.
//
//	┌──────────────────────────┐
//	│     twofa.Service        │  SendEmailCode / email-setup
//	└────────────┬─────────────┘
//	             ▼
//	┌──────────────────────────┐
//	│      CodeMailer          │  arma asunto + html + texto
//	└────────────┬─────────────┘
//	             ▼
//	┌──────────────────────────┐
//	│  Sender                  │  SMTPSender (go-mail) | LogSender (dev)
//	└──────────────────────────┘
package email
