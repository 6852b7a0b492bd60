package twofa

import (
	"context"

	"github.com/dropDatabas3/atgate/internal/validation"
)

// BeginEmailSetup envía un código de alta a address.
func (s *Service) BeginEmailSetup(ctx context.Context, did, address string) (err error) {
	defer func() { s.observe(ctx, MethodEmail, "setup_send", err) }()
	if err := s.ready(); err != nil {
		return err
	}
	address = validation.NormalizeEmail(address)
	if !validation.ValidEmail(address) {
		return ErrInvalidEmail
	}
	return s.issueCode(ctx, did, PurposeEmailSetup, address)
}

// ConfirmEmailSetup activa la dirección asociada al código pendiente.
func (s *Service) ConfirmEmailSetup(ctx context.Context, did, code string) (err error) {
	defer func() { s.observe(ctx, MethodEmail, "setup_verify", err) }()
	if err := s.ready(); err != nil {
		return err
	}
	rec, err := s.checkCode(ctx, did, code, PurposeEmailSetup)
	if err != nil {
		return err
	}
	cfg, err := s.loadOrNew(ctx, did)
	if err != nil {
		return err
	}
	cfg.Add(EmailMethod{Address: rec.Email, EnabledAt: s.nowMs()})
	return s.store.SaveConfig(ctx, did, cfg)
}

// SendEmailCode envía un código de login (verify) o de baja (disable) a la
// dirección configurada.
func (s *Service) SendEmailCode(ctx context.Context, did string, purpose Purpose) (err error) {
	defer func() { s.observe(ctx, MethodEmail, "send_code", err) }()
	if err := s.ready(); err != nil {
		return err
	}
	if purpose != PurposeEmailVerify && purpose != PurposeDisable {
		return ErrInvalidPurpose
	}
	cfg, err := s.loadEnabled(ctx, did)
	if err != nil {
		return err
	}
	em, ok := cfg.Methods[MethodEmail].(EmailMethod)
	if !ok {
		return ErrMethodNotEnabled
	}
	return s.issueCode(ctx, did, purpose, em.Address)
}
