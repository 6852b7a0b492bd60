package twofa

import (
	"context"
	"strings"

	"github.com/dropDatabas3/atgate/internal/security/otp"
	"github.com/dropDatabas3/atgate/internal/security/totp"
)

// BeginTOTPSetup genera un secreto nuevo y lo deja pendiente (no activo).
// account es la etiqueta de la app autenticadora (handle o DID).
func (s *Service) BeginTOTPSetup(ctx context.Context, did, account string) (enr totp.Enrollment, err error) {
	defer func() { s.observe(ctx, MethodTOTP, "setup_init", err) }()
	if err := s.ready(); err != nil {
		return totp.Enrollment{}, err
	}
	if account == "" {
		account = did
	}
	enr, err = totp.Generate(s.issuer, account)
	if err != nil {
		return totp.Enrollment{}, err
	}
	if err := s.store.PutTOTPSetup(ctx, did, enr.Secret, s.pendingTTL); err != nil {
		return totp.Enrollment{}, err
	}
	return enr, nil
}

// ConfirmTOTPSetup activa el secreto pendiente si code es válido.
// Un código incorrecto no consume el secreto: se puede reintentar dentro del TTL.
func (s *Service) ConfirmTOTPSetup(ctx context.Context, did, code string) (err error) {
	defer func() { s.observe(ctx, MethodTOTP, "setup_verify", err) }()
	if err := s.ready(); err != nil {
		return err
	}
	secret, err := s.store.TOTPSetup(ctx, did)
	if err != nil {
		return err
	}
	if !s.validTOTP(code, secret) {
		return ErrInvalidCode
	}

	cfg, err := s.loadOrNew(ctx, did)
	if err != nil {
		return err
	}
	cfg.Add(TOTPMethod{Secret: secret, EnabledAt: s.nowMs()})
	if err := s.store.SaveConfig(ctx, did, cfg); err != nil {
		return err
	}
	return s.store.DeleteTOTPSetup(ctx, did)
}

func (s *Service) validTOTP(code, secret string) bool {
	code = strings.TrimSpace(code)
	return otp.ValidFormat(code) && totp.Validate(code, secret, s.now())
}
