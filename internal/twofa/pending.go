package twofa

import (
	"context"
	"strings"
	"time"

	"github.com/dropDatabas3/atgate/internal/email"
	"github.com/dropDatabas3/atgate/internal/security/otp"
)

// Purpose del código pendiente. Un código solo sirve para su propósito.
type Purpose string

const (
	PurposeEmailSetup  Purpose = "email-setup"
	PurposeEmailVerify Purpose = "email-verify"
	PurposeDisable     Purpose = "disable"
)

// ParseSendPurpose traduce el purpose de send-email-code. "" es verify.
func ParseSendPurpose(s string) (Purpose, error) {
	switch strings.TrimSpace(s) {
	case "", "verify":
		return PurposeEmailVerify, nil
	case "disable":
		return PurposeDisable, nil
	default:
		return "", ErrInvalidPurpose
	}
}

// pendingRecord es el slot único de verificación pendiente por DID.
// Nunca guarda el código, solo su hash.
type pendingRecord struct {
	CodeHash  string  `json:"codeHash"`
	Purpose   Purpose `json:"purpose"`
	ExpiresAt int64   `json:"expiresAt"` // epoch ms
	Attempts  int     `json:"attempts"`
	Email     string  `json:"email,omitempty"`
}

// issueCode genera un código, pisa el slot pendiente y lo envía a address.
func (s *Service) issueCode(ctx context.Context, did string, purpose Purpose, address string) error {
	if s.mailer == nil {
		return ErrEmailUnavailable
	}
	code, err := otp.Generate()
	if err != nil {
		return err
	}
	rec := pendingRecord{
		CodeHash:  otp.Hash(code),
		Purpose:   purpose,
		ExpiresAt: s.now().Add(s.pendingTTL).UnixMilli(),
		Email:     address,
	}
	if err := s.store.PutPending(ctx, did, rec, s.pendingTTL); err != nil {
		return err
	}
	if err := s.mailer.SendCode(ctx, address, code, mailPurpose(purpose)); err != nil {
		_ = s.store.DeletePending(ctx, did)
		return err
	}
	return nil
}

// checkCode consume el código pendiente si coincide.
//   - sin registro o vencido: ErrCodeExpired
//   - otro propósito: ErrPurposeMismatch, el registro queda intacto
//   - no coincide: suma un intento; al llegar al máximo se borra (ErrTooManyAttempts)
func (s *Service) checkCode(ctx context.Context, did, code string, want Purpose) (pendingRecord, error) {
	rec, err := s.store.Pending(ctx, did)
	if err != nil {
		return pendingRecord{}, err
	}

	now := s.now()
	remaining := time.UnixMilli(rec.ExpiresAt).Sub(now)
	if remaining <= 0 {
		_ = s.store.DeletePending(ctx, did)
		return pendingRecord{}, ErrCodeExpired
	}
	if rec.Purpose != want {
		return pendingRecord{}, ErrPurposeMismatch
	}
	if rec.Attempts >= s.maxAttempts {
		_ = s.store.DeletePending(ctx, did)
		return pendingRecord{}, ErrTooManyAttempts
	}

	code = strings.TrimSpace(code)
	if !otp.ValidFormat(code) || !otp.Matches(code, rec.CodeHash) {
		rec.Attempts++
		if rec.Attempts >= s.maxAttempts {
			_ = s.store.DeletePending(ctx, did)
			return pendingRecord{}, ErrTooManyAttempts
		}
		if err := s.store.PutPending(ctx, did, rec, remaining); err != nil {
			return pendingRecord{}, err
		}
		return pendingRecord{}, ErrInvalidCode
	}

	if err := s.store.DeletePending(ctx, did); err != nil {
		return pendingRecord{}, err
	}
	return rec, nil
}

func mailPurpose(p Purpose) string {
	switch p {
	case PurposeEmailSetup:
		return email.PurposeSetup
	case PurposeDisable:
		return email.PurposeDisable
	default:
		return email.PurposeVerify
	}
}
