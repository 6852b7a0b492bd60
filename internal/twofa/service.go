// Package twofa implementa el segundo factor por DID: TOTP, código por email
// y passkey (WebAuthn). Todos los registros viven en el almacén clave/valor;
// sin almacén el servicio existe pero cada operación falla con ErrStoreUnavailable.
package twofa

import (
	"context"
	"errors"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/dropDatabas3/atgate/internal/metrics"
	"github.com/dropDatabas3/atgate/internal/observability/logger"
	"github.com/dropDatabas3/atgate/internal/util"
)

// CodeSender entrega códigos de un solo uso (internal/email.CodeMailer).
type CodeSender interface {
	SendCode(ctx context.Context, to, code, purpose string) error
}

type Options struct {
	Issuer       string
	PendingTTL   time.Duration
	ChallengeTTL time.Duration
	MaxAttempts  int

	// Mailer nil deshabilita el método email (ErrEmailUnavailable).
	Mailer CodeSender
	// WebAuthn nil deshabilita passkeys.
	WebAuthn *webauthn.WebAuthn
}

type Service struct {
	store        *Store
	mailer       CodeSender
	wa           *webauthn.WebAuthn
	issuer       string
	pendingTTL   time.Duration
	challengeTTL time.Duration
	maxAttempts  int
	now          func() time.Time
}

// NewService arma el servicio. store nil es un estado válido: "no configurado".
func NewService(store *Store, opts Options) *Service {
	s := &Service{
		store:        store,
		mailer:       opts.Mailer,
		wa:           opts.WebAuthn,
		issuer:       opts.Issuer,
		pendingTTL:   opts.PendingTTL,
		challengeTTL: opts.ChallengeTTL,
		maxAttempts:  opts.MaxAttempts,
		now:          time.Now,
	}
	if s.pendingTTL <= 0 {
		s.pendingTTL = 10 * time.Minute
	}
	if s.challengeTTL <= 0 {
		s.challengeTTL = 120 * time.Second
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = 5
	}
	return s
}

// WithClock reemplaza el reloj (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Available indica si hay almacén.
func (s *Service) Available() bool { return s != nil && s.store != nil }

func (s *Service) ready() error {
	if !s.Available() {
		return ErrStoreUnavailable
	}
	return nil
}

// Required indica si el DID tiene 2FA. Sin almacén nadie pudo enrolarse: false.
// Un error del almacén se propaga (el callback falla cerrado).
func (s *Service) Required(ctx context.Context, did string) (bool, error) {
	if !s.Available() {
		return false, nil
	}
	cfg, err := s.store.LoadConfig(ctx, did)
	if err != nil {
		return false, err
	}
	return cfg != nil && !cfg.Empty(), nil
}

// Status es la vista pública de la configuración.
type Status struct {
	Enabled bool     `json:"enabled"`
	Method  Method   `json:"method,omitempty"`
	Methods []Method `json:"methods,omitempty"`
	Email   string   `json:"email,omitempty"`
}

func (s *Service) Status(ctx context.Context, did string) (Status, error) {
	if err := s.ready(); err != nil {
		return Status{}, err
	}
	cfg, err := s.store.LoadConfig(ctx, did)
	if err != nil {
		return Status{}, err
	}
	if cfg == nil || cfg.Empty() {
		return Status{Enabled: false}, nil
	}

	st := Status{Enabled: true, Method: cfg.DefaultMethod, Methods: cfg.Enabled()}
	for _, mc := range cfg.Methods {
		switch v := mc.(type) {
		case EmailMethod:
			st.Email = util.MaskEmail(v.Address)
		case TOTPMethod, PasskeyMethod:
		default:
			return Status{}, ErrUnknownMethod
		}
	}
	return st, nil
}

// SetDefaultMethod cambia el método por defecto a uno ya habilitado.
func (s *Service) SetDefaultMethod(ctx context.Context, did string, m Method) (err error) {
	defer func() { s.observe(ctx, m, "default_method", err) }()
	if err := s.ready(); err != nil {
		return err
	}
	cfg, err := s.loadEnabled(ctx, did)
	if err != nil {
		return err
	}
	if !cfg.Has(m) {
		return ErrMethodNotEnabled
	}
	cfg.DefaultMethod = m
	return s.store.SaveConfig(ctx, did, cfg)
}

// loadEnabled carga la config y exige que exista.
func (s *Service) loadEnabled(ctx context.Context, did string) (*Config, error) {
	cfg, err := s.store.LoadConfig(ctx, did)
	if err != nil {
		return nil, err
	}
	if cfg == nil || cfg.Empty() {
		return nil, ErrNotEnabled
	}
	return cfg, nil
}

// loadOrNew carga la config o arranca una vacía (primer enrolamiento).
func (s *Service) loadOrNew(ctx context.Context, did string) (*Config, error) {
	cfg, err := s.store.LoadConfig(ctx, did)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &Config{}
	}
	return cfg, nil
}

func (s *Service) nowMs() int64 { return s.now().UnixMilli() }

// observe registra la métrica y, si el error no es del usuario, un log.
func (s *Service) observe(ctx context.Context, m Method, op string, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
		if !isUserError(err) {
			logger.From(ctx).Error("twofa operation failed",
				logger.Layer("service"), logger.Op("twofa."+op), logger.String("method", string(m)), logger.Err(err))
		}
	}
	metrics.TwoFA(string(m), op, result)
}

func isUserError(err error) bool {
	for _, e := range []error{
		ErrStoreUnavailable, ErrEmailUnavailable, ErrNotEnabled, ErrMethodNotEnabled, ErrUnknownMethod,
		ErrInvalidStep, ErrInvalidEmail, ErrInvalidPurpose, ErrInvalidCode, ErrCodeExpired,
		ErrTooManyAttempts, ErrPurposeMismatch, ErrSetupExpired, ErrChallengeExpired,
		ErrChallengeMismatch, ErrNoPasskeys, ErrUnknownCredential, ErrPasskeyFailed,
		ErrCounterRegression, ErrPasskeyCeremony,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
