package twofa

import "errors"

var (
	// ErrStoreUnavailable: 2FA no opera sin su almacén persistente.
	ErrStoreUnavailable = errors.New("twofa: persistent store not configured")
	// ErrEmailUnavailable: no hay transporte de email en este entorno.
	ErrEmailUnavailable = errors.New("twofa: email transport not configured")

	ErrNotEnabled       = errors.New("twofa: two-factor authentication not enabled")
	ErrMethodNotEnabled = errors.New("twofa: method not enabled")
	ErrUnknownMethod    = errors.New("twofa: unknown method")
	ErrInvalidStep      = errors.New("twofa: invalid step")
	ErrInvalidEmail     = errors.New("twofa: invalid email address")

	ErrInvalidCode     = errors.New("twofa: invalid code")
	ErrCodeExpired     = errors.New("twofa: no pending code or code expired")
	ErrTooManyAttempts = errors.New("twofa: too many attempts")
	ErrPurposeMismatch = errors.New("twofa: pending code was issued for another purpose")
	ErrSetupExpired    = errors.New("twofa: setup expired, start again")

	ErrChallengeExpired  = errors.New("twofa: webauthn challenge missing or expired")
	ErrChallengeMismatch = errors.New("twofa: webauthn challenge issued for another ceremony")
	ErrNoPasskeys        = errors.New("twofa: no passkeys registered")
	ErrUnknownCredential = errors.New("twofa: unknown credential")
	ErrPasskeyFailed     = errors.New("twofa: passkey verification failed")
	ErrCounterRegression = errors.New("twofa: signature counter did not increase")
)

var (
	ErrInvalidPurpose  = errors.New("twofa: invalid code purpose")
	ErrPasskeyCeremony = errors.New("twofa: passkey verification requires the webauthn ceremony")
)
