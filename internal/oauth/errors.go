package oauth

import (
	"errors"
	"fmt"
)

// ErrAuthFailed es el estado terminal AUTH_FAILED. Todos los errores del
// paquete lo envuelven, así el controller decide con un único errors.Is.
var ErrAuthFailed = errors.New("oauth: authentication failed")

var (
	ErrInvalidInput     = fmt.Errorf("%w: invalid login input", ErrAuthFailed)
	ErrNotConfigured    = fmt.Errorf("%w: email flow endpoints not configured", ErrAuthFailed)
	ErrProviderError    = fmt.Errorf("%w: authorization server returned an error", ErrAuthFailed)
	ErrMissingParams    = fmt.Errorf("%w: missing code or state", ErrAuthFailed)
	ErrNoAttempt        = fmt.Errorf("%w: oauth attempt cookie missing or invalid", ErrAuthFailed)
	ErrStateMismatch    = fmt.Errorf("%w: state mismatch", ErrAuthFailed)
	ErrIdentityMismatch = fmt.Errorf("%w: identity mismatch", ErrAuthFailed)
	ErrBadResponse      = fmt.Errorf("%w: malformed response", ErrAuthFailed)
)

// StatusError describe una respuesta no-2xx de PAR o token.
type StatusError struct {
	Endpoint string // par | token
	Status   int
	Code     string // campo "error" del cuerpo, si vino
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("oauth: %s endpoint returned %d (%s)", e.Endpoint, e.Status, e.Code)
	}
	return fmt.Sprintf("oauth: %s endpoint returned %d", e.Endpoint, e.Status)
}

func (e *StatusError) Unwrap() error { return ErrAuthFailed }
