package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError es el error estándar que viaja hasta la capa HTTP.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"error"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"` // status del response
	Err        error  `json:"-"` // causa original, solo para logs
}

// Error implementa la interfaz error.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap expone la causa.
func (e *AppError) Unwrap() error { return e.Err }

// New crea un nuevo AppError.
func New(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

// Wrap crea un AppError envolviendo un error existente.
func Wrap(err error, status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// FromError convierte cualquier error en AppError.
// Errores desconocidos se reportan como 500 sin exponer la causa.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServerError.WithCause(err)
}

// WithDetail devuelve una COPIA con detalle adicional.
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// WithCause devuelve una COPIA con la causa original.
func (e *AppError) WithCause(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

// =================================================================================
// CATÁLOGO
// =================================================================================

// 400 - validación / códigos / challenges
var (
	ErrBadRequest          = New(http.StatusBadRequest, "BAD_REQUEST", "Invalid request")
	ErrInvalidJSON         = New(http.StatusBadRequest, "INVALID_JSON", "Invalid JSON")
	ErrInvalidStep         = New(http.StatusBadRequest, "INVALID_STEP", "Invalid step")
	ErrInvalidEmail        = New(http.StatusBadRequest, "INVALID_EMAIL", "Invalid email address")
	ErrInvalidCode         = New(http.StatusBadRequest, "INVALID_CODE", "Invalid code")
	ErrCodeExpired         = New(http.StatusBadRequest, "CODE_EXPIRED", "No pending verification or code expired")
	ErrTooManyAttempts     = New(http.StatusBadRequest, "TOO_MANY_ATTEMPTS", "Too many attempts")
	ErrSetupExpired        = New(http.StatusBadRequest, "SETUP_EXPIRED", "Setup expired, please start again")
	ErrPurposeMismatch     = New(http.StatusBadRequest, "PURPOSE_MISMATCH", "Code was issued for another operation")
	ErrChallengeExpired    = New(http.StatusBadRequest, "CHALLENGE_EXPIRED", "Challenge expired")
	ErrNoPasskeys          = New(http.StatusBadRequest, "NO_PASSKEYS", "No passkeys registered")
	ErrPasskeyFailed       = New(http.StatusBadRequest, "PASSKEY_FAILED", "Verification failed")
	ErrUnknownCredential   = New(http.StatusBadRequest, "UNKNOWN_CREDENTIAL", "Unknown credential")
	ErrTwoFactorNotEnabled = New(http.StatusBadRequest, "TWOFA_NOT_ENABLED", "2FA not enabled")
	ErrMethodNotEnabled    = New(http.StatusBadRequest, "METHOD_NOT_ENABLED", "2FA method not configured")
	ErrBodyTooLarge        = New(http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "Request body too large")
)

// 401 / 403
var (
	ErrUnauthorized         = New(http.StatusUnauthorized, "UNAUTHORIZED", "Not authenticated")
	ErrInvalidCSRF          = New(http.StatusForbidden, "INVALID_CSRF_TOKEN", "Invalid CSRF token")
	ErrVerificationRequired = New(http.StatusForbidden, "VERIFICATION_REQUIRED", "Second factor verification required")
)

// 404 / 405
var (
	ErrRouteNotFound    = New(http.StatusNotFound, "ROUTE_NOT_FOUND", "Not found")
	ErrMethodNotAllowed = New(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
)

// 429
var (
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Too many requests")
)

// 5xx
var (
	ErrInternalServerError = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
	ErrServiceUnavailable  = New(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Service temporarily unavailable")
)
