// Package twofa contiene los DTOs de /api/twofa/*.
package twofa

// SetupRequest es el body de totp-setup ({step: init|verify, code?}) y
// email-setup ({step: send|verify, email?, code?}).
type SetupRequest struct {
	Step  string `json:"step"`
	Code  string `json:"code,omitempty"`
	Email string `json:"email,omitempty"`
}

// TOTPInitResponse es la respuesta del paso init de totp-setup.
type TOTPInitResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
	QRCodePNG  string `json:"qrCodePng"`
}

// VerifyRequest: method vacío usa el método por defecto.
type VerifyRequest struct {
	Code   string `json:"code,omitempty"`
	Method string `json:"method,omitempty"`
}

type DisableRequest struct {
	Method string `json:"method,omitempty"`
	Code   string `json:"code,omitempty"`
}

// SendEmailCodeRequest: purpose verify (default) | disable.
type SendEmailCodeRequest struct {
	Purpose string `json:"purpose,omitempty"`
}

type DefaultMethodRequest struct {
	Method string `json:"method"`
}

// StatusResponse refleja twofa.Status.
type StatusResponse struct {
	Enabled bool     `json:"enabled"`
	Method  string   `json:"method,omitempty"`
	Methods []string `json:"methods,omitempty"`
	Email   string   `json:"email,omitempty"`
}
