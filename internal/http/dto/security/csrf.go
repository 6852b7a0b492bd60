package security

// CSRFResponse es la respuesta de GET /api/csrf. El cliente reenvía el token
// en X-CSRF-Token.
type CSRFResponse struct {
	Token string `json:"token"`
}
