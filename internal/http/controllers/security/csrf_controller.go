package security

import (
	"net/http"

	dto "github.com/dropDatabas3/atgate/internal/http/dto/security"
	httperrors "github.com/dropDatabas3/atgate/internal/http/errors"
	"github.com/dropDatabas3/atgate/internal/http/helpers"
	"github.com/dropDatabas3/atgate/internal/observability/logger"
)

// TokenIssuer emite tokens CSRF (csrf.Guard).
type TokenIssuer interface {
	Generate() (string, error)
}

// CSRFController handles GET /api/csrf.
type CSRFController struct {
	issuer TokenIssuer
}

func NewCSRFController(issuer TokenIssuer) *CSRFController {
	return &CSRFController{issuer: issuer}
}

// GetToken emite un token firmado. No hay cookie: el token es autocontenido
// y el cliente lo manda en X-CSRF-Token.
func (c *CSRFController) GetToken(w http.ResponseWriter, r *http.Request) {
	token, err := c.issuer.Generate()
	if err != nil {
		logger.From(r.Context()).Error("failed to generate CSRF token",
			logger.Layer("controller"), logger.Op("CSRFController.GetToken"), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.CSRFResponse{Token: token})
}
