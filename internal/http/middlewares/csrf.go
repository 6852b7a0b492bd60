package middlewares

import (
	"net/http"
	"strings"

	httperrors "github.com/dropDatabas3/atgate/internal/http/errors"
	"github.com/dropDatabas3/atgate/internal/observability/logger"
)

const CSRFHeader = "X-CSRF-Token"

// CSRFVerifier valida un token emitido por GET /api/csrf (csrf.Guard).
type CSRFVerifier interface {
	Verify(token string) error
}

func isUnsafe(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// WithCSRF exige un X-CSRF-Token firmado y vigente en los métodos inseguros.
// Falla con 403.
func WithCSRF(v CSRFVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isUnsafe(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			token := strings.TrimSpace(r.Header.Get(CSRFHeader))
			if token == "" {
				httperrors.WriteError(w, httperrors.ErrInvalidCSRF.WithDetail("missing "+CSRFHeader))
				return
			}
			if err := v.Verify(token); err != nil {
				logger.From(r.Context()).Info("csrf rejected", logger.Op("csrf.verify"), logger.Err(err))
				httperrors.WriteError(w, httperrors.ErrInvalidCSRF)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
