package middlewares

import (
	"net/http"

	httperrors "github.com/dropDatabas3/atgate/internal/http/errors"
	"github.com/dropDatabas3/atgate/internal/observability/logger"
	"github.com/dropDatabas3/atgate/internal/session"
)

// SessionReader lee la cookie session_id (session.Manager).
type SessionReader interface {
	ReadSession(r *http.Request) (session.UserSession, error)
}

// WithSession decodifica session_id y la deja en el contexto.
// Sin cookie, o con cookie inválida/vencida: 401.
func WithSession(m SessionReader) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := m.ReadSession(r)
			if err != nil {
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}
			ctx := WithSessionContext(r.Context(), s)
			ctx = logger.With(ctx, logger.DID(s.UserDID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireVerified corta las sesiones con un segundo factor pendiente (403).
// Va después de WithSession.
func RequireVerified() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := GetSession(r.Context())
			if !ok {
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}
			if !s.IsVerified() {
				httperrors.WriteError(w, httperrors.ErrVerificationRequired)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
