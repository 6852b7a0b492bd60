package middlewares

import (
	"context"

	"github.com/dropDatabas3/atgate/internal/session"
)

// =================================================================================
// CONTEXT KEYS
// =================================================================================

type ctxKey string

const (
	ctxRequestIDKey ctxKey = "request_id"
	// ctxSessionKey guarda la session.UserSession decodificada por WithSession
	ctxSessionKey ctxKey = "session"
	// ctxClientIPKey guarda la IP resuelta por WithClientIP
	ctxClientIPKey ctxKey = "client_ip"
)

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// WithSessionContext inyecta la sesión en el contexto. Lo usa WithSession;
// queda exportado para tests de controllers.
func WithSessionContext(ctx context.Context, s session.UserSession) context.Context {
	return context.WithValue(ctx, ctxSessionKey, s)
}

// =================================================================================
// CONTEXT GETTERS
// =================================================================================

// GetRequestID obtiene el request ID del contexto ("" si no hay).
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxRequestIDKey).(string); ok {
		return v
	}
	return ""
}

// GetSession obtiene la sesión del usuario. ok=false si la ruta no pasó por WithSession.
func GetSession(ctx context.Context) (session.UserSession, bool) {
	s, ok := ctx.Value(ctxSessionKey).(session.UserSession)
	return s, ok
}
