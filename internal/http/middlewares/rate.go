package middlewares

import (
	"net/http"
	"strconv"

	httperrors "github.com/dropDatabas3/atgate/internal/http/errors"
	"github.com/dropDatabas3/atgate/internal/metrics"
	"github.com/dropDatabas3/atgate/internal/observability/logger"
	"github.com/dropDatabas3/atgate/internal/rate"
)

// ClientIP devuelve la IP resuelta por WithClientIP. Fuera de esa cadena
// usa RemoteAddr (nunca cabeceras).
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(ctxClientIPKey).(string); ok && ip != "" {
		return ip
	}
	return remoteHost(r)
}

// RateKeyFunc define la clave lógica dentro de la política (IP, DID, ...).
type RateKeyFunc func(r *http.Request) string

// IPRateKey: una cuota por IP de cliente.
func IPRateKey(r *http.Request) string { return ClientIP(r) }

// SessionRateKey: una cuota por DID. Requiere WithSession antes en la cadena;
// sin sesión cae a la IP.
func SessionRateKey(r *http.Request) string {
	if s, ok := GetSession(r.Context()); ok && s.UserDID != "" {
		return s.UserDID
	}
	return "ip:" + ClientIP(r)
}

// RateLimitConfig configura WithRateLimit.
type RateLimitConfig struct {
	Limiter rate.Limiter
	Policy  rate.Policy
	KeyFunc RateKeyFunc
}

// WithRateLimit aplica Policy por clave. Un rechazo responde 429 con
// Retry-After. Si el limiter falla el request pasa (el FallbackLimiter ya
// absorbe las caídas de Redis).
func WithRateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = IPRateKey
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := cfg.Limiter.Allow(r.Context(), cfg.KeyFunc(r), cfg.Policy)
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter error",
					logger.Op("rate.allow"), logger.String("policy", cfg.Policy.Name), logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Policy.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

			if !res.Allowed {
				h.Set("Retry-After", strconv.Itoa(res.RetryAfterSeconds()))
				metrics.RateLimited.WithLabelValues(cfg.Policy.Name).Inc()
				logger.From(r.Context()).Info("rate limited",
					logger.String("policy", cfg.Policy.Name), logger.Int("retry_after", res.RetryAfterSeconds()))
				httperrors.WriteError(w, httperrors.ErrRateLimitExceeded)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
