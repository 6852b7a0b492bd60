// Package router arma el árbol de rutas del gateway sobre chi.
//
// Todo /api/* pasa por Recover → RequestID → Metrics → SecurityHeaders →
// NoStore → Logging; después cada ruta agrega sus gates (sesión, CSRF, rate
// limit, sesión verificada).
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	healthctrl "github.com/dropDatabas3/atgate/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/atgate/internal/http/controllers/oauth"
	securityctrl "github.com/dropDatabas3/atgate/internal/http/controllers/security"
	sessionctrl "github.com/dropDatabas3/atgate/internal/http/controllers/session"
	twofactrl "github.com/dropDatabas3/atgate/internal/http/controllers/twofa"
	httperrors "github.com/dropDatabas3/atgate/internal/http/errors"
	mw "github.com/dropDatabas3/atgate/internal/http/middlewares"
	"github.com/dropDatabas3/atgate/internal/rate"
)

// Policies son las cuotas por ruta.
type Policies struct {
	Login       rate.Policy // login:<ip>
	TwoFA       rate.Policy // twofa:<did>
	TwoFAVerify rate.Policy // twofa-verify:<did>
	TwoFAEmail  rate.Policy // twofa-email:<did>
}

// Deps contiene todo lo que el router necesita.
type Deps struct {
	OAuth   *oauthctrl.OAuthController
	TwoFA   *twofactrl.TwoFAController
	Session *sessionctrl.SessionController
	CSRF    *securityctrl.CSRFController
	Health  *healthctrl.HealthController
	Metrics http.Handler // opcional

	Sessions  mw.SessionReader
	CSRFGuard mw.CSRFVerifier
	Limiter   rate.Limiter // nil = sin rate limit
	Policies  Policies

	TrustedProxies *mw.TrustedProxies // nil = sólo RemoteAddr
}

// New registra todas las rutas y devuelve el handler raíz.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	// ===========================================================================
	// Infra
	// ===========================================================================
	r.Group(func(r chi.Router) {
		r.Use(mw.WithRecover())
		r.Get("/healthz", d.Health.Live)
		r.Get("/readyz", d.Health.Ready)
		if d.Metrics != nil {
			r.Method(http.MethodGet, "/metrics", d.Metrics)
		}
	})

	// GET /client-metadata.json - lo consume el servidor de autorización
	r.Method(http.MethodGet, "/client-metadata.json", mw.Chain(
		http.HandlerFunc(d.OAuth.ClientMetadata),
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithClientIP(d.TrustedProxies),
		mw.WithMetrics(),
		mw.WithSecurityHeaders(),
		mw.WithCacheControl("public, max-age=300"),
		mw.WithLogging(),
	))

	// ===========================================================================
	// API
	// ===========================================================================
	r.Route("/api", func(r chi.Router) {
		r.Use(
			mw.WithRecover(),
			mw.WithRequestID(),
			mw.WithClientIP(d.TrustedProxies),
			mw.WithMetrics(),
			mw.WithSecurityHeaders(),
			mw.WithNoStore(),
			mw.WithLogging(),
		)
		registerOAuthRoutes(r, d)
		registerSessionRoutes(r, d)
		registerTwoFARoutes(r, d)
	})

	return r
}

// limit arma el middleware de rate limit para una política.
func limit(d Deps, p rate.Policy, key mw.RateKeyFunc) func(http.Handler) http.Handler {
	return mw.WithRateLimit(mw.RateLimitConfig{Limiter: d.Limiter, Policy: p, KeyFunc: key})
}
