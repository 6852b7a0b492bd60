package router

import (
	"github.com/go-chi/chi/v5"

	mw "github.com/dropDatabas3/atgate/internal/http/middlewares"
)

func registerOAuthRoutes(r chi.Router, d Deps) {
	c := d.OAuth

	r.Route("/oauth", func(r chi.Router) {
		// GET /api/oauth/login - PAR + redirect al servidor de autorización
		r.With(limit(d, d.Policies.Login, mw.IPRateKey)).Get("/login", c.Login)

		// GET /api/oauth/callback - token exchange + sesión
		r.Get("/callback", c.Callback)

		// POST /api/oauth/logout
		r.With(mw.WithSession(d.Sessions), mw.WithCSRF(d.CSRFGuard)).Post("/logout", c.Logout)
	})
}
