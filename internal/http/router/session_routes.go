package router

import (
	"github.com/go-chi/chi/v5"

	mw "github.com/dropDatabas3/atgate/internal/http/middlewares"
)

func registerSessionRoutes(r chi.Router, d Deps) {
	// GET /api/csrf - token para X-CSRF-Token
	r.Get("/csrf", d.CSRF.GetToken)

	// GET /api/session - sesión actual (también con 2FA pendiente)
	r.With(mw.WithSession(d.Sessions)).Get("/session", d.Session.Get)
}
