package router

import (
	"github.com/go-chi/chi/v5"

	mw "github.com/dropDatabas3/atgate/internal/http/middlewares"
)

func registerTwoFARoutes(r chi.Router, d Deps) {
	c := d.TwoFA

	r.Route("/twofa", func(r chi.Router) {
		r.Use(mw.WithSession(d.Sessions))

		r.Get("/status", c.Status)

		r.Group(func(r chi.Router) {
			r.Use(mw.WithCSRF(d.CSRFGuard))

			// Verificación de login: aceptan sesiones con 2FA pendiente.
			verify := limit(d, d.Policies.TwoFAVerify, mw.SessionRateKey)
			r.With(verify).Post("/verify", c.Verify)
			r.With(verify).Post("/passkey-auth-options", c.PasskeyAuthOptions)
			r.With(verify).Post("/passkey-verify", c.PasskeyVerify)
			r.With(limit(d, d.Policies.TwoFAEmail, mw.SessionRateKey)).Post("/send-email-code", c.SendEmailCode)

			// Alta, baja y default: solo sesiones verificadas.
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireVerified(), limit(d, d.Policies.TwoFA, mw.SessionRateKey))
				r.Post("/totp-setup", c.TOTPSetup)
				r.Post("/email-setup", c.EmailSetup)
				r.Post("/passkey-register-options", c.PasskeyRegisterOptions)
				r.Post("/passkey-register-verify", c.PasskeyRegisterVerify)
				r.Post("/disable", c.Disable)
				r.Post("/default-method", c.DefaultMethod)
			})
		})
	})
}
