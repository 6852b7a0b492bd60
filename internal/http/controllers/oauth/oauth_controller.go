// Package oauth contiene los controllers del login AT Protocol:
// /api/oauth/login, /api/oauth/callback, /api/oauth/logout y /client-metadata.json.
//
// Login y callback son flujos de navegador: nunca responden JSON de error,
// redirigen al path de falla y el detalle queda en el log.
package oauth

import (
	"context"
	"net/http"

	"github.com/dropDatabas3/atgate/internal/http/helpers"
	"github.com/dropDatabas3/atgate/internal/oauth"
	"github.com/dropDatabas3/atgate/internal/observability/logger"
	"github.com/dropDatabas3/atgate/internal/session"
)

// Engine es lo que el controller usa de oauth.Engine.
type Engine interface {
	StartLogin(ctx context.Context, in oauth.LoginInput) (oauth.LoginResult, error)
	Callback(ctx context.Context, p oauth.CallbackParams) (oauth.CallbackResult, error)
	Metadata() oauth.ClientMetadata
}

// Config son los destinos de redirect, relativos a PublicURL.
type Config struct {
	PublicURL   string
	SuccessPath string // /welcome
	VerifyPath  string // /verify-2fa
	FailurePath string // /?error=auth_failed
}

type OAuthController struct {
	engine   Engine
	sessions *session.Manager
	cfg      Config
}

func NewOAuthController(engine Engine, sessions *session.Manager, cfg Config) *OAuthController {
	return &OAuthController{engine: engine, sessions: sessions, cfg: cfg}
}

// Login handles GET /api/oauth/login?handle=…|email=…
func (c *OAuthController) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("OAuthController.Login"))

	q := r.URL.Query()
	res, err := c.engine.StartLogin(ctx, oauth.LoginInput{
		Handle: q.Get("handle"),
		Email:  q.Get("email"),
	})
	if err != nil {
		log.Info("login rejected", logger.Err(err))
		c.redirect(w, r, c.cfg.FailurePath)
		return
	}

	if err := c.sessions.SetAttempt(w, res.Attempt); err != nil {
		log.Error("attempt cookie", logger.Err(err))
		c.redirect(w, r, c.cfg.FailurePath)
		return
	}
	http.Redirect(w, r, res.RedirectURL, http.StatusFound)
}

// Callback handles GET /api/oauth/callback. La cookie oauth_state se borra
// siempre, haya éxito o no.
func (c *OAuthController) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("OAuthController.Callback"))

	var attempt *session.OAuthAttempt
	if a, err := c.sessions.ReadAttempt(r); err == nil {
		attempt = &a
	} else {
		log.Debug("no usable attempt cookie", logger.Err(err))
	}
	c.sessions.ClearAttempt(w)

	q := r.URL.Query()
	res, err := c.engine.Callback(ctx, oauth.CallbackParams{
		Code:    q.Get("code"),
		State:   q.Get("state"),
		Error:   q.Get("error"),
		Attempt: attempt,
	})
	if err != nil {
		c.redirect(w, r, c.cfg.FailurePath)
		return
	}

	s := c.sessions.NewSession(res.DID, res.Handle, res.Verified)
	if err := c.sessions.SetSession(w, s); err != nil {
		log.Error("session cookie", logger.Err(err))
		c.redirect(w, r, c.cfg.FailurePath)
		return
	}

	if !res.Verified {
		c.redirect(w, r, c.cfg.VerifyPath)
		return
	}
	c.redirect(w, r, c.cfg.SuccessPath)
}

// Logout handles POST /api/oauth/logout.
func (c *OAuthController) Logout(w http.ResponseWriter, r *http.Request) {
	c.sessions.ClearSession(w)
	c.sessions.ClearAttempt(w)
	logger.From(r.Context()).Info("session closed", logger.Layer("controller"), logger.Op("OAuthController.Logout"))
	helpers.Success(w)
}

// ClientMetadata handles GET /client-metadata.json. Lo lee el servidor de
// autorización, por eso es público (el router agrega Cache-Control).
func (c *OAuthController) ClientMetadata(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	helpers.WriteJSON(w, http.StatusOK, c.engine.Metadata())
}

func (c *OAuthController) redirect(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, c.cfg.PublicURL+path, http.StatusFound)
}
