// Package oauth implementa el cliente OAuth de AT Protocol del gateway:
// PAR + PKCE + DPoP en el login y el intercambio de código con validación
// cruzada de identidad en el callback.
package oauth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bluesky-social/indigo/atproto/syntax"

	"github.com/dropDatabas3/atgate/internal/identity"
	"github.com/dropDatabas3/atgate/internal/metrics"
	"github.com/dropDatabas3/atgate/internal/observability/logger"
	"github.com/dropDatabas3/atgate/internal/security/dpop"
	"github.com/dropDatabas3/atgate/internal/security/pkce"
	tokens "github.com/dropDatabas3/atgate/internal/security/token"
	"github.com/dropDatabas3/atgate/internal/session"
	"github.com/dropDatabas3/atgate/internal/validation"
)

// Config es la identidad del cliente y los endpoints del flujo por email.
type Config struct {
	PublicURL string
	AppName   string
	Scope     string

	// Flujo por email: sin DID previo se usan estos endpoints. Si solo hay
	// DefaultPDSURL, los endpoints se descubren desde ese PDS.
	DefaultPDSURL        string
	DefaultPAREndpoint   string
	DefaultAuthEndpoint  string
	DefaultTokenEndpoint string

	HTTPClient *http.Client
}

func (c Config) ClientID() string    { return c.PublicURL + "/client-metadata.json" }
func (c Config) RedirectURI() string { return c.PublicURL + "/api/oauth/callback" }

// IdentityResolver es lo que el engine necesita de internal/identity.
type IdentityResolver interface {
	ResolveHandle(ctx context.Context, handle string) (string, error)
	ResolvePDS(ctx context.Context, did string) (string, error)
	DiscoverOAuth(ctx context.Context, pdsURL string) (identity.AuthServerMetadata, error)
	DisplayHandle(ctx context.Context, did string) string
}

// TwoFactorChecker responde si el DID tiene 2FA configurado.
type TwoFactorChecker interface {
	Required(ctx context.Context, did string) (bool, error)
}

// Provisioner recibe el alta de wallet post-login. No debe bloquear.
type Provisioner interface {
	Provision(email, did string)
}

type Engine struct {
	cfg    Config
	id     IdentityResolver
	twofa  TwoFactorChecker
	wallet Provisioner
	client *dpopClient
}

// NewEngine arma el engine. twofa y wallet pueden ser nil.
func NewEngine(cfg Config, id IdentityResolver, twofa TwoFactorChecker, wallet Provisioner) *Engine {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	return &Engine{
		cfg:    cfg,
		id:     id,
		twofa:  twofa,
		wallet: wallet,
		client: &dpopClient{httpc: hc, now: time.Now},
	}
}

// ==== Login ====

type LoginInput struct {
	Handle string
	Email  string
}

type LoginResult struct {
	RedirectURL string
	Attempt     session.OAuthAttempt
	Flow        string // handle | email
}

type parResponse struct {
	RequestURI string `json:"request_uri"`
	ExpiresIn  int    `json:"expires_in"`
}

// StartLogin valida la entrada, resuelve endpoints, envía el PAR y arma el redirect.
// El llamador persiste Attempt en la cookie oauth_state.
func (e *Engine) StartLogin(ctx context.Context, in LoginInput) (res LoginResult, err error) {
	handle := strings.TrimPrefix(strings.TrimSpace(in.Handle), "@")
	email := validation.NormalizeEmail(in.Email)

	flow := "handle"
	if email != "" {
		flow = "email"
	}
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.start_login"), logger.String("flow", flow))
	defer func() {
		result := "ok"
		if err != nil {
			result = "failed"
			log.Warn("login start failed", logger.Err(err))
		}
		metrics.OAuthLogins.WithLabelValues(flow, result).Inc()
	}()

	if (handle == "") == (email == "") {
		return LoginResult{}, ErrInvalidInput
	}

	var (
		md      identity.AuthServerMetadata
		attempt session.OAuthAttempt
	)
	if handle != "" {
		h, herr := identity.NormalizeHandle(handle)
		if herr != nil {
			return LoginResult{}, fmt.Errorf("%w: %w", ErrInvalidInput, herr)
		}
		log = log.With(logger.Handle(h))

		did, rerr := e.id.ResolveHandle(ctx, h)
		if rerr != nil {
			return LoginResult{}, fmt.Errorf("%w: %w", ErrAuthFailed, rerr)
		}
		pds, rerr := e.id.ResolvePDS(ctx, did)
		if rerr != nil {
			return LoginResult{}, fmt.Errorf("%w: %w", ErrAuthFailed, rerr)
		}
		md, err = e.id.DiscoverOAuth(ctx, pds)
		if err != nil {
			return LoginResult{}, fmt.Errorf("%w: %w", ErrAuthFailed, err)
		}
		attempt.ExpectedDID = did
		attempt.ExpectedPDSURL = pds
	} else {
		if !validation.ValidEmail(email) {
			return LoginResult{}, ErrInvalidInput
		}
		log = log.With(logger.Email(email))
		md, err = e.emailEndpoints(ctx)
		if err != nil {
			return LoginResult{}, err
		}
		attempt.Email = email
	}

	pair, err := pkce.Generate()
	if err != nil {
		return LoginResult{}, fmt.Errorf("%w: pkce: %w", ErrAuthFailed, err)
	}
	state, err := pkce.State()
	if err != nil {
		return LoginResult{}, fmt.Errorf("%w: state: %w", ErrAuthFailed, err)
	}
	key, err := dpop.GenerateKeyPair()
	if err != nil {
		return LoginResult{}, fmt.Errorf("%w: dpop key: %w", ErrAuthFailed, err)
	}

	form := url.Values{
		"client_id":             {e.cfg.ClientID()},
		"redirect_uri":          {e.cfg.RedirectURI()},
		"response_type":         {"code"},
		"scope":                 {e.cfg.Scope},
		"state":                 {state},
		"code_challenge":        {pair.Challenge},
		"code_challenge_method": {pkce.MethodS256},
	}
	if email != "" {
		form.Set("login_hint", email)
	}

	var par parResponse
	if err := e.client.postForm(ctx, md.PAREndpoint, "par", form, key, retryPAR, &par); err != nil {
		return LoginResult{}, err
	}
	if par.RequestURI == "" {
		return LoginResult{}, fmt.Errorf("%w: par response without request_uri", ErrBadResponse)
	}

	redirect, err := authorizeURL(md.AuthorizationEndpoint, e.cfg.ClientID(), par.RequestURI, email)
	if err != nil {
		return LoginResult{}, err
	}

	attempt.State = state
	attempt.CodeVerifier = pair.Verifier
	attempt.DPoPPrivateJWK = key.PrivateJWK()
	attempt.TokenEndpoint = md.TokenEndpoint
	attempt.CreatedAt = e.client.now().UnixMilli()

	log.Info("par accepted, redirecting to authorization server", logger.Origin("auth_endpoint", md.AuthorizationEndpoint))
	return LoginResult{RedirectURL: redirect, Attempt: attempt, Flow: flow}, nil
}

// emailEndpoints resuelve los endpoints del flujo por email.
func (e *Engine) emailEndpoints(ctx context.Context) (identity.AuthServerMetadata, error) {
	c := e.cfg
	if c.DefaultPAREndpoint != "" && c.DefaultAuthEndpoint != "" && c.DefaultTokenEndpoint != "" {
		return identity.AuthServerMetadata{
			PAREndpoint:           c.DefaultPAREndpoint,
			AuthorizationEndpoint: c.DefaultAuthEndpoint,
			TokenEndpoint:         c.DefaultTokenEndpoint,
		}, nil
	}
	if c.DefaultPDSURL != "" {
		md, err := e.id.DiscoverOAuth(ctx, c.DefaultPDSURL)
		if err != nil {
			return identity.AuthServerMetadata{}, fmt.Errorf("%w: %w", ErrAuthFailed, err)
		}
		return md, nil
	}
	return identity.AuthServerMetadata{}, ErrNotConfigured
}

func authorizeURL(endpoint, clientID, requestURI, email string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: invalid authorization endpoint", ErrBadResponse)
	}
	q := u.Query()
	q.Set("client_id", clientID)
	q.Set("request_uri", requestURI)
	if email != "" {
		q.Set("login_hint", email)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ==== Callback ====

// CallbackParams son los parámetros del redirect más el intento recuperado
// de la cookie (nil si falta o es inválida).
type CallbackParams struct {
	Code    string
	State   string
	Error   string
	Attempt *session.OAuthAttempt
}

type CallbackResult struct {
	DID      string
	Handle   string
	Verified bool
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Sub         string `json:"sub"`
	Scope       string `json:"scope"`
	ExpiresIn   int    `json:"expires_in"`
}

// Callback canjea el código y valida la identidad. Cualquier error es AUTH_FAILED.
func (e *Engine) Callback(ctx context.Context, p CallbackParams) (res CallbackResult, err error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.callback"))
	defer func() {
		result := "verified"
		switch {
		case err != nil:
			result = "failed"
			log.Warn("callback failed", logger.Err(err))
		case !res.Verified:
			result = "pending_2fa"
		}
		metrics.OAuthCallbacks.WithLabelValues(result).Inc()
	}()

	if p.Error != "" {
		return CallbackResult{}, fmt.Errorf("%w (%s)", ErrProviderError, p.Error)
	}
	if p.Code == "" || p.State == "" {
		return CallbackResult{}, ErrMissingParams
	}
	if p.Attempt == nil {
		return CallbackResult{}, ErrNoAttempt
	}
	a := *p.Attempt
	if !tokens.ConstantTimeEqual(p.State, a.State) {
		return CallbackResult{}, ErrStateMismatch
	}

	key, err := dpop.RestoreKeyPair(a.DPoPPrivateJWK)
	if err != nil {
		return CallbackResult{}, fmt.Errorf("%w: %w", ErrNoAttempt, err)
	}

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {p.Code},
		"redirect_uri":  {e.cfg.RedirectURI()},
		"client_id":     {e.cfg.ClientID()},
		"code_verifier": {a.CodeVerifier},
	}
	var tok tokenResponse
	if err := e.client.postForm(ctx, a.TokenEndpoint, "token", form, key, retryToken, &tok); err != nil {
		return CallbackResult{}, err
	}
	if tok.AccessToken == "" || tok.Sub == "" {
		return CallbackResult{}, fmt.Errorf("%w: token response without access_token or sub", ErrBadResponse)
	}
	if tok.TokenType != "" && !strings.EqualFold(tok.TokenType, "DPoP") {
		return CallbackResult{}, fmt.Errorf("%w: unexpected token_type %q", ErrBadResponse, tok.TokenType)
	}
	if _, perr := syntax.ParseDID(tok.Sub); perr != nil {
		return CallbackResult{}, fmt.Errorf("%w: sub is not a did", ErrIdentityMismatch)
	}
	log = log.With(logger.DID(tok.Sub))

	if err := e.validateIdentity(ctx, a, tok.Sub); err != nil {
		return CallbackResult{}, err
	}

	handle := e.id.DisplayHandle(ctx, tok.Sub)

	required := false
	if e.twofa != nil {
		required, err = e.twofa.Required(ctx, tok.Sub)
		if err != nil {
			return CallbackResult{}, fmt.Errorf("%w: twofa lookup: %w", ErrAuthFailed, err)
		}
	}

	if e.wallet != nil && a.Email != "" {
		e.wallet.Provision(a.Email, tok.Sub)
	}

	log.Info("callback completed", logger.Bool("twofa_required", required))
	return CallbackResult{DID: tok.Sub, Handle: handle, Verified: !required}, nil
}

// validateIdentity aplica los chequeos cruzados. Todos deben pasar.
func (e *Engine) validateIdentity(ctx context.Context, a session.OAuthAttempt, sub string) error {
	tokenOrigin := identity.Origin(a.TokenEndpoint)
	if tokenOrigin == "" {
		return fmt.Errorf("%w: invalid token endpoint", ErrIdentityMismatch)
	}

	if a.ExpectedDID != "" && sub != a.ExpectedDID {
		return fmt.Errorf("%w: sub does not match resolved did", ErrIdentityMismatch)
	}
	if a.ExpectedPDSURL != "" && identity.Origin(a.ExpectedPDSURL) != tokenOrigin {
		return fmt.Errorf("%w: token endpoint origin does not match pds", ErrIdentityMismatch)
	}
	if a.ExpectedDID == "" {
		// flujo por email: el PDS declarado por el DID debe ser quien emitió el token
		pds, err := e.id.ResolvePDS(ctx, sub)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrIdentityMismatch, err)
		}
		if identity.Origin(pds) != tokenOrigin {
			return fmt.Errorf("%w: did pds does not match token endpoint", ErrIdentityMismatch)
		}
	}
	return nil
}
