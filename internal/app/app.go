// Package app arma el grafo de dependencias del gateway a partir de la config.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/dropDatabas3/atgate/internal/cache"
	"github.com/dropDatabas3/atgate/internal/config"
	"github.com/dropDatabas3/atgate/internal/email"
	healthctrl "github.com/dropDatabas3/atgate/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/atgate/internal/http/controllers/oauth"
	securityctrl "github.com/dropDatabas3/atgate/internal/http/controllers/security"
	sessionctrl "github.com/dropDatabas3/atgate/internal/http/controllers/session"
	twofactrl "github.com/dropDatabas3/atgate/internal/http/controllers/twofa"
	mw "github.com/dropDatabas3/atgate/internal/http/middlewares"
	"github.com/dropDatabas3/atgate/internal/http/router"
	"github.com/dropDatabas3/atgate/internal/identity"
	"github.com/dropDatabas3/atgate/internal/metrics"
	"github.com/dropDatabas3/atgate/internal/oauth"
	"github.com/dropDatabas3/atgate/internal/observability/logger"
	"github.com/dropDatabas3/atgate/internal/rate"
	"github.com/dropDatabas3/atgate/internal/security/csrf"
	"github.com/dropDatabas3/atgate/internal/security/signedcookie"
	"github.com/dropDatabas3/atgate/internal/session"
	"github.com/dropDatabas3/atgate/internal/twofa"
	"github.com/dropDatabas3/atgate/internal/wallet"
)

// App es el gateway armado: el handler raíz y lo que hay que liberar al salir.
type App struct {
	Handler http.Handler

	kv     cache.Client
	wallet *wallet.Provisioner
}

// New construye todos los componentes. Con cache.kind=redis falla si Redis no responde.
func New(ctx context.Context, cfg *config.Config, version string) (*App, error) {
	log := logger.L().With(logger.Component("app"))

	// ─── KV + rate limit ───
	kv, err := cache.New(ctx, cache.Config{
		Driver:          cfg.Cache.Kind,
		Addr:            cfg.Cache.Redis.Addr,
		Password:        cfg.Cache.Redis.Password,
		DB:              cfg.Cache.Redis.DB,
		Prefix:          cfg.Cache.Redis.Prefix,
		CleanupInterval: cfg.Cache.Memory.CleanupInterval,
	})
	if err != nil {
		return nil, err
	}
	limiter := &rate.FallbackLimiter{Fallback: rate.NewMemoryLimiter()}
	if rc, ok := kv.(*cache.RedisClient); ok {
		limiter.Primary = rate.NewRedisLimiter(rc.Redis(), rateKeyPrefix(cfg.Cache.Redis.Prefix))
	}

	// ─── Sesión + CSRF ───
	codec, err := signedcookie.New(cfg.SessionKey())
	if err != nil {
		return nil, fmt.Errorf("app: session codec: %w", err)
	}
	sessions := session.NewManager(codec)

	csrfKey, err := cfg.CSRFKey()
	if err != nil {
		return nil, err
	}
	guard, err := csrf.New(csrfKey, cfg.Security.CSRFMaxAge)
	if err != nil {
		return nil, fmt.Errorf("app: csrf guard: %w", err)
	}

	// ─── 2FA ───
	var store *twofa.Store
	if cfg.Cache.Kind == "redis" || !cfg.IsProd() {
		store = twofa.NewStore(kv)
	} else {
		log.Warn("2FA disabled: prod requires cache.kind=redis")
	}

	var mailer twofa.CodeSender
	sender, err := email.NewSender(email.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		TLSMode:  cfg.SMTP.TLSMode,
	}, cfg.IsProd())
	switch {
	case errors.Is(err, email.ErrNotConfigured):
		log.Warn("email 2FA disabled: SMTP not configured")
	case err != nil:
		return nil, err
	default:
		mailer = email.NewCodeMailer(sender, cfg.App.Name, cfg.TwoFA.PendingTTL)
	}

	wa, err := webauthn.New(&webauthn.Config{
		RPID:          cfg.WebAuthn.RPID,
		RPDisplayName: cfg.WebAuthn.RPName,
		RPOrigins:     cfg.WebAuthn.Origins,
	})
	if err != nil {
		return nil, fmt.Errorf("app: webauthn: %w", err)
	}

	twofaSvc := twofa.NewService(store, twofa.Options{
		Issuer:       cfg.TwoFA.Issuer,
		PendingTTL:   cfg.TwoFA.PendingTTL,
		ChallengeTTL: cfg.TwoFA.ChallengeTTL,
		MaxAttempts:  cfg.TwoFA.MaxAttempts,
		Mailer:       mailer,
		WebAuthn:     wa,
	})

	// ─── OAuth ───
	resolver := identity.NewResolver(identity.Config{
		HandleResolverURL: cfg.Identity.HandleResolverURL,
		PLCDirectoryURL:   cfg.Identity.PLCDirectoryURL,
		MetadataTTL:       cfg.Identity.MetadataCacheTTL,
		HTTPClient:        &http.Client{Timeout: cfg.OAuth.HTTPTimeout},
	})
	wp := wallet.New(wallet.Config{ServiceURL: cfg.Wallet.ServiceURL, APIKey: cfg.Wallet.APIKey})

	var checker oauth.TwoFactorChecker
	if twofaSvc.Available() {
		checker = twofaSvc
	}
	var provisioner oauth.Provisioner
	if wp != nil {
		provisioner = wp
	}
	engine := oauth.NewEngine(oauth.Config{
		PublicURL:            cfg.App.PublicURL,
		AppName:              cfg.App.Name,
		Scope:                cfg.OAuth.Scope,
		DefaultPDSURL:        cfg.OAuth.DefaultPDSURL,
		DefaultPAREndpoint:   cfg.OAuth.DefaultPAREndpoint,
		DefaultAuthEndpoint:  cfg.OAuth.DefaultAuthEndpoint,
		DefaultTokenEndpoint: cfg.OAuth.DefaultTokenEndpoint,
		HTTPClient:           &http.Client{Timeout: cfg.OAuth.HTTPTimeout},
	}, resolver, checker, provisioner)

	// ─── HTTP ───
	proxies, err := mw.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	metricsHandler, err := metrics.Register(prometheus.NewRegistry())
	if err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}

	handler := router.New(router.Deps{
		OAuth: oauthctrl.NewOAuthController(engine, sessions, oauthctrl.Config{
			PublicURL:   cfg.App.PublicURL,
			SuccessPath: cfg.Paths.Success,
			VerifyPath:  cfg.Paths.Verify,
			FailurePath: cfg.Paths.Failure,
		}),
		TwoFA:     twofactrl.NewTwoFAController(twofaSvc, sessions),
		Session:   sessionctrl.NewSessionController(),
		CSRF:      securityctrl.NewCSRFController(guard),
		Health:    healthctrl.NewHealthController(version, map[string]healthctrl.Pinger{"cache": kv}),
		Metrics:   metricsHandler,
		Sessions:  sessions,
		CSRFGuard: guard,
		Limiter:   limiter,
		Policies:  policies(cfg),

		TrustedProxies: proxies,
	})

	log.Info("app wired",
		logger.String("cache", kv.Driver()),
		logger.Bool("twofa", twofaSvc.Available()),
		logger.Bool("email_2fa", mailer != nil),
		logger.Bool("wallet", wp != nil),
		zap.Strings("webauthn_origins", cfg.WebAuthn.Origins),
	)

	return &App{Handler: handler, kv: kv, wallet: wp}, nil
}

// Close espera los provisionamientos en vuelo y cierra el KV.
func (a *App) Close() error {
	if a.wallet != nil {
		a.wallet.Wait()
	}
	if a.kv != nil {
		return a.kv.Close()
	}
	return nil
}

func policies(cfg *config.Config) router.Policies {
	p := func(name string, s config.RateSpec) rate.Policy {
		return rate.Policy{Name: name, Limit: s.Limit, Window: s.Window}
	}
	return router.Policies{
		Login:       p("login", cfg.Rate.Login),
		TwoFA:       p("twofa", cfg.Rate.TwoFA),
		TwoFAVerify: p("twofa-verify", cfg.Rate.TwoFAVerify),
		TwoFAEmail:  p("twofa-email", cfg.Rate.TwoFAEmail),
	}
}

// rateKeyPrefix comparte el namespace del KV: "<prefix>:rl:".
func rateKeyPrefix(prefix string) string {
	if prefix == "" {
		return "rl:"
	}
	return prefix + ":rl:"
}
