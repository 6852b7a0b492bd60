package config

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/atgate/internal/validation"
)

// Secretos de desarrollo. En prod el servidor NO arranca si siguen activos.
const (
	PlaceholderSessionSecret = "dev-session-secret-change-in-production"
	PlaceholderCSRFSecret    = "dev-csrf-secret-change-in-production"

	csrfHKDFInfo = "atgate csrf v1"
)

// RateSpec es una cuota: Limit requests por Window.
type RateSpec struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

type Config struct {
	App struct {
		// dev | staging | prod
		Env       string `yaml:"env"`
		PublicURL string `yaml:"public_url"`
		Name      string `yaml:"name"`
	} `yaml:"app"`

	Server struct {
		Addr            string        `yaml:"addr"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		// Peers (CIDR o IP) cuyas cabeceras X-Real-IP / X-Forwarded-For se aceptan.
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"server"`

	Security struct {
		SessionSecret string        `yaml:"session_secret"`
		CSRFSecret    string        `yaml:"csrf_secret"`
		CSRFMaxAge    time.Duration `yaml:"csrf_max_age"`
	} `yaml:"security"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			CleanupInterval time.Duration `yaml:"cleanup_interval"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	OAuth struct {
		Scope string `yaml:"scope"`
		// Endpoints del flujo por email (no hay DID conocido de antemano)
		DefaultPDSURL        string        `yaml:"default_pds_url"`
		DefaultPAREndpoint   string        `yaml:"default_par_endpoint"`
		DefaultAuthEndpoint  string        `yaml:"default_auth_endpoint"`
		DefaultTokenEndpoint string        `yaml:"default_token_endpoint"`
		HTTPTimeout          time.Duration `yaml:"http_timeout"`
	} `yaml:"oauth"`

	Identity struct {
		HandleResolverURL string        `yaml:"handle_resolver_url"`
		PLCDirectoryURL   string        `yaml:"plc_directory_url"`
		MetadataCacheTTL  time.Duration `yaml:"metadata_cache_ttl"`
	} `yaml:"identity"`

	Rate struct {
		Login       RateSpec `yaml:"login"`
		TwoFA       RateSpec `yaml:"twofa"`
		TwoFAVerify RateSpec `yaml:"twofa_verify"`
		TwoFAEmail  RateSpec `yaml:"twofa_email"`
	} `yaml:"rate"`

	TwoFA struct {
		Issuer       string        `yaml:"issuer"`
		PendingTTL   time.Duration `yaml:"pending_ttl"`
		ChallengeTTL time.Duration `yaml:"challenge_ttl"`
		SetupTTL     time.Duration `yaml:"setup_ttl"`
		MaxAttempts  int           `yaml:"max_attempts"`
	} `yaml:"twofa"`

	WebAuthn struct {
		RPID    string   `yaml:"rp_id"`
		RPName  string   `yaml:"rp_name"`
		Origins []string `yaml:"origins"`
	} `yaml:"webauthn"`

	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
		// auto | starttls | ssl | none
		TLSMode string `yaml:"tls_mode"`
	} `yaml:"smtp"`

	Wallet struct {
		ServiceURL string `yaml:"service_url"`
		APIKey     string `yaml:"api_key"`
	} `yaml:"wallet"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Paths struct {
		Success string `yaml:"success"`
		Verify  string `yaml:"verify"`
		Failure string `yaml:"failure"`
	} `yaml:"paths"`
}

// Load lee el YAML (opcional), aplica defaults, overrides de entorno y valida.
// path vacío = solo defaults + entorno.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	c.applyDefaults()
	if err := c.applyEnvOverrides(); err != nil {
		return nil, err
	}
	c.applyDerivedDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.PublicURL == "" {
		c.App.PublicURL = "http://localhost:3000"
	}
	if c.App.Name == "" {
		c.App.Name = "Ma Earth"
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Server.TrustedProxies == nil {
		c.Server.TrustedProxies = []string{
			"127.0.0.0/8", "::1/128",
			"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "fc00::/7",
		}
	}

	if c.Security.CSRFMaxAge == 0 {
		c.Security.CSRFMaxAge = time.Hour
	}

	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Redis.Addr == "" {
		c.Cache.Redis.Addr = "localhost:6379"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "atgate"
	}
	if c.Cache.Memory.CleanupInterval == 0 {
		c.Cache.Memory.CleanupInterval = time.Minute
	}

	if c.OAuth.Scope == "" {
		c.OAuth.Scope = "atproto transition:generic"
	}
	if c.OAuth.HTTPTimeout == 0 {
		c.OAuth.HTTPTimeout = 10 * time.Second
	}

	if c.Identity.HandleResolverURL == "" {
		c.Identity.HandleResolverURL = "https://public.api.bsky.app"
	}
	if c.Identity.PLCDirectoryURL == "" {
		c.Identity.PLCDirectoryURL = "https://plc.directory"
	}
	if c.Identity.MetadataCacheTTL == 0 {
		c.Identity.MetadataCacheTTL = 5 * time.Minute
	}

	defRate := func(r *RateSpec, limit int) {
		if r.Limit == 0 {
			r.Limit = limit
		}
		if r.Window == 0 {
			r.Window = time.Minute
		}
	}
	defRate(&c.Rate.Login, 10)
	defRate(&c.Rate.TwoFA, 10)
	defRate(&c.Rate.TwoFAVerify, 5)
	defRate(&c.Rate.TwoFAEmail, 3)

	if c.TwoFA.PendingTTL == 0 {
		c.TwoFA.PendingTTL = 10 * time.Minute
	}
	if c.TwoFA.ChallengeTTL == 0 {
		c.TwoFA.ChallengeTTL = 120 * time.Second
	}
	if c.TwoFA.SetupTTL == 0 {
		c.TwoFA.SetupTTL = 10 * time.Minute
	}
	if c.TwoFA.MaxAttempts == 0 {
		c.TwoFA.MaxAttempts = 5
	}

	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.SMTP.TLSMode == "" {
		c.SMTP.TLSMode = "auto"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Paths.Success == "" {
		c.Paths.Success = "/welcome"
	}
	if c.Paths.Verify == "" {
		c.Paths.Verify = "/verify-2fa"
	}
	if c.Paths.Failure == "" {
		c.Paths.Failure = "/?error=auth_failed"
	}
}

// applyDerivedDefaults completa valores que dependen de otros (post env).
func (c *Config) applyDerivedDefaults() {
	c.App.PublicURL = strings.TrimRight(c.App.PublicURL, "/")

	if c.Security.SessionSecret == "" && !c.IsProd() {
		c.Security.SessionSecret = PlaceholderSessionSecret
	}
	if c.TwoFA.Issuer == "" {
		c.TwoFA.Issuer = c.App.Name
	}
	if c.WebAuthn.RPName == "" {
		c.WebAuthn.RPName = c.App.Name
	}
	if u, err := url.Parse(c.App.PublicURL); err == nil {
		if c.WebAuthn.RPID == "" {
			c.WebAuthn.RPID = u.Hostname()
		}
	}
	if len(c.WebAuthn.Origins) == 0 {
		c.WebAuthn.Origins = []string{c.App.PublicURL}
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// parseRateSpec parsea "10/1m".
func parseRateSpec(s string) (RateSpec, error) {
	limit, window, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return RateSpec{}, fmt.Errorf("config: rate spec %q: expected <limit>/<window>", s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(limit))
	if err != nil {
		return RateSpec{}, fmt.Errorf("config: rate spec %q: %w", s, err)
	}
	d, err := time.ParseDuration(strings.TrimSpace(window))
	if err != nil {
		return RateSpec{}, fmt.Errorf("config: rate spec %q: %w", s, err)
	}
	return RateSpec{Limit: n, Window: d}, nil
}

// applyEnvOverrides: pisa el YAML con variables de entorno.
func (c *Config) applyEnvOverrides() error {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := getEnvStr("PUBLIC_URL"); ok {
		c.App.PublicURL = v
	}
	if v, ok := getEnvStr("APP_NAME"); ok {
		c.App.Name = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvDur("SERVER_READ_TIMEOUT"); ok {
		c.Server.ReadTimeout = v
	}
	if v, ok := getEnvDur("SERVER_WRITE_TIMEOUT"); ok {
		c.Server.WriteTimeout = v
	}
	// "none" desactiva la confianza en cabeceras de proxy
	if v, ok := getEnvCSV("TRUSTED_PROXIES"); ok {
		if len(v) == 1 && strings.EqualFold(v[0], "none") {
			v = []string{}
		}
		c.Server.TrustedProxies = v
	}

	// SECURITY
	if v, ok := getEnvStr("SESSION_SECRET"); ok {
		c.Security.SessionSecret = v
	}
	if v, ok := getEnvStr("CSRF_SECRET"); ok {
		c.Security.CSRFSecret = v
	}
	if v, ok := getEnvDur("CSRF_MAX_AGE"); ok {
		c.Security.CSRFMaxAge = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}

	// OAUTH
	if v, ok := getEnvStr("OAUTH_SCOPE"); ok {
		c.OAuth.Scope = v
	}
	if v, ok := getEnvStr("OAUTH_DEFAULT_PDS_URL"); ok {
		c.OAuth.DefaultPDSURL = v
	}
	if v, ok := getEnvStr("OAUTH_DEFAULT_PAR_ENDPOINT"); ok {
		c.OAuth.DefaultPAREndpoint = v
	}
	if v, ok := getEnvStr("OAUTH_DEFAULT_AUTH_ENDPOINT"); ok {
		c.OAuth.DefaultAuthEndpoint = v
	}
	if v, ok := getEnvStr("OAUTH_DEFAULT_TOKEN_ENDPOINT"); ok {
		c.OAuth.DefaultTokenEndpoint = v
	}
	if v, ok := getEnvDur("OAUTH_HTTP_TIMEOUT"); ok {
		c.OAuth.HTTPTimeout = v
	}

	// IDENTITY
	if v, ok := getEnvStr("HANDLE_RESOLVER_URL"); ok {
		c.Identity.HandleResolverURL = v
	}
	if v, ok := getEnvStr("PLC_DIRECTORY_URL"); ok {
		c.Identity.PLCDirectoryURL = v
	}

	// RATE
	for env, dst := range map[string]*RateSpec{
		"RATE_LIMIT_LOGIN":        &c.Rate.Login,
		"RATE_LIMIT_TWOFA":        &c.Rate.TwoFA,
		"RATE_LIMIT_TWOFA_VERIFY": &c.Rate.TwoFAVerify,
		"RATE_LIMIT_TWOFA_EMAIL":  &c.Rate.TwoFAEmail,
	} {
		if v, ok := getEnvStr(env); ok {
			spec, err := parseRateSpec(v)
			if err != nil {
				return fmt.Errorf("%s: %w", env, err)
			}
			*dst = spec
		}
	}

	// WEBAUTHN
	if v, ok := getEnvStr("WEBAUTHN_RP_ID"); ok {
		c.WebAuthn.RPID = v
	}
	if v, ok := getEnvStr("WEBAUTHN_RP_NAME"); ok {
		c.WebAuthn.RPName = v
	}
	if v, ok := getEnvCSV("WEBAUTHN_ORIGIN"); ok {
		c.WebAuthn.Origins = v
	}

	// SMTP
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USER"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASS"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}
	if v, ok := getEnvStr("SMTP_TLS"); ok {
		c.SMTP.TLSMode = strings.ToLower(v)
	}

	// WALLET
	if v, ok := getEnvStr("WALLET_SERVICE_URL"); ok {
		c.Wallet.ServiceURL = v
	}
	if v, ok := getEnvStr("WALLET_API_KEY"); ok {
		c.Wallet.APIKey = v
	}

	// LOG
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	return nil
}

// IsProd reporta si el entorno es producción.
func (c *Config) IsProd() bool {
	return strings.EqualFold(c.App.Env, "prod")
}

// SMTPConfigured reporta si hay transporte de email real.
func (c *Config) SMTPConfigured() bool {
	return c.SMTP.Host != "" && c.SMTP.From != ""
}

// SessionKey es la clave HMAC de las cookies firmadas.
func (c *Config) SessionKey() []byte {
	return []byte(c.Security.SessionSecret)
}

// CSRFKey es la clave HMAC de los tokens CSRF.
// Sin CSRF_SECRET (solo fuera de prod) se deriva del secreto de sesión con HKDF-SHA256.
func (c *Config) CSRFKey() ([]byte, error) {
	if c.Security.CSRFSecret != "" {
		return []byte(c.Security.CSRFSecret), nil
	}
	if c.IsProd() {
		return nil, errors.New("config: CSRF_SECRET is required in prod")
	}
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(c.Security.SessionSecret), nil, []byte(csrfHKDFInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("config: derive csrf key: %w", err)
	}
	return key, nil
}

// UsesPlaceholderSecrets reporta si algún secreto de desarrollo sigue activo.
func (c *Config) UsesPlaceholderSecrets() bool {
	return c.Security.SessionSecret == PlaceholderSessionSecret ||
		c.Security.CSRFSecret == PlaceholderCSRFSecret
}

// Validate verifica valores críticos. En prod los secretos por defecto son fatales.
func (c *Config) Validate() error {
	switch c.App.Env {
	case "dev", "staging", "prod":
	default:
		return fmt.Errorf("config: app.env must be dev|staging|prod, got %q", c.App.Env)
	}

	if err := absoluteHTTPURL("app.public_url", c.App.PublicURL); err != nil {
		return err
	}

	if c.IsProd() {
		if c.Security.SessionSecret == "" || c.Security.SessionSecret == PlaceholderSessionSecret {
			return errors.New("config: SESSION_SECRET must be set to a non-default value in prod")
		}
		if c.Security.CSRFSecret == "" || c.Security.CSRFSecret == PlaceholderCSRFSecret {
			return errors.New("config: CSRF_SECRET must be set to a non-default value in prod")
		}
	}
	if c.Security.SessionSecret == "" {
		return errors.New("config: security.session_secret is required")
	}

	for _, p := range c.Server.TrustedProxies {
		if err := validProxy(p); err != nil {
			return fmt.Errorf("config: server.trusted_proxies: %w", err)
		}
	}

	if !validation.ValidScope(c.OAuth.Scope) {
		return fmt.Errorf("config: oauth.scope %q is invalid (must include atproto)", c.OAuth.Scope)
	}

	switch c.Cache.Kind {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: cache.kind must be memory|redis, got %q", c.Cache.Kind)
	}

	for name, r := range map[string]RateSpec{
		"login": c.Rate.Login, "twofa": c.Rate.TwoFA,
		"twofa_verify": c.Rate.TwoFAVerify, "twofa_email": c.Rate.TwoFAEmail,
	} {
		if r.Limit <= 0 || r.Window <= 0 {
			return fmt.Errorf("config: rate.%s: limit and window must be > 0", name)
		}
	}

	if c.TwoFA.MaxAttempts <= 0 {
		return errors.New("config: twofa.max_attempts must be > 0")
	}

	for _, o := range c.WebAuthn.Origins {
		if err := absoluteHTTPURL("webauthn.origins", o); err != nil {
			return err
		}
	}

	for name, v := range map[string]string{
		"oauth.default_pds_url":        c.OAuth.DefaultPDSURL,
		"oauth.default_par_endpoint":   c.OAuth.DefaultPAREndpoint,
		"oauth.default_auth_endpoint":  c.OAuth.DefaultAuthEndpoint,
		"oauth.default_token_endpoint": c.OAuth.DefaultTokenEndpoint,
		"wallet.service_url":           c.Wallet.ServiceURL,
	} {
		if v == "" {
			continue
		}
		if err := absoluteHTTPURL(name, v); err != nil {
			return err
		}
	}
	return nil
}

// validProxy acepta un CIDR o una IP.
func validProxy(raw string) error {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "/") {
		_, err := netip.ParsePrefix(raw)
		return err
	}
	_, err := netip.ParseAddr(raw)
	return err
}

func absoluteHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: %s must be an absolute http(s) URL, got %q", field, raw)
	}
	return nil
}
