package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv aísla los tests de variables del entorno del desarrollador.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"APP_ENV", "PUBLIC_URL", "SESSION_SECRET", "CSRF_SECRET", "CACHE_KIND",
		"RATE_LIMIT_LOGIN", "WEBAUTHN_RP_ID", "WEBAUTHN_ORIGIN", "OAUTH_DEFAULT_PDS_URL",
		"TRUSTED_PROXIES",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.App.Env != "dev" || c.App.PublicURL != "http://localhost:3000" {
		t.Fatalf("app defaults: %+v", c.App)
	}
	if c.Security.SessionSecret != PlaceholderSessionSecret || !c.UsesPlaceholderSecrets() {
		t.Fatalf("dev must fall back to the placeholder session secret")
	}
	if c.Rate.Login != (RateSpec{Limit: 10, Window: time.Minute}) || c.Rate.TwoFAVerify.Limit != 5 || c.Rate.TwoFAEmail.Limit != 3 {
		t.Fatalf("rate defaults: %+v", c.Rate)
	}
	if c.WebAuthn.RPID != "localhost" || c.WebAuthn.Origins[0] != "http://localhost:3000" {
		t.Fatalf("webauthn defaults: %+v", c.WebAuthn)
	}
	if c.TwoFA.Issuer != "Ma Earth" || c.TwoFA.MaxAttempts != 5 {
		t.Fatalf("twofa defaults: %+v", c.TwoFA)
	}
}

func TestProdRefusesPlaceholderSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("PUBLIC_URL", "https://maearth.example")

	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "SESSION_SECRET") {
		t.Fatalf("expected SESSION_SECRET error, got %v", err)
	}

	t.Setenv("SESSION_SECRET", PlaceholderSessionSecret)
	if _, err := Load(""); err == nil {
		t.Fatalf("placeholder session secret accepted in prod")
	}

	t.Setenv("SESSION_SECRET", "a-real-secret")
	t.Setenv("CSRF_SECRET", PlaceholderCSRFSecret)
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "CSRF_SECRET") {
		t.Fatalf("placeholder csrf secret accepted in prod: %v", err)
	}

	t.Setenv("CSRF_SECRET", "another-real-secret")
	if _, err := Load(""); err != nil {
		t.Fatalf("valid prod config rejected: %v", err)
	}
}

func TestCSRFKeyDerivation(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSION_SECRET", "s1")
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	k1, err := c.CSRFKey()
	if err != nil || len(k1) != 32 {
		t.Fatalf("derived key: %v (%d bytes)", err, len(k1))
	}
	if bytes.Equal(k1, c.SessionKey()) {
		t.Fatalf("csrf key must differ from session key")
	}
	k2, _ := c.CSRFKey()
	if !bytes.Equal(k1, k2) {
		t.Fatalf("derivation must be deterministic")
	}

	c.Security.CSRFSecret = "explicit"
	if k, _ := c.CSRFKey(); string(k) != "explicit" {
		t.Fatalf("explicit CSRF_SECRET must win")
	}
}

func TestYAMLAndEnvOverride(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "atgate.yaml")
	yml := `
app:
  public_url: https://gate.example/
rate:
  login:
    limit: 20
    window: 30s
cache:
  kind: redis
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RATE_LIMIT_LOGIN", "7/2m")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.App.PublicURL != "https://gate.example" {
		t.Fatalf("trailing slash not trimmed: %s", c.App.PublicURL)
	}
	if c.Cache.Kind != "redis" {
		t.Fatalf("yaml cache kind ignored")
	}
	if c.Rate.Login != (RateSpec{Limit: 7, Window: 2 * time.Minute}) {
		t.Fatalf("env must override yaml: %+v", c.Rate.Login)
	}
	if c.WebAuthn.RPID != "gate.example" {
		t.Fatalf("rp id = %s", c.WebAuthn.RPID)
	}
}

func TestValidateRejects(t *testing.T) {
	clearEnv(t)
	cases := map[string]func(c *Config){
		"env":        func(c *Config) { c.App.Env = "qa" },
		"public url": func(c *Config) { c.App.PublicURL = "localhost:3000" },
		"cache kind": func(c *Config) { c.Cache.Kind = "memcached" },
		"rate":       func(c *Config) { c.Rate.TwoFA.Window = 0 },
		"origin":     func(c *Config) { c.WebAuthn.Origins = []string{"not a url"} },
		"default":    func(c *Config) { c.OAuth.DefaultTokenEndpoint = "/oauth/token" },
		"scope":      func(c *Config) { c.OAuth.Scope = "transition:generic" },
		"proxy":      func(c *Config) { c.Server.TrustedProxies = []string{"10.0.0.0/33"} },
	}
	for name, mutate := range cases {
		c, err := Load("")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		mutate(c)
		if err := c.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}

	if _, err := parseRateSpec("10"); err == nil {
		t.Fatalf("rate spec without window accepted")
	}
}

func TestTrustedProxiesEnv(t *testing.T) {
	clearEnv(t)
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Server.TrustedProxies) == 0 || c.Server.TrustedProxies[0] != "127.0.0.0/8" {
		t.Fatalf("trusted proxies default: %v", c.Server.TrustedProxies)
	}

	t.Setenv("TRUSTED_PROXIES", "10.1.0.0/16, 203.0.113.9")
	c, err = Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Server.TrustedProxies) != 2 || c.Server.TrustedProxies[1] != "203.0.113.9" {
		t.Fatalf("trusted proxies env: %v", c.Server.TrustedProxies)
	}

	t.Setenv("TRUSTED_PROXIES", "none")
	c, err = Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Server.TrustedProxies) != 0 {
		t.Fatalf("none must clear trusted proxies: %v", c.Server.TrustedProxies)
	}
}
