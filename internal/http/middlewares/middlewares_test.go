package middlewares

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/atgate/internal/rate"
	"github.com/dropDatabas3/atgate/internal/security/csrf"
	"github.com/dropDatabas3/atgate/internal/security/signedcookie"
	"github.com/dropDatabas3/atgate/internal/session"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(okHandler, mark("a"), nil, mark("b"), mark("c"))
	serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}), WithRequestID())

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = serve(h, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 500))
	serve(h, req)
	assert.Len(t, seen, 36, "oversized ids are replaced")
}

func TestRecoverWritesJSON500(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }), WithRecover())
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_SERVER_ERROR")
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestHeadersMiddlewares(t *testing.T) {
	h := Chain(okHandler, WithSecurityHeaders(), WithNoStore(), WithLogging(), WithMetrics())
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := serve(h, req)

	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
	assert.Equal(t, "ok", rec.Body.String())
}

func TestClientIP(t *testing.T) {
	tp, err := ParseTrustedProxies([]string{"10.0.0.0/8", "192.168.1.5"})
	require.NoError(t, err)

	cases := []struct {
		name    string
		tp      *TrustedProxies
		headers map[string]string
		remote  string
		want    string
	}{
		{"untrusted peer ignores real ip", tp, map[string]string{"X-Real-IP": "6.6.6.6"}, "203.0.113.7:1234", "203.0.113.7"},
		{"untrusted peer ignores forwarded", tp, map[string]string{"X-Forwarded-For": "6.6.6.6"}, "203.0.113.7:1234", "203.0.113.7"},
		{"trusted peer real ip", tp, map[string]string{"X-Real-IP": "198.51.100.1", "X-Forwarded-For": "198.51.100.2"}, "10.0.0.3:1234", "198.51.100.1"},
		{"trusted peer rightmost untrusted hop", tp, map[string]string{"X-Forwarded-For": "6.6.6.6, 198.51.100.2 , 10.0.0.9"}, "10.0.0.3:1234", "198.51.100.2"},
		{"all hops trusted", tp, map[string]string{"X-Forwarded-For": "10.1.1.1, 10.0.0.9"}, "192.168.1.5:80", "10.1.1.1"},
		{"garbage real ip", tp, map[string]string{"X-Real-IP": "not-an-ip"}, "10.0.0.3:1234", "10.0.0.3"},
		{"nil set trusts nobody", nil, map[string]string{"X-Real-IP": "6.6.6.6"}, "10.0.0.3:1234", "10.0.0.3"},
		{"remote without port", tp, nil, "10.0.0.4", "10.0.0.4"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			h := Chain(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				got = ClientIP(r)
			}), WithClientIP(tc.tp))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			serve(h, req)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClientIPWithoutMiddlewareUsesRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:1234"
	req.Header.Set("X-Real-IP", "6.6.6.6")
	assert.Equal(t, "203.0.113.7", ClientIP(req))
}

func TestParseTrustedProxiesRejectsGarbage(t *testing.T) {
	_, err := ParseTrustedProxies([]string{"10.0.0.0/33"})
	assert.Error(t, err)
	_, err = ParseTrustedProxies([]string{"proxy.local"})
	assert.Error(t, err)
	tp, err := ParseTrustedProxies(DefaultTrustedProxies)
	require.NoError(t, err)
	assert.Len(t, tp.prefixes, len(DefaultTrustedProxies))
}

func TestSpoofedHeaderDoesNotEvadeRateLimit(t *testing.T) {
	tp, err := ParseTrustedProxies(DefaultTrustedProxies)
	require.NoError(t, err)
	h := Chain(okHandler, WithClientIP(tp), WithRateLimit(RateLimitConfig{
		Limiter: rate.NewMemoryLimiter(),
		Policy:  rate.Policy{Name: "login", Limit: 1, Window: time.Minute},
		KeyFunc: IPRateKey,
	}))

	req := func(spoof string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/api/oauth/login", nil)
		r.RemoteAddr = "203.0.113.7:5555"
		r.Header.Set("X-Forwarded-For", spoof)
		return r
	}
	require.Equal(t, http.StatusOK, serve(h, req("1.1.1.1")).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, req("2.2.2.2")).Code)
}

func TestRateLimit(t *testing.T) {
	limiter := rate.NewMemoryLimiter()
	h := Chain(okHandler, WithRateLimit(RateLimitConfig{
		Limiter: limiter,
		Policy:  rate.Policy{Name: "login", Limit: 2, Window: time.Minute},
		KeyFunc: IPRateKey,
	}))

	from := func(ip string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/api/oauth/login", nil)
		req.RemoteAddr = ip + ":1234"
		return req
	}

	for i := 0; i < 2; i++ {
		rec := serve(h, from("1.1.1.1"))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}
	rec := serve(h, from("1.1.1.1"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMIT_EXCEEDED")

	// otra IP tiene su propia cuota
	assert.Equal(t, http.StatusOK, serve(h, from("2.2.2.2")).Code)
}

func TestRateLimitWithoutLimiterIsNoop(t *testing.T) {
	h := Chain(okHandler, WithRateLimit(RateLimitConfig{}))
	assert.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodPost, "/", nil)).Code)
}

func TestCSRF(t *testing.T) {
	guard, err := csrf.New([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	require.NoError(t, err)
	h := Chain(okHandler, WithCSRF(guard))

	// GET no necesita token
	assert.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodGet, "/", nil)).Code)

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_CSRF_TOKEN")

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(CSRFHeader, "garbage.token.value")
	assert.Equal(t, http.StatusForbidden, serve(h, req).Code)

	token, err := guard.Generate()
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(CSRFHeader, token)
	assert.Equal(t, http.StatusOK, serve(h, req).Code)
}

func sessionManager(t *testing.T) *session.Manager {
	t.Helper()
	codec, err := signedcookie.New([]byte("test-session-secret-32-bytes-long!"))
	require.NoError(t, err)
	return session.NewManager(codec)
}

func withCookieFor(t *testing.T, m *session.Manager, s session.UserSession) *http.Request {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, m.SetSession(rec, s))
	req := httptest.NewRequest(http.MethodGet, "/api/twofa/status", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestWithSessionAndRequireVerified(t *testing.T) {
	m := sessionManager(t)
	var got session.UserSession
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = GetSession(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	sessionOnly := Chain(inner, WithSession(m))
	verifiedOnly := Chain(inner, WithSession(m), RequireVerified())

	// sin cookie
	rec := serve(sessionOnly, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// cookie adulterada
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: session.SessionCookie, Value: "e30.bad"})
	assert.Equal(t, http.StatusUnauthorized, serve(sessionOnly, req).Code)

	pending := m.NewSession("did:plc:abc", "alice.test", false)
	rec = serve(sessionOnly, withCookieFor(t, m, pending))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "did:plc:abc", got.UserDID)

	rec = serve(verifiedOnly, withCookieFor(t, m, pending))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "VERIFICATION_REQUIRED")

	verified := m.NewSession("did:plc:abc", "alice.test", true)
	assert.Equal(t, http.StatusOK, serve(verifiedOnly, withCookieFor(t, m, verified)).Code)

	// RequireVerified sin WithSession
	assert.Equal(t, http.StatusUnauthorized, serve(Chain(inner, RequireVerified()), httptest.NewRequest(http.MethodGet, "/", nil)).Code)
}

func TestSessionRateKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "9.9.9.9:1"
	assert.Equal(t, "ip:9.9.9.9", SessionRateKey(req))

	ctx := WithSessionContext(req.Context(), session.UserSession{UserDID: "did:plc:xyz"})
	assert.Equal(t, "did:plc:xyz", SessionRateKey(req.WithContext(ctx)))
}
