package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/atgate/internal/security/dpop"
	"github.com/dropDatabas3/atgate/internal/security/signedcookie"
)

func newManager(t *testing.T, now *time.Time) *Manager {
	t.Helper()
	codec, err := signedcookie.New([]byte("session-test-secret"))
	require.NoError(t, err)
	return NewManager(codec).WithClock(func() time.Time { return *now })
}

// carry copia las cookies de una respuesta a un request nuevo.
func carry(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestSessionRoundTripAndAttributes(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := newManager(t, &now)

	in := m.NewSession("did:plc:abc123", "alice.example.com", false)
	rec := httptest.NewRecorder()
	require.NoError(t, m.SetSession(rec, in))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, SessionCookie, c.Name)
	assert.Equal(t, 86400, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, "/", c.Path)

	out, err := m.ReadSession(carry(rec))
	require.NoError(t, err)
	assert.Equal(t, in.UserDID, out.UserDID)
	assert.Equal(t, in.UserHandle, out.UserHandle)
	assert.Equal(t, in.CreatedAt, out.CreatedAt)
	assert.False(t, out.IsVerified())
}

func TestSessionWithoutVerifiedIsVerified(t *testing.T) {
	assert.True(t, UserSession{UserDID: "did:plc:x"}.IsVerified())
	f := false
	assert.False(t, UserSession{UserDID: "did:plc:x", Verified: &f}.IsVerified())
}

func TestSessionExpiresServerSide(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := newManager(t, &now)
	rec := httptest.NewRecorder()
	require.NoError(t, m.SetSession(rec, m.NewSession("did:plc:x", "x", true)))

	now = now.Add(SessionTTL + time.Minute)
	_, err := m.ReadSession(carry(rec))
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestReadSessionErrors(t *testing.T) {
	now := time.Now()
	m := newManager(t, &now)

	_, err := m.ReadSession(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, errors.Is(err, ErrNoCookie))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "garbage-without-dot"})
	_, err = m.ReadSession(req)
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestAttemptRoundTripAndClear(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := newManager(t, &now)
	kp, err := dpop.GenerateKeyPair()
	require.NoError(t, err)

	in := OAuthAttempt{
		State:          "st",
		CodeVerifier:   "cv",
		DPoPPrivateJWK: kp.PrivateJWK(),
		TokenEndpoint:  "https://pds.example.com/oauth/token",
		ExpectedDID:    "did:plc:abc",
		ExpectedPDSURL: "https://pds.example.com",
	}
	rec := httptest.NewRecorder()
	require.NoError(t, m.SetAttempt(rec, in))
	assert.Equal(t, 600, rec.Result().Cookies()[0].MaxAge)

	out, err := m.ReadAttempt(carry(rec))
	require.NoError(t, err)
	in.CreatedAt = now.UnixMilli()
	assert.Equal(t, in, out)

	now = now.Add(11 * time.Minute)
	_, err = m.ReadAttempt(carry(rec))
	assert.True(t, errors.Is(err, ErrInvalid))

	clear := httptest.NewRecorder()
	m.ClearAttempt(clear)
	c := clear.Result().Cookies()[0]
	assert.Equal(t, AttemptCookie, c.Name)
	assert.Equal(t, -1, c.MaxAge)
}

func TestAttemptRequiresCoreFields(t *testing.T) {
	now := time.Now()
	m := newManager(t, &now)
	rec := httptest.NewRecorder()
	require.NoError(t, m.SetAttempt(rec, OAuthAttempt{State: "s"}))
	_, err := m.ReadAttempt(carry(rec))
	assert.True(t, errors.Is(err, ErrInvalid))
}
