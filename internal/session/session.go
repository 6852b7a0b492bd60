// Package session maneja las dos cookies firmadas del gateway:
//
//   - oauth_state: estado del intento OAuth entre /login y /callback (10 minutos).
//   - session_id: sesión del usuario autenticado (24 horas).
//
// Ambas son httpOnly, secure, SameSite=Lax y path=/.
package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/dropDatabas3/atgate/internal/security/dpop"
	"github.com/dropDatabas3/atgate/internal/security/signedcookie"
)

const (
	AttemptCookie = "oauth_state"
	SessionCookie = "session_id"

	AttemptTTL = 10 * time.Minute
	SessionTTL = 24 * time.Hour
)

var (
	// ErrNoCookie: el request no trae la cookie.
	ErrNoCookie = errors.New("session: cookie not present")
	// ErrInvalid: cookie adulterada, malformada o vencida.
	ErrInvalid = errors.New("session: invalid cookie")
)

// OAuthAttempt es el estado efímero de un login en curso.
// ExpectedDID/ExpectedPDSURL solo existen en el flujo por handle.
type OAuthAttempt struct {
	State          string   `json:"state"`
	CodeVerifier   string   `json:"codeVerifier"`
	DPoPPrivateJWK dpop.JWK `json:"dpopPrivateJwk"`
	TokenEndpoint  string   `json:"tokenEndpoint"`
	Email          string   `json:"email,omitempty"`
	ExpectedDID    string   `json:"expectedDid,omitempty"`
	ExpectedPDSURL string   `json:"expectedPdsUrl,omitempty"`
	CreatedAt      int64    `json:"createdAt,omitempty"` // epoch ms
}

// UserSession es la sesión del usuario.
// Verified ausente (cookies previas a 2FA) cuenta como verificada.
type UserSession struct {
	UserDID    string `json:"userDid"`
	UserHandle string `json:"userHandle"`
	CreatedAt  int64  `json:"createdAt"` // epoch ms
	Verified   *bool  `json:"verified,omitempty"`
}

// IsVerified aplica la regla verified != false.
func (s UserSession) IsVerified() bool {
	return s.Verified == nil || *s.Verified
}

// Manager lee y escribe las cookies.
type Manager struct {
	codec *signedcookie.Codec
	now   func() time.Time
}

func NewManager(codec *signedcookie.Codec) *Manager {
	return &Manager{codec: codec, now: time.Now}
}

// WithClock reemplaza el reloj (tests).
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// NewSession arma una sesión nueva con CreatedAt = ahora.
func (m *Manager) NewSession(did, handle string, verified bool) UserSession {
	v := verified
	return UserSession{
		UserDID:    did,
		UserHandle: handle,
		CreatedAt:  m.now().UnixMilli(),
		Verified:   &v,
	}
}

// ==== OAuth attempt ====

func (m *Manager) SetAttempt(w http.ResponseWriter, a OAuthAttempt) error {
	if a.CreatedAt == 0 {
		a.CreatedAt = m.now().UnixMilli()
	}
	v, err := m.codec.Encode(a)
	if err != nil {
		return err
	}
	http.SetCookie(w, cookie(AttemptCookie, v, AttemptTTL))
	return nil
}

func (m *Manager) ReadAttempt(r *http.Request) (OAuthAttempt, error) {
	var a OAuthAttempt
	if err := m.read(r, AttemptCookie, &a); err != nil {
		return OAuthAttempt{}, err
	}
	if a.State == "" || a.CodeVerifier == "" || a.TokenEndpoint == "" || m.expired(a.CreatedAt, AttemptTTL) {
		return OAuthAttempt{}, ErrInvalid
	}
	return a, nil
}

func (m *Manager) ClearAttempt(w http.ResponseWriter) {
	http.SetCookie(w, cookie(AttemptCookie, "", -1))
}

// ==== User session ====

func (m *Manager) SetSession(w http.ResponseWriter, s UserSession) error {
	v, err := m.codec.Encode(s)
	if err != nil {
		return err
	}
	http.SetCookie(w, cookie(SessionCookie, v, SessionTTL))
	return nil
}

func (m *Manager) ReadSession(r *http.Request) (UserSession, error) {
	var s UserSession
	if err := m.read(r, SessionCookie, &s); err != nil {
		return UserSession{}, err
	}
	if s.UserDID == "" || m.expired(s.CreatedAt, SessionTTL) {
		return UserSession{}, ErrInvalid
	}
	return s, nil
}

func (m *Manager) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, cookie(SessionCookie, "", -1))
}

// ==== helpers ====

func (m *Manager) read(r *http.Request, name string, v any) error {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return ErrNoCookie
	}
	if err := m.codec.Decode(c.Value, v); err != nil {
		return ErrInvalid
	}
	return nil
}

// expired: createdAt 0 (cookie sin timestamp) solo depende del Max-Age del navegador.
func (m *Manager) expired(createdAtMs int64, ttl time.Duration) bool {
	if createdAtMs == 0 {
		return false
	}
	return m.now().Sub(time.UnixMilli(createdAtMs)) > ttl
}

// cookie arma la cookie con los atributos fijos. maxAge < 0 la borra.
func cookie(name, value string, maxAge time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge < 0 {
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
	} else {
		c.MaxAge = int(maxAge.Seconds())
	}
	return c
}
