// Package csrf emite y valida tokens CSRF sin estado:
//
//	base36(unix-millis) "." base64url(16 bytes aleatorios) "." base64url(HMAC-SHA256(payload))
//
// donde payload son las dos primeras partes. El token vale MaxAge desde su emisión.
package csrf

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	tokens "github.com/dropDatabas3/atgate/internal/security/token"
)

// DefaultMaxAge es la validez por defecto de un token.
const DefaultMaxAge = time.Hour

// clockSkew tolera tokens emitidos levemente "en el futuro".
const clockSkew = time.Minute

var (
	ErrInvalid = errors.New("csrf: invalid token")
	ErrExpired = errors.New("csrf: token expired")
)

// Guard firma y verifica tokens.
type Guard struct {
	key    []byte
	maxAge time.Duration
	now    func() time.Time
}

// New crea un Guard. maxAge <= 0 usa DefaultMaxAge.
func New(key []byte, maxAge time.Duration) (*Guard, error) {
	if len(key) == 0 {
		return nil, errors.New("csrf: empty key")
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Guard{key: key, maxAge: maxAge, now: time.Now}, nil
}

// WithClock reemplaza el reloj (tests).
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.now = now
	return g
}

// Generate emite un token nuevo.
func (g *Guard) Generate() (string, error) {
	rnd, err := tokens.GenerateOpaqueToken(16)
	if err != nil {
		return "", err
	}
	payload := strconv.FormatInt(g.now().UnixMilli(), 36) + "." + rnd
	return payload + "." + g.sign(payload), nil
}

// Verify valida firma y frescura.
func (g *Guard) Verify(token string) error {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return ErrInvalid
	}
	payload := parts[0] + "." + parts[1]

	got, err := base64.RawURLEncoding.Strict().DecodeString(parts[2])
	if err != nil || !hmac.Equal(got, g.rawSign(payload)) {
		return ErrInvalid
	}

	ms, err := strconv.ParseInt(parts[0], 36, 64)
	if err != nil {
		return ErrInvalid
	}
	issued := time.UnixMilli(ms)
	now := g.now()
	if issued.After(now.Add(clockSkew)) {
		return ErrInvalid
	}
	if now.Sub(issued) > g.maxAge {
		return ErrExpired
	}
	return nil
}

func (g *Guard) rawSign(payload string) []byte {
	m := hmac.New(sha256.New, g.key)
	m.Write([]byte(payload))
	return m.Sum(nil)
}

func (g *Guard) sign(payload string) string {
	return base64.RawURLEncoding.EncodeToString(g.rawSign(payload))
}
