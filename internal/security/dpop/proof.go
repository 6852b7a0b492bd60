package dpop

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	tokens "github.com/dropDatabas3/atgate/internal/security/token"
)

// HeaderType es el typ obligatorio de una prueba DPoP.
const HeaderType = "dpop+jwt"

// HeaderName es el header HTTP que transporta la prueba.
const HeaderName = "DPoP"

// Claims son los claims de una prueba DPoP.
// jti e iat vienen de RegisteredClaims.
type Claims struct {
	HTM   string `json:"htm"`
	HTU   string `json:"htu"`
	Nonce string `json:"nonce,omitempty"`
	ATH   string `json:"ath,omitempty"`
	jwt.RegisteredClaims
}

// ProofParams describe el request que la prueba firma.
type ProofParams struct {
	Method      string
	URL         string
	Nonce       string    // dpop-nonce del servidor, si lo exigió
	AccessToken string    // si se setea, agrega ath
	Now         time.Time // zero = time.Now()
}

// Proof firma una prueba DPoP nueva. Cada llamada usa un jti distinto.
func (k *KeyPair) Proof(p ProofParams) (string, error) {
	htu, err := normalizeHTU(p.URL)
	if err != nil {
		return "", err
	}
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}

	claims := Claims{
		HTM:   strings.ToUpper(p.Method),
		HTU:   htu,
		Nonce: p.Nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if p.AccessToken != "" {
		claims.ATH = tokens.SHA256Base64URL(p.AccessToken)
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	tok.Header["typ"] = HeaderType
	tok.Header["jwk"] = k.pub

	signingInput, err := tok.SigningString()
	if err != nil {
		return "", fmt.Errorf("dpop: build signing input: %w", err)
	}
	sig, err := signES256(k.priv, signingInput)
	if err != nil {
		return "", err
	}
	return signingInput + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// signES256 firma con ECDSA/SHA-256 y transcodifica la firma DER a r||s.
func signES256(priv *ecdsa.PrivateKey, input string) ([]byte, error) {
	h := sha256.Sum256([]byte(input))
	der, err := ecdsa.SignASN1(rand.Reader, priv, h[:])
	if err != nil {
		return nil, fmt.Errorf("dpop: sign: %w", err)
	}
	raw, err := DERToRaw(der, coordSize)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// normalizeHTU quita query y fragment (RFC 9449 §4.2).
func normalizeHTU(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("dpop: invalid htu %q", raw)
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}
