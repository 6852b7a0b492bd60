// Package pkce genera pares verifier/challenge (RFC 7636, solo S256) y el state OAuth.
package pkce

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	tokens "github.com/dropDatabas3/atgate/internal/security/token"
)

// MethodS256 es el único método soportado.
const MethodS256 = "S256"

// Pair es un verifier PKCE y su challenge derivado.
type Pair struct {
	Verifier  string
	Challenge string
}

// Generate crea un verifier de 32 bytes aleatorios (43 chars base64url).
func Generate() (Pair, error) {
	v, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return Pair{}, fmt.Errorf("pkce: generate verifier: %w", err)
	}
	return Pair{Verifier: v, Challenge: Challenge(v)}, nil
}

// Challenge calcula base64url(SHA-256(verifier)).
func Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// State genera el parámetro state anti-CSRF (16 bytes).
func State() (string, error) {
	s, err := tokens.GenerateOpaqueToken(16)
	if err != nil {
		return "", fmt.Errorf("pkce: generate state: %w", err)
	}
	return s, nil
}
