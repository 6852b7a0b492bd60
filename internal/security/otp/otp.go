// Package otp genera y compara códigos numéricos de un solo uso (6 dígitos).
// Solo se persiste el hash SHA-256 del código; la comparación es en tiempo constante.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"

	tokens "github.com/dropDatabas3/atgate/internal/security/token"
)

// Digits es la longitud fija de un código.
const Digits = 6

var space = big.NewInt(1_000_000)

// Generate retorna un código uniforme en [000000, 999999].
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, space)
	if err != nil {
		return "", fmt.Errorf("otp: generate: %w", err)
	}
	return Format(n.Int64()), nil
}

// Format rellena con ceros a la izquierda: 42 -> "000042".
func Format(n int64) string {
	return fmt.Sprintf("%06d", n)
}

// Hash retorna sha256(code) en hexadecimal.
func Hash(code string) string {
	return tokens.SHA256Hex(code)
}

// Matches compara un código contra un hash almacenado.
func Matches(code, hash string) bool {
	return tokens.ConstantTimeEqual(Hash(code), hash)
}

// ValidFormat reporta si s son exactamente 6 dígitos ASCII.
func ValidFormat(s string) bool {
	if len(s) != Digits {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
