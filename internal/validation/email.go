package validation

import (
	"regexp"
	"strings"
)

// MaxEmailLength es el largo máximo de una dirección (RFC 5321).
const MaxEmailLength = 254

// Local part con el set habitual; dominio con labels de hasta 63 chars y al menos un punto.
var emailRe = regexp.MustCompile(`^[A-Za-z0-9._%+\-]{1,64}@[A-Za-z0-9](?:[A-Za-z0-9-]{0,61}[A-Za-z0-9])?(?:\.[A-Za-z0-9](?:[A-Za-z0-9-]{0,61}[A-Za-z0-9])?)+$`)

// ValidEmail valida formato y largo. No resuelve el dominio.
func ValidEmail(s string) bool {
	if len(s) == 0 || len(s) > MaxEmailLength {
		return false
	}
	return emailRe.MatchString(s)
}

// NormalizeEmail recorta espacios y pasa el dominio a minúsculas.
func NormalizeEmail(s string) string {
	s = strings.TrimSpace(s)
	i := strings.LastIndexByte(s, '@')
	if i < 0 {
		return s
	}
	return s[:i+1] + strings.ToLower(s[i+1:])
}
