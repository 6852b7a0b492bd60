package util

import (
	"strings"
	"unicode/utf8"
)

// MaskEmail deja visible el primer carácter y el dominio: "a***@example.com".
// Sin "@" retorna "***".
func MaskEmail(s string) string {
	s = strings.TrimSpace(s)
	i := strings.LastIndexByte(s, '@')
	if i <= 0 {
		return "***"
	}
	_, n := utf8.DecodeRuneInString(s)
	return s[:n] + "***" + s[i:]
}
