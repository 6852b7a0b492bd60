package validation

import (
	"regexp"
	"strings"
)

// Reglas de cada token de scope OAuth:
// - Minúsculas, dígitos y [:_.-] en el medio.
// - Empieza y termina en [a-z0-9].
// - Largo 1..64.
//
// Ejemplos válidos: atproto, transition:generic, transition:chat.bsky
// Inválidos: ";hack", "BAD", ":lead", "trail:", "".
var scopeTokenRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// ValidScopeToken indica si name es un token de scope aceptable.
func ValidScopeToken(name string) bool {
	return scopeTokenRe.MatchString(name)
}

// ValidScope valida un scope separado por espacios. Debe incluir "atproto".
func ValidScope(scope string) bool {
	toks := strings.Fields(scope)
	if len(toks) == 0 {
		return false
	}
	hasAtproto := false
	for _, t := range toks {
		if !ValidScopeToken(t) {
			return false
		}
		if t == "atproto" {
			hasAtproto = true
		}
	}
	return hasAtproto
}
