package logger

import (
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP
// =================================================================================

// RequestID crea un campo para el ID del request.
func RequestID(v string) zap.Field { return zap.String("request_id", v) }

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field { return zap.String("method", v) }

// Path crea un campo para el path del request.
func Path(v string) zap.Field { return zap.String("path", v) }

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field { return zap.Int("status", v) }

// DurationMs crea un campo para la duración en milisegundos.
func DurationMs(v int64) zap.Field { return zap.Int64("duration_ms", v) }

// Bytes crea un campo para los bytes de respuesta.
func Bytes(v int) zap.Field { return zap.Int("bytes", v) }

// ClientIP crea un campo para la IP del cliente.
func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }

// UserAgent crea un campo para el User-Agent.
func UserAgent(v string) zap.Field { return zap.String("user_agent", v) }

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field { return zap.String("component", v) }

// Op crea un campo para la operación actual.
func Op(v string) zap.Field { return zap.String("op", v) }

// Layer crea un campo para la capa (controller, service, store).
func Layer(v string) zap.Field { return zap.String("layer", v) }

// Err crea un campo para un error.
func Err(err error) zap.Field { return zap.Error(err) }

// String crea un campo string genérico. No usar con identificadores de usuario.
func String(key, v string) zap.Field { return zap.String(key, v) }

// Int crea un campo int genérico.
func Int(key string, v int) zap.Field { return zap.Int(key, v) }

// Bool crea un campo bool genérico.
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }

// Any crea un campo genérico para cualquier tipo.
func Any(key string, v any) zap.Field { return zap.Any(key, v) }

// =================================================================================
// CAMPOS CON REDACCIÓN - IDENTIDAD
// =================================================================================

// DID loguea un DID truncado: "did:plc:abc123…".
func DID(v string) zap.Field { return zap.String("did", RedactDID(v)) }

// Handle loguea un handle truncado: "ali…".
func Handle(v string) zap.Field { return zap.String("handle", RedactHandle(v)) }

// Email loguea un email enmascarado: "a…@e….com".
func Email(v string) zap.Field { return zap.String("email", MaskEmail(v)) }

// Origin loguea solo scheme://host de una URL (sin path ni query).
func Origin(key, raw string) zap.Field { return zap.String(key, originOf(raw)) }

// RedactDID conserva el método y los primeros 6 caracteres del identificador.
func RedactDID(did string) string {
	did = strings.TrimSpace(did)
	if did == "" {
		return ""
	}
	if !strings.HasPrefix(did, "did:") {
		return RedactHandle(did)
	}
	i := strings.LastIndexByte(did, ':')
	prefix, id := did[:i+1], did[i+1:]
	if len(id) <= 6 {
		return prefix + id
	}
	return prefix + id[:6] + "…"
}

// RedactHandle conserva los primeros 3 caracteres.
func RedactHandle(h string) string {
	h = strings.TrimSpace(h)
	if len(h) <= 3 {
		return strings.Repeat("*", len(h))
	}
	return h[:3] + "…"
}

// MaskEmail enmascara usuario y primer label del dominio.
func MaskEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	i := strings.IndexByte(s, '@')
	if i <= 0 {
		if s == "" {
			return ""
		}
		if len(s) <= 3 {
			return "***"
		}
		return s[:1] + "…" + s[len(s)-1:]
	}
	user, dom := s[:i], s[i+1:]
	if len(user) > 1 {
		user = user[:1] + "…"
	}
	dparts := strings.Split(dom, ".")
	if len(dparts) > 0 && len(dparts[0]) > 1 {
		dparts[0] = dparts[0][:1] + "…"
	}
	return user + "@" + strings.Join(dparts, ".")
}

func originOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "invalid"
	}
	return u.Scheme + "://" + u.Host
}
