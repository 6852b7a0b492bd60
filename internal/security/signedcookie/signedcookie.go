// Package signedcookie codifica valores como base64url(JSON) + "." + base64url(HMAC-SHA256).
//
// El formato es compatible entre el cookie de intento OAuth y el de sesión.
// Decode verifica la firma ANTES de parsear el JSON.
package signedcookie

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid se retorna ante cualquier valor vacío, malformado, adulterado o no parseable.
var ErrInvalid = errors.New("signedcookie: invalid value")

// Codec firma y verifica valores con una clave de servidor.
type Codec struct {
	key []byte
}

// New crea un Codec. La clave no puede estar vacía.
func New(secret []byte) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("signedcookie: empty secret")
	}
	k := make([]byte, len(secret))
	copy(k, secret)
	return &Codec{key: k}, nil
}

// Sign retorna payload + "." + firma.
func (c *Codec) Sign(payload string) string {
	return payload + "." + c.mac(payload)
}

// Verify separa en el ÚLTIMO "." y compara la firma en tiempo constante.
// Retorna el payload si la firma es válida.
func (c *Codec) Verify(value string) (string, error) {
	i := strings.LastIndexByte(value, '.')
	if i <= 0 || i == len(value)-1 {
		return "", ErrInvalid
	}
	payload, sig := value[:i], value[i+1:]

	// Strict: bits de relleno distintos de cero también invalidan la firma
	got, err := base64.RawURLEncoding.Strict().DecodeString(sig)
	if err != nil {
		return "", ErrInvalid
	}
	want := c.rawMAC(payload)
	if !hmac.Equal(got, want) {
		return "", ErrInvalid
	}
	return payload, nil
}

// Encode serializa v a JSON, lo codifica en base64url y lo firma.
func (c *Codec) Encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("signedcookie: encode: %w", err)
	}
	return c.Sign(base64.RawURLEncoding.EncodeToString(b)), nil
}

// Decode verifica la firma y luego parsea el JSON en v.
// Un JSON inválido con firma válida también es ErrInvalid.
func (c *Codec) Decode(value string, v any) error {
	payload, err := c.Verify(value)
	if err != nil {
		return err
	}
	b, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return ErrInvalid
	}
	if err := json.Unmarshal(b, v); err != nil {
		return ErrInvalid
	}
	return nil
}

func (c *Codec) rawMAC(payload string) []byte {
	m := hmac.New(sha256.New, c.key)
	m.Write([]byte(payload))
	return m.Sum(nil)
}

func (c *Codec) mac(payload string) string {
	return base64.RawURLEncoding.EncodeToString(c.rawMAC(payload))
}
