// Package dpop implementa pruebas DPoP (RFC 9449) con claves efímeras ES256.
//
// La clave privada viaja serializada como JWK dentro de la cookie firmada del
// intento OAuth y se restaura en el callback; nunca se persiste en otro lado.
package dpop

import (
	"bytes"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
)

const coordSize = 32

// ErrInvalidJWK se retorna cuando la clave serializada no es una P-256 válida.
var ErrInvalidJWK = errors.New("dpop: invalid EC JWK")

// JWK es la representación JSON de una clave EC P-256.
// D solo está presente en la forma privada.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
	D   string `json:"d,omitempty"`
}

// KeyPair es un par de claves DPoP de un solo flujo.
type KeyPair struct {
	priv *ecdsa.PrivateKey
	pub  JWK
}

// GenerateKeyPair crea un par P-256 nuevo.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("dpop: generate key: %w", err)
	}
	return fromPrivate(priv), nil
}

func fromPrivate(priv *ecdsa.PrivateKey) *KeyPair {
	return &KeyPair{
		priv: priv,
		pub: JWK{
			Kty: "EC",
			Crv: "P-256",
			X:   b64(priv.X.FillBytes(make([]byte, coordSize))),
			Y:   b64(priv.Y.FillBytes(make([]byte, coordSize))),
		},
	}
}

// PublicJWK retorna la clave pública (va en el header jwk de cada prueba).
func (k *KeyPair) PublicJWK() JWK { return k.pub }

// PrivateJWK retorna la forma serializable completa.
func (k *KeyPair) PrivateJWK() JWK {
	j := k.pub
	j.D = b64(k.priv.D.FillBytes(make([]byte, coordSize)))
	return j
}

// PublicKey expone la clave pública para verificación.
func (k *KeyPair) PublicKey() *ecdsa.PublicKey { return &k.priv.PublicKey }

// RestoreKeyPair reconstruye el par a partir de d.
// X e Y se recalculan desde d; si el JWK trae otros valores se rechaza.
func RestoreKeyPair(j JWK) (*KeyPair, error) {
	if j.Kty != "EC" || j.Crv != "P-256" {
		return nil, fmt.Errorf("%w: unsupported kty/crv %q/%q", ErrInvalidJWK, j.Kty, j.Crv)
	}
	d, err := base64.RawURLEncoding.DecodeString(j.D)
	if err != nil || len(d) == 0 || len(d) > coordSize {
		return nil, fmt.Errorf("%w: bad d", ErrInvalidJWK)
	}
	padded := make([]byte, coordSize)
	copy(padded[coordSize-len(d):], d)

	ecdhKey, err := ecdh.P256().NewPrivateKey(padded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJWK, err)
	}
	// 0x04 || X || Y
	point := ecdhKey.PublicKey().Bytes()
	x, y := point[1:1+coordSize], point[1+coordSize:]

	if j.X != "" || j.Y != "" {
		jx, errX := base64.RawURLEncoding.DecodeString(j.X)
		jy, errY := base64.RawURLEncoding.DecodeString(j.Y)
		if errX != nil || errY != nil || !bytes.Equal(jx, x) || !bytes.Equal(jy, y) {
			return nil, fmt.Errorf("%w: public coordinates do not match d", ErrInvalidJWK)
		}
	}

	priv := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(x),
			Y:     new(big.Int).SetBytes(y),
		},
		D: new(big.Int).SetBytes(padded),
	}
	return fromPrivate(priv), nil
}

func b64(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }
