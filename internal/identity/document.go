package identity

import (
	"fmt"
	"strings"

	"github.com/bluesky-social/indigo/atproto/syntax"
)

// DIDDocument es el subconjunto del documento DID que usamos.
type DIDDocument struct {
	ID          string       `json:"id"`
	AlsoKnownAs []string     `json:"alsoKnownAs"`
	Service     []DIDService `json:"service"`
}

type DIDService struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// PDSEndpoint retorna el servicio #atproto_pds de tipo AtprotoPersonalDataServer.
func (d DIDDocument) PDSEndpoint() (string, error) {
	for _, s := range d.Service {
		if s.ID != "#atproto_pds" && s.ID != d.ID+"#atproto_pds" {
			continue
		}
		if s.Type != "AtprotoPersonalDataServer" {
			continue
		}
		u, ok := absoluteURL(s.ServiceEndpoint)
		if !ok {
			return "", fmt.Errorf("%w: malformed pds endpoint", ErrResolution)
		}
		return strings.TrimRight(u.String(), "/"), nil
	}
	return "", fmt.Errorf("%w: no pds service in did document", ErrResolution)
}

// Handle retorna el primer alsoKnownAs at:// con sintaxis de handle válida.
func (d DIDDocument) Handle() (string, bool) {
	for _, aka := range d.AlsoKnownAs {
		if !strings.HasPrefix(aka, "at://") {
			continue
		}
		h, err := syntax.ParseHandle(strings.TrimPrefix(aka, "at://"))
		if err != nil {
			continue
		}
		return h.Normalize().String(), true
	}
	return "", false
}
