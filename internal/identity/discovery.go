package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dropDatabas3/atgate/internal/observability/logger"
)

// AuthServerMetadata son los endpoints OAuth de un PDS.
type AuthServerMetadata struct {
	Issuer                string `json:"issuer"`
	PAREndpoint           string `json:"pushed_authorization_request_endpoint"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
}

// discoveryTimeout acota la búsqueda compartida, que no depende del request que la inició.
const discoveryTimeout = 15 * time.Second

type protectedResource struct {
	AuthorizationServers []string `json:"authorization_servers"`
}

// DiscoverOAuth resuelve los endpoints OAuth de un PDS.
// Los resultados se cachean por PDS; búsquedas concurrentes se colapsan en una.
func (r *Resolver) DiscoverOAuth(ctx context.Context, pdsURL string) (AuthServerMetadata, error) {
	pds, ok := absoluteURL(pdsURL)
	if !ok {
		return AuthServerMetadata{}, fmt.Errorf("%w: invalid pds url", ErrDiscovery)
	}
	key := strings.TrimRight(pds.String(), "/")

	if v, ok := r.meta.Get(key); ok {
		return v.(AuthServerMetadata), nil
	}

	// La búsqueda corre con un contexto propio: si el primer caller se va,
	// los demás que esperan el mismo PDS no heredan su cancelación.
	ch := r.sf.DoChan(key, func() (any, error) {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), discoveryTimeout)
		defer cancel()
		md, err := r.discover(dctx, key)
		if err != nil {
			return nil, err
		}
		r.meta.Set(key, md, gocache.DefaultExpiration)
		return md, nil
	})

	var v any
	var err error
	select {
	case <-ctx.Done():
		err = fmt.Errorf("%w: %v", ErrDiscovery, ctx.Err())
	case res := <-ch:
		v, err = res.Val, res.Err
	}
	if err != nil {
		logger.From(ctx).Debug("oauth discovery failed",
			logger.Layer("identity"), logger.Op("identity.discover"), logger.Origin("pds", key), logger.Err(err))
		return AuthServerMetadata{}, err
	}
	return v.(AuthServerMetadata), nil
}

func (r *Resolver) discover(ctx context.Context, pds string) (AuthServerMetadata, error) {
	var pr protectedResource
	if err := r.getJSON(ctx, pds+"/.well-known/oauth-protected-resource", &pr); err != nil {
		return AuthServerMetadata{}, fmt.Errorf("%w: %v", ErrDiscovery, err)
	}
	if len(pr.AuthorizationServers) == 0 {
		return AuthServerMetadata{}, fmt.Errorf("%w: no authorization server", ErrDiscovery)
	}
	asOrigin := Origin(pr.AuthorizationServers[0])
	if asOrigin == "" {
		return AuthServerMetadata{}, fmt.Errorf("%w: invalid authorization server url", ErrDiscovery)
	}

	var md AuthServerMetadata
	if err := r.getJSON(ctx, asOrigin+"/.well-known/oauth-authorization-server", &md); err != nil {
		return AuthServerMetadata{}, fmt.Errorf("%w: %v", ErrDiscovery, err)
	}
	if Origin(md.Issuer) != asOrigin || strings.TrimRight(md.Issuer, "/") != asOrigin {
		return AuthServerMetadata{}, fmt.Errorf("%w: issuer does not match authorization server", ErrDiscovery)
	}
	for _, ep := range []string{md.PAREndpoint, md.AuthorizationEndpoint, md.TokenEndpoint} {
		if _, ok := absoluteURL(ep); !ok {
			return AuthServerMetadata{}, fmt.Errorf("%w: missing or malformed endpoint", ErrDiscovery)
		}
	}
	return md, nil
}
