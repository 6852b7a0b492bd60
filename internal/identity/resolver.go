package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bluesky-social/indigo/atproto/syntax"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/atgate/internal/observability/logger"
)

var (
	// ErrResolution: el handle o DID no pudo mapearse.
	ErrResolution = errors.New("identity: resolution failed")
	// ErrDiscovery: la metadata OAuth del PDS es inaccesible o inválida.
	ErrDiscovery = errors.New("identity: oauth discovery failed")
)

// Config configura el Resolver.
type Config struct {
	HandleResolverURL string
	PLCDirectoryURL   string
	MetadataTTL       time.Duration
	HTTPClient        *http.Client
}

// Resolver ejecuta las búsquedas de red. Es seguro para uso concurrente.
type Resolver struct {
	httpc       *http.Client
	handleXRPC  string
	plc         string
	metaTTL     time.Duration
	meta        *gocache.Cache
	sf          singleflight.Group
	wellKnownFn func(handle string) string
}

func NewResolver(cfg Config) *Resolver {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	ttl := cfg.MetadataTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Resolver{
		httpc:      hc,
		handleXRPC: strings.TrimRight(cfg.HandleResolverURL, "/"),
		plc:        strings.TrimRight(cfg.PLCDirectoryURL, "/"),
		metaTTL:    ttl,
		meta:       gocache.New(ttl, 2*ttl),
		wellKnownFn: func(h string) string {
			return "https://" + h + "/.well-known/atproto-did"
		},
	}
}

// NormalizeHandle quita espacios y un "@" inicial, y valida la sintaxis.
func NormalizeHandle(raw string) (string, error) {
	h := strings.TrimPrefix(strings.TrimSpace(raw), "@")
	parsed, err := syntax.ParseHandle(h)
	if err != nil {
		return "", fmt.Errorf("%w: invalid handle syntax", ErrResolution)
	}
	return parsed.Normalize().String(), nil
}

// ResolveHandle mapea un handle a su DID.
// Intenta el endpoint XRPC configurado y luego /.well-known/atproto-did del propio dominio.
func (r *Resolver) ResolveHandle(ctx context.Context, handle string) (string, error) {
	log := logger.From(ctx).With(logger.Layer("identity"), logger.Op("identity.resolve_handle"), logger.Handle(handle))

	h, err := NormalizeHandle(handle)
	if err != nil {
		return "", err
	}

	if r.handleXRPC != "" {
		var out struct {
			DID string `json:"did"`
		}
		u := r.handleXRPC + "/xrpc/com.atproto.identity.resolveHandle?handle=" + url.QueryEscape(h)
		if err := r.getJSON(ctx, u, &out); err == nil {
			if did, ok := validDID(out.DID); ok {
				return did, nil
			}
			log.Debug("resolver returned invalid did")
		} else {
			log.Debug("xrpc handle resolution failed", logger.Err(err))
		}
	}

	body, err := r.get(ctx, r.wellKnownFn(h), "text/plain")
	if err != nil {
		log.Debug("well-known handle resolution failed", logger.Err(err))
		return "", fmt.Errorf("%w: handle not resolvable", ErrResolution)
	}
	if did, ok := validDID(strings.TrimSpace(string(body))); ok {
		return did, nil
	}
	return "", fmt.Errorf("%w: handle not resolvable", ErrResolution)
}

// ResolveDID obtiene el documento DID (did:plc vía directorio, did:web vía .well-known).
func (r *Resolver) ResolveDID(ctx context.Context, did string) (*DIDDocument, error) {
	parsed, err := syntax.ParseDID(did)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid did syntax", ErrResolution)
	}

	var docURL string
	switch parsed.Method() {
	case "plc":
		docURL = r.plc + "/" + parsed.String()
	case "web":
		// solo did:web de host (sin path); el puerto viaja como %3A
		id := parsed.Identifier()
		host, err := url.PathUnescape(id)
		if err != nil || strings.Contains(id, ":") {
			return nil, fmt.Errorf("%w: unsupported did:web form", ErrResolution)
		}
		docURL = "https://" + host + "/.well-known/did.json"
	default:
		return nil, fmt.Errorf("%w: unsupported did method %q", ErrResolution, parsed.Method())
	}

	var doc DIDDocument
	if err := r.getJSON(ctx, docURL, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResolution, err)
	}
	if doc.ID != parsed.String() {
		return nil, fmt.Errorf("%w: document id does not match did", ErrResolution)
	}
	return &doc, nil
}

// ResolvePDS retorna el endpoint del PDS declarado por el DID.
func (r *Resolver) ResolvePDS(ctx context.Context, did string) (string, error) {
	doc, err := r.ResolveDID(ctx, did)
	if err != nil {
		return "", err
	}
	return doc.PDSEndpoint()
}

// DisplayHandle retorna el handle de alsoKnownAs o, ante cualquier fallo, el propio DID.
func (r *Resolver) DisplayHandle(ctx context.Context, did string) string {
	doc, err := r.ResolveDID(ctx, did)
	if err != nil {
		logger.From(ctx).Debug("display handle fallback to did", logger.Op("identity.display_handle"), logger.DID(did), logger.Err(err))
		return did
	}
	if h, ok := doc.Handle(); ok {
		return h
	}
	return did
}

func validDID(s string) (string, bool) {
	d, err := syntax.ParseDID(s)
	if err != nil {
		return "", false
	}
	return d.String(), true
}
