package middlewares

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// DefaultTrustedProxies: loopback y redes privadas (proxy del mismo host o de la red interna).
var DefaultTrustedProxies = []string{
	"127.0.0.0/8", "::1/128",
	"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "fc00::/7",
}

// TrustedProxies es el conjunto de peers cuyas cabeceras X-Real-IP /
// X-Forwarded-For se aceptan.
type TrustedProxies struct {
	prefixes []netip.Prefix
}

// ParseTrustedProxies acepta CIDRs o IPs sueltas.
func ParseTrustedProxies(entries []string) (*TrustedProxies, error) {
	tp := &TrustedProxies{}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			tp.prefixes = append(tp.prefixes, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
		}
		a = a.Unmap()
		tp.prefixes = append(tp.prefixes, netip.PrefixFrom(a, a.BitLen()))
	}
	return tp, nil
}

func (tp *TrustedProxies) trusts(a netip.Addr) bool {
	if tp == nil || !a.IsValid() {
		return false
	}
	a = a.Unmap()
	for _, p := range tp.prefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// Resolve determina la IP del cliente.
//   - Peer no confiable: RemoteAddr, las cabeceras se ignoran.
//   - Peer confiable: X-Real-IP; si no, el primer X-Forwarded-For no
//     confiable recorriendo de derecha a izquierda.
func (tp *TrustedProxies) Resolve(r *http.Request) string {
	peer := remoteHost(r)
	if !tp.trusts(parseAddr(peer)) {
		return peer
	}

	if a := parseAddr(r.Header.Get("X-Real-IP")); a.IsValid() {
		return a.String()
	}

	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		hops := strings.Split(xf, ",")
		client := ""
		for i := len(hops) - 1; i >= 0; i-- {
			a := parseAddr(hops[i])
			if !a.IsValid() {
				break
			}
			client = a.String()
			if !tp.trusts(a) {
				break
			}
		}
		if client != "" {
			return client
		}
	}
	return peer
}

// WithClientIP resuelve la IP una vez por request; ClientIP la lee del contexto.
// tp nil no confía en ningún proxy.
func WithClientIP(tp *TrustedProxies) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), ctxClientIPKey, tp.Resolve(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

func parseAddr(s string) netip.Addr {
	a, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}
	}
	return a.Unmap()
}
