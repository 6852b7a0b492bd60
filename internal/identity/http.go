package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxBody limita las respuestas de directorio/metadata.
const maxBody = 1 << 20

func (r *Resolver) get(ctx context.Context, rawURL, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)

	resp, err := r.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBody {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", originOf(rawURL), maxBody)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: status %d", originOf(rawURL), resp.StatusCode)
	}
	return body, nil
}

func (r *Resolver) getJSON(ctx context.Context, rawURL string, v any) error {
	body, err := r.get(ctx, rawURL, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", originOf(rawURL), err)
	}
	return nil
}

// absoluteURL valida un URL http(s) absoluto sin credenciales embebidas.
func absoluteURL(raw string) (*url.URL, bool) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" || u.User != nil {
		return nil, false
	}
	return u, true
}

// Origin retorna scheme://host[:port] en minúsculas, o "" si el URL no es absoluto.
func Origin(raw string) string {
	u, ok := absoluteURL(raw)
	if !ok {
		return ""
	}
	return u.Scheme + "://" + strings.ToLower(u.Host)
}

func originOf(raw string) string {
	if o := Origin(raw); o != "" {
		return o
	}
	return "invalid-url"
}
