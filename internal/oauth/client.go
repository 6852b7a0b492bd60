package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/atgate/internal/metrics"
	"github.com/dropDatabas3/atgate/internal/observability/logger"
	"github.com/dropDatabas3/atgate/internal/security/dpop"
)

const (
	maxResponseBytes = 1 << 20
	nonceHeader      = "DPoP-Nonce"
)

// retryPolicy decide si un status no-2xx con dpop-nonce amerita el único reintento.
type retryPolicy func(status int) bool

// PAR solo reintenta ante 400 (use_dpop_nonce).
func retryPAR(status int) bool { return status == http.StatusBadRequest }

// El token endpoint puede pedir nonce con 400 o 401.
func retryToken(status int) bool { return status < 200 || status > 299 }

type dpopClient struct {
	httpc *http.Client
	now   func() time.Time
}

// postForm envía un POST form-encoded firmado con DPoP.
// Si la respuesta no es 2xx, trae dpop-nonce y retry lo acepta, reintenta
// exactamente una vez con una prueba nueva que incluye el nonce. No hay más reintentos.
func (c *dpopClient) postForm(ctx context.Context, endpoint, label string, form url.Values, key *dpop.KeyPair, retry retryPolicy, out any) error {
	log := logger.From(ctx).With(logger.Layer("oauth"), logger.Op("oauth.post_"+label), logger.Origin("endpoint", endpoint))

	nonce := ""
	for attempt := 0; attempt < 2; attempt++ {
		status, body, respNonce, err := c.do(ctx, endpoint, form, key, nonce)
		if err != nil {
			return fmt.Errorf("%w: %s request: %w", ErrAuthFailed, label, err)
		}
		if status >= 200 && status <= 299 {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("%w: %s response: %v", ErrBadResponse, label, err)
			}
			return nil
		}
		if attempt == 0 && respNonce != "" && retry(status) {
			metrics.DPoPNonceRetries.WithLabelValues(label).Inc()
			log.Debug("retrying with dpop nonce", logger.Int("status", status))
			nonce = respNonce
			continue
		}
		return &StatusError{Endpoint: label, Status: status, Code: errorCode(body)}
	}
	// inalcanzable: el segundo intento siempre retorna
	return &StatusError{Endpoint: label}
}

func (c *dpopClient) do(ctx context.Context, endpoint string, form url.Values, key *dpop.KeyPair, nonce string) (int, []byte, string, error) {
	proof, err := key.Proof(dpop.ProofParams{
		Method: http.MethodPost,
		URL:    endpoint,
		Nonce:  nonce,
		Now:    c.now(),
	})
	if err != nil {
		return 0, nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(dpop.HeaderName, proof)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, nil, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, "", err
	}
	return resp.StatusCode, body, resp.Header.Get(nonceHeader), nil
}

func errorCode(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	return e.Error
}
