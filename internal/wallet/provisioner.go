// Package wallet notifica al servicio de wallets cuando un usuario entra por email.
package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/atgate/internal/observability/logger"
)

const provisionTimeout = 10 * time.Second

type Config struct {
	ServiceURL string
	APIKey     string
	HTTPClient *http.Client
}

// Provisioner hace POST {service}/wallet/provision en background.
// Un error nunca afecta el login; solo se loguea.
type Provisioner struct {
	url    string
	apiKey string
	httpc  *http.Client
	wg     sync.WaitGroup
}

// New retorna nil si falta URL o API key (feature apagada).
func New(cfg Config) *Provisioner {
	if cfg.ServiceURL == "" || cfg.APIKey == "" {
		return nil
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: provisionTimeout}
	}
	return &Provisioner{
		url:    strings.TrimRight(cfg.ServiceURL, "/") + "/wallet/provision",
		apiKey: cfg.APIKey,
		httpc:  hc,
	}
}

// Provision dispara el alta sin bloquear. El contexto es propio: el request
// del callback termina antes que esta llamada.
func (p *Provisioner) Provision(email, did string) {
	if p == nil || email == "" || did == "" {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), provisionTimeout)
		defer cancel()

		log := logger.L().With(logger.Component("wallet"), logger.Op("wallet.provision"), logger.DID(did), logger.Email(email))
		if err := p.provision(ctx, email, did); err != nil {
			log.Warn("wallet provisioning failed", logger.Err(err))
			return
		}
		log.Info("wallet provisioned")
	}()
}

// Wait bloquea hasta que terminen los altas en curso (shutdown y tests).
func (p *Provisioner) Wait() {
	if p != nil {
		p.wg.Wait()
	}
}

func (p *Provisioner) provision(ctx context.Context, email, did string) error {
	body, err := json.Marshal(map[string]string{"email": email, "did": did})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", p.apiKey)

	resp, err := p.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("wallet: provision returned %d", resp.StatusCode)
	}
	return nil
}
