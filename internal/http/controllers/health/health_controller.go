// Package health contiene los controllers de /healthz y /readyz.
package health

import (
	"context"
	"net/http"
	"time"

	dto "github.com/dropDatabas3/atgate/internal/http/dto/health"
	"github.com/dropDatabas3/atgate/internal/http/helpers"
	"github.com/dropDatabas3/atgate/internal/observability/logger"
)

// Pinger es un componente chequeable (cache.Client).
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	components map[string]Pinger
	version    string
}

// NewHealthController recibe los componentes que /readyz debe chequear.
func NewHealthController(version string, components map[string]Pinger) *HealthController {
	return &HealthController{components: components, version: version}
}

// Live handles GET /healthz: el proceso responde.
func (c *HealthController) Live(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /readyz: todos los componentes responden al ping.
func (c *HealthController) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := dto.HealthResponse{
		Status:     "ready",
		Components: make(map[string]dto.HealthStatus, len(c.components)),
		Version:    c.version,
		Timestamp:  time.Now().UTC(),
	}
	status := http.StatusOK
	for name, p := range c.components {
		if p == nil {
			resp.Components[name] = dto.HealthStatus{Status: "disabled"}
			continue
		}
		if err := p.Ping(ctx); err != nil {
			logger.From(ctx).Warn("readiness check failed", logger.Component(name), logger.Err(err))
			resp.Components[name] = dto.HealthStatus{Status: "error", Message: "unreachable"}
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Components[name] = dto.HealthStatus{Status: "ok"}
	}
	helpers.WriteJSON(w, status, resp)
}
