// Package metrics define las métricas Prometheus del gateway.
//
// Los collectors existen desde el arranque del proceso; Register solo los
// publica en un registry. Así los paquetes de dominio pueden incrementarlos
// sin chequear nil (y los tests no necesitan registrar nada).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Número total de requests procesadas",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Latencia de los requests HTTP",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	HTTPInflight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "http_inflight_requests",
		Help: "Requests en vuelo por método y ruta",
	}, []string{"method", "path"})

	// OAuth
	OAuthLogins = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atgate_oauth_logins_total",
		Help: "Inicios de login OAuth por flujo (handle|email) y resultado",
	}, []string{"flow", "result"})

	OAuthCallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atgate_oauth_callbacks_total",
		Help: "Callbacks OAuth por resultado (verified|pending_2fa|failed)",
	}, []string{"result"})

	DPoPNonceRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atgate_dpop_nonce_retries_total",
		Help: "Reintentos con dpop-nonce por endpoint (par|token)",
	}, []string{"endpoint"})

	// 2FA
	TwoFAEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atgate_twofa_events_total",
		Help: "Operaciones 2FA por método, operación y resultado",
	}, []string{"method", "op", "result"})

	// Rate limiting
	RateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atgate_rate_limited_total",
		Help: "Requests rechazadas por rate limit, por política",
	}, []string{"policy"})
)

// Register publica todas las métricas en reg (default si nil) y devuelve el handler de /metrics.
// Registrar dos veces en el mismo registry no es error.
func Register(reg *prometheus.Registry) (http.Handler, error) {
	var r prometheus.Registerer = prometheus.DefaultRegisterer
	if reg != nil {
		r = reg
	}
	for _, c := range []prometheus.Collector{
		HTTPRequestsTotal, HTTPRequestDuration, HTTPInflight,
		OAuthLogins, OAuthCallbacks, DPoPNonceRetries,
		TwoFAEvents, RateLimited,
	} {
		if err := registerCollector(r, c); err != nil {
			return nil, err
		}
	}
	if reg != nil {
		return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
	}
	return promhttp.Handler(), nil
}

// registerCollector registra el collector ignorando duplicados.
func registerCollector(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// TwoFA registra un evento 2FA. result: ok|fail|error.
func TwoFA(method, op, result string) {
	TwoFAEvents.WithLabelValues(method, op, result).Inc()
}
