package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dropDatabas3/atgate/internal/metrics"
)

// WithMetrics registra requests, latencia e in-flight por método y ruta normalizada.
func WithMetrics() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := metrics.NormalizePath(r.URL.Path)
			inflight := metrics.HTTPInflight.WithLabelValues(r.Method, path)
			inflight.Inc()
			defer inflight.Dec()

			start := time.Now()
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		})
	}
}
