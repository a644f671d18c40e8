package worker

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Connection is satisfied by mqtt.Client.
type Connection interface {
	IsConnectionOpen() bool
}

// NewHTTPHandler serves the worker's /metrics from g and a /healthz that
// follows the broker connection.
func NewHTTPHandler(g prometheus.Gatherer, conn Connection) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		connected := conn != nil && conn.IsConnectionOpen()
		status, code := "ok", http.StatusOK
		if !connected {
			status, code = "down", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": status, "mqtt_connected": connected})
	})
	return r
}
