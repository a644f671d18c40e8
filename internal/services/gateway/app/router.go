package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes builds the HTTP API.
func (g *Gateway) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(g.instrument)

	r.Post("/analyze", g.HandleAnalyze)
	if g.cfg.Recent != nil {
		r.Method(http.MethodGet, "/analyses/recent", g.cfg.Recent)
	}
	r.Get("/healthz", g.HandleHealth)
	r.Get("/readyz", g.HandleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(g.cfg.Gatherer, promhttp.HandlerOpts{}))
	return r
}
