package weather

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

// Metrics records upstream calls. A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	breaker  *prometheus.GaugeVec
}

// NewMetrics registers the upstream collectors on reg; a nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cropsense",
			Name:      "upstream_requests_total",
			Help:      "Upstream API calls by outcome.",
		}, []string{"upstream", "outcome"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cropsense",
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream API call latency including retries.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"upstream"}),
		breaker: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "cropsense",
			Name:      "upstream_breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}, []string{"upstream"}),
	}
}

func (m *Metrics) observe(upstream, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(upstream, outcome).Inc()
	if outcome != "cache_hit" {
		m.latency.WithLabelValues(upstream).Observe(d.Seconds())
	}
}

func (m *Metrics) setBreaker(upstream string, s gobreaker.State) {
	if m == nil {
		return
	}
	m.breaker.WithLabelValues(upstream).Set(float64(s))
}
