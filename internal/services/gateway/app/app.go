package app

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/cropsense/internal/model/messages"
)

// Analyses runs an analysis and delivers it to the sinks; advisor.Service implements it.
type Analyses interface {
	Handle(ctx context.Context, req messages.AnalysisRequest) (messages.AnalysisReport, messages.AnalysisCompletedEvent, error)
}

type Config struct {
	// AnalysisTimeout bounds one POST /analyze.
	AnalysisTimeout time.Duration
	// MaxBodyBytes bounds the request body of POST /analyze.
	MaxBodyBytes int64

	Probes Probes

	// Recent serves GET /analyses/recent; nil when history is disabled.
	Recent http.Handler

	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	Logger *zap.Logger
}

type Gateway struct {
	cfg      Config
	analyses Analyses
	metrics  *Metrics
	logger   *zap.Logger
}

func NewGateway(cfg Config, analyses Analyses) *Gateway {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.AnalysisTimeout <= 0 {
		cfg.AnalysisTimeout = 90 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 16
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	return &Gateway{
		cfg:      cfg,
		analyses: analyses,
		metrics:  NewMetrics(cfg.Registerer),
		logger:   cfg.Logger,
	}
}
