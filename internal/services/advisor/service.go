package advisor

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/cropsense/internal/model/messages"
)

// Sink receives every completed analysis (history recorder, result publisher).
type Sink interface {
	Deliver(ctx context.Context, ev messages.AnalysisCompletedEvent) error
}

type SinkFunc func(ctx context.Context, ev messages.AnalysisCompletedEvent) error

func (f SinkFunc) Deliver(ctx context.Context, ev messages.AnalysisCompletedEvent) error {
	return f(ctx, ev)
}

// Service runs analyses and fans the outcome out to the sinks.
type Service struct {
	analyzer Analyzer
	sinks    []Sink
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(a Analyzer, logger *zap.Logger, sinks ...Sink) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{analyzer: a, sinks: sinks, logger: logger, now: time.Now}
}

// Handle runs the request. Sink failures are logged and never fail the analysis.
func (s *Service) Handle(ctx context.Context, req messages.AnalysisRequest) (messages.AnalysisReport, messages.AnalysisCompletedEvent, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	req.Crop = strings.TrimSpace(req.Crop)
	started := s.now().UTC()

	report, err := s.analyzer.Run(ctx, req.PinCode, req.Crop)

	ev := messages.AnalysisCompletedEvent{
		RequestID: req.RequestID,
		PinCode:   req.PinCode,
		Crop:      req.Crop,
		Status:    messages.StatusOK,
		StartedAt: started,
		Timestamp: s.now().UTC(),
	}
	if err != nil {
		ev.Status = messages.StatusFail
		ev.Error = err.Error()
	} else {
		ev.Report = &report
	}

	// sinks run even when ctx is already cancelled
	dctx := context.WithoutCancel(ctx)
	for _, sink := range s.sinks {
		if derr := sink.Deliver(dctx, ev); derr != nil {
			s.logger.Warn("sink delivery failed", zap.String("request_id", ev.RequestID), zap.Error(derr))
		}
	}
	return report, ev, err
}
