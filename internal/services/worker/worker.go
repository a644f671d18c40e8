// Package worker runs analyses requested over MQTT.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/cropsense/internal/model"
	"github.com/LeonardoBeccarini/cropsense/pkg/dedup"
)

const (
	RequestTopicPrefix = "cropsense/request/"
	RequestTopicFilter = RequestTopicPrefix + "#"
	DefaultResultTopic = "cropsense/result/{pin}"
)

var ErrBadRequest = errors.New("malformed analysis request")

// Service runs one analysis and delivers its outcome; advisor.Service implements it.
type Service interface {
	Handle(ctx context.Context, req model.AnalysisRequest) (model.AnalysisReport, model.AnalysisCompletedEvent, error)
}

type Metrics struct {
	messages *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cropsense",
			Subsystem: "worker",
			Name:      "messages_total",
			Help:      "Analysis requests consumed, by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) inc(outcome string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(outcome).Inc()
}

// Worker consumes analysis requests, dropping QoS 1 redeliveries.
type Worker struct {
	svc     Service
	deduper *dedup.Deduper
	timeout time.Duration
	metrics *Metrics
	logger  *zap.Logger
}

func New(svc Service, deduper *dedup.Deduper, timeout time.Duration, metrics *Metrics, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deduper == nil {
		deduper = dedup.New(10*time.Minute, 20000)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Worker{svc: svc, deduper: deduper, timeout: timeout, metrics: metrics, logger: logger}
}

// Handle is the rabbitmq.Handler of the request subscription.
func (w *Worker) Handle(_ string, m mqtt.Message) error {
	if !w.deduper.ShouldProcessMessage(m.Topic(), m.Payload()) {
		w.metrics.inc("duplicate")
		w.logger.Debug("duplicate request dropped", zap.String("topic", m.Topic()))
		return nil
	}
	req, err := decodeRequest(m.Topic(), m.Payload())
	if err != nil {
		w.metrics.inc("malformed")
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	start := time.Now()
	_, ev, err := w.svc.Handle(ctx, req)
	if err != nil {
		w.metrics.inc("failed")
		w.logger.Warn("analysis failed", zap.String("request_id", ev.RequestID),
			zap.String("pin", req.PinCode), zap.String("crop", req.Crop), zap.Error(err))
		// the failure has been published as an event already
		return nil
	}
	w.metrics.inc("ok")
	w.logger.Info("analysis done", zap.String("request_id", ev.RequestID), zap.String("pin", req.PinCode),
		zap.String("crop", req.Crop), zap.Duration("took", time.Since(start)))
	return nil
}

// decodeRequest reads the JSON payload; the PIN code may also come from the
// topic "cropsense/request/{pin}".
func decodeRequest(topic string, payload []byte) (model.AnalysisRequest, error) {
	var req model.AnalysisRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return req, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	req.PinCode = pickPin(topic, req.PinCode)
	if req.PinCode == "" {
		return req, fmt.Errorf("%w: missing pin code", ErrBadRequest)
	}
	return req, nil
}

func pickPin(topic, pin string) string {
	if p := strings.TrimSpace(pin); p != "" {
		return p
	}
	if !strings.HasPrefix(topic, RequestTopicPrefix) {
		return ""
	}
	parts := strings.Split(strings.TrimPrefix(topic, RequestTopicPrefix), "/")
	return strings.TrimSpace(parts[0])
}
