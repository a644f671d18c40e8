// Package history stores completed analyses in InfluxDB and reads them back.
package history

import (
	"context"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/cropsense/internal/model/messages"
	"github.com/LeonardoBeccarini/cropsense/internal/services/recommender"
)

const Measurement = "crop_analysis"

// PointWriter is the subset of the non-blocking api.WriteAPI used here.
type PointWriter interface {
	WritePoint(p *write.Point)
	Errors() <-chan error
	Flush()
}

// Recorder writes analyses and tracks the last asynchronous write error for readiness.
type Recorder struct {
	w       PointWriter
	logger  *zap.Logger
	mu      sync.RWMutex
	lastErr time.Time
	counts  map[string]int64
	now     func() time.Time
}

func NewRecorder(w PointWriter, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		w:       w,
		logger:  logger,
		lastErr: time.Now().Add(-24 * time.Hour),
		counts:  make(map[string]int64),
		now:     time.Now,
	}
	go func() {
		for err := range w.Errors() {
			if err != nil {
				r.mu.Lock()
				r.lastErr = r.now()
				r.mu.Unlock()
				logger.Warn("influx write error", zap.Error(err))
			}
		}
	}()
	return r
}

// Record queues the event as a point; the write itself is batched by the client.
func (r *Recorder) Record(_ context.Context, ev messages.AnalysisCompletedEvent) error {
	r.w.WritePoint(EventToPoint(ev))
	r.mu.Lock()
	r.counts[ev.Status]++
	r.mu.Unlock()
	return nil
}

// Deliver makes the recorder an analysis sink.
func (r *Recorder) Deliver(ctx context.Context, ev messages.AnalysisCompletedEvent) error {
	return r.Record(ctx, ev)
}

func (r *Recorder) Flush() { r.w.Flush() }

// LastErrorAge is the time since the last failed write.
func (r *Recorder) LastErrorAge() time.Duration {
	if r == nil {
		return 99999 * time.Hour
	}
	r.mu.RLock()
	t := r.lastErr
	r.mu.RUnlock()
	return r.now().Sub(t)
}

func (r *Recorder) Count(status string) int64 {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counts[status]
}

// EventToPoint maps an analysis to a crop_analysis point. Failed analyses
// carry only the error text.
func EventToPoint(ev messages.AnalysisCompletedEvent) *write.Point {
	tags := map[string]string{
		"pin_code": ev.PinCode,
		"crop":     strings.ToLower(strings.TrimSpace(ev.Crop)),
		"status":   ev.Status,
	}
	fields := map[string]interface{}{
		"request_id": ev.RequestID,
		"count":      int64(1),
	}
	if !ev.StartedAt.IsZero() && !ev.Timestamp.IsZero() {
		fields["duration_ms"] = ev.Timestamp.Sub(ev.StartedAt).Milliseconds()
	}
	if ev.Error != "" {
		fields["error"] = ev.Error
	}
	if rep := ev.Report; rep != nil {
		if lo, hi, ok := recommender.MinMax(rep.Weather.Temperature); ok {
			fields["temp_min"] = lo
			fields["temp_max"] = hi
		}
		if v, ok := recommender.ParseRange(rep.Weather.Precipitation); ok {
			fields["rain_cm"] = v
		}
		if v, ok := recommender.ParseRange(rep.Weather.Humidity); ok {
			fields["humidity"] = v
		}
		fields["score"] = rep.CropSuitability.Score
		fields["rank"] = int64(rep.CropSuitability.Rank)
		if len(rep.RecommendedCrops) > 0 {
			fields["top_crop"] = rep.RecommendedCrops[0].Name
		}
	}
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return influxdb2.NewPoint(Measurement, tags, fields, ts)
}
