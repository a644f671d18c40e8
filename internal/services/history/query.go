package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/cropsense/internal/model/entities"
)

// Querier is the subset of api.QueryAPI used here.
type Querier interface {
	Query(ctx context.Context, query string) (*api.QueryTableResult, error)
}

// Analysis is one stored analysis as exposed by GET /analyses/recent.
type Analysis struct {
	RequestID string  `json:"request_id,omitempty"`
	PinCode   string  `json:"pin_code"`
	Crop      string  `json:"crop"`
	Status    string  `json:"status"`
	TopCrop   string  `json:"top_crop,omitempty"`
	Score     float64 `json:"score"`
	Rank      int     `json:"rank"`
	TempMin   float64 `json:"temp_min,omitempty"`
	TempMax   float64 `json:"temp_max,omitempty"`
	RainCm    float64 `json:"rain_cm,omitempty"`
	Humidity  float64 `json:"humidity,omitempty"`
	Error     string  `json:"error,omitempty"`
	Time      string  `json:"time"` // RFC3339
}

const (
	MaxMinutes = 7 * 24 * 60
	MaxLimit   = 500
)

type Store struct {
	q      Querier
	bucket string
	logger *zap.Logger
}

func NewStore(q Querier, bucket string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{q: q, bucket: bucket, logger: logger}
}

func buildFlux(bucket, pin string, minutes, limit int) string {
	var pinFilter string
	if pin != "" {
		pinFilter = fmt.Sprintf("\n  |> filter(fn: (r) => r.pin_code == %q)", pin)
	}
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == %q)%s
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> group()
  |> sort(columns: ["_time"], desc: true)
  |> limit(n:%d)
`, bucket, minutes, Measurement, pinFilter, limit)
}

// Recent returns the analyses of the last minutes, newest first. An empty pin
// matches every PIN code.
func (s *Store) Recent(ctx context.Context, pin string, minutes, limit int) ([]Analysis, error) {
	res, err := s.q.Query(ctx, buildFlux(s.bucket, pin, minutes, limit))
	if err != nil {
		return nil, fmt.Errorf("influx query: %w", err)
	}
	defer func() { _ = res.Close() }()

	out := make([]Analysis, 0, limit)
	for res.Next() {
		rec := res.Record()
		out = append(out, Analysis{
			RequestID: toString(rec.ValueByKey("request_id")),
			PinCode:   toString(rec.ValueByKey("pin_code")),
			Crop:      toString(rec.ValueByKey("crop")),
			Status:    toString(rec.ValueByKey("status")),
			TopCrop:   toString(rec.ValueByKey("top_crop")),
			Score:     toFloat(rec.ValueByKey("score")),
			Rank:      int(toFloat(rec.ValueByKey("rank"))),
			TempMin:   toFloat(rec.ValueByKey("temp_min")),
			TempMax:   toFloat(rec.ValueByKey("temp_max")),
			RainCm:    toFloat(rec.ValueByKey("rain_cm")),
			Humidity:  toFloat(rec.ValueByKey("humidity")),
			Error:     toString(rec.ValueByKey("error")),
			Time:      rec.Time().UTC().Format(time.RFC3339),
		})
	}
	if err := res.Err(); err != nil {
		return out, fmt.Errorf("influx iterate: %w", err)
	}
	return out, nil
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func toFloat(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	case int:
		return float64(x)
	case uint64:
		return float64(x)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f
		}
	}
	return 0
}

type recentParams struct {
	Pin       string
	Minutes   int
	Limit     int
	TimeoutMS int
}

func parseRecent(r *http.Request, defMin, defLim, defTOms int) recentParams {
	q := r.URL.Query()
	get := func(k string, def, min, max int) int {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				if n < min {
					return min
				}
				if max > 0 && n > max {
					return max
				}
				return n
			}
		}
		return def
	}
	return recentParams{
		Pin:       strings.TrimSpace(q.Get("pin")),
		Minutes:   get("minutes", defMin, 1, MaxMinutes),
		Limit:     get("limit", defLim, 1, MaxLimit),
		TimeoutMS: get("timeout_ms", defTOms, 200, 5000),
	}
}

// NewRecentHandler serves GET /analyses/recent?pin=&limit=20&minutes=1440.
// Query failures answer an empty list with an X-Error header.
func NewRecentHandler(s *Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := parseRecent(r, 1440, 20, 2000)
		w.Header().Set("Content-Type", "application/json")
		if p.Pin != "" {
			if err := entities.ValidatePin(p.Pin); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "Please enter a valid 6-digit PIN code."})
				return
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), time.Duration(p.TimeoutMS)*time.Millisecond)
		defer cancel()

		out, err := s.Recent(ctx, p.Pin, p.Minutes, p.Limit)
		if err != nil {
			s.logger.Warn("recent analyses query failed", zap.Error(err))
			w.Header().Set("X-Error", "influx-query-error")
			if out == nil {
				out = []Analysis{}
			}
		}
		_ = json.NewEncoder(w).Encode(out)
	})
}
