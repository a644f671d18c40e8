package weather

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/cropsense/internal/model/entities"
)

func fptr(v float64) *float64 { return &v }

func meteoBody(t *testing.T) []byte {
	t.Helper()
	hourly := map[string]any{
		"time":                     []string{"2025-06-01T00:00", "2025-06-01T01:00", "2025-06-01T02:00", "2025-06-01T03:00"},
		"temperature_2m":           []*float64{fptr(21.5), fptr(30.256), nil, fptr(25)},
		"precipitation":            []*float64{fptr(0), fptr(12.5), fptr(2.5), nil},
		"relative_humidity_2m":     []*float64{fptr(60), fptr(80), fptr(70), fptr(70)},
		"soil_moisture_0_to_1cm":   []*float64{fptr(0.1), fptr(0.3)},
		"soil_moisture_3_to_9cm":   []*float64{fptr(0.2), fptr(0.2)},
		"soil_moisture_9_to_27cm":  []*float64{fptr(0.3), fptr(0.3)},
		"soil_moisture_27_to_81cm": []*float64{nil, nil},
	}
	b, err := json.Marshal(map[string]any{"latitude": 17.4, "longitude": 78.5, "hourly": hourly})
	require.NoError(t, err)
	return b
}

type fakeAPIs struct {
	srv        *httptest.Server
	meteoCalls atomic.Int32
	meteoFails atomic.Int32
	geoStatus  int
}

func newFakeAPIs(t *testing.T) *fakeAPIs {
	t.Helper()
	f := &fakeAPIs{geoStatus: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/geo/1.0/zip", func(w http.ResponseWriter, r *http.Request) {
		if f.geoStatus != http.StatusOK {
			http.Error(w, `{"cod":"404","message":"not found"}`, f.geoStatus)
			return
		}
		assert.Equal(t, "507115,IN", r.URL.Query().Get("zip"))
		assert.Equal(t, "test-key", r.URL.Query().Get("appid"))
		_, _ = w.Write([]byte(`{"zip":"507115","name":"Bhadrachalam","lat":17.67,"lon":80.89,"country":"IN"}`))
	})
	body := meteoBody(t)
	mux.HandleFunc("/v1/forecast", func(w http.ResponseWriter, r *http.Request) {
		f.meteoCalls.Add(1)
		if f.meteoFails.Load() > 0 {
			f.meteoFails.Add(-1)
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		assert.Equal(t, "30", r.URL.Query().Get("past_days"))
		assert.Contains(t, r.URL.Query().Get("hourly"), "soil_moisture_27_to_81cm")
		_, _ = w.Write(body)
	})
	mux.HandleFunc("/soil/type/summary", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "80.8800", r.URL.Query().Get("min_lon"))
		assert.Equal(t, "17.6800", r.URL.Query().Get("max_lat"))
		_, _ = w.Write([]byte(`{"type":"Feature","properties":{"summaries":[
			{"soil_type":"Luvisols","count":1},
			{"soil_type":"Vertisols","count":5},
			{"soil_type":"Fluvisols","count":0}]}}`))
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func newTestClient(f *fakeAPIs, reg prometheus.Registerer) *Client {
	return NewClient(Config{
		OWMAPIKey:  "test-key",
		GeocodeURL: f.srv.URL,
		MeteoURL:   f.srv.URL + "/",
		SoilURL:    f.srv.URL,
		Upstream: UpstreamConfig{
			Timeout:         2 * time.Second,
			BreakerFailures: 2,
			BreakerOpenFor:  time.Minute,
			Retries:         2,
			RetryInterval:   time.Millisecond,
		},
	}, NewMetrics(reg), nil)
}

func TestClient_GeocodeZip(t *testing.T) {
	f := newFakeAPIs(t)
	c := newTestClient(f, nil)

	loc, err := c.GeocodeZip(context.Background(), "507115", "")
	require.NoError(t, err)
	assert.Equal(t, entities.Location{PinCode: "507115", Country: "IN", Latitude: 17.67, Longitude: 80.89, City: "Bhadrachalam"}, loc)

	_, err = c.GeocodeZip(context.Background(), "5071", "IN")
	assert.ErrorIs(t, err, entities.ErrInvalidPin)
}

func TestClient_GeocodeZip_MissingKey(t *testing.T) {
	f := newFakeAPIs(t)
	c := newTestClient(f, nil)
	c.apiKey = ""

	_, err := c.GeocodeZip(context.Background(), "507115", "IN")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestClient_GeocodeZip_NotFoundDoesNotTripBreaker(t *testing.T) {
	f := newFakeAPIs(t)
	f.geoStatus = http.StatusNotFound
	c := newTestClient(f, nil)

	for i := 0; i < 4; i++ {
		_, err := c.GeocodeZip(context.Background(), "507115", "IN")
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusNotFound, se.Code)
	}
	assert.Equal(t, gobreaker.StateClosed, c.BreakerStates()["openweathermap"])
}

func TestClient_Summarize(t *testing.T) {
	f := newFakeAPIs(t)
	c := newTestClient(f, nil)

	s, err := c.Summarize(context.Background(), 17.67, 80.89)
	require.NoError(t, err)
	assert.Equal(t, 21.5, s.TempMin)
	assert.Equal(t, 30.26, s.TempMax)
	assert.Equal(t, 1.5, s.RainCm, "15 mm is 1.5 cm")
	assert.Equal(t, 70.0, s.HumidityAvg)
	// depth means 0.2, 0.2, 0.3 (last depth empty) -> 0.2333
	assert.Equal(t, 0.23, s.SoilMoistureAvg)
	assert.Equal(t, entities.MoistureMedium, s.SoilMoisture)
	assert.Equal(t, 3, s.Hours)
}

func TestClient_Summarize_RetriesAndCaches(t *testing.T) {
	f := newFakeAPIs(t)
	f.meteoFails.Store(2)
	reg := prometheus.NewRegistry()
	c := newTestClient(f, reg)

	_, err := c.Summarize(context.Background(), 17.67, 80.89)
	require.NoError(t, err)
	assert.EqualValues(t, 3, f.meteoCalls.Load(), "two failures then success")

	_, err = c.Summarize(context.Background(), 17.67, 80.89)
	require.NoError(t, err)
	assert.EqualValues(t, 3, f.meteoCalls.Load(), "second call served from cache")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.meteo.metrics.requests.WithLabelValues("open-meteo", "cache_hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.meteo.metrics.requests.WithLabelValues("open-meteo", "ok")))
}

func TestClient_Summarize_BreakerOpens(t *testing.T) {
	f := newFakeAPIs(t)
	f.meteoFails.Store(100)
	c := newTestClient(f, nil)

	for i := 0; i < 2; i++ {
		_, err := c.Summarize(context.Background(), 1, 2)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, c.BreakerStates()["open-meteo"])

	calls := f.meteoCalls.Load()
	_, err := c.Summarize(context.Background(), 1, 2)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, calls, f.meteoCalls.Load(), "open breaker short-circuits")
}

func TestClient_Analyze(t *testing.T) {
	f := newFakeAPIs(t)
	c := newTestClient(f, nil)

	s, loc, err := c.Analyze(context.Background(), "507115", "IN")
	require.NoError(t, err)
	assert.Equal(t, "Bhadrachalam", s.City)
	assert.Equal(t, 17.67, loc.Latitude)
}

func TestClient_SoilType(t *testing.T) {
	f := newFakeAPIs(t)
	c := newTestClient(f, nil)

	p, err := c.SoilType(context.Background(), 17.67, 80.89)
	require.NoError(t, err)
	assert.Equal(t, []string{"Vertisols", "Luvisols"}, p.WRBTypes)
	assert.Equal(t, []string{"Black/Regur", "Clay", "Red", "Loamy"}, p.IndianTypes)
}

func TestSummarize_Empty(t *testing.T) {
	_, err := summarize(meteoResp{Hourly: map[string][]*float64{"temperature_2m": {nil}}})
	assert.ErrorIs(t, err, ErrNoData)
}

func TestSoilMapping(t *testing.T) {
	m := DefaultSoilMapping()
	assert.Equal(t, "Black/Regur", m.Canonical("Regur"))
	assert.Equal(t, "Alluvial", m.Canonical(" Alluvial "))
	assert.Equal(t, []string{"Alluvial", "Clay"}, m.Indian([]string{"fluvisols", "Gleysols", "Unknownsols"}))

	_, err := LoadSoilMapping(strings.NewReader("aliases: {}\n"))
	assert.Error(t, err)
}

func TestUpstream_CancelledCallerDoesNotFailCoalesced(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()
	u := NewUpstream(UpstreamConfig{Name: "slow", Timeout: 5 * time.Second}, NewMetrics(nil), nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := u.Get(ctxA, srv.URL+"/x")
		errA <- err
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		body []byte
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		b, err := u.Get(context.Background(), srv.URL+"/x")
		resB <- result{b, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(release)
	r := <-resB
	require.NoError(t, r.err)
	assert.JSONEq(t, `{"ok":true}`, string(r.body))
	assert.EqualValues(t, 1, calls.Load(), "second caller joined the in-flight fetch")
	assert.Equal(t, gobreaker.StateClosed, u.State())
}

func TestUpstream_CacheIsBounded(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	defer srv.Close()
	u := NewUpstream(UpstreamConfig{Name: "lru", CacheTTL: time.Hour, CacheSize: 2}, NewMetrics(nil), nil)

	for _, p := range []string{"/a", "/b", "/a", "/c", "/a"} {
		b, err := u.Get(context.Background(), srv.URL+p)
		require.NoError(t, err)
		assert.Equal(t, p, string(b))
	}
	assert.EqualValues(t, 3, calls.Load(), "/a stays cached as the most recently used entry")

	_, err := u.Get(context.Background(), srv.URL+"/b")
	require.NoError(t, err)
	assert.EqualValues(t, 4, calls.Load(), "/b was evicted")
}
