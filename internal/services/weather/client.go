package weather

import (
	"errors"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var (
	ErrMissingAPIKey = errors.New("OpenWeatherMap API key not set")
	ErrNoData        = errors.New("no data returned")
)

const (
	DefaultGeocodeURL = "http://api.openweathermap.org"
	DefaultMeteoURL   = "https://api.open-meteo.com"
	DefaultSoilURL    = "https://api.openepi.io"
)

type Config struct {
	OWMAPIKey  string
	GeocodeURL string
	MeteoURL   string
	SoilURL    string
	PastDays   int

	// Shared by the three upstreams; Name and CacheTTL are set per upstream.
	Upstream UpstreamConfig

	GeocodeCacheTTL time.Duration
	MeteoCacheTTL   time.Duration
	SoilCacheTTL    time.Duration

	SoilMapping *SoilMapping
}

// Client fetches location, weather and soil data for a PIN code.
type Client struct {
	apiKey   string
	pastDays int

	geocodeURL string
	meteoURL   string
	soilURL    string

	geocode *Upstream
	meteo   *Upstream
	soil    *Upstream

	mapping *SoilMapping
	logger  *zap.Logger
}

func NewClient(cfg Config, metrics *Metrics, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PastDays <= 0 {
		cfg.PastDays = 30
	}
	if cfg.SoilMapping == nil {
		cfg.SoilMapping = DefaultSoilMapping()
	}
	if cfg.MeteoCacheTTL == 0 {
		cfg.MeteoCacheTTL = time.Hour
	}

	mk := func(name string, ttl time.Duration) *Upstream {
		uc := cfg.Upstream
		uc.Name = name
		uc.CacheTTL = ttl
		return NewUpstream(uc, metrics, logger)
	}

	return &Client{
		apiKey:     cfg.OWMAPIKey,
		pastDays:   cfg.PastDays,
		geocodeURL: baseURL(cfg.GeocodeURL, DefaultGeocodeURL),
		meteoURL:   baseURL(cfg.MeteoURL, DefaultMeteoURL),
		soilURL:    baseURL(cfg.SoilURL, DefaultSoilURL),
		geocode:    mk("openweathermap", cfg.GeocodeCacheTTL),
		meteo:      mk("open-meteo", cfg.MeteoCacheTTL),
		soil:       mk("openepi-soil", cfg.SoilCacheTTL),
		mapping:    cfg.SoilMapping,
		logger:     logger,
	}
}

// BreakerStates reports the circuit breaker of every upstream.
func (c *Client) BreakerStates() map[string]gobreaker.State {
	return map[string]gobreaker.State{
		c.geocode.Name(): c.geocode.State(),
		c.meteo.Name():   c.meteo.State(),
		c.soil.Name():    c.soil.State(),
	}
}

func baseURL(v, def string) string {
	v = strings.TrimRight(strings.TrimSpace(v), "/")
	if v == "" {
		return def
	}
	return v
}
