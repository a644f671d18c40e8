// Package bootstrap wires the components shared by the gateway, the CLI and the worker.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/cropsense/internal/config"
	"github.com/LeonardoBeccarini/cropsense/internal/services/advisor"
	"github.com/LeonardoBeccarini/cropsense/internal/services/history"
	"github.com/LeonardoBeccarini/cropsense/internal/services/recommender"
	"github.com/LeonardoBeccarini/cropsense/internal/services/weather"
	"github.com/LeonardoBeccarini/cropsense/internal/services/worker"
	"github.com/LeonardoBeccarini/cropsense/pkg/rabbitmq"
)

// Options select the optional outputs; each one is also skipped when unconfigured.
type Options struct {
	History bool
	Publish bool
}

type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry

	Weather  *weather.Client
	Catalog  *recommender.Catalog
	Analyzer advisor.Analyzer
	Service  *advisor.Service

	MQTT     mqtt.Client       // nil when MQTT is not configured
	Recorder *history.Recorder // nil when history is disabled
	Store    *history.Store

	influx influxdb2.Client
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	mapping, err := soilMapping(cfg.Soil.Mapping)
	if err != nil {
		return nil, err
	}
	a.Weather = weather.NewClient(weather.Config{
		OWMAPIKey:  cfg.OWM.APIKey,
		GeocodeURL: cfg.OWM.URL,
		MeteoURL:   cfg.Meteo.URL,
		SoilURL:    cfg.Soil.URL,
		PastDays:   cfg.Meteo.PastDays,
		Upstream: weather.UpstreamConfig{
			Timeout:         cfg.Upstream.Timeout,
			BreakerFailures: cfg.Upstream.BreakerFailures,
			BreakerOpenFor:  cfg.Upstream.BreakerOpenFor,
			BreakerInterval: cfg.Upstream.BreakerInterval,
			Retries:         cfg.Upstream.Retries,
			RetryInterval:   cfg.Upstream.RetryInterval,
			CacheSize:       cfg.Upstream.CacheSize,
		},
		MeteoCacheTTL: cfg.Meteo.CacheTTL,
		SoilCacheTTL:  cfg.Soil.CacheTTL,
		SoilMapping:   mapping,
	}, weather.NewMetrics(a.Registry), logger)

	if a.Catalog, err = catalog(cfg.Catalog.Path, recommender.WithSoilAliases(mapping.Canonical)); err != nil {
		return nil, err
	}
	if a.Analyzer, err = analyzer(ctx, cfg, a.Weather, a.Catalog, logger); err != nil {
		return nil, err
	}

	var sinks []advisor.Sink
	if opts.History && cfg.Influx.URL != "" {
		iopts := influxdb2.DefaultOptions().
			SetBatchSize(uint(cfg.Influx.BatchSize)).
			SetFlushInterval(uint(cfg.Influx.FlushInterval.Milliseconds()))
		a.influx = influxdb2.NewClientWithOptions(cfg.Influx.URL, cfg.Influx.Token, iopts)
		a.Recorder = history.NewRecorder(a.influx.WriteAPI(cfg.Influx.Org, cfg.Influx.Bucket), logger)
		a.Store = history.NewStore(a.influx.QueryAPI(cfg.Influx.Org), cfg.Influx.Bucket, logger)
		sinks = append(sinks, a.Recorder)
	}
	if opts.Publish && cfg.MQTT.Host != "" {
		client, err := rabbitmq.NewRabbitMQConn(ctx, &rabbitmq.RabbitMQConfig{
			Host:     cfg.MQTT.Host,
			Port:     cfg.MQTT.Port,
			User:     cfg.MQTT.User,
			Password: cfg.MQTT.Password,
			ClientID: cfg.MQTT.ClientID,
		}, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.MQTT = client
		pub := rabbitmq.NewPublisher(client, cfg.MQTT.ResultTopic)
		sinks = append(sinks, worker.NewResultPublisher(pub, cfg.MQTT.ResultTopic))
	}

	a.Service = advisor.NewService(a.Analyzer, logger, sinks...)
	logger.Info("cropsense ready", zap.String("mode", cfg.Mode),
		zap.Bool("history", a.Recorder != nil), zap.Bool("mqtt", a.MQTT != nil))
	return a, nil
}

// Close flushes pending history points and releases the clients.
func (a *App) Close() {
	if a.Recorder != nil {
		a.Recorder.Flush()
	}
	if a.influx != nil {
		a.influx.Close()
	}
	rabbitmq.CloseRabbitMQConn(a.MQTT)
}

func soilMapping(path string) (*weather.SoilMapping, error) {
	if path == "" {
		return weather.DefaultSoilMapping(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open soil mapping: %w", err)
	}
	defer f.Close()
	return weather.LoadSoilMapping(f)
}

func catalog(path string, opts ...recommender.Option) (*recommender.Catalog, error) {
	if path == "" {
		return recommender.DefaultCatalog(opts...)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open crop catalog: %w", err)
	}
	defer f.Close()
	return recommender.LoadCatalog(f, opts...)
}

func analyzer(ctx context.Context, cfg *config.Config, ws advisor.WeatherService, cat *recommender.Catalog, logger *zap.Logger) (advisor.Analyzer, error) {
	var model advisor.Model
	if cfg.Gemini.APIKey != "" {
		m, err := advisor.NewGenAIModel(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			return nil, err
		}
		model = m
	}

	switch cfg.Mode {
	case config.ModeAgent:
		if model == nil {
			return nil, fmt.Errorf("mode %q needs GEMINI_API_KEY", cfg.Mode)
		}
		tools := advisor.NewToolbox(ws, cat, advisor.DefaultCountry, logger)
		return advisor.NewAgent(model, tools, cfg.Gemini.MaxTurns, logger), nil
	default:
		opts := []advisor.PipelineOption{advisor.WithTopK(cfg.Catalog.TopK)}
		if model != nil {
			opts = append(opts, advisor.WithInsighter(
				advisor.NewModelInsighter(model, advisor.TemplateInsighter{Catalog: cat}, logger)))
		}
		return advisor.NewPipeline(ws, cat, logger, opts...), nil
	}
}
