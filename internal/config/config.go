// Package config loads the service configuration from an optional YAML file
// and the environment. A key such as "owm.api_key" is read from OWM_API_KEY.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	ModeDirect = "direct"
	ModeAgent  = "agent"
)

type Config struct {
	Mode string `mapstructure:"mode"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	HTTP struct {
		Port            int           `mapstructure:"port"`
		AnalysisTimeout time.Duration `mapstructure:"analysis_timeout"`
	} `mapstructure:"http"`

	GRPC struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"grpc"`

	OWM struct {
		APIKey string `mapstructure:"api_key"`
		URL    string `mapstructure:"url"`
	} `mapstructure:"owm"`

	Meteo struct {
		URL      string        `mapstructure:"url"`
		PastDays int           `mapstructure:"past_days"`
		CacheTTL time.Duration `mapstructure:"cache_ttl"`
	} `mapstructure:"meteo"`

	Soil struct {
		URL      string        `mapstructure:"url"`
		Mapping  string        `mapstructure:"mapping"`
		CacheTTL time.Duration `mapstructure:"cache_ttl"`
	} `mapstructure:"soil"`

	Upstream struct {
		Timeout         time.Duration `mapstructure:"timeout"`
		Retries         int           `mapstructure:"retries"`
		RetryInterval   time.Duration `mapstructure:"retry_interval"`
		BreakerFailures int           `mapstructure:"breaker_failures"`
		BreakerOpenFor  time.Duration `mapstructure:"breaker_open_for"`
		BreakerInterval time.Duration `mapstructure:"breaker_interval"`
		CacheSize       int           `mapstructure:"cache_size"`
	} `mapstructure:"upstream"`

	Gemini struct {
		APIKey   string `mapstructure:"api_key"`
		Model    string `mapstructure:"model"`
		MaxTurns int    `mapstructure:"max_turns"`
	} `mapstructure:"gemini"`

	Catalog struct {
		Path string `mapstructure:"path"`
		TopK int    `mapstructure:"top_k"`
	} `mapstructure:"catalog"`

	Influx struct {
		URL           string        `mapstructure:"url"`
		Token         string        `mapstructure:"token"`
		Org           string        `mapstructure:"org"`
		Bucket        string        `mapstructure:"bucket"`
		BatchSize     int           `mapstructure:"batch_size"`
		FlushInterval time.Duration `mapstructure:"flush_interval"`
		MinErrorAge   time.Duration `mapstructure:"min_error_age"`
	} `mapstructure:"influx"`

	MQTT struct {
		Host         string `mapstructure:"host"`
		Port         int    `mapstructure:"port"`
		User         string `mapstructure:"user"`
		Password     string `mapstructure:"password"`
		ClientID     string `mapstructure:"client_id"`
		RequestTopic string `mapstructure:"request_topic"`
		ResultTopic  string `mapstructure:"result_topic"`
	} `mapstructure:"mqtt"`

	Dedup struct {
		TTL  time.Duration `mapstructure:"ttl"`
		Size int           `mapstructure:"size"`
	} `mapstructure:"dedup"`

	Worker struct {
		Timeout     time.Duration `mapstructure:"timeout"`
		// MetricsPort serves /metrics and /healthz of the worker; 0 disables it.
		MetricsPort int           `mapstructure:"metrics_port"`
	} `mapstructure:"worker"`
}

// Every key needs a default, otherwise AutomaticEnv does not see it on Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", ModeDirect)
	v.SetDefault("log.level", "info")

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.analysis_timeout", 90*time.Second)
	v.SetDefault("grpc.port", 9090)

	v.SetDefault("owm.api_key", "")
	v.SetDefault("owm.url", "http://api.openweathermap.org")
	v.SetDefault("meteo.url", "https://api.open-meteo.com")
	v.SetDefault("meteo.past_days", 30)
	v.SetDefault("meteo.cache_ttl", time.Hour)
	v.SetDefault("soil.url", "https://api.openepi.io")
	v.SetDefault("soil.mapping", "")
	v.SetDefault("soil.cache_ttl", 24*time.Hour)

	v.SetDefault("upstream.timeout", 10*time.Second)
	v.SetDefault("upstream.retries", 5)
	v.SetDefault("upstream.retry_interval", 200*time.Millisecond)
	v.SetDefault("upstream.breaker_failures", 5)
	v.SetDefault("upstream.breaker_open_for", 30*time.Second)
	v.SetDefault("upstream.breaker_interval", time.Minute)
	v.SetDefault("upstream.cache_size", 1024)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.max_turns", 12)

	v.SetDefault("catalog.path", "")
	v.SetDefault("catalog.top_k", 5)

	v.SetDefault("influx.url", "")
	v.SetDefault("influx.token", "")
	v.SetDefault("influx.org", "cropsense")
	v.SetDefault("influx.bucket", "analyses")
	v.SetDefault("influx.batch_size", 10)
	v.SetDefault("influx.flush_interval", 200*time.Millisecond)
	v.SetDefault("influx.min_error_age", 30*time.Second)

	v.SetDefault("mqtt.host", "")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.user", "guest")
	v.SetDefault("mqtt.password", "guest")
	v.SetDefault("mqtt.client_id", "cropsense")
	v.SetDefault("mqtt.request_topic", "cropsense/request/#")
	v.SetDefault("mqtt.result_topic", "cropsense/result/{pin}")

	v.SetDefault("dedup.ttl", 10*time.Minute)
	v.SetDefault("dedup.size", 20000)

	v.SetDefault("worker.timeout", 60*time.Second)
	v.SetDefault("worker.metrics_port", 9102)
}

// Load reads path, or ./config.yml when path is empty and the file exists,
// then applies environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	if cfg.Mode != ModeDirect && cfg.Mode != ModeAgent {
		return nil, fmt.Errorf("unknown mode %q, want %s or %s", cfg.Mode, ModeDirect, ModeAgent)
	}
	return &cfg, nil
}

// NewLogger builds the production zap logger at the given level.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = lvl
	return zc.Build()
}
