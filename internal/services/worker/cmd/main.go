package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/cropsense/internal/bootstrap"
	"github.com/LeonardoBeccarini/cropsense/internal/config"
	"github.com/LeonardoBeccarini/cropsense/internal/services/worker"
	"github.com/LeonardoBeccarini/cropsense/pkg/dedup"
	"github.com/LeonardoBeccarini/cropsense/pkg/rabbitmq"
)

var cfgPath string

func main() {
	cmd := &cobra.Command{
		Use:          "cropsense-worker",
		Short:        "Run analyses requested on the MQTT request topic",
		SilenceUsage: true,
		RunE:         run,
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "config file (default ./config.yml if present)")
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.MQTT.Host == "" {
		return errors.New("worker needs MQTT_HOST")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{History: true, Publish: true})
	if err != nil {
		return err
	}
	defer a.Close()

	w := worker.New(a.Service, dedup.New(cfg.Dedup.TTL, cfg.Dedup.Size), cfg.Worker.Timeout,
		worker.NewMetrics(a.Registry), logger)
	consumer := rabbitmq.NewConsumer(a.MQTT, cfg.MQTT.RequestTopic, w.Handle, logger)

	var hs *http.Server
	if cfg.Worker.MetricsPort > 0 {
		hs = &http.Server{
			Addr:              ":" + strconv.Itoa(cfg.Worker.MetricsPort),
			Handler:           worker.NewHTTPHandler(a.Registry, a.MQTT),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("metrics listening", zap.Int("port", cfg.Worker.MetricsPort))
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	logger.Info("worker started", zap.String("topic", cfg.MQTT.RequestTopic), zap.String("mode", cfg.Mode))
	consumer.ConsumeMessage(ctx)

	if hs != nil {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(shCtx)
	}
	logger.Info("worker stopped")
	return nil
}
