package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
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
	"github.com/LeonardoBeccarini/cropsense/internal/model/messages"
	"github.com/LeonardoBeccarini/cropsense/internal/services/gateway/app"
	"github.com/LeonardoBeccarini/cropsense/internal/services/history"
)

var (
	cfgPath string
	cfg     *config.Config
	logger  *zap.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "cropsense",
	Short:        "Crop advice for an Indian PIN code from weather and soil data",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		if cfg, err = config.Load(cfgPath); err != nil {
			return err
		}
		if cmd.Flags().Changed("mode") {
			cfg.Mode, _ = cmd.Flags().GetString("mode")
			if cfg.Mode != config.ModeDirect && cfg.Mode != config.ModeAgent {
				return fmt.Errorf("invalid mode %q", cfg.Mode)
			}
		}
		logger, err = config.NewLogger(cfg.Log.Level)
		return err
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and the gRPC health service",
	RunE:  runServe,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze one crop at one PIN code and print the report as JSON",
	RunE:  runAnalyze,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default ./config.yml if present)")
	rootCmd.PersistentFlags().String("mode", config.ModeDirect, "analysis mode: direct or agent")

	analyzeCmd.Flags().String("pin", "", "6-digit PIN code")
	analyzeCmd.Flags().String("crop", "", "crop name")
	_ = analyzeCmd.MarkFlagRequired("pin")
	_ = analyzeCmd.MarkFlagRequired("crop")

	rootCmd.AddCommand(serveCmd, analyzeCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{History: true, Publish: true})
	if err != nil {
		return err
	}
	defer a.Close()

	probes := app.Probes{Breakers: a.Weather, MinErrorAge: cfg.Influx.MinErrorAge}
	if a.MQTT != nil {
		probes.MQTT = a.MQTT
	}
	var recent http.Handler
	if a.Recorder != nil {
		probes.History = a.Recorder
		recent = history.NewRecentHandler(a.Store)
	}

	gw := app.NewGateway(app.Config{
		AnalysisTimeout: cfg.HTTP.AnalysisTimeout,
		Probes:          probes,
		Recent:          recent,
		Registerer:      a.Registry,
		Gatherer:        a.Registry,
		Logger:          logger,
	}, a.Service)

	hs := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTP.Port),
		Handler:           gw.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	reporter := app.NewHealthReporter(probes, logger)
	gs := app.NewGRPCServer(reporter)
	lis, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.GRPC.Port))
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	go reporter.Run(ctx, 5*time.Second)
	go func() {
		logger.Info("gRPC health listening", zap.Int("port", cfg.GRPC.Port))
		if err := gs.Serve(lis); err != nil {
			logger.Error("grpc serve error", zap.Error(err))
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP listening", zap.Int("port", cfg.HTTP.Port), zap.String("mode", cfg.Mode))
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-errCh:
		logger.Error("http server error", zap.Error(err))
	}
	logger.Info("shutting down")

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = hs.Shutdown(shCtx)
	gs.GracefulStop()
	return err
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	pin, _ := cmd.Flags().GetString("pin")
	crop, _ := cmd.Flags().GetString("crop")

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.HTTP.AnalysisTimeout)
	defer cancel()

	a, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	report, _, err := a.Service.Handle(ctx, messages.AnalysisRequest{PinCode: pin, Crop: crop})
	if err != nil {
		return fmt.Errorf("analysis: %w", err)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
