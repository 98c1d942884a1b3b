package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/couchcryptid/rain-nowcast-service/internal/adapter/api"
	"github.com/couchcryptid/rain-nowcast-service/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/rain-nowcast-service/internal/adapter/kafka"
	"github.com/couchcryptid/rain-nowcast-service/internal/config"
	"github.com/couchcryptid/rain-nowcast-service/internal/domain"
	"github.com/couchcryptid/rain-nowcast-service/internal/observability"
	"github.com/couchcryptid/rain-nowcast-service/internal/pipeline"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	alertLevel, err := domain.ParseRainIndex(cfg.AlertLevel)
	if err != nil {
		logger.Error("invalid ALERT_LEVEL", "error", err)
		os.Exit(1)
	}

	providers, err := buildProviders(cfg, clock, metrics, logger)
	if err != nil {
		logger.Error("failed to build providers", "error", err)
		os.Exit(1)
	}

	var sink pipeline.AlertSink = pipeline.LogSink{Logger: logger}
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		sink = writer
		logger.Info("kafka alert sink enabled", "topic", cfg.KafkaAlertTopic)
	}

	svc := pipeline.NewService(providers, clock, metrics, logger)
	notifier := pipeline.NewNotifier(pipeline.AlertPolicy{
		Enabled:  cfg.AlertEnabled,
		Level:    alertLevel,
		Throttle: cfg.AlertThrottle,
		MinLead:  cfg.AlertMinLead,
	}, sink, clock, metrics, logger)
	p := pipeline.New(svc, notifier, cfg.RefreshInterval, logger, metrics)

	app := api.NewApp(logger)
	api.RegisterRoutes(app, p, svc, clock, alertLevel)
	apiSrv := api.NewServer(app, cfg.APIAddr, logger)
	opsSrv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.InitialLatitude != nil && cfg.InitialLongitude != nil {
		coord := domain.Coordinate{Latitude: *cfg.InitialLatitude, Longitude: *cfg.InitialLongitude}
		initCtx, cancel := context.WithTimeout(ctx, 2*cfg.FetchTimeout)
		if _, err := svc.UpdateLocation(initCtx, coord).Await(initCtx); err != nil {
			logger.Warn("initial location not resolved", "coordinate", coord.String(), "error", err)
		}
		cancel()
	}

	var wg sync.WaitGroup
	run := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				logger.Error(name+" error", "error", err)
				stop()
			}
		}()
	}

	run("ops server", func() error { return opsSrv.Run(ctx, cfg.ShutdownTimeout) })
	run("api server", func() error { return apiSrv.Run(ctx, cfg.ShutdownTimeout) })
	run("refresh loop", func() error { return p.Run(ctx) })

	<-ctx.Done()
	logger.Info("shutting down")
	wg.Wait()

	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
