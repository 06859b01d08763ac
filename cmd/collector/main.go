package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tjfontaine/errorvitals/internal/collector"
	"github.com/tjfontaine/errorvitals/internal/config"
	"github.com/tjfontaine/errorvitals/internal/core/ports"
	"github.com/tjfontaine/errorvitals/internal/server"
	"github.com/tjfontaine/errorvitals/internal/storage/memory"
	"github.com/tjfontaine/errorvitals/internal/storage/sqlite"
	"github.com/tjfontaine/errorvitals/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Telemetry.Tracing {
		shutdown, err := telemetry.InitTracer("errorvitals-collector", nil, logger)
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
			}
		}()
	}

	var store ports.ReportStore
	if cfg.Collector.Database != "" {
		store, err = sqlite.New(cfg.Collector.Database)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		logger.Info("using sqlite report store", slog.String("path", cfg.Collector.Database))
	} else {
		store = memory.New()
		logger.Info("using in-memory report store")
	}
	defer store.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ingestor := collector.NewIngestor(store, logger)
	srv, err := server.New(server.Options{
		Port:     cfg.Collector.Port,
		Logger:   logger,
		Store:    store,
		Ingestor: ingestor,
		Registry: registry,
		APIKey:   cfg.Collector.APIKey,
	})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumerDone := make(chan struct{})
	if cfg.Collector.QueueURL != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			log.Fatalf("Failed to load AWS config: %v", err)
		}
		consumer := collector.NewConsumer(sqs.NewFromConfig(awsCfg), cfg.Collector.QueueURL, ingestor, logger)
		go func() {
			defer close(consumerDone)
			consumer.Start(ctx)
		}()
	} else {
		close(consumerDone)
	}

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server failed", slog.String("error", err.Error()))
			cancel()
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
		logger.Info("shutdown signal received, stopping collector")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}
	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		logger.Error("queue consumer did not stop in time")
	}

	logger.Info("collector shutdown complete")
}
