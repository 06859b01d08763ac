// Command vitals-demo runs the agent in-process and triggers one failure of
// each kind so the resulting reports can be inspected.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tjfontaine/errorvitals/internal/core/domain"
	"github.com/tjfontaine/errorvitals/internal/telemetry"
	"github.com/tjfontaine/errorvitals/pkg/vitals"
)

func main() {
	configPath := flag.String("config", "vitals.yaml", "agent configuration file")
	target := flag.String("url", "https://httpbin.org/status/503", "URL expected to fail")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	shutdown, err := telemetry.InitTracer("vitals-demo", os.Stderr, logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	opts := []vitals.Option{
		vitals.WithLogger(logger),
		vitals.WithTracing(nil),
		vitals.WithPrometheus(prometheus.NewRegistry()),
	}
	if _, err := os.Stat(*configPath); err == nil {
		opts = append(opts, vitals.WithFileConfig(*configPath))
	} else {
		// Without a collector, print every report.
		opts = append(opts, vitals.WithHandleReport(func(ctx context.Context, data *vitals.FlushedData, _ vitals.ReportConfig) error {
			logger.InfoContext(ctx, "report",
				slog.String("type", string(data.Flushed.ExceptionType())),
				slog.Any("data", data),
			)
			return nil
		}))
	}

	agent, err := vitals.New(opts...)
	if err != nil {
		log.Fatalf("Failed to create agent: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := agent.Start(ctx); err != nil {
		log.Fatalf("Failed to start agent: %v", err)
	}
	proc, ok := agent.Host().(*vitals.Process)
	if !ok {
		log.Fatal("agent is not observing the process")
	}

	// Failing request through the instrumented default transport.
	if resp, err := http.Get(*target); err == nil {
		resp.Body.Close()
	}

	// Callback-style request that times out.
	req := proc.NewRequest()
	req.Timeout = 50 * time.Millisecond
	req.Open(http.MethodGet, "https://10.255.255.1/")
	req.Send(ctx, nil)
	<-req.Done()

	// Unhandled asynchronous failure.
	proc.Go(func() error { return errors.New("background job failed") })

	// Resource that could not be loaded.
	proc.ReportResourceError(domain.ResourceTarget{Src: "https://cdn.example.com/logo.png", TagName: "IMG"})

	// Recovered panic.
	func() {
		defer func() { _ = recover() }()
		defer proc.Recover()
		var m map[string]int
		m["boom"]++
	}()

	time.Sleep(100 * time.Millisecond)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := agent.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
