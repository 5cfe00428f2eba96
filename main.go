package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"github.com/corvana/control-plane/events-ingest/config/tracing"
	"github.com/corvana/control-plane/events-ingest/processors"
)

const (
	envEnv       = "ENV"
	envSentryDsn = "SENTRY_DSN"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Local development convenience, production reads real environment
	// variables only.
	if os.Getenv(envEnv) != "production" {
		_ = godotenv.Load()
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).
		With("service", "events_ingest")
	slog.SetDefault(logger)

	setupGracefulShutdown(cancel, logger)

	tracerProvider := tracing.InitTracerProvider(logger)
	tracing.InitTracer(tracerProvider)
	defer tracerProvider.Stop()

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              os.Getenv(envSentryDsn),
		Environment:      os.Getenv(envEnv),
		Debug:            false,
		AttachStacktrace: true,
	})

	if err != nil {
		fmt.Printf("Sentry initialization failed: %v\n", err)
	}

	defer sentry.Flush(2 * time.Second)

	// serve webhooks & loop until shutdown
	processors.StartIngestingEvents(ctx, &processors.Config{
		Logger:     logger,
		KafkaHooks: tracerProvider.GetKafkaHooks(),
	})
}

func setupGracefulShutdown(cancel context.CancelFunc, logger *slog.Logger) {
	signChan := make(chan os.Signal, 1)
	signal.Notify(signChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signChan
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()
}
