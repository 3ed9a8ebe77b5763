package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BarkinBalci/story-analytics-service/internal/config"
	"github.com/BarkinBalci/story-analytics-service/internal/consumer"
	"github.com/BarkinBalci/story-analytics-service/internal/logger"
	"github.com/BarkinBalci/story-analytics-service/internal/queue/sqs"
	"github.com/BarkinBalci/story-analytics-service/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log, err := logger.New(cfg.Service.Environment, "story-consumer")
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func(log *zap.Logger) {
		_ = log.Sync()
	}(log)

	log.Info("Starting consumer service",
		zap.String("environment", cfg.Service.Environment))

	if !cfg.SQS.Enabled {
		log.Fatal("SQS_ENABLED must be true to run the consumer")
	}

	ctx := context.Background()

	stores, err := store.OpenEvents(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open event store", zap.Error(err))
	}
	defer stores.Close()

	// Initialize SQS client
	sqsClient, err := sqs.NewClient(ctx, cfg.SQS, log)
	if err != nil {
		log.Fatal("Failed to create SQS client", zap.Error(err))
	}

	c := consumer.NewConsumer(cfg, sqsClient, stores.Events, log)

	// Health and metrics endpoint
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := stores.Events.Ping(r.Context()); err != nil {
			log.Warn("Health check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	healthServer := &http.Server{
		Addr:    ":" + cfg.Consumer.HealthCheckPort,
		Handler: mux,
	}

	go func() {
		log.Info("Health check server starting", zap.String("address", healthServer.Addr))
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Health check server error", zap.Error(err))
		}
	}()

	consumerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		log.Info("Consumer starting")
		done <- c.Start(consumerCtx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info("Shutting down consumer gracefully")
		cancel()
		if err := <-done; err != nil {
			log.Error("Consumer stopped with error", zap.Error(err))
		}
	case err := <-done:
		if err != nil {
			log.Error("Consumer error", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shut down health check server", zap.Error(err))
	}
}
