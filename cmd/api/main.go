package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/BarkinBalci/story-analytics-service/internal/config"
	"github.com/BarkinBalci/story-analytics-service/internal/handler"
	"github.com/BarkinBalci/story-analytics-service/internal/logger"
	"github.com/BarkinBalci/story-analytics-service/internal/middleware"
	"github.com/BarkinBalci/story-analytics-service/internal/queue"
	"github.com/BarkinBalci/story-analytics-service/internal/queue/sqs"
	"github.com/BarkinBalci/story-analytics-service/internal/service"
	"github.com/BarkinBalci/story-analytics-service/internal/store"
	"github.com/BarkinBalci/story-analytics-service/internal/valkey"
)

// @title Story Analytics Service API
// @version 1.0
// @description API for anonymous story submission, moderation and page analytics
// @host localhost:8080
// @BasePath /
// @schemes http https
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log, err := logger.New(cfg.Service.Environment, "story-api")
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func(log *zap.Logger) {
		_ = log.Sync()
	}(log)

	log.Info("Starting API service",
		zap.String("environment", cfg.Service.Environment),
		zap.String("port", cfg.Service.APIPort))

	ctx := context.Background()

	stores, err := store.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open stores", zap.Error(err))
	}
	defer stores.Close()

	healthChecks := stores.HealthChecks()

	// Queued events are written by the consumer
	var publisher queue.EventPublisher
	if cfg.SQS.Enabled {
		sqsClient, err := sqs.NewClient(ctx, cfg.SQS, log)
		if err != nil {
			log.Fatal("Failed to create SQS client", zap.Error(err))
		}
		publisher = sqsClient
		log.Info("Publishing analytics events to SQS", zap.String("queue_url", sqsClient.QueueURL()))
	}

	// Submissions share one rate limit window across instances when Valkey is available
	var limiter middleware.Limiter = middleware.NewMemoryLimiter(cfg.HTTP.SubmitRateLimit, cfg.HTTP.SubmitRateWindow)
	if cfg.Valkey.Enabled {
		valkeyClient, err := valkey.NewClient(ctx, cfg.Valkey, log)
		if err != nil {
			log.Fatal("Failed to create Valkey client", zap.Error(err))
		}
		defer func() {
			if err := valkeyClient.Close(); err != nil {
				log.Error("Failed to close Valkey client", zap.Error(err))
			}
		}()

		limiter = middleware.NewRedisLimiter(valkeyClient, cfg.HTTP.SubmitRateLimit, cfg.HTTP.SubmitRateWindow)
		healthChecks["valkey"] = func(ctx context.Context) error {
			return valkeyClient.Ping(ctx).Err()
		}
	}

	storyService := service.NewStoryService(stores.Stories, cfg.Story.AutoApprove, log.Named("stories"))
	analyticsService := service.NewAnalyticsService(stores.Events, publisher, log.Named("analytics"))

	h := handler.NewHandler(storyService, analyticsService, handler.Options{
		StoreTimeout:   cfg.HTTP.StoreTimeout,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		AdminKeys:      cfg.HTTP.AdminAPIKeys,
		Limiter:        limiter,
		HealthChecks:   healthChecks,
	}, log)

	if len(cfg.HTTP.AdminAPIKeys) == 0 {
		log.Warn("HTTP_ADMIN_API_KEYS is empty, admin routes are unauthenticated")
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Service.APIPort),
		Handler: h,
	}

	go func() {
		log.Info("API server starting", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start API server", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down API server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shut down API server", zap.Error(err))
	}
}
