package valkey

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BarkinBalci/story-analytics-service/internal/config"
)

const connectTimeout = 5 * time.Second

// NewClient connects to Valkey over the Redis protocol and verifies the connection
func NewClient(ctx context.Context, cfg config.Valkey, log *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to valkey at %s: %w", cfg.Addr(), err)
	}

	log.Info("Connected to Valkey", zap.String("addr", cfg.Addr()), zap.Int("db", cfg.DB))
	return client, nil
}
