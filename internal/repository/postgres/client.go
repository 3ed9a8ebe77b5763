package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/BarkinBalci/story-analytics-service/internal/config"
)

// DBTX is the query surface shared by *pgxpool.Pool, *pgx.Conn and pgx.Tx
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Client wraps the PostgreSQL connection pool
type Client struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// NewClient creates a new connection pool with the given configuration
func NewClient(ctx context.Context, cfg *config.Postgres, log *zap.Logger) (*Client, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}

	log.Info("Connecting to PostgreSQL",
		zap.String("host", poolConfig.ConnConfig.Host),
		zap.String("database", poolConfig.ConnConfig.Database),
		zap.Int32("maxConns", poolConfig.MaxConns))

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Error("Failed to connect to PostgreSQL", zap.Error(err))
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		log.Error("Failed to ping PostgreSQL", zap.Error(err))
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	log.Info("PostgreSQL connection established successfully")

	return &Client{pool: pool, log: log}, nil
}

// DB returns the pool as a query surface
func (c *Client) DB() DBTX {
	return c.pool
}

// Ping checks if the database connection is alive
func (c *Client) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// Close closes the pool
func (c *Client) Close() error {
	c.log.Info("Closing PostgreSQL connection pool")
	c.pool.Close()
	return nil
}
