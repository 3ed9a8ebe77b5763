package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	DriverMemory     = "memory"
	DriverPostgres   = "postgres"
	DriverClickHouse = "clickhouse"
)

type Config struct {
	Service    Service
	HTTP       HTTP
	Store      Store
	Postgres   Postgres
	ClickHouse ClickHouse
	SQS        SQS
	Valkey     Valkey
	Story      Story
	Analytics  Analytics
	Consumer   Consumer
}

type Service struct {
	Environment string `split_words:"true" default:"development"`
	APIPort     string `split_words:"true" default:"8080"`
	Host        string `split_words:"true" default:"localhost:8080"`
}

type HTTP struct {
	AllowedOrigins   []string      `split_words:"true" default:"https://www.loveistough.com,https://loveistough.com"`
	AdminAPIKeys     []string      `split_words:"true"`
	StoreTimeout     time.Duration `split_words:"true" default:"5s"`
	ShutdownTimeout  time.Duration `split_words:"true" default:"10s"`
	SubmitRateLimit  int           `split_words:"true" default:"5"`
	SubmitRateWindow time.Duration `split_words:"true" default:"10m"`
}

type Store struct {
	StoryDriver string `split_words:"true" default:"memory"`
	EventDriver string `split_words:"true" default:"memory"`
	SnapshotDir string `split_words:"true"`
}

// StorySnapshotPath is where the in-memory story store mirrors its data
func (s Store) StorySnapshotPath() string {
	return filepath.Join(s.SnapshotDir, "stories.json")
}

// EventSnapshotPath is where the in-memory event store mirrors its data
func (s Store) EventSnapshotPath() string {
	return filepath.Join(s.SnapshotDir, "analytics.json")
}

type Postgres struct {
	DSN      string `split_words:"true"`
	MaxConns int32  `split_words:"true" default:"10"`
	Migrate  bool   `split_words:"true" default:"true"`
}

type ClickHouse struct {
	Host               string `split_words:"true" default:"localhost"`
	Port               string `split_words:"true" default:"9000"`
	Database           string `split_words:"true" default:"analytics"`
	User               string `split_words:"true" default:"default"`
	Password           string `split_words:"true" default:""`
	UseTLS             bool   `split_words:"true" default:"false"`
	MaxOpenConns       int    `split_words:"true" default:"5"`
	MaxIdleConns       int    `split_words:"true" default:"2"`
	ConnMaxLifetimeSec int    `split_words:"true" default:"3600"`
}

type SQS struct {
	Enabled  bool   `split_words:"true" default:"false"`
	Endpoint string `split_words:"true"`
	QueueURL string `split_words:"true"`
	Region   string `split_words:"true" default:"us-east-1"`
}

type Valkey struct {
	Enabled  bool   `split_words:"true" default:"false"`
	Host     string `split_words:"true" default:"localhost"`
	Port     string `split_words:"true" default:"6379"`
	Password string `split_words:"true"`
	DB       int    `split_words:"true" default:"0"`
}

// Addr returns the host:port of the Valkey server
func (v Valkey) Addr() string {
	return fmt.Sprintf("%s:%s", v.Host, v.Port)
}

type Story struct {
	AutoApprove bool `split_words:"true" default:"false"`
}

type Analytics struct {
	MaxEvents     int `split_words:"true" default:"10000"`
	TrimTo        int `split_words:"true" default:"8000"`
	SnapshotEvery int `split_words:"true" default:"1"`
}

type Consumer struct {
	BatchSizeMax    int    `split_words:"true" default:"500"`
	BatchTimeoutSec int    `split_words:"true" default:"10"`
	HealthCheckPort string `split_words:"true" default:"8081"`
	MaxMessages     int32  `split_words:"true" default:"10"`
	WaitTimeSeconds int32  `split_words:"true" default:"20"`
}

// Load reads an optional .env file and then the process environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if cfg.Store.SnapshotDir == "" {
		cfg.Store.SnapshotDir = filepath.Join(os.TempDir(), "story-analytics")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the settings that depend on each other
func (c *Config) Validate() error {
	switch c.Store.StoryDriver {
	case DriverMemory, DriverPostgres:
	default:
		return fmt.Errorf("unsupported STORE_STORY_DRIVER %q (supported: memory, postgres)", c.Store.StoryDriver)
	}

	switch c.Store.EventDriver {
	case DriverMemory, DriverPostgres, DriverClickHouse:
	default:
		return fmt.Errorf("unsupported STORE_EVENT_DRIVER %q (supported: memory, postgres, clickhouse)", c.Store.EventDriver)
	}

	if (c.Store.StoryDriver == DriverPostgres || c.Store.EventDriver == DriverPostgres) && c.Postgres.DSN == "" {
		return errors.New("POSTGRES_DSN is required when a postgres store driver is selected")
	}

	if c.SQS.Enabled && c.SQS.QueueURL == "" {
		return errors.New("SQS_QUEUE_URL is required when SQS_ENABLED is true")
	}

	// queued events are written by the consumer process, so the API must read a shared store
	if c.SQS.Enabled && c.Store.EventDriver == DriverMemory {
		return errors.New("SQS_ENABLED requires STORE_EVENT_DRIVER to be postgres or clickhouse")
	}

	if c.Analytics.MaxEvents <= 0 || c.Analytics.TrimTo <= 0 || c.Analytics.TrimTo > c.Analytics.MaxEvents {
		return fmt.Errorf("invalid analytics retention: ANALYTICS_TRIM_TO (%d) must be between 1 and ANALYTICS_MAX_EVENTS (%d)",
			c.Analytics.TrimTo, c.Analytics.MaxEvents)
	}

	if c.HTTP.StoreTimeout <= 0 {
		return errors.New("HTTP_STORE_TIMEOUT must be positive")
	}

	return nil
}
