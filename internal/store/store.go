// Package store opens the story and event repositories selected by configuration.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/BarkinBalci/story-analytics-service/internal/config"
	"github.com/BarkinBalci/story-analytics-service/internal/repository"
	"github.com/BarkinBalci/story-analytics-service/internal/repository/clickhouse"
	"github.com/BarkinBalci/story-analytics-service/internal/repository/memory"
	"github.com/BarkinBalci/story-analytics-service/internal/repository/postgres"
)

// Stores holds the opened repositories and the connections behind them
type Stores struct {
	Stories repository.StoryRepository
	Events  repository.EventRepository

	postgres *postgres.Client
	closers  []func() error
	log      *zap.Logger
}

// Open connects the drivers named in cfg.Store. Postgres migrations run once
// even when both repositories use it.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Stores, error) {
	s := &Stores{log: log}

	stories, err := s.openStories(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Stories = stories

	events, err := s.openEvents(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Events = events

	log.Info("Stores opened",
		zap.String("story_driver", cfg.Store.StoryDriver),
		zap.String("event_driver", cfg.Store.EventDriver))

	return s, nil
}

// OpenEvents opens only the event repository, which is all the queue consumer needs
func OpenEvents(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Stores, error) {
	s := &Stores{log: log}

	events, err := s.openEvents(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Events = events

	return s, nil
}

func (s *Stores) openStories(ctx context.Context, cfg *config.Config) (repository.StoryRepository, error) {
	switch cfg.Store.StoryDriver {
	case config.DriverMemory:
		repo, err := memory.NewStoryRepository(cfg.Store.StorySnapshotPath(), s.log.Named("stories"))
		if err != nil {
			return nil, fmt.Errorf("failed to open memory story store: %w", err)
		}
		s.closers = append(s.closers, repo.Close)
		return repo, nil
	case config.DriverPostgres:
		client, err := s.postgresClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return postgres.NewStoryRepository(client, s.log.Named("stories")), nil
	default:
		return nil, fmt.Errorf("unsupported story driver %q", cfg.Store.StoryDriver)
	}
}

// openEvents opens the event repository named by cfg.Store.EventDriver
func (s *Stores) openEvents(ctx context.Context, cfg *config.Config) (repository.EventRepository, error) {
	switch cfg.Store.EventDriver {
	case config.DriverMemory:
		repo, err := memory.NewEventRepository(cfg.Store.EventSnapshotPath(), memory.Retention{
			Max:    cfg.Analytics.MaxEvents,
			TrimTo: cfg.Analytics.TrimTo,
		}, s.log.Named("events"), memory.WithSnapshotEvery(cfg.Analytics.SnapshotEvery))
		if err != nil {
			return nil, fmt.Errorf("failed to open memory event store: %w", err)
		}
		s.closers = append(s.closers, repo.Close)
		return repo, nil
	case config.DriverPostgres:
		client, err := s.postgresClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return postgres.NewEventRepository(client, s.log.Named("events")), nil
	case config.DriverClickHouse:
		client, err := clickhouse.NewClient(ctx, &cfg.ClickHouse, s.log)
		if err != nil {
			return nil, fmt.Errorf("failed to create ClickHouse client: %w", err)
		}
		repo := clickhouse.NewRepository(client, s.log.Named("events"))
		s.closers = append(s.closers, repo.Close)

		if err := repo.InitSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize ClickHouse schema: %w", err)
		}
		s.log.Info("ClickHouse schema initialized")
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported event driver %q", cfg.Store.EventDriver)
	}
}

func (s *Stores) postgresClient(ctx context.Context, cfg *config.Config) (*postgres.Client, error) {
	if s.postgres != nil {
		return s.postgres, nil
	}

	if cfg.Postgres.Migrate {
		if err := postgres.Migrate(cfg.Postgres.DSN, s.log); err != nil {
			return nil, err
		}
	}

	client, err := postgres.NewClient(ctx, &cfg.Postgres, s.log)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL client: %w", err)
	}
	s.postgres = client
	s.closers = append(s.closers, client.Close)

	return client, nil
}

// HealthChecks returns a ping per opened repository
func (s *Stores) HealthChecks() map[string]func(context.Context) error {
	checks := make(map[string]func(context.Context) error, 2)
	if s.Stories != nil {
		checks["stories"] = s.Stories.Ping
	}
	if s.Events != nil {
		checks["events"] = s.Events.Ping
	}
	return checks
}

// Close releases every connection in reverse opening order
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil

	if err := errors.Join(errs...); err != nil {
		s.log.Error("Failed to close stores", zap.Error(err))
		return err
	}
	return nil
}
