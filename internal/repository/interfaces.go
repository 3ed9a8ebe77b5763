package repository

import (
	"context"
	"time"

	"github.com/BarkinBalci/story-analytics-service/internal/domain"
)

// StoryRepository defines the interface for story storage operations
type StoryRepository interface {
	// Save inserts the story or overwrites the mutable fields of an existing one with the same id
	Save(ctx context.Context, story *domain.Story) error

	// Get returns the story with the given id or domain.ErrNotFound
	Get(ctx context.Context, id string) (*domain.Story, error)

	// List returns every stored story in no particular order
	List(ctx context.Context) ([]*domain.Story, error)

	// UpdateStatus atomically applies a moderation decision, returning the updated story.
	// The transition rule of domain.CanTransition is checked in the same step as the write:
	// a story already decided the other way yields domain.ErrInvalidTransition, a missing
	// one domain.ErrNotFound.
	UpdateStatus(ctx context.Context, id string, status domain.StoryStatus, reviewedAt time.Time) (*domain.Story, error)

	// Ping checks if the storage is reachable
	Ping(ctx context.Context) error

	// Close releases resources
	Close() error
}

// EventRepository defines the interface for analytics event storage operations
type EventRepository interface {
	// Append stores a single event, filling defaults first
	Append(ctx context.Context, event *domain.AnalyticsEvent) error

	// AppendBatch stores events in input order and returns how many were written.
	// A *domain.PartialFailureError reports the items that were not.
	AppendBatch(ctx context.Context, events []*domain.AnalyticsEvent) (int, error)

	// List returns the retained events oldest first
	List(ctx context.Context) ([]*domain.AnalyticsEvent, error)

	// Ping checks if the storage is reachable
	Ping(ctx context.Context) error

	// Close releases resources
	Close() error
}
