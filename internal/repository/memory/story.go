package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BarkinBalci/story-analytics-service/internal/domain"
)

// StoryRepository keeps stories in process memory and mirrors every mutation to a snapshot file
type StoryRepository struct {
	mu       sync.RWMutex
	stories  []*domain.Story
	index    map[string]int
	snapshot *snapshotFile[*domain.Story]
	log      *zap.Logger
}

// NewStoryRepository creates the repository and hydrates it from snapshotPath if the file exists.
// An empty snapshotPath keeps the data in memory only.
func NewStoryRepository(snapshotPath string, log *zap.Logger) (*StoryRepository, error) {
	r := &StoryRepository{
		index:    make(map[string]int),
		snapshot: newSnapshotFile[*domain.Story](snapshotPath),
		log:      log,
	}

	stories, err := r.snapshot.load()
	if err != nil {
		return nil, &domain.StorageError{Op: "hydrate stories", Err: err}
	}

	for _, story := range stories {
		if story == nil || story.ID == "" {
			continue
		}
		if i, ok := r.index[story.ID]; ok {
			r.stories[i] = story
			continue
		}
		r.index[story.ID] = len(r.stories)
		r.stories = append(r.stories, story)
	}

	if len(r.stories) > 0 {
		log.Info("Hydrated stories from snapshot",
			zap.String("path", snapshotPath),
			zap.Int("count", len(r.stories)))
	}

	return r, nil
}

// Save upserts the story. The snapshot is written before the change becomes visible.
func (r *StoryRepository) Save(ctx context.Context, story *domain.Story) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]*domain.Story, len(r.stories), len(r.stories)+1)
	copy(next, r.stories)

	i, exists := r.index[story.ID]
	if exists {
		next[i] = story.Clone()
	} else {
		next = append(next, story.Clone())
	}

	if err := r.snapshot.save(next); err != nil {
		return &domain.StorageError{Op: "save story", Err: err}
	}

	r.stories = next
	if !exists {
		r.index[story.ID] = len(next) - 1
	}

	return nil
}

// Get returns a copy of the story with the given id
func (r *StoryRepository) Get(ctx context.Context, id string) (*domain.Story, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[id]
	if !ok {
		return nil, fmt.Errorf("story %s: %w", id, domain.ErrNotFound)
	}

	return r.stories[i].Clone(), nil
}

// List returns copies of all stories in insertion order
func (r *StoryRepository) List(ctx context.Context) ([]*domain.Story, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	stories := make([]*domain.Story, 0, len(r.stories))
	for _, story := range r.stories {
		stories = append(stories, story.Clone())
	}

	return stories, nil
}

// UpdateStatus checks the transition and sets status and reviewed_at under the write lock
func (r *StoryRepository) UpdateStatus(ctx context.Context, id string, status domain.StoryStatus, reviewedAt time.Time) (*domain.Story, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[id]
	if !ok {
		return nil, fmt.Errorf("story %s: %w", id, domain.ErrNotFound)
	}

	if current := r.stories[i].Status; !domain.CanTransition(current, status) {
		return nil, fmt.Errorf("story %s is already %s: %w", id, current, domain.ErrInvalidTransition)
	}

	updated := r.stories[i].Clone()
	updated.Status = status
	reviewed := reviewedAt
	updated.ReviewedAt = &reviewed

	next := make([]*domain.Story, len(r.stories))
	copy(next, r.stories)
	next[i] = updated

	if err := r.snapshot.save(next); err != nil {
		return nil, &domain.StorageError{Op: "update story status", Err: err}
	}

	r.stories = next

	return updated.Clone(), nil
}

// Ping always succeeds for the in-memory store
func (r *StoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op, every mutation is already on disk
func (r *StoryRepository) Close() error {
	return nil
}
