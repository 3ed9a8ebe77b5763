package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/BarkinBalci/story-analytics-service/internal/domain"
)

const (
	upsertStoryQuery = `
		INSERT INTO stories (id, title, content, category, status, created_at, reviewed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			category = EXCLUDED.category,
			status = EXCLUDED.status,
			reviewed_at = EXCLUDED.reviewed_at
	`
	getStoryQuery = `
		SELECT id, title, content, category, status, created_at, reviewed_at
		FROM stories WHERE id = $1
	`
	listStoriesQuery = `
		SELECT id, title, content, category, status, created_at, reviewed_at
		FROM stories
	`
	updateStoryStatusQuery = `
		UPDATE stories SET status = $2, reviewed_at = $3
		WHERE id = $1 AND (status = 'pending' OR status = $2)
		RETURNING id, title, content, category, status, created_at, reviewed_at
	`
)

// StoryRepository implements repository.StoryRepository on PostgreSQL
type StoryRepository struct {
	db     DBTX
	client *Client
	log    *zap.Logger
}

// NewStoryRepository creates a story repository on the client's pool
func NewStoryRepository(client *Client, log *zap.Logger) *StoryRepository {
	return &StoryRepository{
		db:     client.DB(),
		client: client,
		log:    log.Named("StoryRepo"),
	}
}

// Save upserts the story by id
func (r *StoryRepository) Save(ctx context.Context, story *domain.Story) error {
	_, err := r.db.Exec(ctx, upsertStoryQuery,
		story.ID,
		story.Title,
		story.Content,
		story.Category,
		string(story.Status),
		story.Timestamp,
		story.ReviewedAt,
	)
	if err != nil {
		r.log.Error("Error saving story", zap.String("story_id", story.ID), zap.Error(err))
		return &domain.StorageError{Op: "save story", Err: err}
	}
	return nil
}

// Get returns the story with the given id
func (r *StoryRepository) Get(ctx context.Context, id string) (*domain.Story, error) {
	story, err := scanStory(r.db.QueryRow(ctx, getStoryQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("story %s: %w", id, domain.ErrNotFound)
		}
		return nil, &domain.StorageError{Op: "get story", Err: err}
	}
	return story, nil
}

// List returns every story
func (r *StoryRepository) List(ctx context.Context) ([]*domain.Story, error) {
	rows, err := r.db.Query(ctx, listStoriesQuery)
	if err != nil {
		return nil, &domain.StorageError{Op: "list stories", Err: err}
	}
	defer rows.Close()

	stories := make([]*domain.Story, 0)
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, &domain.StorageError{Op: "scan story", Err: err}
		}
		stories = append(stories, story)
	}

	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "list stories", Err: err}
	}

	return stories, nil
}

// UpdateStatus applies the decision in a single guarded statement. When no row matches,
// the story is either missing or already decided the other way.
func (r *StoryRepository) UpdateStatus(ctx context.Context, id string, status domain.StoryStatus, reviewedAt time.Time) (*domain.Story, error) {
	if !domain.CanTransition(domain.StoryStatusPending, status) {
		return nil, fmt.Errorf("story %s cannot move to %s: %w", id, status, domain.ErrInvalidTransition)
	}

	story, err := scanStory(r.db.QueryRow(ctx, updateStoryStatusQuery, id, string(status), reviewedAt))
	if err == nil {
		return story, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.log.Error("Error updating story status", zap.String("story_id", id), zap.Error(err))
		return nil, &domain.StorageError{Op: "update story status", Err: err}
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("story %s is already %s: %w", id, current.Status, domain.ErrInvalidTransition)
}

// Ping checks if the database connection is alive
func (r *StoryRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}

// Close is a no-op, the pool is owned by the client
func (r *StoryRepository) Close() error {
	return nil
}

func scanStory(row pgx.Row) (*domain.Story, error) {
	var (
		story  domain.Story
		status string
	)
	if err := row.Scan(
		&story.ID,
		&story.Title,
		&story.Content,
		&story.Category,
		&status,
		&story.Timestamp,
		&story.ReviewedAt,
	); err != nil {
		return nil, err
	}
	story.Status = domain.StoryStatus(status)
	story.Timestamp = story.Timestamp.UTC()
	if story.ReviewedAt != nil {
		reviewed := story.ReviewedAt.UTC()
		story.ReviewedAt = &reviewed
	}
	return &story, nil
}
