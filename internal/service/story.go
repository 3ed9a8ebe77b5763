package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/BarkinBalci/story-analytics-service/internal/domain"
	"github.com/BarkinBalci/story-analytics-service/internal/dto"
	"github.com/BarkinBalci/story-analytics-service/internal/idgen"
	"github.com/BarkinBalci/story-analytics-service/internal/metrics"
	"github.com/BarkinBalci/story-analytics-service/internal/repository"
)

const (
	DefaultApprovedLimit   = 20
	DefaultSubmissionLimit = 50

	filterAll = "all"
	week      = 7 * 24 * time.Hour
	month     = 30 * 24 * time.Hour
)

// StoryService represents the story intake and moderation service
type StoryService struct {
	repository  repository.StoryRepository
	autoApprove bool
	ids         idgen.Generator
	now         func() time.Time
	log         *zap.Logger
}

// NewStoryService creates a new story service. With autoApprove set, new stories are
// published immediately instead of waiting for moderation.
func NewStoryService(repo repository.StoryRepository, autoApprove bool, log *zap.Logger) *StoryService {
	return &StoryService{
		repository:  repo,
		autoApprove: autoApprove,
		ids:         idgen.New(),
		now:         time.Now,
		log:         log,
	}
}

// SubmitStory validates, normalizes and stores a new story
func (s *StoryService) SubmitStory(ctx context.Context, req *dto.SubmitStoryRequest) (*domain.Story, error) {
	draft := domain.StoryDraft{
		Title:    req.Title,
		Content:  req.Content,
		Category: req.Category,
	}
	if err := draft.Validate(); err != nil {
		s.log.Warn("Story validation failed", zap.Error(err))
		return nil, err
	}
	draft = draft.Normalize()

	status := domain.StoryStatusPending
	if s.autoApprove {
		status = domain.StoryStatusApproved
	}

	story := &domain.Story{
		ID:        s.ids.NewID(domain.StoryIDPrefix),
		Title:     draft.Title,
		Content:   draft.Content,
		Category:  draft.Category,
		Status:    status,
		Timestamp: s.now().UTC(),
	}

	if err := s.repository.Save(ctx, story); err != nil {
		return nil, fmt.Errorf("failed to save story: %w", err)
	}

	metrics.StoriesSubmitted.WithLabelValues(string(status)).Inc()
	s.log.Info("Story submitted",
		zap.String("story_id", story.ID),
		zap.String("category", story.Category),
		zap.String("status", string(story.Status)))

	return story, nil
}

// ListApprovedStories returns a page of approved stories, newest first
func (s *StoryService) ListApprovedStories(ctx context.Context, req *dto.ListStoriesRequest) (*dto.StoriesResponse, error) {
	stories, err := s.repository.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}

	approved := filterStories(stories, string(domain.StoryStatusApproved), "")
	return paginate(approved, req.Offset, req.Limit, DefaultApprovedLimit), nil
}

// GetSubmissions returns a filtered page of stories of any status, newest first.
// An empty or "all" status or category disables that filter.
func (s *StoryService) GetSubmissions(ctx context.Context, req *dto.GetSubmissionsRequest) (*dto.StoriesResponse, error) {
	stories, err := s.repository.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	filtered := filterStories(stories, req.Status, req.Category)
	return paginate(filtered, req.Offset, req.Limit, DefaultSubmissionLimit), nil
}

// ReviewSubmission applies a moderator decision. Only pending stories can be decided;
// repeating the decision already made refreshes reviewed_at.
func (s *StoryService) ReviewSubmission(ctx context.Context, id, decision string) (*domain.Story, error) {
	status, err := domain.Decision(decision).Status()
	if err != nil {
		return nil, err
	}

	updated, err := s.repository.UpdateStatus(ctx, id, status, s.now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			s.log.Warn("Rejected story status change",
				zap.String("story_id", id),
				zap.String("to", string(status)),
				zap.Error(err))
			return nil, err
		}
		return nil, fmt.Errorf("failed to update story status: %w", err)
	}

	metrics.StoryReviews.WithLabelValues(decision).Inc()
	s.log.Info("Story reviewed",
		zap.String("story_id", id),
		zap.String("decision", decision))

	return updated, nil
}

// GetStats summarizes the story set. Storage failures yield zero counts.
func (s *StoryService) GetStats(ctx context.Context) (*dto.ModerationStats, error) {
	stats := &dto.ModerationStats{}

	stories, err := s.repository.List(ctx)
	if err != nil {
		s.log.Error("Failed to list stories for stats", zap.Error(err))
		return stats, nil
	}

	now := s.now()
	weekCutoff := now.Add(-week)
	monthCutoff := now.Add(-month)

	for _, story := range stories {
		stats.Total++
		switch story.Status {
		case domain.StoryStatusPending:
			stats.Pending++
		case domain.StoryStatusApproved:
			stats.Approved++
		case domain.StoryStatusDenied:
			stats.Denied++
		}
		if !story.Timestamp.Before(weekCutoff) {
			stats.ThisWeek++
		}
		if !story.Timestamp.Before(monthCutoff) {
			stats.ThisMonth++
		}
	}

	return stats, nil
}

func filterStories(stories []*domain.Story, status, category string) []*domain.Story {
	filtered := make([]*domain.Story, 0, len(stories))
	for _, story := range stories {
		if status != "" && status != filterAll && string(story.Status) != status {
			continue
		}
		if category != "" && category != filterAll && story.Category != category {
			continue
		}
		filtered = append(filtered, story)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.After(filtered[j].Timestamp)
	})

	return filtered
}

func paginate(stories []*domain.Story, offset, limit, defaultLimit int) *dto.StoriesResponse {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	page := []*domain.Story{}
	if offset < len(stories) {
		end := len(stories)
		// compared against the remainder so a huge limit cannot overflow
		if limit < end-offset {
			end = offset + limit
		}
		page = stories[offset:end]
	}

	return &dto.StoriesResponse{
		Stories: page,
		Count:   len(page),
		Limit:   limit,
		Offset:  offset,
	}
}
