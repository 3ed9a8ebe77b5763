package service

import (
	"context"

	"github.com/BarkinBalci/story-analytics-service/internal/domain"
	"github.com/BarkinBalci/story-analytics-service/internal/dto"
)

// StoryServicer defines the interface for story submission and moderation
type StoryServicer interface {
	SubmitStory(ctx context.Context, req *dto.SubmitStoryRequest) (*domain.Story, error)
	ListApprovedStories(ctx context.Context, req *dto.ListStoriesRequest) (*dto.StoriesResponse, error)
	GetSubmissions(ctx context.Context, req *dto.GetSubmissionsRequest) (*dto.StoriesResponse, error)
	ReviewSubmission(ctx context.Context, id, decision string) (*domain.Story, error)
	GetStats(ctx context.Context) (*dto.ModerationStats, error)
}

// AnalyticsServicer defines the interface for event tracking and aggregation
type AnalyticsServicer interface {
	TrackEvent(ctx context.Context, req *dto.TrackEventRequest, ip string) (*domain.AnalyticsEvent, error)
	TrackEvents(ctx context.Context, reqs []dto.TrackEventRequest, ip string) ([]string, []string, error)
	GetAdminAnalytics(ctx context.Context, req *dto.GetAnalyticsRequest) (*dto.AnalyticsReport, error)
	GetPublicAnalytics(ctx context.Context, req *dto.PublicAnalyticsRequest) (*dto.PublicAnalytics, error)
}
