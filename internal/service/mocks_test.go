package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/BarkinBalci/story-analytics-service/internal/domain"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// MockStoryRepository is a mock implementation of repository.StoryRepository
type MockStoryRepository struct {
	mock.Mock
}

func (m *MockStoryRepository) Save(ctx context.Context, story *domain.Story) error {
	args := m.Called(ctx, story)
	return args.Error(0)
}

func (m *MockStoryRepository) Get(ctx context.Context, id string) (*domain.Story, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Story), args.Error(1)
}

func (m *MockStoryRepository) List(ctx context.Context) ([]*domain.Story, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Story), args.Error(1)
}

func (m *MockStoryRepository) UpdateStatus(ctx context.Context, id string, status domain.StoryStatus, reviewedAt time.Time) (*domain.Story, error) {
	args := m.Called(ctx, id, status, reviewedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Story), args.Error(1)
}

func (m *MockStoryRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStoryRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockEventRepository is a mock implementation of repository.EventRepository
type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) Append(ctx context.Context, event *domain.AnalyticsEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventRepository) AppendBatch(ctx context.Context, events []*domain.AnalyticsEvent) (int, error) {
	args := m.Called(ctx, events)
	return args.Int(0), args.Error(1)
}

func (m *MockEventRepository) List(ctx context.Context) ([]*domain.AnalyticsEvent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.AnalyticsEvent), args.Error(1)
}

func (m *MockEventRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockEventRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of queue.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishEvent(ctx context.Context, event *domain.AnalyticsEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// sequentialIDs hands out predictable ids
type sequentialIDs struct {
	mu sync.Mutex
	n  int
}

func (g *sequentialIDs) NewID(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s_%d_%09d", prefix, testNow.UnixMilli(), g.n)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
