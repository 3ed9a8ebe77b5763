package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BarkinBalci/story-analytics-service/internal/domain"
	"github.com/BarkinBalci/story-analytics-service/internal/dto"
	"github.com/BarkinBalci/story-analytics-service/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// MockStoryService is a mock implementation of service.StoryServicer
type MockStoryService struct {
	mock.Mock
}

func (m *MockStoryService) SubmitStory(ctx context.Context, req *dto.SubmitStoryRequest) (*domain.Story, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Story), args.Error(1)
}

func (m *MockStoryService) ListApprovedStories(ctx context.Context, req *dto.ListStoriesRequest) (*dto.StoriesResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.StoriesResponse), args.Error(1)
}

func (m *MockStoryService) GetSubmissions(ctx context.Context, req *dto.GetSubmissionsRequest) (*dto.StoriesResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.StoriesResponse), args.Error(1)
}

func (m *MockStoryService) ReviewSubmission(ctx context.Context, id, decision string) (*domain.Story, error) {
	args := m.Called(ctx, id, decision)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Story), args.Error(1)
}

func (m *MockStoryService) GetStats(ctx context.Context) (*dto.ModerationStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ModerationStats), args.Error(1)
}

// MockAnalyticsService is a mock implementation of service.AnalyticsServicer
type MockAnalyticsService struct {
	mock.Mock
}

func (m *MockAnalyticsService) TrackEvent(ctx context.Context, req *dto.TrackEventRequest, ip string) (*domain.AnalyticsEvent, error) {
	args := m.Called(ctx, req, ip)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AnalyticsEvent), args.Error(1)
}

func (m *MockAnalyticsService) TrackEvents(ctx context.Context, reqs []dto.TrackEventRequest, ip string) ([]string, []string, error) {
	args := m.Called(ctx, reqs, ip)
	return args.Get(0).([]string), args.Get(1).([]string), args.Error(2)
}

func (m *MockAnalyticsService) GetAdminAnalytics(ctx context.Context, req *dto.GetAnalyticsRequest) (*dto.AnalyticsReport, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.AnalyticsReport), args.Error(1)
}

func (m *MockAnalyticsService) GetPublicAnalytics(ctx context.Context, req *dto.PublicAnalyticsRequest) (*dto.PublicAnalytics, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.PublicAnalytics), args.Error(1)
}

type testHandler struct {
	*Handler
	stories   *MockStoryService
	analytics *MockAnalyticsService
}

func newTestHandler(opts Options) testHandler {
	stories := new(MockStoryService)
	analytics := new(MockAnalyticsService)
	if opts.Limiter == nil {
		opts.Limiter = middleware.NewMemoryLimiter(5, 10*time.Minute)
	}
	h := NewHandler(stories, analytics, opts, zap.NewNop())
	h.now = func() time.Time { return testNow }
	return testHandler{Handler: h, stories: stories, analytics: analytics}
}

func (h testHandler) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestHandler_HealthCheck(t *testing.T) {
	h := newTestHandler(Options{HealthChecks: map[string]func(context.Context) error{
		"stories": func(context.Context) error { return nil },
	}})

	w := h.do(http.MethodGet, "/health", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var response dto.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, "ok", response.Checks["stories"])
	assert.Equal(t, testNow, response.Timestamp)
}

func TestHandler_HealthCheck_Degraded(t *testing.T) {
	h := newTestHandler(Options{HealthChecks: map[string]func(context.Context) error{
		"stories": func(context.Context) error { return nil },
		"events":  func(context.Context) error { return errors.New("connection refused") },
	}})

	w := h.do(http.MethodGet, "/health", nil, nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var response dto.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "degraded", response.Status)
	assert.Equal(t, "unavailable", response.Checks["events"])
}

func TestHandler_Metrics(t *testing.T) {
	h := newTestHandler(Options{})

	w := h.do(http.MethodGet, "/metrics", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestHandler_SubmitStory_Success(t *testing.T) {
	h := newTestHandler(Options{})

	req := dto.SubmitStoryRequest{Title: "Mine", Content: "This is a long enough story.", Category: "breakup"}
	h.stories.On("SubmitStory", mock.Anything, &req).Return(&domain.Story{
		ID:     "story_1749988800000_abc123def",
		Status: domain.StoryStatusPending,
	}, nil)

	w := h.do(http.MethodPost, "/api/stories", req, nil)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response dto.SubmitStoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "story_1749988800000_abc123def", response.StoryID)
	assert.Equal(t, domain.StoryStatusPending, response.Status)
	h.stories.AssertExpectations(t)
}

func TestHandler_SubmitStory_ValidationError(t *testing.T) {
	h := newTestHandler(Options{})

	vErr := domain.NewValidationError("content",
		"story content is required and must be at least 10 characters; you provided 1 characters")
	h.stories.On("SubmitStory", mock.Anything, mock.Anything).Return(nil, vErr)

	w := h.do(http.MethodPost, "/api/stories", dto.SubmitStoryRequest{Content: "a"}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "validation_error", response.Error)
	assert.Contains(t, response.Message, "1 characters")
}

func TestHandler_SubmitStory_InvalidJSON(t *testing.T) {
	h := newTestHandler(Options{})

	w := h.do(http.MethodPost, "/api/stories", `{"content":`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	h.stories.AssertNotCalled(t, "SubmitStory", mock.Anything, mock.Anything)
}

func TestHandler_SubmitStory_RateLimited(t *testing.T) {
	h := newTestHandler(Options{Limiter: middleware.NewMemoryLimiter(2, 10*time.Minute)})

	h.stories.On("SubmitStory", mock.Anything, mock.Anything).
		Return(&domain.Story{ID: "story_1", Status: domain.StoryStatusPending}, nil)

	headers := map[string]string{"X-Forwarded-For": "203.0.113.7"}
	body := dto.SubmitStoryRequest{Content: "This is a long enough story."}

	assert.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/stories", body, headers).Code)
	assert.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/stories", body, headers).Code)

	w := h.do(http.MethodPost, "/api/stories", body, headers)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	h.stories.AssertNumberOfCalls(t, "SubmitStory", 2)
}

func TestHandler_SubmitStory_StorageError(t *testing.T) {
	h := newTestHandler(Options{})

	h.stories.On("SubmitStory", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("failed to save story: %w", &domain.StorageError{Op: "save story", Err: errors.New("disk full")}))

	w := h.do(http.MethodPost, "/api/stories", dto.SubmitStoryRequest{Content: "This is a long enough story."}, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "disk full")
}

func TestHandler_ListStories(t *testing.T) {
	h := newTestHandler(Options{})

	h.stories.On("ListApprovedStories", mock.Anything, &dto.ListStoriesRequest{Limit: 5, Offset: 10}).
		Return(&dto.StoriesResponse{Stories: []*domain.Story{{ID: "story_1"}}, Count: 1, Limit: 5, Offset: 10}, nil)

	w := h.do(http.MethodGet, "/api/stories?limit=5&offset=10", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var response dto.StoriesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 1, response.Count)
	assert.Equal(t, "story_1", response.Stories[0].ID)
}

func TestHandler_ListStories_BadQuery(t *testing.T) {
	h := newTestHandler(Options{})

	w := h.do(http.MethodGet, "/api/stories?limit=many", nil, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_TrackEvent(t *testing.T) {
	h := newTestHandler(Options{})

	h.analytics.On("TrackEvent", mock.Anything, mock.MatchedBy(func(req *dto.TrackEventRequest) bool {
		return req.Type == "page_exit" && req.Page == "home" && req.EventData["timeOnPage"] != nil
	}), "203.0.113.7").Return(&domain.AnalyticsEvent{ID: "analytics_1"}, nil)

	body := `{"type":"page_exit","page":"home","timestamp":"2025-06-15T11:00:00Z","timeOnPage":1500}`
	w := h.do(http.MethodPost, "/api/analytics", body, map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"})

	assert.Equal(t, http.StatusAccepted, w.Code)

	var response dto.TrackEventResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "analytics_1", response.ID)
	assert.Equal(t, "accepted", response.Status)
	h.analytics.AssertExpectations(t)
}

func TestHandler_TrackEvent_ValidationError(t *testing.T) {
	h := newTestHandler(Options{})

	h.analytics.On("TrackEvent", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, domain.NewValidationError("page", "missing required analytics data: page is required"))

	w := h.do(http.MethodPost, "/api/analytics", `{"type":"page_view","timestamp":"2025-06-15T11:00:00Z"}`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "page is required")
}

func TestHandler_TrackEvents(t *testing.T) {
	tests := []struct {
		name     string
		ids      []string
		errs     []string
		wantCode int
	}{
		{name: "all accepted", ids: []string{"a1", "a2"}, errs: []string{}, wantCode: http.StatusAccepted},
		{name: "some rejected", ids: []string{"a1"}, errs: []string{"event 1: page is required"}, wantCode: http.StatusMultiStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(Options{})
			h.analytics.On("TrackEvents", mock.Anything, mock.MatchedBy(func(reqs []dto.TrackEventRequest) bool {
				return len(reqs) == 2
			}), mock.Anything).Return(tt.ids, tt.errs, nil)

			body := `{"events":[{"type":"page_view","page":"home","timestamp":"2025-06-15T11:00:00Z"},{"type":"page_view","timestamp":"2025-06-15T11:00:00Z"}]}`
			w := h.do(http.MethodPost, "/api/analytics/batch", body, nil)

			assert.Equal(t, tt.wantCode, w.Code)

			var response dto.TrackEventsResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, len(tt.ids), response.Accepted)
			assert.Equal(t, len(tt.errs), response.Rejected)
		})
	}
}

func TestHandler_TrackEvents_EmptyBatch(t *testing.T) {
	h := newTestHandler(Options{})

	w := h.do(http.MethodPost, "/api/analytics/batch", `{"events":[]}`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	h.analytics.AssertNotCalled(t, "TrackEvents", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_PublicAnalytics(t *testing.T) {
	h := newTestHandler(Options{})

	h.analytics.On("GetPublicAnalytics", mock.Anything, &dto.PublicAnalyticsRequest{Page: "home", Days: 7}).
		Return(&dto.PublicAnalytics{PageStats: map[string]int{"home": 3}, TotalEvents: 4, Days: 7}, nil)

	w := h.do(http.MethodGet, "/api/analytics/summary?page=home&days=7", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var response dto.PublicAnalytics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 3, response.PageStats["home"])
	assert.Equal(t, 4, response.TotalEvents)
}

func TestHandler_Admin_RequiresKey(t *testing.T) {
	h := newTestHandler(Options{AdminKeys: []string{"secret"}})

	h.stories.On("GetStats", mock.Anything).Return(&dto.ModerationStats{Total: 3, Pending: 1, Approved: 1, Denied: 1}, nil)

	w := h.do(http.MethodGet, "/api/admin/stats", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodGet, "/api/admin/stats", nil, map[string]string{middleware.AdminKeyHeader: "secret"})
	assert.Equal(t, http.StatusOK, w.Code)

	var stats dto.ModerationStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.Total)
}

func TestHandler_GetSubmissions(t *testing.T) {
	h := newTestHandler(Options{})

	h.stories.On("GetSubmissions", mock.Anything, &dto.GetSubmissionsRequest{Status: "pending", Category: "all", Limit: 10}).
		Return(&dto.StoriesResponse{Stories: []*domain.Story{}, Limit: 10}, nil)

	w := h.do(http.MethodGet, "/api/admin/submissions?status=pending&category=all&limit=10", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	h.stories.AssertExpectations(t)
}

func TestHandler_ReviewSubmission(t *testing.T) {
	reviewedAt := testNow

	tests := []struct {
		name     string
		body     interface{}
		story    *domain.Story
		err      error
		wantCode int
	}{
		{
			name:     "approved",
			body:     dto.ReviewSubmissionRequest{Decision: "approve"},
			story:    &domain.Story{ID: "story_1", Status: domain.StoryStatusApproved, ReviewedAt: &reviewedAt},
			wantCode: http.StatusOK,
		},
		{
			name:     "not found",
			body:     dto.ReviewSubmissionRequest{Decision: "approve"},
			err:      fmt.Errorf("failed to load story: %w", domain.ErrNotFound),
			wantCode: http.StatusNotFound,
		},
		{
			name:     "already decided",
			body:     dto.ReviewSubmissionRequest{Decision: "deny"},
			err:      fmt.Errorf("story story_1 is already approved: %w", domain.ErrInvalidTransition),
			wantCode: http.StatusConflict,
		},
		{
			name:     "unknown decision",
			body:     dto.ReviewSubmissionRequest{Decision: "maybe"},
			err:      domain.NewValidationError("decision", `invalid decision "maybe": must be one of approve, deny`),
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(Options{})
			decision := tt.body.(dto.ReviewSubmissionRequest).Decision
			if tt.err != nil {
				h.stories.On("ReviewSubmission", mock.Anything, "story_1", decision).Return(nil, tt.err)
			} else {
				h.stories.On("ReviewSubmission", mock.Anything, "story_1", decision).Return(tt.story, nil)
			}

			w := h.do(http.MethodPost, "/api/admin/submissions/story_1/review", tt.body, nil)

			assert.Equal(t, tt.wantCode, w.Code)
			h.stories.AssertExpectations(t)
		})
	}
}

func TestHandler_ReviewSubmission_MissingDecision(t *testing.T) {
	h := newTestHandler(Options{})

	w := h.do(http.MethodPost, "/api/admin/submissions/story_1/review", `{}`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	h.stories.AssertNotCalled(t, "ReviewSubmission", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_AdminAnalytics(t *testing.T) {
	h := newTestHandler(Options{})

	h.analytics.On("GetAdminAnalytics", mock.Anything, &dto.GetAnalyticsRequest{Period: "day", Page: "home"}).
		Return(&dto.AnalyticsReport{Period: "day", PageBreakdown: map[string]int{"home": 2}}, nil)
	h.analytics.On("GetAdminAnalytics", mock.Anything, &dto.GetAnalyticsRequest{StartDate: "2025-06-14", EndDate: "2025-06-13"}).
		Return(nil, domain.NewValidationError("endDate", "endDate must not be before startDate"))

	w := h.do(http.MethodGet, "/api/admin/analytics?period=day&page=home", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var report dto.AnalyticsReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 2, report.PageBreakdown["home"])

	w = h.do(http.MethodGet, "/api/admin/analytics?startDate=2025-06-14&endDate=2025-06-13", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_CORS(t *testing.T) {
	h := newTestHandler(Options{AllowedOrigins: []string{"https://loveistough.com"}})

	w := h.do(http.MethodOptions, "/api/stories", nil, map[string]string{
		"Origin":                        "https://loveistough.com",
		"Access-Control-Request-Method": http.MethodPost,
	})

	assert.Equal(t, "https://loveistough.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = h.do(http.MethodOptions, "/api/stories", nil, map[string]string{
		"Origin":                        "https://evil.example",
		"Access-Control-Request-Method": http.MethodPost,
	})

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestLegacy_SubmitStory(t *testing.T) {
	h := newTestHandler(Options{})

	h.stories.On("SubmitStory", mock.Anything, &dto.SubmitStoryRequest{
		Title:    "Mine",
		Content:  "This is a long enough story.",
		Category: "breakup",
	}).Return(&domain.Story{ID: "story_1", Status: domain.StoryStatusPending}, nil)

	w := h.do(http.MethodPost, "/api", map[string]interface{}{
		"action":   "submit-story",
		"title":    "Mine",
		"content":  "This is a long enough story.",
		"category": "breakup",
	}, nil)

	assert.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	assert.Equal(t, true, env["success"])
	assert.Equal(t, "Story submitted successfully. Thank you for sharing!", env["message"])
	assert.Equal(t, "story_1", env["data"].(map[string]interface{})["storyId"])
}

func TestLegacy_SubmitStory_ValidationError(t *testing.T) {
	h := newTestHandler(Options{})

	h.stories.On("SubmitStory", mock.Anything, mock.Anything).
		Return(nil, domain.NewValidationError("content", "story content is required and must be at least 10 characters; you provided 0 characters"))

	w := h.do(http.MethodPost, "/api", `{"action":"submit-story"}`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	env := decodeEnvelope(t, w)
	assert.Equal(t, false, env["success"])
	assert.Contains(t, env["message"], "0 characters")
}

func TestLegacy_SubmitStory_SharesRateLimit(t *testing.T) {
	h := newTestHandler(Options{Limiter: middleware.NewMemoryLimiter(1, 10*time.Minute)})

	h.stories.On("SubmitStory", mock.Anything, mock.Anything).
		Return(&domain.Story{ID: "story_1", Status: domain.StoryStatusPending}, nil)

	headers := map[string]string{"X-Real-IP": "198.51.100.4"}
	w := h.do(http.MethodPost, "/api/stories", dto.SubmitStoryRequest{Content: "This is a long enough story."}, headers)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = h.do(http.MethodPost, "/api", `{"action":"submit-story","content":"This is a long enough story."}`, headers)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	env := decodeEnvelope(t, w)
	assert.Equal(t, false, env["success"])
	assert.Equal(t, "Too many submissions, try again later", env["message"])
	assert.Equal(t, "600", w.Header().Get("Retry-After"))
}

func TestLegacy_GetStories(t *testing.T) {
	h := newTestHandler(Options{})

	h.stories.On("ListApprovedStories", mock.Anything, &dto.ListStoriesRequest{Limit: 2, Offset: 4}).
		Return(&dto.StoriesResponse{Stories: []*domain.Story{{ID: "story_1"}, {ID: "story_2"}}, Count: 2}, nil)

	w := h.do(http.MethodPost, "/api", `{"action":"get-stories","limit":"2","offset":4}`, nil)

	assert.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	assert.Equal(t, "Stories retrieved successfully", env["message"])
	data, ok := env["data"].([]interface{})
	require.True(t, ok)
	assert.Len(t, data, 2)
}

func TestLegacy_GetStories_BadLimit(t *testing.T) {
	h := newTestHandler(Options{})

	w := h.do(http.MethodPost, "/api", `{"action":"get-stories","limit":"lots"}`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	h.stories.AssertNotCalled(t, "ListApprovedStories", mock.Anything, mock.Anything)
}

func TestLegacy_GetStories_LimitOutOfRange(t *testing.T) {
	h := newTestHandler(Options{})

	for _, body := range []string{
		`{"action":"get-stories","limit":1e300}`,
		`{"action":"get-stories","limit":-1e19}`,
		`{"action":"get-stories","limit":"99999999999999999999"}`,
	} {
		w := h.do(http.MethodPost, "/api", body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	h.stories.AssertNotCalled(t, "ListApprovedStories", mock.Anything, mock.Anything)
}

func TestLegacy_Analytics(t *testing.T) {
	h := newTestHandler(Options{})

	h.analytics.On("TrackEvent", mock.Anything, mock.MatchedBy(func(req *dto.TrackEventRequest) bool {
		_, hasAction := req.EventData["action"]
		return req.Type == "page_view" && req.Page == "home" && !hasAction
	}), mock.Anything).Return(&domain.AnalyticsEvent{ID: "analytics_1"}, nil)

	w := h.do(http.MethodPost, "/api", `{"action":"analytics","type":"page_view","page":"home","timestamp":"2025-06-15T11:00:00Z"}`, nil)

	assert.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	assert.Equal(t, "Analytics tracked", env["message"])
	assert.Equal(t, "analytics_1", env["data"].(map[string]interface{})["id"])
}

func TestLegacy_Analytics_MissingData(t *testing.T) {
	h := newTestHandler(Options{})

	h.analytics.On("TrackEvent", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, domain.NewValidationError("page", "page is required"))

	w := h.do(http.MethodPost, "/api", `{"action":"analytics","type":"page_view"}`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	env := decodeEnvelope(t, w)
	assert.Equal(t, "Missing required analytics data", env["message"])
	assert.Equal(t, "page is required", env["details"])
}

func TestLegacy_GetAnalytics(t *testing.T) {
	h := newTestHandler(Options{})

	h.analytics.On("GetPublicAnalytics", mock.Anything, &dto.PublicAnalyticsRequest{Page: "home", Days: 7}).
		Return(&dto.PublicAnalytics{PageStats: map[string]int{"home": 5}, TotalEvents: 9, Days: 7}, nil)

	w := h.do(http.MethodPost, "/api", `{"action":"get-analytics","page":"home","days":7}`, nil)

	assert.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	assert.Equal(t, "Analytics retrieved", env["message"])
	data := env["data"].(map[string]interface{})
	assert.Equal(t, float64(9), data["totalEvents"])
	assert.Equal(t, float64(5), data["pageStats"].(map[string]interface{})["home"])
}

func TestLegacy_GetAnalytics_StoreFailure(t *testing.T) {
	h := newTestHandler(Options{})

	h.analytics.On("GetPublicAnalytics", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection reset"))

	w := h.do(http.MethodPost, "/api", `{"action":"get-analytics"}`, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	env := decodeEnvelope(t, w)
	assert.Equal(t, "Failed to retrieve analytics", env["message"])
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestLegacy_Dispatch(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		path        string
		body        interface{}
		wantCode    int
		wantMessage string
	}{
		{
			name:        "health over POST",
			method:      http.MethodPost,
			path:        "/api",
			body:        `{"action":"health"}`,
			wantCode:    http.StatusOK,
			wantMessage: "API is healthy",
		},
		{
			name:        "health over GET",
			method:      http.MethodGet,
			path:        "/api?action=health",
			wantCode:    http.StatusOK,
			wantMessage: "API is healthy",
		},
		{
			name:        "GET without action",
			method:      http.MethodGet,
			path:        "/api",
			wantCode:    http.StatusNotFound,
			wantMessage: "API endpoint requires action parameter",
		},
		{
			name:        "GET of a POST action",
			method:      http.MethodGet,
			path:        "/api?action=get-stories",
			wantCode:    http.StatusMethodNotAllowed,
			wantMessage: "Method not allowed",
		},
		{
			name:        "unknown action",
			method:      http.MethodPost,
			path:        "/api",
			body:        `{"action":"delete-everything"}`,
			wantCode:    http.StatusNotFound,
			wantMessage: "Unknown action: delete-everything",
		},
		{
			name:        "invalid JSON",
			method:      http.MethodPost,
			path:        "/api",
			body:        `{"action":`,
			wantCode:    http.StatusBadRequest,
			wantMessage: "Invalid JSON body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(Options{})

			w := h.do(tt.method, tt.path, tt.body, nil)

			assert.Equal(t, tt.wantCode, w.Code)
			env := decodeEnvelope(t, w)
			assert.Equal(t, tt.wantCode == http.StatusOK, env["success"])
			assert.Equal(t, tt.wantMessage, env["message"])
		})
	}
}

func TestLegacy_Health_Data(t *testing.T) {
	h := newTestHandler(Options{})

	w := h.do(http.MethodGet, "/api?action=health", nil, nil)

	env := decodeEnvelope(t, w)
	data := env["data"].(map[string]interface{})
	assert.Equal(t, true, data["ok"])
	assert.Equal(t, testNow.Format(time.RFC3339), data["timestamp"])
}
