package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BarkinBalci/story-analytics-service/internal/domain"
	"github.com/BarkinBalci/story-analytics-service/internal/dto"
	"github.com/BarkinBalci/story-analytics-service/internal/middleware"
	"github.com/BarkinBalci/story-analytics-service/internal/service"
)

const healthCheckTimeout = 2 * time.Second

// Options carries the HTTP settings and collaborators that are not services
type Options struct {
	StoreTimeout   time.Duration
	AllowedOrigins []string
	AdminKeys      []string
	Limiter        middleware.Limiter
	// HealthChecks maps a component name to its ping
	HealthChecks map[string]func(context.Context) error
}

type Handler struct {
	storyService     service.StoryServicer
	analyticsService service.AnalyticsServicer
	opts             Options
	router           *gin.Engine
	now              func() time.Time
	log              *zap.Logger
}

func NewHandler(storyService service.StoryServicer, analyticsService service.AnalyticsServicer, opts Options, log *zap.Logger) *Handler {
	h := &Handler{
		storyService:     storyService,
		analyticsService: analyticsService,
		opts:             opts,
		router:           gin.New(),
		now:              time.Now,
		log:              log,
	}

	h.registerMiddleware()
	h.registerRoutes()

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerMiddleware() {
	h.router.Use(gin.Recovery(), middleware.RequestLogger(h.log))

	if len(h.opts.AllowedOrigins) > 0 {
		corsConfig := cors.Config{
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", middleware.AdminKeyHeader, middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader, "Retry-After"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}
		if containsWildcard(h.opts.AllowedOrigins) {
			corsConfig.AllowAllOrigins = true
		} else {
			corsConfig.AllowOrigins = h.opts.AllowedOrigins
		}
		h.router.Use(cors.New(corsConfig))
	}

	h.router.Use(middleware.StoreTimeout(h.opts.StoreTimeout))
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

func (h *Handler) registerRoutes() {
	h.router.GET("/health", h.healthCheck)
	h.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h.router.GET("/api", h.legacyQuery)
	h.router.POST("/api", h.legacyAction)

	api := h.router.Group("/api")
	api.POST("/stories", middleware.RateLimit(h.opts.Limiter, middleware.ActionStorySubmission, h.log), h.submitStory)
	api.GET("/stories", h.listStories)
	api.POST("/analytics", h.trackEvent)
	api.POST("/analytics/batch", h.trackEvents)
	api.GET("/analytics/summary", h.publicAnalytics)

	admin := api.Group("/admin", middleware.AdminAuth(h.opts.AdminKeys, h.log))
	admin.GET("/submissions", h.getSubmissions)
	admin.POST("/submissions/:id/review", h.reviewSubmission)
	admin.GET("/stats", h.getStats)
	admin.GET("/analytics", h.adminAnalytics)
}

// healthCheck handles GET /health
// @Summary Health check
// @Description Ping every configured store
// @Tags health
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Failure 503 {object} dto.HealthResponse
// @Router /health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	resp := dto.HealthResponse{
		Status:    "ok",
		Timestamp: h.now().UTC(),
		Checks:    make(map[string]string, len(h.opts.HealthChecks)),
	}

	for name, ping := range h.opts.HealthChecks {
		if err := ping(ctx); err != nil {
			h.log.Warn("Health check failed", zap.String("component", name), zap.Error(err))
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

// submitStory handles POST /api/stories
// @Summary Submit a story
// @Description Submit a story for moderation. Limited to 5 submissions per 10 minutes per IP.
// @Tags stories
// @Accept json
// @Produce json
// @Param story body dto.SubmitStoryRequest true "Story"
// @Success 201 {object} dto.SubmitStoryResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/stories [post]
func (h *Handler) submitStory(c *gin.Context) {
	var req dto.SubmitStoryRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, "Invalid story request", err)
		return
	}

	story, err := h.storyService.SubmitStory(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, "Failed to submit story", err)
		return
	}

	c.JSON(http.StatusCreated, dto.SubmitStoryResponse{
		StoryID: story.ID,
		Status:  story.Status,
	})
}

// listStories handles GET /api/stories
// @Summary List approved stories
// @Description Approved stories, newest first
// @Tags stories
// @Produce json
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Page offset" default(0)
// @Success 200 {object} dto.StoriesResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/stories [get]
func (h *Handler) listStories(c *gin.Context) {
	var req dto.ListStoriesRequest

	if err := c.ShouldBindQuery(&req); err != nil {
		h.bindError(c, "Invalid stories query", err)
		return
	}

	resp, err := h.storyService.ListApprovedStories(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, "Failed to list stories", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// trackEvent handles POST /api/analytics
// @Summary Track an analytics event
// @Description Record a page view, page exit or custom event. Keys other than the known fields are kept as event data.
// @Tags analytics
// @Accept json
// @Produce json
// @Param event body dto.TrackEventRequest true "Event"
// @Success 202 {object} dto.TrackEventResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/analytics [post]
func (h *Handler) trackEvent(c *gin.Context) {
	var req dto.TrackEventRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, "Invalid analytics request", err)
		return
	}

	event, err := h.analyticsService.TrackEvent(c.Request.Context(), &req, middleware.ClientIP(c.Request))
	if err != nil {
		h.writeError(c, "Failed to track event", err)
		return
	}

	c.JSON(http.StatusAccepted, dto.TrackEventResponse{
		ID:     event.ID,
		Status: "accepted",
	})
}

// trackEvents handles POST /api/analytics/batch
// @Summary Track analytics events in bulk
// @Description Record up to 1000 events. Each event is accepted or rejected on its own.
// @Tags analytics
// @Accept json
// @Produce json
// @Param events body dto.TrackEventsRequest true "Events"
// @Success 202 {object} dto.TrackEventsResponse
// @Success 207 {object} dto.TrackEventsResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/analytics/batch [post]
func (h *Handler) trackEvents(c *gin.Context) {
	var req dto.TrackEventsRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, "Invalid bulk analytics request", err)
		return
	}

	ids, errs, err := h.analyticsService.TrackEvents(c.Request.Context(), req.Events, middleware.ClientIP(c.Request))
	if err != nil {
		h.writeError(c, "Failed to track events", err)
		return
	}

	h.log.Info("Bulk events processed",
		zap.Int("accepted", len(ids)),
		zap.Int("rejected", len(errs)),
		zap.Int("total", len(req.Events)))

	status := http.StatusAccepted
	if len(errs) > 0 {
		status = http.StatusMultiStatus
	}

	c.JSON(status, dto.TrackEventsResponse{
		Accepted: len(ids),
		Rejected: len(errs),
		EventIDs: ids,
		Errors:   errs,
	})
}

// publicAnalytics handles GET /api/analytics/summary
// @Summary Public page view summary
// @Description Page views per page over the last days
// @Tags analytics
// @Produce json
// @Param page query string false "Only count this page"
// @Param days query int false "Look back this many days" default(30)
// @Success 200 {object} dto.PublicAnalytics
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/analytics/summary [get]
func (h *Handler) publicAnalytics(c *gin.Context) {
	var req dto.PublicAnalyticsRequest

	if err := c.ShouldBindQuery(&req); err != nil {
		h.bindError(c, "Invalid analytics summary query", err)
		return
	}

	resp, err := h.analyticsService.GetPublicAnalytics(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, "Failed to get analytics summary", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// getSubmissions handles GET /api/admin/submissions
// @Summary List submissions
// @Description Stories of any status, newest first
// @Tags admin
// @Produce json
// @Param X-Admin-Key header string false "Admin API key"
// @Param status query string false "pending, approved, denied or all" default(all)
// @Param category query string false "Category or all" default(all)
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Page offset" default(0)
// @Success 200 {object} dto.StoriesResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/admin/submissions [get]
func (h *Handler) getSubmissions(c *gin.Context) {
	var req dto.GetSubmissionsRequest

	if err := c.ShouldBindQuery(&req); err != nil {
		h.bindError(c, "Invalid submissions query", err)
		return
	}

	resp, err := h.storyService.GetSubmissions(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, "Failed to get submissions", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// reviewSubmission handles POST /api/admin/submissions/:id/review
// @Summary Review a submission
// @Description Approve or deny a pending story
// @Tags admin
// @Accept json
// @Produce json
// @Param X-Admin-Key header string false "Admin API key"
// @Param id path string true "Story ID"
// @Param decision body dto.ReviewSubmissionRequest true "Decision"
// @Success 200 {object} domain.Story
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/admin/submissions/{id}/review [post]
func (h *Handler) reviewSubmission(c *gin.Context) {
	var req dto.ReviewSubmissionRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, "Invalid review request", err)
		return
	}

	story, err := h.storyService.ReviewSubmission(c.Request.Context(), c.Param("id"), req.Decision)
	if err != nil {
		h.writeError(c, "Failed to review submission", err)
		return
	}

	c.JSON(http.StatusOK, story)
}

// getStats handles GET /api/admin/stats
// @Summary Moderation stats
// @Tags admin
// @Produce json
// @Param X-Admin-Key header string false "Admin API key"
// @Success 200 {object} dto.ModerationStats
// @Failure 401 {object} dto.ErrorResponse
// @Router /api/admin/stats [get]
func (h *Handler) getStats(c *gin.Context) {
	stats, err := h.storyService.GetStats(c.Request.Context())
	if err != nil {
		h.writeError(c, "Failed to get stats", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// adminAnalytics handles GET /api/admin/analytics
// @Summary Analytics report
// @Description Windowed analytics report with page, event and time breakdowns
// @Tags admin
// @Produce json
// @Param X-Admin-Key header string false "Admin API key"
// @Param period query string false "day, week, month or total" default(week)
// @Param page query string false "Page or all" default(all)
// @Param startDate query string false "Window start (YYYY-MM-DD or RFC 3339)"
// @Param endDate query string false "Window end (YYYY-MM-DD or RFC 3339)"
// @Success 200 {object} dto.AnalyticsReport
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /api/admin/analytics [get]
func (h *Handler) adminAnalytics(c *gin.Context) {
	var req dto.GetAnalyticsRequest

	if err := c.ShouldBindQuery(&req); err != nil {
		h.bindError(c, "Invalid analytics query", err)
		return
	}

	report, err := h.analyticsService.GetAdminAnalytics(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, "Failed to get analytics report", err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *Handler) bindError(c *gin.Context, msg string, err error) {
	h.log.Warn(msg, zap.Error(err))
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:   "validation_error",
		Message: err.Error(),
	})
}

// writeError maps a service error to its HTTP status
func (h *Handler) writeError(c *gin.Context, msg string, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(msg, zap.Error(err))
	} else {
		h.log.Warn(msg, zap.Error(err))
	}
	c.JSON(status, body)
}

func classify(err error) (int, dto.ErrorResponse) {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest, dto.ErrorResponse{Error: "validation_error", Message: vErr.Message}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, dto.ErrorResponse{Error: "not_found", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, dto.ErrorResponse{Error: "invalid_transition", Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, dto.ErrorResponse{Error: "timeout", Message: "the store did not respond in time"}
	default:
		return http.StatusInternalServerError, dto.ErrorResponse{Error: "internal_error", Message: "internal server error"}
	}
}
