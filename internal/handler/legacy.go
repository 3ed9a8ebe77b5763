package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/BarkinBalci/story-analytics-service/internal/domain"
	"github.com/BarkinBalci/story-analytics-service/internal/dto"
	"github.com/BarkinBalci/story-analytics-service/internal/middleware"
)

const (
	ActionSubmitStory  = "submit-story"
	ActionGetStories   = "get-stories"
	ActionAnalytics    = "analytics"
	ActionGetAnalytics = "get-analytics"
	ActionHealth       = "health"

	maxLegacyBodyBytes = 1 << 20
)

// legacyParams is the body of an action request minus the action itself
type legacyParams map[string]json.RawMessage

func (p legacyParams) intParam(key string) (int, error) {
	raw, ok := p[key]
	if !ok || string(raw) == "null" {
		return 0, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		v, err := strconv.ParseFloat(n.String(), 64)
		if err != nil {
			return 0, err
		}
		if v >= float64(math.MaxInt) || v <= float64(math.MinInt) {
			return 0, fmt.Errorf("%s is out of range", key)
		}
		return int(v), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return v, nil
}

func (p legacyParams) stringParam(key string) string {
	var s string
	if raw, ok := p[key]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

// legacyQuery handles GET /api, which only answers health checks
// @Summary Action endpoint (GET)
// @Description Only the health action is served over GET
// @Tags legacy
// @Produce json
// @Param action query string true "Action" Enums(health)
// @Success 200 {object} dto.Envelope
// @Failure 404 {object} dto.Envelope
// @Failure 405 {object} dto.Envelope
// @Router /api [get]
func (h *Handler) legacyQuery(c *gin.Context) {
	action := c.Query("action")
	switch action {
	case "":
		h.envelopeError(c, http.StatusNotFound, "API endpoint requires action parameter", nil)
	case ActionHealth:
		h.legacyHealth(c)
	case ActionSubmitStory, ActionGetStories, ActionAnalytics, ActionGetAnalytics:
		h.envelopeError(c, http.StatusMethodNotAllowed, "Method not allowed", nil)
	default:
		h.envelopeError(c, http.StatusNotFound, "Unknown action: "+action, nil)
	}
}

// legacyAction handles POST /api with an {"action": ...} body
// @Summary Action endpoint
// @Description Dispatches submit-story, get-stories, analytics, get-analytics and health by the action field
// @Tags legacy
// @Accept json
// @Produce json
// @Param request body dto.LegacyActionRequest true "Action and its parameters"
// @Success 200 {object} dto.Envelope
// @Failure 400 {object} dto.Envelope
// @Failure 404 {object} dto.Envelope
// @Failure 429 {object} dto.Envelope
// @Failure 500 {object} dto.Envelope
// @Router /api [post]
func (h *Handler) legacyAction(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxLegacyBodyBytes))
	if err != nil {
		h.envelopeError(c, http.StatusBadRequest, "Could not read request body", err.Error())
		return
	}

	params := legacyParams{}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &params); err != nil {
			h.log.Warn("Invalid action request body", zap.Error(err))
			h.envelopeError(c, http.StatusBadRequest, "Invalid JSON body", err.Error())
			return
		}
	}

	action := params.stringParam("action")
	switch action {
	case ActionSubmitStory:
		h.legacySubmitStory(c, params)
	case ActionGetStories:
		h.legacyGetStories(c, params)
	case ActionAnalytics:
		h.legacyTrack(c, body)
	case ActionGetAnalytics:
		h.legacyGetAnalytics(c, params)
	case ActionHealth:
		h.legacyHealth(c)
	default:
		h.envelopeError(c, http.StatusNotFound, "Unknown action: "+action, nil)
	}
}

func (h *Handler) legacySubmitStory(c *gin.Context, params legacyParams) {
	if !middleware.Allowed(c, h.opts.Limiter, middleware.ActionStorySubmission, h.log) {
		h.envelopeError(c, http.StatusTooManyRequests, "Too many submissions, try again later", nil)
		return
	}

	req := dto.SubmitStoryRequest{
		Title:    params.stringParam("title"),
		Content:  params.stringParam("content"),
		Category: params.stringParam("category"),
	}

	story, err := h.storyService.SubmitStory(c.Request.Context(), &req)
	if err != nil {
		h.legacyServiceError(c, "Failed to submit story", err)
		return
	}

	h.envelope(c, gin.H{"storyId": story.ID}, "Story submitted successfully. Thank you for sharing!")
}

func (h *Handler) legacyGetStories(c *gin.Context, params legacyParams) {
	limit, err := params.intParam("limit")
	if err != nil {
		h.envelopeError(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	offset, err := params.intParam("offset")
	if err != nil {
		h.envelopeError(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	resp, err := h.storyService.ListApprovedStories(c.Request.Context(), &dto.ListStoriesRequest{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.legacyServiceError(c, "Failed to retrieve stories", err)
		return
	}

	h.envelope(c, resp.Stories, "Stories retrieved successfully")
}

func (h *Handler) legacyTrack(c *gin.Context, body []byte) {
	var req dto.TrackEventRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.envelopeError(c, http.StatusBadRequest, "Missing required analytics data", err.Error())
		return
	}

	event, err := h.analyticsService.TrackEvent(c.Request.Context(), &req, middleware.ClientIP(c.Request))
	if err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			h.envelopeError(c, http.StatusBadRequest, "Missing required analytics data", vErr.Message)
			return
		}
		h.legacyServiceError(c, "Failed to track analytics", err)
		return
	}

	h.envelope(c, gin.H{"id": event.ID}, "Analytics tracked")
}

func (h *Handler) legacyGetAnalytics(c *gin.Context, params legacyParams) {
	days, err := params.intParam("days")
	if err != nil {
		h.envelopeError(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	summary, err := h.analyticsService.GetPublicAnalytics(c.Request.Context(), &dto.PublicAnalyticsRequest{
		Page: params.stringParam("page"),
		Days: days,
	})
	if err != nil {
		h.legacyServiceError(c, "Failed to retrieve analytics", err)
		return
	}

	h.envelope(c, gin.H{
		"pageStats":   summary.PageStats,
		"totalEvents": summary.TotalEvents,
	}, "Analytics retrieved")
}

func (h *Handler) legacyHealth(c *gin.Context) {
	h.envelope(c, gin.H{
		"ok":        true,
		"timestamp": h.now().UTC(),
	}, "API is healthy")
}

func (h *Handler) legacyServiceError(c *gin.Context, msg string, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(msg, zap.Error(err))
		h.envelopeError(c, status, msg, body.Message)
		return
	}
	h.log.Warn(msg, zap.Error(err))
	h.envelopeError(c, status, body.Message, nil)
}

func (h *Handler) envelope(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, dto.Envelope{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func (h *Handler) envelopeError(c *gin.Context, status int, message string, details interface{}) {
	c.JSON(status, dto.Envelope{
		Success: false,
		Message: message,
		Details: details,
	})
}
