package dto

import (
	"time"

	"github.com/BarkinBalci/story-analytics-service/internal/domain"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"validation_error"`
	Message string `json:"message,omitempty" example:"story content is required and must be at least 10 characters; you provided 1 characters"`
}

// SubmitStoryResponse represents a successful story submission
type SubmitStoryResponse struct {
	StoryID string             `json:"storyId" example:"story_1723475612000_k3j9x0a1b"`
	Status  domain.StoryStatus `json:"status" example:"pending"`
}

// StoriesResponse represents a page of stories
type StoriesResponse struct {
	Stories []*domain.Story `json:"stories"`
	Count   int             `json:"count" example:"20"`
	Limit   int             `json:"limit" example:"20"`
	Offset  int             `json:"offset" example:"0"`
}

// TrackEventResponse represents an accepted analytics event
type TrackEventResponse struct {
	ID     string `json:"id" example:"analytics_1723475612000_a1b2c3d4e"`
	Status string `json:"status" example:"accepted"`
}

// TrackEventsResponse represents the outcome of a bulk tracking request
type TrackEventsResponse struct {
	Accepted int      `json:"accepted" example:"5"`
	Rejected int      `json:"rejected" example:"0"`
	EventIDs []string `json:"eventIds,omitempty"`
	Errors   []string `json:"errors,omitempty" example:"event 3: page is required"`
}

// ModerationStats represents the admin dashboard summary
type ModerationStats struct {
	Total     int `json:"total" example:"42"`
	Pending   int `json:"pending" example:"5"`
	Approved  int `json:"approved" example:"30"`
	Denied    int `json:"denied" example:"7"`
	ThisWeek  int `json:"thisWeek" example:"3"`
	ThisMonth int `json:"thisMonth" example:"12"`
}

// AnalyticsStats represents the headline counters of a report
type AnalyticsStats struct {
	TotalEvents    int `json:"totalEvents"`
	PageViews      int `json:"pageViews"`
	UniqueSessions int `json:"uniqueSessions"`
	Events         int `json:"events"`
	PageExits      int `json:"pageExits"`
}

// AnalyticsReport represents the admin analytics report
type AnalyticsReport struct {
	Period         string         `json:"period" example:"week"`
	From           time.Time      `json:"from"`
	To             time.Time      `json:"to"`
	Page           string         `json:"page,omitempty" example:"home"`
	Stats          AnalyticsStats `json:"stats"`
	PageBreakdown  map[string]int `json:"pageBreakdown"`
	EventBreakdown map[string]int `json:"eventBreakdown"`
	TimeBreakdown  map[string]int `json:"timeBreakdown"`
	AvgTimeOnPage  int64          `json:"avgTimeOnPage" example:"42"`
	FilteredCount  int            `json:"filteredCount"`
	TotalCount     int            `json:"totalCount"`
}

// PublicAnalytics represents the public page view summary
type PublicAnalytics struct {
	PageStats   map[string]int `json:"pageStats"`
	TotalEvents int            `json:"totalEvents"`
	Days        int            `json:"days" example:"30"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status" example:"ok"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Envelope is the response shape of the action based endpoint
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Details interface{} `json:"details,omitempty"`
}
