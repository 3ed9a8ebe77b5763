package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SubmitStoryRequest represents a story submission
type SubmitStoryRequest struct {
	Title    string `json:"title" example:"The one that got away"`
	Content  string `json:"content" example:"We met on a rainy Tuesday..."`
	Category string `json:"category" example:"breakup"`
}

// ListStoriesRequest represents a public approved stories query
type ListStoriesRequest struct {
	Limit  int `form:"limit" json:"limit" example:"20"`
	Offset int `form:"offset" json:"offset" example:"0"`
}

// GetSubmissionsRequest represents an admin submissions query
type GetSubmissionsRequest struct {
	Status   string `form:"status" json:"status" example:"pending"`
	Category string `form:"category" json:"category" example:"all"`
	Limit    int    `form:"limit" json:"limit" example:"50"`
	Offset   int    `form:"offset" json:"offset" example:"0"`
}

// ReviewSubmissionRequest represents a moderation decision
type ReviewSubmissionRequest struct {
	Decision string `json:"decision" binding:"required" example:"approve"`
}

// TrackEventRequest represents an analytics event sent by a client.
// Keys other than the known ones are collected into EventData.
type TrackEventRequest struct {
	Type      string                 `json:"type" example:"page_view"`
	Page      string                 `json:"page" example:"home"`
	SessionID string                 `json:"sessionId" example:"session_1723475612_abc"`
	Timestamp string                 `json:"timestamp" example:"2025-06-01T12:00:00.000Z"`
	EventType string                 `json:"eventType,omitempty" example:"share_click"`
	EventData map[string]interface{} `json:"eventData,omitempty" swaggertype:"object,string" example:"timeOnPage:1500"`
}

// reserved keys are never copied into EventData
var reservedEventKeys = map[string]bool{
	"action": true,
	"id":     true,
	"ip":     true,
}

// UnmarshalJSON decodes the known fields and keeps every other key as event data
func (r *TrackEventRequest) UnmarshalJSON(data []byte) error {
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = TrackEventRequest{}
	var err error
	for key, value := range raw {
		switch key {
		case "type":
			r.Type, err = decodeString(value)
		case "page":
			r.Page, err = decodeString(value)
		case "sessionId":
			r.SessionID, err = decodeString(value)
		case "eventType":
			r.EventType, err = decodeString(value)
		case "timestamp":
			r.Timestamp, err = decodeTimestamp(value)
		case "eventData":
			err = r.mergeEventData(value)
		default:
			if reservedEventKeys[key] {
				continue
			}
			var v interface{}
			if err = decodeValue(value, &v); err == nil {
				r.setEventData(key, v)
			}
		}
		if err != nil {
			return fmt.Errorf("invalid field %q: %w", key, err)
		}
	}

	return nil
}

func (r *TrackEventRequest) setEventData(key string, value interface{}) {
	if r.EventData == nil {
		r.EventData = make(map[string]interface{})
	}
	r.EventData[key] = value
}

func (r *TrackEventRequest) mergeEventData(value json.RawMessage) error {
	if string(value) == "null" {
		return nil
	}
	var nested map[string]interface{}
	if err := decodeValue(value, &nested); err != nil {
		return err
	}
	for k, v := range nested {
		r.setEventData(k, v)
	}
	return nil
}

func decodeString(value json.RawMessage) (string, error) {
	if string(value) == "null" {
		return "", nil
	}
	var s string
	err := json.Unmarshal(value, &s)
	return s, err
}

// decodeTimestamp accepts an ISO string or a numeric millisecond epoch
func decodeTimestamp(value json.RawMessage) (string, error) {
	var n json.Number
	if err := decodeValue(value, &n); err == nil {
		return n.String(), nil
	}
	return decodeString(value)
}

func decodeValue(value json.RawMessage, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(value))
	dec.UseNumber()
	return dec.Decode(v)
}

// TrackEventsRequest represents a bulk tracking request
type TrackEventsRequest struct {
	Events []TrackEventRequest `json:"events" binding:"required,min=1,max=1000"`
}

// GetAnalyticsRequest represents an admin analytics query
type GetAnalyticsRequest struct {
	Period    string `form:"period" json:"period" example:"week"`
	Page      string `form:"page" json:"page" example:"all"`
	StartDate string `form:"startDate" json:"startDate" example:"2025-06-01"`
	EndDate   string `form:"endDate" json:"endDate" example:"2025-06-07"`
}

// PublicAnalyticsRequest represents a public page view summary query
type PublicAnalyticsRequest struct {
	Page string `form:"page" json:"page" example:"home"`
	Days int    `form:"days" json:"days" example:"30"`
}

// LegacyActionRequest is the envelope of the action based endpoint
type LegacyActionRequest struct {
	Action string `json:"action" binding:"required" example:"submit-story"`
}
