package domain

import (
	"encoding/json"
	"strconv"
	"time"
)

const (
	// EventIDPrefix prefixes every generated analytics event id
	EventIDPrefix = "analytics"

	// UnknownValue fills identifying fields that the client did not send
	UnknownValue = "unknown"

	// TimeOnPageField is the eventData key carrying the page dwell time in milliseconds
	TimeOnPageField = "timeOnPage"
)

// EventType is the kind of analytics event
type EventType string

const (
	EventTypePageView EventType = "page_view"
	EventTypePageExit EventType = "page_exit"
	EventTypeEvent    EventType = "event"
)

// Valid reports whether t is one of the known event types
func (t EventType) Valid() bool {
	switch t {
	case EventTypePageView, EventTypePageExit, EventTypeEvent:
		return true
	}
	return false
}

// AnalyticsEvent represents a tracked page view, page exit or custom event
type AnalyticsEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Page      string                 `json:"page"`
	SessionID string                 `json:"sessionId"`
	Timestamp time.Time              `json:"timestamp"`
	EventType string                 `json:"eventType"`
	EventData map[string]interface{} `json:"eventData"`
	IP        string                 `json:"ip"`
}

// ApplyDefaults fills every field a store relies on so that no empty value reaches aggregation
func (e *AnalyticsEvent) ApplyDefaults(now time.Time, newID func(prefix string) string) {
	if e.ID == "" {
		e.ID = newID(EventIDPrefix)
	}
	if e.Type == "" {
		e.Type = EventTypeEvent
	}
	if e.Page == "" {
		e.Page = UnknownValue
	}
	if e.SessionID == "" {
		e.SessionID = UnknownValue
	}
	if e.EventType == "" {
		e.EventType = string(e.Type)
	}
	if e.EventData == nil {
		e.EventData = map[string]interface{}{}
	}
	if e.IP == "" {
		e.IP = UnknownValue
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
}

// TimeOnPage returns the dwell time in milliseconds carried by the event, if any
func (e *AnalyticsEvent) TimeOnPage() (float64, bool) {
	raw, ok := e.EventData[TimeOnPageField]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

// Clone returns a copy of the event with its own eventData map
func (e *AnalyticsEvent) Clone() *AnalyticsEvent {
	c := *e
	if e.EventData != nil {
		c.EventData = make(map[string]interface{}, len(e.EventData))
		for k, v := range e.EventData {
			c.EventData[k] = v
		}
	}
	return &c
}
