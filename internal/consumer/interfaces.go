package consumer

import (
	"github.com/BarkinBalci/story-analytics-service/internal/domain"
)

// MessageParser turns a queued message body into an analytics event
type MessageParser interface {
	Parse(body []byte) (*domain.AnalyticsEvent, error)
}
