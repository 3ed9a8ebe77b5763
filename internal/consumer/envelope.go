package consumer

import (
	"context"

	"github.com/BarkinBalci/story-analytics-service/internal/domain"
)

// Envelope carries a parsed event together with the callbacks that settle its queue message
type Envelope struct {
	Event *domain.AnalyticsEvent
	ack   func(context.Context) error
	nack  func(context.Context) error
}

// NewEnvelope creates a new message envelope
func NewEnvelope(event *domain.AnalyticsEvent, ack, nack func(context.Context) error) *Envelope {
	return &Envelope{
		Event: event,
		ack:   ack,
		nack:  nack,
	}
}

// Ack removes the message from the queue
func (e *Envelope) Ack(ctx context.Context) error {
	if e.ack == nil {
		return nil
	}
	return e.ack(ctx)
}

// Nack leaves the message on the queue for redelivery
func (e *Envelope) Nack(ctx context.Context) error {
	if e.nack == nil {
		return nil
	}
	return e.nack(ctx)
}
