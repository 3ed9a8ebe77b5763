package consumer

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BarkinBalci/story-analytics-service/internal/domain"
	"github.com/BarkinBalci/story-analytics-service/internal/idgen"
)

// JSONEventParser decodes the JSON bodies written by the SQS publisher
type JSONEventParser struct {
	ids idgen.Generator
	now func() time.Time
}

// NewJSONEventParser creates a new JSON event parser
func NewJSONEventParser() *JSONEventParser {
	return &JSONEventParser{
		ids: idgen.New(),
		now: time.Now,
	}
}

// Parse decodes body into an event and fills in defaults. Bodies without a known
// event type or page are rejected so they never reach the store.
func (p *JSONEventParser) Parse(body []byte) (*domain.AnalyticsEvent, error) {
	var event domain.AnalyticsEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message body: %w", err)
	}

	if !event.Type.Valid() {
		return nil, fmt.Errorf("unknown event type %q", event.Type)
	}
	if event.Page == "" {
		return nil, errors.New("message has no page")
	}

	event.Timestamp = event.Timestamp.UTC()
	event.ApplyDefaults(p.now().UTC(), p.ids.NewID)

	return &event, nil
}
