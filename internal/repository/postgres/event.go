package postgres

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BarkinBalci/story-analytics-service/internal/domain"
	"github.com/BarkinBalci/story-analytics-service/internal/idgen"
)

const (
	insertEventQuery = `
		INSERT INTO analytics_events (id, type, page, session_id, event_type, event_data, ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	listEventsQuery = `
		SELECT id, type, page, session_id, event_type, event_data, ip, created_at
		FROM analytics_events
		ORDER BY created_at ASC
	`
)

// EventRepository implements repository.EventRepository on PostgreSQL, one row per event
type EventRepository struct {
	db     DBTX
	client *Client
	ids    idgen.Generator
	now    func() time.Time
	log    *zap.Logger
}

// NewEventRepository creates an event repository on the client's pool
func NewEventRepository(client *Client, log *zap.Logger) *EventRepository {
	return &EventRepository{
		db:     client.DB(),
		client: client,
		ids:    idgen.New(),
		now:    time.Now,
		log:    log.Named("EventRepo"),
	}
}

// Append inserts a single event. Re-sending an existing id is a no-op.
func (r *EventRepository) Append(ctx context.Context, event *domain.AnalyticsEvent) error {
	event.ApplyDefaults(r.now(), r.ids.NewID)
	if err := r.insert(ctx, event); err != nil {
		return &domain.StorageError{Op: "append event", Err: err}
	}
	return nil
}

// AppendBatch inserts events one by one in input order. Rows written before a failure stay
// committed and the failures are reported as a *domain.PartialFailureError.
func (r *EventRepository) AppendBatch(ctx context.Context, events []*domain.AnalyticsEvent) (int, error) {
	now := r.now()
	var failed []domain.ItemError
	inserted := 0

	for i, event := range events {
		event.ApplyDefaults(now, r.ids.NewID)
		if err := r.insert(ctx, event); err != nil {
			r.log.Warn("Failed to insert event in batch",
				zap.Int("index", i),
				zap.String("event_id", event.ID),
				zap.Error(err))
			failed = append(failed, domain.ItemError{Index: i, ID: event.ID, Err: err})
			continue
		}
		inserted++
	}

	if len(failed) > 0 {
		return inserted, &domain.PartialFailureError{Succeeded: inserted, Failed: failed}
	}

	return inserted, nil
}

func (r *EventRepository) insert(ctx context.Context, event *domain.AnalyticsEvent) error {
	_, err := r.db.Exec(ctx, insertEventQuery,
		event.ID,
		string(event.Type),
		event.Page,
		event.SessionID,
		event.EventType,
		event.EventData,
		event.IP,
		event.Timestamp,
	)
	return err
}

// List returns all events oldest first
func (r *EventRepository) List(ctx context.Context) ([]*domain.AnalyticsEvent, error) {
	rows, err := r.db.Query(ctx, listEventsQuery)
	if err != nil {
		return nil, &domain.StorageError{Op: "list events", Err: err}
	}
	defer rows.Close()

	events := make([]*domain.AnalyticsEvent, 0)
	for rows.Next() {
		var (
			event     domain.AnalyticsEvent
			eventType string
		)
		if err := rows.Scan(
			&event.ID,
			&eventType,
			&event.Page,
			&event.SessionID,
			&event.EventType,
			&event.EventData,
			&event.IP,
			&event.Timestamp,
		); err != nil {
			return nil, &domain.StorageError{Op: "scan event", Err: err}
		}
		event.Type = domain.EventType(eventType)
		event.Timestamp = event.Timestamp.UTC()
		if event.EventData == nil {
			event.EventData = map[string]interface{}{}
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "list events", Err: err}
	}

	return events, nil
}

// Ping checks if the database connection is alive
func (r *EventRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}

// Close is a no-op, the pool is owned by the client
func (r *EventRepository) Close() error {
	return nil
}
