package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/BarkinBalci/story-analytics-service/internal/domain"
	"github.com/BarkinBalci/story-analytics-service/internal/idgen"
)

const createEventsTable = `
	CREATE TABLE IF NOT EXISTS analytics_events (
		id String,
		type LowCardinality(String),
		page LowCardinality(String),
		session_id String,
		event_type LowCardinality(String),
		event_data String,
		ip String,
		timestamp DateTime64(3, 'UTC'),
		version UInt64
	) ENGINE = ReplacingMergeTree(version)
	PRIMARY KEY (id)
	ORDER BY (id)
	PARTITION BY toYYYYMM(timestamp)
	SETTINGS index_granularity = 8192
`

// Repository implements repository.EventRepository on ClickHouse
type Repository struct {
	client *Client
	ids    idgen.Generator
	now    func() time.Time
	log    *zap.Logger
}

// NewRepository creates a new ClickHouse event repository
func NewRepository(client *Client, log *zap.Logger) *Repository {
	return &Repository{
		client: client,
		ids:    idgen.New(),
		now:    time.Now,
		log:    log,
	}
}

// InitSchema creates the events table if it does not exist. Re-inserted ids collapse
// on merge, so delivery retries from the queue do not double count.
func (r *Repository) InitSchema(ctx context.Context) error {
	if err := r.client.Conn().Exec(ctx, createEventsTable); err != nil {
		return fmt.Errorf("failed to create analytics_events table: %w", err)
	}

	r.log.Info("ClickHouse schema initialized")
	return nil
}

// Append inserts a single event
func (r *Repository) Append(ctx context.Context, event *domain.AnalyticsEvent) error {
	if _, err := r.AppendBatch(ctx, []*domain.AnalyticsEvent{event}); err != nil {
		return err
	}
	return nil
}

// AppendBatch sends the events as one prepared batch in input order. Items that cannot be
// encoded are skipped and reported through *domain.PartialFailureError.
func (r *Repository) AppendBatch(ctx context.Context, events []*domain.AnalyticsEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch, err := r.client.Conn().PrepareBatch(ctx, "INSERT INTO analytics_events")
	if err != nil {
		return 0, &domain.StorageError{Op: "prepare batch", Err: err}
	}

	now := r.now()
	var failed []domain.ItemError
	appended := 0

	for i, event := range events {
		event.ApplyDefaults(now, r.ids.NewID)

		data, err := json.Marshal(event.EventData)
		if err == nil {
			err = batch.Append(
				event.ID,
				string(event.Type),
				event.Page,
				event.SessionID,
				event.EventType,
				string(data),
				event.IP,
				event.Timestamp,
				uint64(now.UnixNano()),
			)
		}
		if err != nil {
			r.log.Warn("Failed to append event to batch",
				zap.Int("index", i),
				zap.String("event_id", event.ID),
				zap.Error(err))
			failed = append(failed, domain.ItemError{Index: i, ID: event.ID, Err: err})
			continue
		}
		appended++
	}

	if appended == 0 {
		_ = batch.Abort()
		return 0, &domain.PartialFailureError{Failed: failed}
	}

	if err := batch.Send(); err != nil {
		return 0, &domain.StorageError{Op: "send batch", Err: err}
	}

	if len(failed) > 0 {
		return appended, &domain.PartialFailureError{Succeeded: appended, Failed: failed}
	}

	return appended, nil
}

// List returns the deduplicated events oldest first
func (r *Repository) List(ctx context.Context) ([]*domain.AnalyticsEvent, error) {
	rows, err := r.client.Conn().Query(ctx, `
		SELECT id, type, page, session_id, event_type, event_data, ip, timestamp
		FROM analytics_events FINAL
		ORDER BY timestamp ASC
	`)
	if err != nil {
		return nil, &domain.StorageError{Op: "list events", Err: err}
	}
	defer func(rows driver.Rows) {
		if err := rows.Close(); err != nil {
			r.log.Error("Failed to close event rows", zap.Error(err))
		}
	}(rows)

	events := make([]*domain.AnalyticsEvent, 0)
	for rows.Next() {
		var (
			event     domain.AnalyticsEvent
			eventType string
			data      string
		)
		if err := rows.Scan(
			&event.ID,
			&eventType,
			&event.Page,
			&event.SessionID,
			&event.EventType,
			&data,
			&event.IP,
			&event.Timestamp,
		); err != nil {
			return nil, &domain.StorageError{Op: "scan event", Err: err}
		}

		event.Type = domain.EventType(eventType)
		event.EventData = map[string]interface{}{}
		if data != "" {
			if err := json.Unmarshal([]byte(data), &event.EventData); err != nil {
				r.log.Warn("Discarding undecodable event data",
					zap.String("event_id", event.ID),
					zap.Error(err))
				event.EventData = map[string]interface{}{}
			}
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "list events", Err: err}
	}

	return events, nil
}

// Ping checks if the ClickHouse connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Conn().Ping(ctx)
}

// Close closes the ClickHouse connection
func (r *Repository) Close() error {
	return r.client.Close()
}
