package memory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BarkinBalci/story-analytics-service/internal/domain"
	"github.com/BarkinBalci/story-analytics-service/internal/idgen"
	"github.com/BarkinBalci/story-analytics-service/internal/metrics"
)

const (
	DefaultMaxEvents = 10000
	DefaultTrimTo    = 8000
)

// Retention bounds the in-memory event buffer. Once more than Max events are held,
// the oldest are dropped until TrimTo remain.
type Retention struct {
	Max    int
	TrimTo int
}

func (r Retention) normalize() Retention {
	if r.Max <= 0 {
		r.Max = DefaultMaxEvents
	}
	if r.TrimTo <= 0 || r.TrimTo > r.Max {
		r.TrimTo = r.Max * DefaultTrimTo / DefaultMaxEvents
	}
	return r
}

// EventRepository is a bounded FIFO buffer of analytics events mirrored to a snapshot file.
// Every snapshot rewrites the whole buffer under the write lock, so with the default of one
// snapshot per append tracking costs O(retained events) per call. It suits single-instance
// and development deployments; use WithSnapshotEvery to trade durability for throughput,
// or a postgres/clickhouse event store under real load.
type EventRepository struct {
	mu            sync.RWMutex
	events        []*domain.AnalyticsEvent
	retention     Retention
	snapshot      *snapshotFile[*domain.AnalyticsEvent]
	snapshotEvery int
	unsaved       int
	ids           idgen.Generator
	now           func() time.Time
	log           *zap.Logger
}

// EventOption configures an EventRepository
type EventOption func(*EventRepository)

// WithSnapshotEvery writes the snapshot once at least n events were appended since the
// last write instead of on every append. Close writes whatever is still pending.
// Values below 1 keep the default of 1.
func WithSnapshotEvery(n int) EventOption {
	return func(r *EventRepository) {
		if n > 1 {
			r.snapshotEvery = n
		}
	}
}

// NewEventRepository creates the buffer and hydrates it from snapshotPath if the file exists
func NewEventRepository(snapshotPath string, retention Retention, log *zap.Logger, opts ...EventOption) (*EventRepository, error) {
	r := &EventRepository{
		retention:     retention.normalize(),
		snapshot:      newSnapshotFile[*domain.AnalyticsEvent](snapshotPath),
		snapshotEvery: 1,
		ids:           idgen.New(),
		now:           time.Now,
		log:           log,
	}
	for _, opt := range opts {
		opt(r)
	}

	events, err := r.snapshot.load()
	if err != nil {
		return nil, &domain.StorageError{Op: "hydrate events", Err: err}
	}

	for _, event := range events {
		if event == nil {
			continue
		}
		event.ApplyDefaults(r.now(), r.ids.NewID)
		r.events = append(r.events, event)
	}
	r.evict()

	if len(r.events) > 0 {
		log.Info("Hydrated analytics events from snapshot",
			zap.String("path", snapshotPath),
			zap.Int("count", len(r.events)))
	}

	return r, nil
}

// Append adds one event to the buffer
func (r *EventRepository) Append(ctx context.Context, event *domain.AnalyticsEvent) error {
	_, err := r.AppendBatch(ctx, []*domain.AnalyticsEvent{event})
	return err
}

// AppendBatch adds the events in input order. A snapshot failure is logged only;
// the events stay in memory.
func (r *EventRepository) AppendBatch(ctx context.Context, events []*domain.AnalyticsEvent) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for _, event := range events {
		event.ApplyDefaults(now, r.ids.NewID)
		r.events = append(r.events, event.Clone())
	}

	if evicted := r.evict(); evicted > 0 {
		metrics.EventsEvicted.Add(float64(evicted))
		r.log.Info("Evicted oldest analytics events",
			zap.Int("evicted", evicted),
			zap.Int("retained", len(r.events)))
	}

	r.unsaved += len(events)
	if r.unsaved >= r.snapshotEvery {
		r.persist()
	}

	return len(events), nil
}

// persist writes the snapshot. Callers hold the lock.
func (r *EventRepository) persist() {
	if err := r.snapshot.save(r.events); err != nil {
		r.log.Warn("Failed to persist analytics snapshot", zap.Error(err))
		return
	}
	r.unsaved = 0
}

// evict drops the oldest events once the buffer exceeds its cap. Callers hold the lock.
func (r *EventRepository) evict() int {
	if len(r.events) <= r.retention.Max {
		return 0
	}

	evicted := len(r.events) - r.retention.TrimTo
	kept := make([]*domain.AnalyticsEvent, r.retention.TrimTo)
	copy(kept, r.events[evicted:])
	r.events = kept

	return evicted
}

// List returns copies of the retained events oldest first
func (r *EventRepository) List(ctx context.Context) ([]*domain.AnalyticsEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	events := make([]*domain.AnalyticsEvent, 0, len(r.events))
	for _, event := range r.events {
		events = append(events, event.Clone())
	}

	return events, nil
}

// Ping always succeeds for the in-memory store
func (r *EventRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close writes any appends the snapshot has not seen yet
func (r *EventRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.unsaved == 0 || !r.snapshot.enabled() {
		return nil
	}
	if err := r.snapshot.save(r.events); err != nil {
		return &domain.StorageError{Op: "flush events snapshot", Err: err}
	}
	r.unsaved = 0
	return nil
}
