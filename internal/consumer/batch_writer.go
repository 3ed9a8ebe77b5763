package consumer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/BarkinBalci/story-analytics-service/internal/domain"
	"github.com/BarkinBalci/story-analytics-service/internal/metrics"
	"github.com/BarkinBalci/story-analytics-service/internal/repository"
)

// BatchWriterConfig configures the batch writer
type BatchWriterConfig struct {
	MaxBatchSize int
	FlushTimeout time.Duration
}

// BatchWriter groups envelopes and appends them to the event store
type BatchWriter struct {
	repository repository.EventRepository
	config     BatchWriterConfig
	log        *zap.Logger
}

// NewBatchWriter creates a new batch writer
func NewBatchWriter(repo repository.EventRepository, config BatchWriterConfig, log *zap.Logger) *BatchWriter {
	return &BatchWriter{
		repository: repo,
		config:     config,
		log:        log,
	}
}

// Start batches envelopes from in and flushes on size, on timeout and on shutdown
func (w *BatchWriter) Start(ctx context.Context, in <-chan *Envelope) {
	ticker := time.NewTicker(w.config.FlushTimeout)
	defer ticker.Stop()

	batch := make([]*Envelope, 0, w.config.MaxBatchSize)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Batch writer shutting down")
			w.flushFinal(batch)
			return

		case envelope, ok := <-in:
			if !ok {
				w.log.Info("Batch writer input channel closed")
				w.flushFinal(batch)
				return
			}

			batch = append(batch, envelope)

			if len(batch) >= w.config.MaxBatchSize {
				w.log.Debug("Batch size threshold reached", zap.Int("batch_size", len(batch)))
				w.processBatch(ctx, batch)
				batch = make([]*Envelope, 0, w.config.MaxBatchSize)
				ticker.Reset(w.config.FlushTimeout)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.log.Debug("Batch timeout reached", zap.Int("envelope_count", len(batch)))
				w.processBatch(ctx, batch)
				batch = make([]*Envelope, 0, w.config.MaxBatchSize)
			}
		}
	}
}

// flushFinal writes what is left with a context that outlives the cancelled pipeline
func (w *BatchWriter) flushFinal(batch []*Envelope) {
	if len(batch) == 0 {
		return
	}
	w.log.Info("Flushing final batch", zap.Int("envelope_count", len(batch)))

	ctx, cancel := context.WithTimeout(context.Background(), w.config.FlushTimeout)
	defer cancel()
	w.processBatch(ctx, batch)
}

// processBatch appends the events and settles each message by its own outcome
func (w *BatchWriter) processBatch(ctx context.Context, envelopes []*Envelope) {
	if len(envelopes) == 0 {
		return
	}

	events := make([]*domain.AnalyticsEvent, len(envelopes))
	for i, env := range envelopes {
		events[i] = env.Event
	}

	inserted, err := w.repository.AppendBatch(ctx, events)
	if err == nil {
		w.log.Info("Successfully appended events", zap.Int("count", inserted))
		w.ack(ctx, envelopes)
		return
	}

	var partial *domain.PartialFailureError
	if !errors.As(err, &partial) {
		w.log.Error("Failed to append batch",
			zap.Error(err),
			zap.Int("event_count", len(events)))
		w.nack(ctx, envelopes)
		return
	}

	failed := partial.FailedIndexes()
	succeeded := make([]*Envelope, 0, len(envelopes)-len(failed))
	retry := make([]*Envelope, 0, len(failed))
	for i, env := range envelopes {
		if failed[i] {
			retry = append(retry, env)
			continue
		}
		succeeded = append(succeeded, env)
	}

	w.log.Warn("Partial append success",
		zap.Int("appended", len(succeeded)),
		zap.Int("failed", len(retry)),
		zap.Error(err))
	w.ack(ctx, succeeded)
	w.nack(ctx, retry)
}

func (w *BatchWriter) ack(ctx context.Context, envelopes []*Envelope) {
	for _, env := range envelopes {
		if err := env.Ack(ctx); err != nil {
			w.log.Error("Failed to ack envelope", zap.String("event_id", env.Event.ID), zap.Error(err))
		}
	}
	metrics.EventsConsumed.WithLabelValues("stored").Add(float64(len(envelopes)))
}

func (w *BatchWriter) nack(ctx context.Context, envelopes []*Envelope) {
	for _, env := range envelopes {
		if err := env.Nack(ctx); err != nil {
			w.log.Error("Failed to nack envelope", zap.String("event_id", env.Event.ID), zap.Error(err))
		}
	}
	metrics.EventsConsumed.WithLabelValues("retried").Add(float64(len(envelopes)))
}
