package consumer

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/BarkinBalci/story-analytics-service/internal/config"
	"github.com/BarkinBalci/story-analytics-service/internal/queue"
	"github.com/BarkinBalci/story-analytics-service/internal/repository"
)

const stageBufferSize = 100

// Consumer drains the analytics queue into the event store through three stages
type Consumer struct {
	receiver    *Receiver
	parser      *ParserStage
	batchWriter *BatchWriter
}

// NewConsumer wires the receiver, parser and batch writer
func NewConsumer(cfg *config.Config, queueConsumer queue.QueueConsumer, repo repository.EventRepository, log *zap.Logger) *Consumer {
	receiver := NewReceiver(queueConsumer, ReceiverConfig{
		MaxMessages:     cfg.Consumer.MaxMessages,
		WaitTimeSeconds: cfg.Consumer.WaitTimeSeconds,
		BufferSize:      stageBufferSize,
	}, log.Named("Receiver"))

	parser := NewParserStage(queueConsumer, NewJSONEventParser(), log.Named("Parser"))

	batchWriter := NewBatchWriter(repo, BatchWriterConfig{
		MaxBatchSize: cfg.Consumer.BatchSizeMax,
		FlushTimeout: time.Duration(cfg.Consumer.BatchTimeoutSec) * time.Second,
	}, log.Named("BatchWriter"))

	return &Consumer{
		receiver:    receiver,
		parser:      parser,
		batchWriter: batchWriter,
	}
}

// Start runs the pipeline and blocks until every stage has stopped
func (c *Consumer) Start(ctx context.Context) error {
	messageChan := make(chan types.Message, c.receiver.config.BufferSize)
	envelopeChan := make(chan *Envelope, c.receiver.config.BufferSize)

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		c.receiver.Start(ctx, messageChan)
	}()

	go func() {
		defer wg.Done()
		c.parser.Start(ctx, messageChan, envelopeChan)
	}()

	go func() {
		defer wg.Done()
		c.batchWriter.Start(ctx, envelopeChan)
	}()

	wg.Wait()
	return nil
}
