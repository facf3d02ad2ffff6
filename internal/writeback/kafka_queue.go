package writeback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rzpsarthak13/rowsync/internal/core"
	"github.com/rzpsarthak13/rowsync/internal/registry"
	"github.com/segmentio/kafka-go"
)

// kafkaWriter is the producer side of *kafka.Writer.
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaReader is the consumer-group side of *kafka.Reader.
type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaQueue implements core.ReconcileQueue on a Kafka topic. Requests are
// keyed by table so one table's requests stay ordered within a partition.
type KafkaQueue struct {
	writer      kafkaWriter
	reader      kafkaReader
	topic       string
	groupID     string
	readTimeout time.Duration
	logger      *slog.Logger

	mu     sync.RWMutex
	closed bool
	size   int // approximate; Kafka does not expose lag here
}

// NewKafkaQueue creates a producer and a consumer-group reader on the
// configured topic.
func NewKafkaQueue(config registry.KafkaConfig) (*KafkaQueue, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}
	if config.GroupID == "" {
		config.GroupID = "rowsync-reconcile"
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    config.BatchSize,
		BatchTimeout: config.BatchTimeout,
		WriteTimeout: config.WriteTimeout,
		BatchBytes:   int64(config.MaxMessageBytes),
		RequiredAcks: kafka.RequiredAcks(config.RequiredAcks),
		MaxAttempts:  3,
	}

	// New consumer groups start from the beginning so nothing scheduled
	// before the first drainer joined is lost.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     config.Brokers,
		Topic:       config.Topic,
		GroupID:     config.GroupID,
		MinBytes:    config.MinBytes,
		MaxBytes:    config.MaxBytes,
		MaxWait:     config.MaxWait,
		StartOffset: kafka.FirstOffset,
	})

	q := newKafkaQueue(writer, reader, config.Topic, config.GroupID, config.ReadTimeout)
	q.logger.Info("kafka queue ready", "brokers", config.Brokers)
	return q, nil
}

func newKafkaQueue(w kafkaWriter, r kafkaReader, topic, groupID string, readTimeout time.Duration) *KafkaQueue {
	if readTimeout <= 0 {
		readTimeout = 5 * time.Second
	}
	return &KafkaQueue{
		writer:      w,
		reader:      r,
		topic:       topic,
		groupID:     groupID,
		readTimeout: readTimeout,
		logger:      slog.Default().With("component", "writeback", "queue", "kafka", "topic", topic, "group", groupID),
	}
}

// Enqueue produces req synchronously.
func (q *KafkaQueue) Enqueue(ctx context.Context, req *core.ReconcileRequest) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return ErrQueueClosed
	}
	if err := prepare(req); err != nil {
		return err
	}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal reconcile request: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(req.Table),
		Value: data,
		Time:  req.Timestamp,
		Headers: []kafka.Header{
			{Key: "table", Value: []byte(req.Table)},
			{Key: "request_id", Value: []byte(req.ID)},
		},
	}

	start := time.Now()
	if err := q.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	q.mu.Lock()
	q.size++
	q.mu.Unlock()

	q.logger.Debug("request produced", "id", req.ID, "table", req.Table, "row_id", req.RowID, "duration", time.Since(start))
	return nil
}

// Dequeue fetches up to batchSize requests, committing each offset once the
// message is decoded. It stops early when no message arrives within the read
// timeout.
func (q *KafkaQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.ReconcileRequest, error) {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return nil, ErrQueueClosed
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	requests := make([]*core.ReconcileRequest, 0, batchSize)
	for len(requests) < batchSize {
		readCtx, cancel := context.WithTimeout(ctx, q.readTimeout)
		message, err := q.reader.FetchMessage(readCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				break
			}
			return requests, fmt.Errorf("failed to read from Kafka: %w", err)
		}

		var req core.ReconcileRequest
		if err := json.Unmarshal(message.Value, &req); err != nil {
			q.logger.Warn("dropping undecodable message", "partition", message.Partition, "offset", message.Offset, "error", err)
		} else {
			requests = append(requests, &req)
		}

		if err := q.reader.CommitMessages(ctx, message); err != nil {
			q.logger.Warn("offset commit failed", "partition", message.Partition, "offset", message.Offset, "error", err)
		}
	}

	if n := len(requests); n > 0 {
		q.mu.Lock()
		q.size = max(q.size-n, 0)
		q.mu.Unlock()
		q.logger.Debug("requests consumed", "count", n)
	}
	return requests, nil
}

// Size returns an approximate number of requests produced by this process
// and not yet consumed by it.
func (q *KafkaQueue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.size
}

// Close closes the producer and the consumer.
func (q *KafkaQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	return errors.Join(q.writer.Close(), q.reader.Close())
}
