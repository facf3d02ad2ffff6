// Package writeback queues reconcile requests so that cached rows can be
// pushed back to the relational store in the background.
package writeback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rzpsarthak13/rowsync/internal/core"
	"github.com/segmentio/ksuid"
)

var (
	// ErrQueueClosed is returned when trying to use a closed queue.
	ErrQueueClosed = core.ErrQueueClosed

	// ErrInvalidRequest is returned when a request is missing its table or row.
	ErrInvalidRequest = errors.New("invalid reconcile request")

	// ErrQueueFull is returned by bounded queues that cannot accept more work.
	ErrQueueFull = errors.New("reconcile queue is full")
)

// DefaultQueueKey is the list key used when none is configured.
const DefaultQueueKey = "rowsync:reconcile"

// NewRequest builds a request for one row with a fresh KSUID.
func NewRequest(table string, rowID any) *core.ReconcileRequest {
	return &core.ReconcileRequest{
		ID:        ksuid.New().String(),
		Table:     table,
		RowID:     fmt.Sprint(rowID),
		Timestamp: time.Now().UTC(),
	}
}

// prepare validates req and fills in its ID and timestamp when unset.
func prepare(req *core.ReconcileRequest) error {
	if req == nil {
		return ErrInvalidRequest
	}
	if req.Table == "" {
		return fmt.Errorf("%w: table name is required", ErrInvalidRequest)
	}
	if req.RowID == "" {
		return fmt.Errorf("%w: row id is required", ErrInvalidRequest)
	}
	if req.ID == "" {
		req.ID = ksuid.New().String()
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}
	return nil
}

// ListQueue implements core.ReconcileQueue on a key-value list (RPUSH/LPOP),
// so requests survive restarts and can be drained by any process sharing
// the store.
type ListQueue struct {
	ops    core.ListStore
	key    string
	logger *slog.Logger
	closed atomic.Bool
}

// NewListQueue creates a queue on the list stored at key.
func NewListQueue(ops core.ListStore, key string) *ListQueue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &ListQueue{
		ops:    ops,
		key:    key,
		logger: slog.Default().With("component", "writeback", "queue", "list", "key", key),
	}
}

// Enqueue serialises req as JSON and appends it to the list.
func (q *ListQueue) Enqueue(ctx context.Context, req *core.ReconcileRequest) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	if err := prepare(req); err != nil {
		return err
	}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal reconcile request: %w", err)
	}
	if err := q.ops.ListPush(ctx, q.key, data); err != nil {
		return fmt.Errorf("failed to enqueue reconcile request: %w", err)
	}
	q.logger.Debug("request enqueued", "id", req.ID, "table", req.Table, "row_id", req.RowID)
	return nil
}

// Dequeue pops up to batchSize requests in FIFO order. Entries that fail to
// decode are dropped with a warning.
func (q *ListQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.ReconcileRequest, error) {
	if q.closed.Load() {
		return nil, ErrQueueClosed
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	requests := make([]*core.ReconcileRequest, 0, batchSize)
	for len(requests) < batchSize {
		data, err := q.ops.ListPop(ctx, q.key)
		if err != nil {
			return requests, fmt.Errorf("failed to dequeue reconcile request: %w", err)
		}
		if data == nil {
			break
		}

		var req core.ReconcileRequest
		if err := json.Unmarshal(data, &req); err != nil {
			q.logger.Warn("dropping undecodable request", "error", err, "payload", truncate(string(data), 200))
			continue
		}
		requests = append(requests, &req)
	}
	return requests, nil
}

// Size returns the list length, or 0 when it cannot be read.
func (q *ListQueue) Size() int {
	if q.closed.Load() {
		return 0
	}
	n, err := q.ops.ListLength(context.Background(), q.key)
	if err != nil {
		return 0
	}
	return int(n)
}

// Close closes the queue. The list itself is left in place.
func (q *ListQueue) Close() error {
	q.closed.Store(true)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "") + "..."
}
