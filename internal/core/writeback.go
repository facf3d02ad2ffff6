package core

import (
	"context"
	"time"
)

// ReconcileRequest asks for one cached row to be pushed back to the
// relational store by a background drainer.
type ReconcileRequest struct {
	// ID uniquely identifies the request (a KSUID string).
	ID string `json:"id"`

	// Table is the name of the table the row belongs to.
	Table string `json:"table"`

	// RowID is the row identifier in its text form.
	RowID string `json:"row_id"`

	// Timestamp is when the request was scheduled.
	Timestamp time.Time `json:"timestamp"`

	// RetryCount tracks how many times this request has been retried.
	RetryCount int `json:"retry_count"`
}

// ReconcileQueue stores reconcile requests until a drainer processes them.
type ReconcileQueue interface {
	// Enqueue adds a request to the queue.
	Enqueue(ctx context.Context, req *ReconcileRequest) error

	// Dequeue retrieves up to batchSize requests.
	// Returns an empty slice if no requests are available.
	Dequeue(ctx context.Context, batchSize int) ([]*ReconcileRequest, error)

	// Size returns the current number of queued requests, when known.
	Size() int

	// Close closes the queue and releases resources.
	Close() error
}
