package core

import (
	"context"
)

// HashStore defines the key-value hash operations the row cache needs.
// Implementations should support Redis/ElastiCache, DynamoDB or an embedded store.
// Every value is a UTF-8 string produced by a codec.
type HashStore interface {
	// HGet reads a single field of the hash stored at key.
	// ok is false when the key or the field does not exist; that is not an error.
	HGet(ctx context.Context, key, field string) (value string, ok bool, err error)

	// HSet writes one or more fields of the hash stored at key in a single
	// round trip. Backends apply the fields atomically.
	HSet(ctx context.Context, key string, fields map[string]string) error

	// HGetAll reads every field of the hash stored at key.
	// A missing key yields an empty map.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// HDel removes the given fields from the hash stored at key.
	HDel(ctx context.Context, key string, fields ...string) error

	// Del removes the whole hash stored at key.
	Del(ctx context.Context, key string) error

	// Close closes the connection to the store and releases resources.
	Close() error
}

// ListStore is implemented by hash stores that can also act as a FIFO list,
// which lets the reconcile queue live in the same backend.
type ListStore interface {
	ListPush(ctx context.Context, key string, value []byte) error
	ListPop(ctx context.Context, key string) ([]byte, error)
	ListLength(ctx context.Context, key string) (int64, error)
}
