package kvstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/rzpsarthak13/rowsync/internal/core"
	"github.com/rzpsarthak13/rowsync/internal/registry"
)

// Key layout:
//
//	h <key> 0x00 <field>    hash field
//	l <key> 0x00 <seq:8>    list element, big-endian sequence
const (
	hashTag = 'h'
	listTag = 'l'
	keySep  = 0x00
)

// PebbleKVStore implements core.HashStore and core.ListStore on an embedded
// Pebble database, for single-process deployments and tests.
type PebbleKVStore struct {
	db     *pebble.DB
	logger *slog.Logger

	// mu guards closed; operations hold it shared so Close cannot race them.
	mu     sync.RWMutex
	closed bool

	// listMu serialises list operations, which read then write sequence numbers.
	listMu sync.Mutex
}

// NewPebbleKVStore opens (or creates) the database at path. With inMemory
// the path is ignored and nothing touches disk.
func NewPebbleKVStore(path string, inMemory bool) (*PebbleKVStore, error) {
	opts := &pebble.Options{}
	if inMemory {
		opts.FS = vfs.NewMem()
		path = ""
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %q: %w: %w", path, core.ErrBackendUnavailable, err)
	}
	return &PebbleKVStore{
		db:     db,
		logger: slog.Default().With("component", "kvstore", "backend", "pebble"),
	}, nil
}

func prefixed(tag byte, key string) []byte {
	b := make([]byte, 0, len(key)+2)
	b = append(b, tag)
	b = append(b, key...)
	return append(b, keySep)
}

func fieldKey(key, field string) []byte {
	return append(prefixed(hashTag, key), field...)
}

// upperBound returns the first key after every key starting with prefix.
func upperBound(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	end[len(end)-1]++
	return end
}

func (p *PebbleKVStore) acquire() error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return core.ErrStoreClosed
	}
	return nil
}

func (p *PebbleKVStore) release() {
	p.mu.RUnlock()
}

// HGet reads a single hash field.
func (p *PebbleKVStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	if err := p.acquire(); err != nil {
		return "", false, err
	}
	defer p.release()

	val, closer, err := p.db.Get(fieldKey(key, field))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	defer closer.Close()

	// val is only valid until closer.Close.
	return string(val), true, nil
}

// HSet writes all fields in one batch.
func (p *PebbleKVStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if err := p.acquire(); err != nil {
		return err
	}
	defer p.release()

	if len(fields) == 0 {
		return nil
	}

	b := p.db.NewBatch()
	defer b.Close()
	for f, v := range fields {
		if err := b.Set(fieldKey(key, f), []byte(v), nil); err != nil {
			return fmt.Errorf("hset %s: %w", key, err)
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	p.logger.Debug("hash fields written", "key", key, "fields", len(fields))
	return nil
}

// HGetAll scans the hash's key range.
func (p *PebbleKVStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if err := p.acquire(); err != nil {
		return nil, err
	}
	defer p.release()

	prefix := prefixed(hashTag, key)
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	defer iter.Close()

	out := make(map[string]string)
	for iter.First(); iter.Valid(); iter.Next() {
		out[string(iter.Key()[len(prefix):])] = string(iter.Value())
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	return out, nil
}

// HDel removes hash fields in one batch.
func (p *PebbleKVStore) HDel(ctx context.Context, key string, fields ...string) error {
	if err := p.acquire(); err != nil {
		return err
	}
	defer p.release()

	if len(fields) == 0 {
		return nil
	}

	b := p.db.NewBatch()
	defer b.Close()
	for _, f := range fields {
		if err := b.Delete(fieldKey(key, f), nil); err != nil {
			return fmt.Errorf("hdel %s: %w", key, err)
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("hdel %s: %w", key, err)
	}
	return nil
}

// Del removes the whole hash with a range deletion.
func (p *PebbleKVStore) Del(ctx context.Context, key string) error {
	if err := p.acquire(); err != nil {
		return err
	}
	defer p.release()

	prefix := prefixed(hashTag, key)
	if err := p.db.DeleteRange(prefix, upperBound(prefix), pebble.Sync); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

func (p *PebbleKVStore) listIter(key string) (*pebble.Iterator, []byte, error) {
	prefix := prefixed(listTag, key)
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	return iter, prefix, err
}

// ListPush appends value after the current tail.
func (p *PebbleKVStore) ListPush(ctx context.Context, key string, value []byte) error {
	if err := p.acquire(); err != nil {
		return err
	}
	defer p.release()

	p.listMu.Lock()
	defer p.listMu.Unlock()

	iter, prefix, err := p.listIter(key)
	if err != nil {
		return fmt.Errorf("list push %s: %w", key, err)
	}
	var seq uint64
	if iter.Last() {
		seq = binary.BigEndian.Uint64(iter.Key()[len(prefix):]) + 1
	}
	if err := iter.Close(); err != nil {
		return fmt.Errorf("list push %s: %w", key, err)
	}

	k := binary.BigEndian.AppendUint64(prefix, seq)
	if err := p.db.Set(k, value, pebble.Sync); err != nil {
		return fmt.Errorf("list push %s: %w", key, err)
	}
	return nil
}

// ListPop removes and returns the head. An empty list yields nil.
func (p *PebbleKVStore) ListPop(ctx context.Context, key string) ([]byte, error) {
	if err := p.acquire(); err != nil {
		return nil, err
	}
	defer p.release()

	p.listMu.Lock()
	defer p.listMu.Unlock()

	iter, _, err := p.listIter(key)
	if err != nil {
		return nil, fmt.Errorf("list pop %s: %w", key, err)
	}
	if !iter.First() {
		return nil, iter.Close()
	}
	head := bytes.Clone(iter.Key())
	value := bytes.Clone(iter.Value())
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("list pop %s: %w", key, err)
	}

	if err := p.db.Delete(head, pebble.Sync); err != nil {
		return nil, fmt.Errorf("list pop %s: %w", key, err)
	}
	return value, nil
}

// ListLength counts the list's elements.
func (p *PebbleKVStore) ListLength(ctx context.Context, key string) (int64, error) {
	if err := p.acquire(); err != nil {
		return 0, err
	}
	defer p.release()

	iter, _, err := p.listIter(key)
	if err != nil {
		return 0, fmt.Errorf("list length %s: %w", key, err)
	}
	defer iter.Close()

	var n int64
	for iter.First(); iter.Valid(); iter.Next() {
		n++
	}
	return n, iter.Error()
}

// Close flushes and closes the database.
func (p *PebbleKVStore) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.db.Close()
}

// PebbleKVStoreFactory creates embedded Pebble stores.
type PebbleKVStoreFactory struct{}

// Type returns the type identifier for this factory.
func (f *PebbleKVStoreFactory) Type() string {
	return "pebble"
}

// Validate validates the Pebble-specific configuration.
func (f *PebbleKVStoreFactory) Validate(config registry.KVStoreConfig) error {
	if !config.Pebble.InMemory && config.Pebble.Path == "" {
		return fmt.Errorf("pebble.path is required unless pebble.in_memory is set")
	}
	return nil
}

// Create opens a Pebble store.
func (f *PebbleKVStoreFactory) Create(config registry.KVStoreConfig) (core.HashStore, error) {
	store, err := NewPebbleKVStore(config.Pebble.Path, config.Pebble.InMemory)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pebble KV store: %w", err)
	}
	return store, nil
}

func init() {
	register(&PebbleKVStoreFactory{})
}
