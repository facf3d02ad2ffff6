// Package rowsync is a write-through row cache. Rows live in a relational
// database; a key-value hash mirrors each cached row field by field, and
// changes made through a row handle are pushed back to the database either
// synchronously or through a rate-limited background drainer.
//
// Typical usage:
//
//	client, _ := rowsync.Connect(cfg)
//	defer client.Close()
//
//	client.Define(ctx, users, true)
//	row, _ := client.New(ctx, "users", rowsync.Record{"name": "ada", "age": int32(30)})
//	row.Set(ctx, "age", int32(31))
//	client.Push(ctx, "users", row.ID())
package rowsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/rzpsarthak13/rowsync/internal/codec"
	"github.com/rzpsarthak13/rowsync/internal/core"
	"github.com/rzpsarthak13/rowsync/internal/database"
	"github.com/rzpsarthak13/rowsync/internal/kvstore"
	"github.com/rzpsarthak13/rowsync/internal/registry"
	"github.com/rzpsarthak13/rowsync/internal/row"
	"github.com/rzpsarthak13/rowsync/internal/schema"
	"github.com/rzpsarthak13/rowsync/internal/writeback"
)

type (
	// Handle is the cache accessor for one row.
	Handle = row.Handle

	// Schema describes a table.
	Schema = core.Schema

	// Column describes one table column.
	Column = core.Column

	// Record is a column-name keyed row snapshot.
	Record = core.Record

	// CodecRegistry maps column kinds and structural value types to codecs.
	CodecRegistry = codec.Registry

	// CodecOption configures a CodecRegistry.
	CodecOption = codec.Option

	// TieBreak picks between several registered structural types that a
	// value is assignable to.
	TieBreak = codec.TieBreak

	// StructuralCodec encodes one concrete JSON column type.
	StructuralCodec = core.StructuralCodec

	// EnumType is an enumeration usable as a column type.
	EnumType = core.EnumType

	// EnumMember is implemented by enumeration member types.
	EnumMember = codec.Member

	// TableBuilder declares a table schema column by column.
	TableBuilder = schema.TableBuilder

	// Database is a relational backend.
	Database = core.Database

	// HashStore is a key-value hash backend.
	HashStore = core.HashStore

	// ReconcileQueue carries rows scheduled for a push.
	ReconcileQueue = core.ReconcileQueue
)

// Enum is a concrete enumeration over member type T.
type Enum[T EnumMember] = codec.Enum[T]

// Field is a typed accessor for one column of one row. Get returns its
// default when the field is absent or null.
type Field[T any] = row.Field[T]

// Structural tie-break orders.
const (
	FirstRegistered = codec.FirstRegistered
	LastRegistered  = codec.LastRegistered
)

// NewTable starts a schema definition for the named table.
func NewTable(name string) *TableBuilder {
	return schema.NewTable(name)
}

// NewCodecRegistry returns a registry holding the built-in codecs.
func NewCodecRegistry(opts ...CodecOption) *CodecRegistry {
	return codec.NewRegistry(opts...)
}

// WithTieBreak sets how a CodecRegistry resolves a value assignable to more
// than one registered structural type.
func WithTieBreak(tb TieBreak) CodecOption {
	return codec.WithTieBreak(tb)
}

// NewEnum declares an enumeration. Members are addressed by their String
// form.
func NewEnum[T EnumMember](name string, members ...T) *Enum[T] {
	return codec.NewEnum(name, members...)
}

// JSON returns the structural codec for JSON columns holding T.
func JSON[T any]() StructuralCodec {
	return codec.JSON[T]()
}

// NewField binds a typed accessor to column of h.
func NewField[T any](h *Handle, column string, def T) (Field[T], error) {
	return row.NewField(h, column, def)
}

// GetAs reads a column of h as T. A missing field or a null returns the
// zero T.
func GetAs[T any](ctx context.Context, h *Handle, column string) (T, bool, error) {
	return row.GetAs[T](ctx, h, column)
}

// NewMemoryQueue returns an in-process reconcile queue for WithQueue.
func NewMemoryQueue(bufferSize int) ReconcileQueue {
	return writeback.NewMemoryQueue(bufferSize)
}

// Option configures a Client.
type Option func(*Client)

// WithQueue enables Schedule and the drainer on q. The client closes q on Close.
func WithQueue(q ReconcileQueue) Option {
	return func(c *Client) {
		c.queue = q
	}
}

// WithKeyPrefix namespaces every hash key as "<prefix>:<table>:<id>".
func WithKeyPrefix(prefix string) Option {
	return func(c *Client) {
		c.prefix = prefix
	}
}

// WithCodecs replaces the default codec registry.
func WithCodecs(codecs *CodecRegistry) Option {
	return func(c *Client) {
		c.codecs = codecs
	}
}

// WithConfig supplies table overrides and drainer settings. The backend
// sections must still validate even though NewClient does not use them.
func WithConfig(config *Config) Option {
	return func(c *Client) {
		c.config = config
	}
}

// WithLogger sets the base logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.baseLogger = logger
	}
}

// Client ties a relational database, a hash store and an optional reconcile
// queue together for a set of defined tables.
type Client struct {
	mu      sync.Mutex
	closed  bool
	drainer *Drainer
	loads   singleflight.Group

	db         core.Database
	store      *database.Store
	kv         core.HashStore
	queue      core.ReconcileQueue
	codecs     *codec.Registry
	config     *Config
	configMgr  *registry.ConfigManager
	tables     *registry.TableRegistry
	mapper     *schema.TypeMapper
	prefix     string
	baseLogger *slog.Logger
	logger     *slog.Logger
}

// Connect validates config and builds the database, hash store and, when
// reconciliation is enabled, the queue it names.
func Connect(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := registry.Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := database.Create(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	kv, err := kvstore.Create(config.KVStore)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create kvstore: %w", err)
	}

	opts := []Option{WithConfig(config), WithKeyPrefix(config.KVStore.KeyPrefix)}
	if config.Reconcile.Enabled {
		queue, err := writeback.Create(config.Reconcile, kv)
		if err != nil {
			kv.Close()
			db.Close()
			return nil, fmt.Errorf("failed to create reconcile queue: %w", err)
		}
		opts = append(opts, WithQueue(queue))
	}

	return NewClient(db, kv, opts...)
}

// NewClient wires a client over already opened backends. The client takes
// ownership of db, kv and any queue and closes them on Close.
func NewClient(db Database, kv HashStore, opts ...Option) (*Client, error) {
	if db == nil {
		return nil, fmt.Errorf("database cannot be nil")
	}
	if kv == nil {
		return nil, fmt.Errorf("kvstore cannot be nil")
	}

	c := &Client{
		db:         db,
		store:      database.NewStore(db),
		kv:         kv,
		mapper:     schema.NewTypeMapper(),
		baseLogger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.codecs == nil {
		c.codecs = codec.NewRegistry()
	}
	if c.config == nil {
		c.config = DefaultConfig()
	}
	if c.config.Tables == nil {
		c.config.Tables = make(map[string]TableConfig)
	}
	c.logger = c.baseLogger.With("component", "client")

	configMgr, err := registry.NewConfigManagerWith(c.config)
	if err != nil {
		return nil, err
	}
	c.configMgr = configMgr

	c.tables = registry.NewTableRegistry(c.configMgr, c.codecs, nil)
	c.tables.Lifecycle().RegisterHook(registry.LifecycleHookFunc{
		OnRegisterFunc: func(ctx context.Context, s *core.Schema, config registry.TableConfig) error {
			if !config.CreateIfMissing {
				return nil
			}
			return c.store.CreateTable(ctx, s)
		},
		OnUnregisterFunc: func(_ context.Context, s *core.Schema) error {
			c.logger.Info("table undefined", "table", s.TableName)
			return nil
		},
	})

	if c.queue != nil {
		c.drainer = NewDrainer(c.queue, c, drainerConfigFrom(c.config.Reconcile), c.tableDrainRate)
	}
	return c, nil
}

// Define registers a table. Structural codecs of its JSON columns join the
// codec registry. With createIfMissing, or when the table's configuration
// asks for it, the relational table is created if it does not exist.
func (c *Client) Define(ctx context.Context, s *Schema, createIfMissing bool) error {
	if s == nil {
		return fmt.Errorf("schema cannot be nil")
	}
	if createIfMissing && !c.configMgr.GetTableConfig(s.TableName).CreateIfMissing {
		if err := c.store.CreateTable(ctx, s); err != nil {
			return err
		}
	}
	return c.tables.Register(ctx, s)
}

// Undefine forgets a table. Cached rows and the relational table are left
// as they are; handles for the table can no longer be obtained.
func (c *Client) Undefine(ctx context.Context, table string) error {
	return c.tables.Unregister(ctx, table)
}

// Tables returns the defined table names, sorted.
func (c *Client) Tables() []string {
	return c.tables.List()
}

// Schema returns the schema of a defined table.
func (c *Client) Schema(table string) (*Schema, error) {
	return c.tables.Schema(table)
}

// Codecs returns the codec registry used by every handle of this client.
func (c *Client) Codecs() *CodecRegistry {
	return c.tables.Codecs()
}

// New inserts record, reads the stored row back and populates its cache
// hash from that snapshot.
func (c *Client) New(ctx context.Context, table string, record Record) (*Handle, error) {
	s, err := c.tables.Schema(table)
	if err != nil {
		return nil, err
	}

	id, err := c.store.Insert(ctx, s, record)
	if err != nil {
		return nil, err
	}
	snapshot, err := c.store.FindByID(ctx, s, id)
	if err != nil {
		return nil, err
	}

	h, err := c.Row(table, id)
	if err != nil {
		return nil, err
	}
	if err := row.Populate(ctx, h, snapshot); err != nil {
		return nil, fmt.Errorf("populate %s: %w", h.Key(), err)
	}
	c.logger.Debug("row created", "table", table, "id", id)
	return h, nil
}

// Row returns the handle for an existing row. id may be given in its text
// form ("42" for integer keys). No backend is contacted.
func (c *Client) Row(table string, id any) (*Handle, error) {
	s, norm, err := c.resolve(table, id)
	if err != nil {
		return nil, err
	}
	return c.handle(s, norm)
}

// Load reads a row from the database and populates its cache hash,
// replacing whatever was cached. Concurrent loads of the same row share one
// database read. A caller whose ctx ends stops waiting; the shared read
// carries on for the others.
func (c *Client) Load(ctx context.Context, table string, id any) (*Handle, error) {
	h, err := c.Row(table, id)
	if err != nil {
		return nil, err
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.loads.DoChan(h.Key(), func() (any, error) {
		snapshot, err := c.store.FindByID(loadCtx, h.Schema(), h.ID())
		if err != nil {
			return nil, err
		}
		if err := row.Populate(loadCtx, h, snapshot); err != nil {
			return nil, fmt.Errorf("populate %s: %w", h.Key(), err)
		}
		return nil, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("load coalesced", "key", h.Key())
		}
		return h, nil
	}
}

// Get returns the relational snapshot of a row, bypassing the cache.
func (c *Client) Get(ctx context.Context, table string, id any) (Record, error) {
	s, norm, err := c.resolve(table, id)
	if err != nil {
		return nil, err
	}
	return c.store.FindByID(ctx, s, norm)
}

// Exists reports whether the relational row exists.
func (c *Client) Exists(ctx context.Context, table string, id any) (bool, error) {
	s, norm, err := c.resolve(table, id)
	if err != nil {
		return false, err
	}
	return c.store.Exists(ctx, s, norm)
}

// Push writes the cached fields of a row back to the database in one
// transaction.
func (c *Client) Push(ctx context.Context, table string, id any) error {
	h, err := c.Row(table, id)
	if err != nil {
		return err
	}
	return h.PushToDatabase(ctx, c.store)
}

// Schedule queues a row for the drainer to push. It fails with
// ErrReconcileDisabled when the client has no queue.
func (c *Client) Schedule(ctx context.Context, table string, id any) error {
	if c.queue == nil {
		return ErrReconcileDisabled
	}
	_, norm, err := c.resolve(table, id)
	if err != nil {
		return err
	}
	return c.queue.Enqueue(ctx, writeback.NewRequest(table, norm))
}

// QueueSize returns the number of scheduled rows not yet drained, or 0
// without a queue.
func (c *Client) QueueSize() int {
	if c.queue == nil {
		return 0
	}
	return c.queue.Size()
}

// Start launches the background drainer. It is a no-op without a queue or
// when already running.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrStoreClosed
	}
	if c.drainer == nil {
		c.logger.Debug("reconciliation disabled, drainer not started")
		return nil
	}
	return c.drainer.Start(ctx)
}

// Stop stops the drainer, waiting for the row in flight.
func (c *Client) Stop() error {
	if c.drainer == nil {
		return nil
	}
	return c.drainer.Stop()
}

// IsRunning reports whether the drainer is running.
func (c *Client) IsRunning() bool {
	return c.drainer != nil && c.drainer.IsRunning()
}

// Drainer returns the client's drainer, or nil without a queue.
func (c *Client) Drainer() *Drainer {
	return c.drainer
}

// Close stops the drainer and closes the queue, the hash store and the
// database. Calling it again is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	var errs []error
	if err := c.Stop(); err != nil {
		errs = append(errs, err)
	}
	if c.queue != nil {
		if err := c.queue.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close queue: %w", err))
		}
	}
	if err := c.kv.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close kvstore: %w", err))
	}
	if err := c.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}

// resolve returns the table schema and id converted to the key column's type.
func (c *Client) resolve(table string, id any) (*core.Schema, any, error) {
	s, err := c.tables.Schema(table)
	if err != nil {
		return nil, nil, err
	}
	idCol, err := s.IDColumn()
	if err != nil {
		return nil, nil, err
	}
	norm, err := c.mapper.FromDB(idCol, id)
	if err != nil {
		return nil, nil, fmt.Errorf("row id for %s: %w", table, err)
	}
	if norm == nil {
		return nil, nil, fmt.Errorf("row id for %s cannot be nil", table)
	}
	return s, norm, nil
}

func (c *Client) handle(s *core.Schema, id any) (*Handle, error) {
	return row.New(s, id, c.kv, c.codecs, row.WithKeyPrefix(c.prefix), row.WithLogger(c.baseLogger))
}

func (c *Client) tableDrainRate(table string) int {
	return c.configMgr.GetTableConfig(table).DrainRate
}

// ParseValue converts a loosely typed value, such as the text form of a
// number or an enumeration name, to the Go type of col. JSON columns take
// their JSON text. nil stays nil.
func ParseValue(col *Column, value any) (any, error) {
	return schema.NewTypeMapper().FromDB(col, value)
}
