package rowsync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/rzpsarthak13/rowsync/internal/core"
)

// Pusher writes one cached row back to the relational database. *Client
// implements it.
type Pusher interface {
	Push(ctx context.Context, table string, id any) error
}

// DrainerConfig contains configuration for the drainer.
type DrainerConfig struct {
	// DrainRate is the default maximum number of pushes per second for a
	// table. Tables may override it through their TableConfig.
	DrainRate int

	// BatchSize is how many requests to dequeue at once.
	BatchSize int

	// PollInterval is how long to wait before polling an empty queue again.
	PollInterval time.Duration

	// MaxRetries is how many times a failed push is retried before the
	// request is dropped.
	MaxRetries int

	// RetryBackoffBase and RetryBackoffMax bound the exponential backoff
	// applied before a failed request is queued again.
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration
}

// DefaultDrainerConfig returns sensible defaults for the drainer.
func DefaultDrainerConfig() DrainerConfig {
	return DrainerConfig{
		DrainRate:        50,
		BatchSize:        10,
		PollInterval:     100 * time.Millisecond,
		MaxRetries:       5,
		RetryBackoffBase: time.Second,
		RetryBackoffMax:  30 * time.Second,
	}
}

func drainerConfigFrom(c ReconcileConfig) DrainerConfig {
	return DrainerConfig{
		DrainRate:        c.DrainRate,
		BatchSize:        c.BatchSize,
		PollInterval:     c.PollInterval,
		MaxRetries:       c.MaxRetries,
		RetryBackoffBase: c.RetryBackoffBase,
		RetryBackoffMax:  c.RetryBackoffMax,
	}
}

// DrainerStats counts what the drainer did since it was created.
type DrainerStats struct {
	Pushed  int64
	Retried int64
	Dropped int64
}

// Drainer moves scheduled rows from a reconcile queue back to the database,
// one push at a time, at a per-table rate.
type Drainer struct {
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	queue     core.ReconcileQueue
	pusher    Pusher
	config    DrainerConfig
	tableRate func(table string) int
	limiters  map[string]*rate.Limiter
	logger    *slog.Logger

	pushed  atomic.Int64
	retried atomic.Int64
	dropped atomic.Int64
}

// NewDrainer creates a drainer. tableRate, when non-nil, returns the drain
// rate for a table; zero or less falls back to config.DrainRate.
func NewDrainer(queue core.ReconcileQueue, pusher Pusher, config DrainerConfig, tableRate func(string) int) *Drainer {
	defaults := DefaultDrainerConfig()
	if config.DrainRate <= 0 {
		config.DrainRate = defaults.DrainRate
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryBackoffMax < config.RetryBackoffBase {
		config.RetryBackoffMax = config.RetryBackoffBase
	}

	return &Drainer{
		queue:     queue,
		pusher:    pusher,
		config:    config,
		tableRate: tableRate,
		limiters:  make(map[string]*rate.Limiter),
		logger:    slog.Default().With("component", "writeback"),
	}
}

// Start runs the drainer in its own goroutine until Stop is called or ctx
// is cancelled. Starting a running drainer is a no-op.
func (d *Drainer) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil
	}
	d.running = true
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})

	go d.run(ctx, d.stopCh, d.doneCh)
	d.logger.Info("drainer started", "drain_rate", d.config.DrainRate, "batch_size", d.config.BatchSize)
	return nil
}

// Stop signals the drainer and waits for it to exit. A push in flight is
// finished first; requests still waiting for a rate token go back to the queue.
func (d *Drainer) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	stopCh, doneCh := d.stopCh, d.doneCh
	d.mu.Unlock()

	close(stopCh)
	<-doneCh
	d.logger.Info("drainer stopped", "pushed", d.pushed.Load(), "dropped", d.dropped.Load())
	return nil
}

// IsRunning returns whether the drainer is currently running.
func (d *Drainer) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Stats returns the drainer's counters.
func (d *Drainer) Stats() DrainerStats {
	return DrainerStats{
		Pushed:  d.pushed.Load(),
		Retried: d.retried.Load(),
		Dropped: d.dropped.Load(),
	}
}

// Config returns the effective configuration.
func (d *Drainer) Config() DrainerConfig {
	return d.config
}

func (d *Drainer) run(parent context.Context, stopCh chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	defer d.markStopped(stopCh)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	for ctx.Err() == nil {
		batch, err := d.queue.Dequeue(ctx, d.config.BatchSize)
		if err != nil {
			if errors.Is(err, core.ErrQueueClosed) {
				d.logger.Info("queue closed, drainer exiting")
				return
			}
			if ctx.Err() == nil {
				d.logger.Warn("dequeue failed", "error", err)
			}
		}

		if len(batch) == 0 {
			sleep(ctx, d.config.PollInterval)
			continue
		}

		for i, req := range batch {
			if err := d.limiter(req.Table).Wait(ctx); err != nil {
				d.requeue(ctx, batch[i:])
				return
			}
			d.process(ctx, req)
		}
	}
}

// markStopped clears running when the loop ends on its own. A run that a
// later Start has superseded leaves the state alone.
func (d *Drainer) markStopped(stopCh chan struct{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopCh == stopCh {
		d.running = false
	}
}

func (d *Drainer) process(ctx context.Context, req *core.ReconcileRequest) {
	logger := d.logger.With("request_id", req.ID, "table", req.Table, "row_id", req.RowID)

	start := time.Now()
	err := d.pusher.Push(context.WithoutCancel(ctx), req.Table, req.RowID)
	if err == nil {
		d.pushed.Add(1)
		logger.Debug("row pushed", "duration", time.Since(start))
		return
	}

	if permanent(err) {
		d.dropped.Add(1)
		logger.Warn("dropping request", "error", err)
		return
	}
	if req.RetryCount >= d.config.MaxRetries {
		d.dropped.Add(1)
		logger.Error("push failed, retries exhausted", "retries", req.RetryCount, "error", err)
		return
	}

	backoff := d.backoff(req.RetryCount)
	logger.Warn("push failed, retrying", "attempt", req.RetryCount+1, "backoff", backoff, "error", err)
	sleep(ctx, backoff)

	req.RetryCount++
	d.retried.Add(1)
	if err := d.queue.Enqueue(context.WithoutCancel(ctx), req); err != nil {
		d.dropped.Add(1)
		logger.Error("failed to requeue request", "error", err)
	}
}

// requeue returns untouched requests to the queue when the drainer stops
// mid-batch.
func (d *Drainer) requeue(ctx context.Context, reqs []*core.ReconcileRequest) {
	ctx = context.WithoutCancel(ctx)
	for _, req := range reqs {
		if err := d.queue.Enqueue(ctx, req); err != nil {
			d.dropped.Add(1)
			d.logger.Error("failed to requeue request", "request_id", req.ID, "table", req.Table, "error", err)
		}
	}
}

func (d *Drainer) limiter(table string) *rate.Limiter {
	if l, ok := d.limiters[table]; ok {
		return l
	}
	r := d.config.DrainRate
	if d.tableRate != nil {
		if tr := d.tableRate(table); tr > 0 {
			r = tr
		}
	}
	l := rate.NewLimiter(rate.Limit(r), 1)
	d.limiters[table] = l
	return l
}

// backoff returns base * 2^retry, capped at the configured maximum.
func (d *Drainer) backoff(retry int) time.Duration {
	b := d.config.RetryBackoffBase
	for i := 0; i < retry && b < d.config.RetryBackoffMax; i++ {
		b *= 2
	}
	return min(b, d.config.RetryBackoffMax)
}

// permanent reports errors that no amount of retrying will fix.
func permanent(err error) bool {
	return errors.Is(err, core.ErrRowNotFound) ||
		errors.Is(err, core.ErrTableNotRegistered) ||
		errors.Is(err, core.ErrTypeMismatch) ||
		errors.Is(err, core.ErrInvalidEnumMember) ||
		errors.Is(err, core.ErrNoCodecRegistered)
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
