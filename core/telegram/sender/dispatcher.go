// Package sender delivers bot replies on a small pool of workers. Jobs that
// share a key, normally the chat id, always run on the same worker in the
// order they were queued.
package sender

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the worker owning the key has no room left.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options sizes the dispatcher. Zero values take the defaults below.
type Options struct {
	// QueueSize is the total buffer, split evenly between workers.
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration caps the time one job may spend across all attempts.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

// Job is one outbound Telegram call. Run may be invoked several times and
// must therefore be safe to repeat.
type Job struct {
	// Key selects the worker; jobs with equal keys never overtake each other.
	Key      int64
	Action   string
	Endpoint string
	Run      func() error
}

type queued struct {
	ctx context.Context
	Job
}

// Dispatcher runs jobs asynchronously with per-key ordering and retries.
type Dispatcher struct {
	opts   Options
	lanes  []chan queued
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	failed atomic.Uint64
}

// NewDispatcher starts opts.Workers workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	depth := max(opts.QueueSize/opts.Workers, 1)
	d := &Dispatcher{opts: opts, lanes: make([]chan queued, opts.Workers)}
	d.wg.Add(len(d.lanes))
	for i := range d.lanes {
		d.lanes[i] = make(chan queued, depth)
		go d.work(d.lanes[i])
	}
	return d
}

// Enqueue hands j to the worker owning j.Key without blocking. ctx carries
// the update's logging fields and bounds retries.
func (d *Dispatcher) Enqueue(ctx context.Context, j Job) error {
	if j.Run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.lanes[d.lane(j.Key)] <- queued{ctx: ctx, Job: j}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) lane(key int64) int {
	return int(uint64(key) % uint64(len(d.lanes)))
}

// Failed returns how many jobs were given up on.
func (d *Dispatcher) Failed() uint64 {
	return d.failed.Load()
}

// Close stops intake and waits for queued jobs to finish. It is idempotent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, lane := range d.lanes {
		close(lane)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) work(lane <-chan queued) {
	defer d.wg.Done()
	for q := range lane {
		if err := d.deliver(q.ctx, q.Job); err != nil {
			d.failed.Add(1)
		}
	}
}
