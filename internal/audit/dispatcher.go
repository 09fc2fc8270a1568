package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// dropWarnEvery is how many drops pass between two warnings after the first.
const dropWarnEvery = 1000

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool

	// Logger receives drop warnings. Nil discards them.
	Logger *slog.Logger
}

// Dispatcher hands events to a sink on its own goroutine so account
// operations never wait on audit I/O.
type Dispatcher struct {
	sink       Sink
	queue      chan Event
	stop       chan struct{}
	dropIfFull bool
	logger     *slog.Logger

	dropped  atomic.Uint64
	stopping atomic.Bool
	once     sync.Once
	wg       sync.WaitGroup
}

// NewDispatcher starts the delivery goroutine. It returns nil when cfg is
// disabled; a nil *Dispatcher accepts and discards events.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	d := &Dispatcher{
		sink:       sink,
		queue:      make(chan Event, size),
		stop:       make(chan struct{}),
		dropIfFull: cfg.DropIfFull,
		logger:     logger.With("component", "audit"),
	}
	d.wg.Add(1)
	go d.deliver()
	return d
}

func (d *Dispatcher) deliver() {
	defer d.wg.Done()
	for {
		select {
		case ev := <-d.queue:
			d.sink.Emit(context.Background(), ev)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

// drain flushes whatever is still queued once stop is closed.
func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.sink.Emit(context.Background(), ev)
		default:
			return
		}
	}
}

// Emit queues ev. With DropIfFull a full buffer drops the event; otherwise
// Emit blocks until the event is queued or ctx is done, and an event given
// up on ctx is dropped as well. Drops are counted and logged.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil || d.stopping.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.dropIfFull {
		select {
		case d.queue <- ev:
		case <-d.stop:
		default:
			d.drop(ev, "buffer full")
		}
		return
	}

	select {
	case d.queue <- ev:
	case <-d.stop:
	case <-ctx.Done():
		d.drop(ev, "context done")
	}
}

// drop warns on the first loss and then once every dropWarnEvery losses.
func (d *Dispatcher) drop(ev Event, reason string) {
	n := d.dropped.Add(1)
	if n != 1 && n%dropWarnEvery != 0 {
		return
	}
	d.logger.Warn("audit event dropped",
		"reason", reason,
		"event", ev.EventType,
		"account_id", ev.AccountID,
		"dropped_total", n,
	)
}

// Close stops accepting events and flushes the queue into the sink.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.stopping.Store(true)
		close(d.stop)
		d.wg.Wait()
	})
}

// Dropped returns the number of events lost.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
