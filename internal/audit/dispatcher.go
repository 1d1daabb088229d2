package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops and counts events when the buffer is full instead of blocking
	// the emitting goroutine.
	DropIfFull bool
	Logger     *slog.Logger
	Now        func() time.Time
}

// Dispatcher relays events to a sink on its own goroutine, so a slow sink never stalls
// a renewal or a login. A nil *Dispatcher is a valid disabled dispatcher.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool
	logger     *slog.Logger
	now        func() time.Time

	// mu guards closing queue against in-flight sends.
	mu     sync.RWMutex
	closed bool
	queue  chan Event

	done    chan struct{}
	dropped atomic.Uint64
}

// NewDispatcher starts a dispatcher, or returns nil when cfg is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	d := &Dispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		logger:     cfg.Logger,
		now:        cfg.Now,
		queue:      make(chan Event, cfg.BufferSize),
		done:       make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for event := range d.queue {
		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("goSession: audit sink panicked", "event_type", event.EventType, "panic", r)
		}
	}()
	d.sink.Emit(context.Background(), event)
}

// Emit queues event, stamping its ID and timestamp when missing. With DropIfFull a full
// buffer drops the event; otherwise Emit waits for room until ctx ends. Events emitted
// after Close are discarded.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.now()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	if d.dropIfFull {
		select {
		case d.queue <- event:
		default:
			if n := d.dropped.Add(1); n == 1 || n%100 == 0 {
				d.logger.Warn("goSession: audit buffer full, dropping events", "event_type", event.EventType, "dropped", n)
			}
		}
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
	}
}

// Close delivers every queued event and stops the dispatcher. It is idempotent.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}

// Dropped returns how many events were discarded because the buffer was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
