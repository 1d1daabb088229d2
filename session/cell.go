package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	// ErrPersist wraps durable write failures. The in-memory mutation has already applied.
	ErrPersist = errors.New("session persist failed")
	// ErrHydrate wraps durable read failures during hydration.
	ErrHydrate = errors.New("session hydrate failed")
)

// cell is a subscribable value with write-through persistence shared by Store and RoleStore.
//
// writeMu serializes mutate, notify, and persist so subscribers and storage observe
// mutations in the same order. Subscribers must not mutate the cell synchronously.
type cell[T any] struct {
	writeMu sync.Mutex

	mu       sync.RWMutex
	value    T
	hydrated bool
	touched  bool

	storage Storage
	key     string
	codec   *Codec
	logger  *slog.Logger
	clone   func(T) T
	isEmpty func(T) bool
	heal    func(T) (T, bool)

	subMu  sync.Mutex
	subs   map[uint64]func(T, bool)
	nextID uint64
}

func (c *cell[T]) load() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clone(c.value), c.hydrated
}

func (c *cell[T]) isHydrated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hydrated
}

func (c *cell[T]) subscribe(fn func(T, bool)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.subs == nil {
		c.subs = make(map[uint64]func(T, bool))
	}
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
		})
	}
}

func (c *cell[T]) notify(v T, hydrated bool) {
	c.subMu.Lock()
	fns := make([]func(T, bool), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()
	for _, fn := range fns {
		fn(c.clone(v), hydrated)
	}
}

// mutate applies fn, notifies subscribers, then writes through to storage.
func (c *cell[T]) mutate(ctx context.Context, fn func(T) (T, error)) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	next, err := fn(c.clone(c.value))
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.value = next
	if !c.hydrated {
		c.touched = true
	}
	hydrated := c.hydrated
	c.mu.Unlock()

	c.notify(next, hydrated)
	return c.persist(ctx, next)
}

func (c *cell[T]) persist(ctx context.Context, v T) error {
	if c.storage == nil {
		return nil
	}
	var err error
	if c.isEmpty(v) {
		err = c.storage.Remove(ctx, c.key)
	} else {
		data, encErr := c.codec.Encode(v)
		if encErr != nil {
			return fmt.Errorf("%w: %w", ErrPersist, encErr)
		}
		err = c.storage.Set(ctx, c.key, data)
	}
	if err != nil {
		c.logger.Warn("goSession: persist failed", "key", c.key, "error", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// hydrate loads the persisted snapshot once. It always marks the cell hydrated, even when
// the read fails, so callers never wait on a broken storage.
func (c *cell[T]) hydrate(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	done, touched := c.hydrated, c.touched
	c.mu.RUnlock()
	if done {
		return nil
	}

	var (
		loaded  T
		loadErr error
		healed  bool
	)
	if !touched && c.storage != nil {
		loaded, loadErr = c.read(ctx)
		if c.heal != nil {
			loaded, healed = c.heal(loaded)
		}
	}

	c.mu.Lock()
	if !touched {
		c.value = loaded
	}
	c.hydrated = true
	v := c.value
	c.mu.Unlock()

	if healed {
		c.logger.Info("goSession: discarded dangling persisted session", "key", c.key)
		if err := c.storage.Remove(ctx, c.key); err != nil {
			c.logger.Warn("goSession: remove healed session failed", "key", c.key, "error", err)
		}
	}
	c.notify(v, true)
	return loadErr
}

func (c *cell[T]) read(ctx context.Context) (T, error) {
	var zero T
	data, err := c.storage.Get(ctx, c.key)
	if errors.Is(err, ErrNotFound) {
		return zero, nil
	}
	if err != nil {
		c.logger.Warn("goSession: hydrate read failed", "key", c.key, "error", err)
		return zero, fmt.Errorf("%w: %w", ErrHydrate, err)
	}
	var out T
	if err := c.codec.Decode(data, &out); err != nil {
		c.logger.Warn("goSession: persisted state unreadable, starting empty", "key", c.key, "error", err)
		return zero, nil
	}
	return out, nil
}
