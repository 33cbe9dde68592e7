package database

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// handleCache owns a single cached connection handle. Every get probes the
// cached handle and replaces it with a fresh one when the probe fails.
// Probing and connecting are serialized by conns, which callers wait on
// only as long as their context allows. The slot itself is swapped under
// mu, so a caller never observes a half-initialized handle.
type handleCache[T comparable] struct {
	open    func(ctx context.Context) (T, error)
	setup   func(ctx context.Context, h T) error
	probe   func(ctx context.Context, h T) error
	close   func(h T)
	timeout time.Duration

	// onReconnect is called after a fresh handle has been opened and set up.
	onReconnect func()

	connsOnce sync.Once
	conns     *semaphore.Weighted

	mu     sync.Mutex
	cur    T
	ok     bool
	broken error // sticky schema failure
}

func (c *handleCache[T]) get(ctx context.Context) (T, error) {
	var zero T

	c.connsOnce.Do(func() { c.conns = semaphore.NewWeighted(1) })
	if err := c.conns.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	defer c.conns.Release(1)

	c.mu.Lock()
	cur, ok, broken := c.cur, c.ok, c.broken
	c.mu.Unlock()

	if broken != nil {
		return zero, broken
	}

	if ok {
		pctx, cancel := c.withTimeout(ctx)
		err := c.probe(pctx, cur)
		cancel()
		if err == nil {
			return cur, nil
		}
		c.invalidate(cur)
	}

	octx, cancel := c.withTimeout(ctx)
	defer cancel()

	h, err := c.open(octx)
	if err != nil {
		return zero, err
	}
	if c.setup != nil {
		if err := c.setup(octx, h); err != nil {
			go c.close(h)
			if KindOf(err) == SchemaError {
				c.mu.Lock()
				c.broken = err
				c.mu.Unlock()
			}
			return zero, err
		}
	}

	c.mu.Lock()
	c.cur, c.ok = h, true
	c.mu.Unlock()
	if c.onReconnect != nil {
		c.onReconnect()
	}
	return h, nil
}

// invalidate drops h if it is still the cached handle. A handle that was
// already replaced by a concurrent caller is left alone.
func (c *handleCache[T]) invalidate(h T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ok && c.cur == h {
		c.discardLocked()
	}
}

// reset closes the cached handle, if any.
func (c *handleCache[T]) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ok {
		old := c.cur
		var zero T
		c.cur, c.ok = zero, false
		c.close(old)
	}
}

func (c *handleCache[T]) discardLocked() {
	old := c.cur
	var zero T
	c.cur, c.ok = zero, false
	// Closing can block on in-flight users of the handle; do it off the lock.
	go c.close(old)
}

func (c *handleCache[T]) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
