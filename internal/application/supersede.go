package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// QueryCoordinator lets a newer query cancel an older in-flight query that
// shares its key, such as repeated availability lookups while a user is still
// editing the seat count.
type QueryCoordinator struct {
	mu       sync.Mutex
	seq      uint64
	inflight map[string]inflightQuery
}

type inflightQuery struct {
	id     uint64
	cancel context.CancelCauseFunc
}

// NewQueryCoordinator returns an empty coordinator.
func NewQueryCoordinator() *QueryCoordinator {
	return &QueryCoordinator{inflight: make(map[string]inflightQuery)}
}

// Begin registers a query under key and cancels the previous holder of the key
// with cause ErrSuperseded. The returned done func must be called when the
// query finishes. An empty key opts out of coordination.
func (c *QueryCoordinator) Begin(ctx context.Context, key string) (context.Context, func()) {
	if c == nil || key == "" {
		return ctx, func() {}
	}

	queryCtx, cancel := context.WithCancelCause(ctx)

	c.mu.Lock()
	c.seq++
	id := c.seq
	if previous, ok := c.inflight[key]; ok {
		previous.cancel(ErrSuperseded)
	}
	c.inflight[key] = inflightQuery{id: id, cancel: cancel}
	c.mu.Unlock()

	done := func() {
		c.mu.Lock()
		if current, ok := c.inflight[key]; ok && current.id == id {
			delete(c.inflight, key)
		}
		c.mu.Unlock()
		cancel(nil)
	}
	return queryCtx, done
}

// InFlight reports how many keys currently have a running query.
func (c *QueryCoordinator) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}

// supersededCause reports err as ErrSuperseded when ctx was cancelled by a
// newer query, so callers see why their lookup stopped.
func supersededCause(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, ErrSuperseded) {
		return err
	}
	if errors.Is(context.Cause(ctx), ErrSuperseded) {
		return fmt.Errorf("%w: %v", ErrSuperseded, err)
	}
	return err
}
