package inflight

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/Fantom-foundation/rangeview/inter/source"
)

// FetchFn performs the actual fetch. ctx is cancelled once every caller waiting
// for the result has given up.
type FetchFn func(ctx context.Context) ([]source.Item, error)

type call struct {
	waiters int
	cancel  context.CancelFunc
	ctx     context.Context
}

// Table deduplicates concurrent fetches of identical chunks.
// Once a fetch settles (successfully or not) its key is forgotten, so a failed fetch may be retried.
type Table struct {
	group singleflight.Group
	base  context.Context

	mu    sync.Mutex
	calls map[string]*call
}

// New creates an empty Table. Fetches are bound to base.
func New(base context.Context) *Table {
	return &Table{
		base:  base,
		calls: make(map[string]*call),
	}
}

// Do runs fn unless a fetch for the same key is already in flight, in which case
// its result is shared. shared reports whether the result was delivered to multiple callers.
// If ctx ends first, Do returns ctx.Err(). The fetch keeps going while other callers wait for it.
func (t *Table) Do(ctx context.Context, key string, fn FetchFn) (items []source.Item, shared bool, err error) {
	t.mu.Lock()
	c, ok := t.calls[key]
	if !ok {
		c = &call{}
		c.ctx, c.cancel = context.WithCancel(t.base)
		t.calls[key] = c
	}
	c.waiters++
	fetchCtx := c.ctx
	ch := t.group.DoChan(key, func() (interface{}, error) {
		return fn(fetchCtx)
	})
	t.mu.Unlock()

	select {
	case res := <-ch:
		t.release(key, c, true)
		if res.Err != nil {
			return nil, res.Shared, res.Err
		}
		return res.Val.([]source.Item), res.Shared, nil
	case <-ctx.Done():
		t.release(key, c, false)
		return nil, false, ctx.Err()
	}
}

func (t *Table) release(key string, c *call, settled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c.waiters--
	if c.waiters > 0 {
		return
	}
	if !settled {
		// nobody waits for the result anymore, abort it
		t.group.Forget(key)
	}
	c.cancel()
	if t.calls[key] == c {
		delete(t.calls, key)
	}
}

// Has is true if a fetch for the key is being awaited.
func (t *Table) Has(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.calls[key]
	return ok
}

// Len returns the number of distinct keys being fetched.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}
