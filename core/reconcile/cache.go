package reconcile

import (
	"context"
	"sync"
	"time"

	"inventory-sync/core/graph"

	"golang.org/x/sync/singleflight"
)

// snapshotEntry is a loaded graph and the time it was loaded.
type snapshotEntry struct {
	graph *graph.Graph
	built time.Time
}

func (e *snapshotEntry) expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(e.built) > ttl
}

// CachedAdapter decorates an adapter with a time-bounded snapshot cache.
// Concurrent loads of an expired snapshot share a single backend load, and
// every successful write drops the cached snapshot.
type CachedAdapter struct {
	inner Adapter
	ttl   time.Duration
	now   func() time.Time

	mu    sync.RWMutex
	entry *snapshotEntry
	gen   uint64
	sf    singleflight.Group
}

// NewCachedAdapter wraps inner. A ttl of zero or less disables caching.
func NewCachedAdapter(inner Adapter, ttl time.Duration) *CachedAdapter {
	return &CachedAdapter{inner: inner, ttl: ttl, now: time.Now}
}

// Name returns the name of the wrapped adapter.
func (c *CachedAdapter) Name() string { return c.inner.Name() }

// Unwrap returns the wrapped adapter.
func (c *CachedAdapter) Unwrap() Adapter { return c.inner }

// Load returns a copy of the cached snapshot, loading it when missing or expired.
func (c *CachedAdapter) Load(ctx context.Context) (*graph.Graph, error) {
	if c.ttl <= 0 {
		return c.inner.Load(ctx)
	}

	// Fast path
	c.mu.RLock()
	entry := c.entry
	c.mu.RUnlock()
	if entry != nil && !entry.expired(c.ttl, c.now()) {
		return entry.graph.Clone(), nil
	}

	result, err, _ := c.sf.Do("load", func() (any, error) {
		c.mu.RLock()
		entry, gen := c.entry, c.gen
		c.mu.RUnlock()
		if entry != nil && !entry.expired(c.ttl, c.now()) {
			return entry.graph, nil
		}

		g, err := c.inner.Load(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		// A write during the load makes the result stale.
		if c.gen == gen {
			c.entry = &snapshotEntry{graph: g, built: c.now()}
		}
		c.mu.Unlock()
		return g, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*graph.Graph).Clone(), nil
}

// Create forwards to the wrapped adapter and invalidates on success.
func (c *CachedAdapter) Create(ctx context.Context, t graph.EntityType, key graph.NaturalKey, attrs graph.Attributes) (graph.Entity, error) {
	e, err := c.inner.Create(ctx, t, key, attrs)
	if err == nil {
		c.Invalidate()
	}
	return e, err
}

// Update forwards to the wrapped adapter and invalidates on success.
func (c *CachedAdapter) Update(ctx context.Context, entity graph.Entity, changed graph.Attributes) (graph.Entity, error) {
	e, err := c.inner.Update(ctx, entity, changed)
	if err == nil {
		c.Invalidate()
	}
	return e, err
}

// Delete forwards to the wrapped adapter and invalidates on success.
func (c *CachedAdapter) Delete(ctx context.Context, entity graph.Entity) error {
	err := c.inner.Delete(ctx, entity)
	if err == nil {
		c.Invalidate()
	}
	return err
}

// Prepare forwards to the wrapped adapter when it implements Preparer.
func (c *CachedAdapter) Prepare(ctx context.Context) error {
	if p, ok := c.inner.(Preparer); ok {
		return p.Prepare(ctx)
	}
	return nil
}

// Flush forwards to the wrapped adapter when it implements Flusher.
func (c *CachedAdapter) Flush(ctx context.Context) error {
	if f, ok := c.inner.(Flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}

// Invalidate drops the cached snapshot.
func (c *CachedAdapter) Invalidate() {
	c.mu.Lock()
	c.entry = nil
	c.gen++
	c.mu.Unlock()
}
