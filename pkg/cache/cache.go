// Package cache holds the in-memory caches used by the upstream clients:
// a TTL map for small lookups such as chain metadata and a bounded LRU for
// contract sources. Concurrent misses on the same key share one load.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Recorder receives hit/miss observations
type Recorder interface {
	RecordCacheLookup(ctx context.Context, cache string, hit bool)
}

// LoadTimeout bounds a shared load once it no longer follows the
// caller's cancellation
const LoadTimeout = 2 * time.Minute

// Loader produces the value for a missing key
type Loader[V any] func(ctx context.Context) (V, error)

type entry[V any] struct {
	value   V
	expires time.Time
}

// TTL is a string-keyed cache whose entries expire after a fixed duration
type TTL[V any] struct {
	name     string
	ttl      time.Duration
	recorder Recorder
	now      func() time.Time

	mu      sync.RWMutex
	entries map[string]entry[V]
	group   singleflight.Group
}

// NewTTL creates a TTL cache. recorder may be nil.
func NewTTL[V any](name string, ttl time.Duration, recorder Recorder) *TTL[V] {
	return &TTL[V]{
		name:     name,
		ttl:      ttl,
		recorder: recorder,
		now:      time.Now,
		entries:  make(map[string]entry[V]),
	}
}

// Peek returns a live entry without loading
func (c *TTL[V]) Peek(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expires) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, expires: c.now().Add(c.ttl)}
}

// Delete drops key
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Get returns the cached value for key or runs load once for all
// concurrent callers. Failed loads are not cached.
func (c *TTL[V]) Get(ctx context.Context, key string, load Loader[V]) (V, error) {
	if v, ok := c.Peek(key); ok {
		c.record(ctx, true)
		return v, nil
	}
	c.record(ctx, false)

	return shared(ctx, &c.group, c.name, key, func(ctx context.Context) (V, error) {
		if v, ok := c.Peek(key); ok {
			return v, nil
		}
		v, err := load(ctx)
		if err != nil {
			return v, err
		}
		c.Set(key, v)
		return v, nil
	})
}

// Len counts entries, expired ones included
func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *TTL[V]) record(ctx context.Context, hit bool) {
	if c.recorder != nil {
		c.recorder.RecordCacheLookup(ctx, c.name, hit)
	}
}

// LRU is a size-bounded cache with per-entry expiry
type LRU[V any] struct {
	name     string
	recorder Recorder
	lru      *lru.LRU[string, V]
	group    singleflight.Group
}

// NewLRU creates an LRU holding at most size entries for ttl each
func NewLRU[V any](name string, size int, ttl time.Duration, recorder Recorder) *LRU[V] {
	return &LRU[V]{
		name:     name,
		recorder: recorder,
		lru:      lru.NewLRU[string, V](size, nil, ttl),
	}
}

// Get returns the cached value for key or loads it
func (c *LRU[V]) Get(ctx context.Context, key string, load Loader[V]) (V, error) {
	if v, ok := c.lru.Get(key); ok {
		c.record(ctx, true)
		return v, nil
	}
	c.record(ctx, false)

	return shared(ctx, &c.group, c.name, key, func(ctx context.Context) (V, error) {
		if v, ok := c.lru.Peek(key); ok {
			return v, nil
		}
		v, err := load(ctx)
		if err != nil {
			return v, err
		}
		c.lru.Add(key, v)
		return v, nil
	})
}

// Len returns the number of live entries
func (c *LRU[V]) Len() int { return c.lru.Len() }

func (c *LRU[V]) record(ctx context.Context, hit bool) {
	if c.recorder != nil {
		c.recorder.RecordCacheLookup(ctx, c.name, hit)
	}
}

// shared runs load once per key for all concurrent callers. The load is
// detached from the first caller's cancellation so one caller giving up
// does not fail the others; each caller still returns as soon as its own
// ctx is done.
func shared[V any](ctx context.Context, group *singleflight.Group, name, key string, load Loader[V]) (V, error) {
	ch := group.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), LoadTimeout)
		defer cancel()
		return load(loadCtx)
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(V)
		if !ok {
			return zero, fmt.Errorf("cache %s: unexpected value type %T", name, res.Val)
		}
		return v, nil
	}
}
