package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Entry is one cached response body.
type Entry struct {
	Key      string
	Value    []byte
	StoredAt time.Time
	TTL      time.Duration
}

// Valid reports whether the entry may still be served at now.
func (e *Entry) Valid(now time.Time) bool {
	return now.Before(e.StoredAt.Add(e.TTL))
}

// FetchFunc produces a fresh value on a cache miss.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Cache is a thread-safe TTL cache of response bodies.
type Cache struct {
	mu   sync.RWMutex
	data map[string]*Entry
	now  func() time.Time

	dedupe bool
	group  singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithInflightDedupe makes concurrent misses on one key share a single fetch.
func WithInflightDedupe(on bool) Option {
	return func(c *Cache) { c.dedupe = on }
}

// New creates an empty Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		data: make(map[string]*Entry),
		now:  time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Key derives the cache key for a route and its raw query string.
func Key(route, rawQuery string) string {
	return route + "?" + rawQuery
}

// Get returns the entry for key if present and not expired.
func (c *Cache) Get(key string) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.data[key]
	if !ok || !e.Valid(c.now()) {
		return nil, false
	}
	return e, true
}

// Put stores value under key, replacing any previous entry.
// Callers must not modify value after calling Put.
func (c *Cache) Put(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = &Entry{
		Key:      key,
		Value:    value,
		StoredAt: c.now(),
		TTL:      ttl,
	}
}

// GetOrFetch returns the cached value for (route, rawQuery) or calls fetch
// and stores its result for ttl. hit reports whether fetch was skipped.
// Errors from fetch are returned as-is and nothing is stored.
func (c *Cache) GetOrFetch(ctx context.Context, route, rawQuery string, ttl time.Duration, fetch FetchFunc) (value []byte, hit bool, err error) {
	key := Key(route, rawQuery)
	if e, ok := c.Get(key); ok {
		return e.Value, true, nil
	}

	if !c.dedupe {
		v, err := c.fill(ctx, key, ttl, fetch)
		return v, false, err
	}

	type result struct {
		value []byte
		hit   bool
	}
	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		// A flight that finished between Get and Do has already stored it.
		if e, ok := c.Get(key); ok {
			return result{value: e.Value, hit: true}, nil
		}
		// The flight is shared, so it ignores any one caller's cancellation.
		v, err := c.fill(context.WithoutCancel(ctx), key, ttl, fetch)
		return result{value: v}, err
	})
	if err != nil {
		return nil, false, err
	}
	r := res.(result)
	return r.value, r.hit, nil
}

func (c *Cache) fill(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) ([]byte, error) {
	v, err := fetch(ctx)
	if err != nil {
		slog.Debug("cache: fetch failed, not stored", "key", key, "err", err)
		return nil, err
	}
	c.Put(key, v, ttl)
	slog.Debug("cache: stored", "key", key, "ttl", ttl, "bytes", len(v))
	return v, nil
}

// Count returns the number of entries held, including expired ones.
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Evict removes entries that are no longer valid at now and returns how many
// were removed.
func (c *Cache) Evict(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.data {
		if !e.Valid(now) {
			delete(c.data, k)
			removed++
		}
	}
	return removed
}

// Run drops expired entries every interval until ctx is cancelled. It only
// frees memory; Get never serves an expired entry whether or not Run is active.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := c.Evict(c.now()); n > 0 {
				slog.Debug("cache: evicted expired entries", "count", n)
			}
		}
	}
}
