// Package cache provides the TTL cache shared by every data-fetching adapter.
package cache

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/geohazard-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Name       string `json:"name"`
	Size       int    `json:"size"`
	MaxEntries int    `json:"max_entries"`
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	Evictions  uint64 `json:"evictions"`
}

// Cache is a thread-safe TTL cache with capacity eviction by insertion order.
// Expiry is checked on read; Sweep reclaims expired entries to bound memory.
type Cache struct {
	name       string
	maxEntries int
	clock      clockwork.Clock
	onSweep    func(Stats)

	mu      sync.Mutex
	entries map[string]*entry
	newest  *entry
	oldest  *entry

	hits      uint64
	misses    uint64
	evictions uint64
}

type entry struct {
	key      string
	value    any
	storedAt time.Time
	ttl      time.Duration
	prev     *entry // newer
	next     *entry // older
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.storedAt) > e.ttl
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the real clock, for tests.
func WithClock(c clockwork.Clock) Option {
	return func(cache *Cache) { cache.clock = c }
}

// WithName labels the cache in Stats and metrics.
func WithName(name string) Option {
	return func(cache *Cache) { cache.name = name }
}

// WithSweepHook is called with fresh Stats after every sweep RunSweeper
// performs.
func WithSweepHook(fn func(Stats)) Option {
	return func(cache *Cache) { cache.onSweep = fn }
}

// New creates a cache holding at most maxEntries live entries.
func New(maxEntries int, opts ...Option) *Cache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	c := &Cache{
		maxEntries: maxEntries,
		clock:      clockwork.NewRealClock(),
		entries:    make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the label given by WithName.
func (c *Cache) Name() string { return c.name }

// Get returns the value stored under key, or false on a miss or expiry.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if e.expired(c.clock.Now()) {
		c.unlink(e)
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	c.hits++
	return e.value, true
}

// Set stores value under key for ttl. A non-positive ttl stores nothing and
// drops any existing entry. Overwriting a key counts as a fresh insertion.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.unlink(e)
		delete(c.entries, key)
	}
	if ttl <= 0 {
		return
	}

	e := &entry{key: key, value: value, storedAt: c.clock.Now(), ttl: ttl}
	c.entries[key] = e
	c.pushNewest(e)

	for len(c.entries) > c.maxEntries {
		victim := c.oldest
		c.unlink(victim)
		delete(c.entries, victim.key)
		c.evictions++
	}
}

// Delete removes key if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.unlink(e)
		delete(c.entries, key)
	}
}

// Stats returns current counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Name:       c.name,
		Size:       len(c.entries),
		MaxEntries: c.maxEntries,
		Hits:       c.hits,
		Misses:     c.misses,
		Evictions:  c.evictions,
	}
}

// Sweep removes every expired entry and returns how many were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	removed := 0
	for e := c.oldest; e != nil; {
		prev := e.prev
		if e.expired(now) {
			c.unlink(e)
			delete(c.entries, e.key)
			removed++
		}
		e = prev
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (c *Cache) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			c.Sweep()
			if c.onSweep != nil {
				c.onSweep(c.Stats())
			}
		}
	}
}

func (c *Cache) pushNewest(e *entry) {
	e.prev = nil
	e.next = c.newest
	if c.newest != nil {
		c.newest.prev = e
	}
	c.newest = e
	if c.oldest == nil {
		c.oldest = e
	}
}

func (c *Cache) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.newest = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.oldest = e.prev
	}
	e.prev, e.next = nil, nil
}

// GetAs fetches key and asserts its type. A stored value of the wrong type is
// reported as a CacheError and treated as a miss.
func GetAs[T any](c *Cache, key string) (T, bool, error) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false, nil
	}
	typed, ok := v.(T)
	if !ok {
		c.Delete(key)
		return zero, false, &domain.CacheError{Key: key, Reason: fmt.Sprintf("unexpected value type %T", v)}
	}
	return typed, true, nil
}

// Key builds a deterministic cache key. Coordinates are rounded to three
// decimals (about 100 m) so nearby repeated queries share an entry.
func Key(op string, lat, lon float64, extra ...string) string {
	parts := make([]string, 0, 3+len(extra))
	parts = append(parts, op, roundCoord(lat), roundCoord(lon))
	parts = append(parts, extra...)
	return strings.Join(parts, ":")
}

func roundCoord(v float64) string {
	r := math.Round(v*1000) / 1000
	if r == 0 {
		r = 0 // normalize -0
	}
	return fmt.Sprintf("%.3f", r)
}
