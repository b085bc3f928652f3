// Package cache is the process-local read cache for day task lists.
//
// Entries are keyed by (user, date, includeArchived) and bounded by both a
// TTL and a maximum entry count. When full, the oldest inserted entry is
// evicted. The cache never returns errors: anything unexpected is a miss.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/josephgoksu/dayplan/internal/config"
	"github.com/josephgoksu/dayplan/internal/task"
)

// Options configures New.
type Options struct {
	Enabled       bool
	MaxEntries    int
	TTL           time.Duration
	SweepInterval time.Duration
}

// Key identifies one cached list.
type Key struct {
	User            string
	Date            string
	IncludeArchived bool
}

type entry struct {
	tasks     []task.Task
	createdAt time.Time
	expiresAt time.Time
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Enabled    bool   `json:"enabled"`
	Entries    int    `json:"entries"`
	MaxEntries int    `json:"maxEntries"`
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	Evictions  uint64 `json:"evictions"`
	Expired    uint64 `json:"expired"`
}

// Cache is safe for concurrent use.
type Cache struct {
	opts Options

	// lru is nil when the cache is disabled. Lookups use Peek so recency is
	// never updated and eviction follows insertion order.
	lru *lru.Cache[Key, entry]

	// mu serializes writers so a generation check and the insert that follows
	// it can't interleave with an invalidation. Readers don't take it.
	mu sync.Mutex
	// generations holds a stamp from epoch for every user invalidated since
	// their last entry was swept. Users without a stamp read floor, which is
	// never lower than any stamp Cleanup has dropped, so a fill that started
	// before a dropped invalidation still fails its SetIfCurrent check.
	generations map[string]uint64
	epoch       uint64
	floor       uint64

	hits, misses, evictions, expired atomic.Uint64

	now func() time.Time
}

// New builds a cache. A disabled cache is a pass-through: Get always misses
// and every write is a no-op.
func New(opts Options) *Cache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = config.DefaultCacheMaxEntries
	}
	if opts.TTL <= 0 {
		opts.TTL = config.DefaultCacheTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = config.DefaultCacheSweepInterval
	}

	c := &Cache{
		opts:        opts,
		generations: make(map[string]uint64),
		now:         time.Now,
	}
	if opts.Enabled {
		// Only fails for a non-positive size, which is ruled out above.
		c.lru, _ = lru.New[Key, entry](opts.MaxEntries)
	}
	return c
}

// Enabled reports whether the cache stores anything.
func (c *Cache) Enabled() bool { return c.lru != nil }

// Get returns a copy of the cached list for the key, or false on a miss.
// Expired entries are dropped on lookup.
func (c *Cache) Get(user, date string, includeArchived bool) ([]task.Task, bool) {
	if c.lru == nil {
		return nil, false
	}
	key := Key{User: user, Date: date, IncludeArchived: includeArchived}
	e, ok := c.lru.Peek(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		c.removeExpired(key)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return task.CloneAll(e.tasks), true
}

func (c *Cache) removeExpired(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Re-check: a writer may have replaced the entry after our Peek.
	if e, ok := c.lru.Peek(key); ok && !c.now().Before(e.expiresAt) {
		c.lru.Remove(key)
		c.expired.Add(1)
	}
}

// Set inserts or overwrites the list for the key. ttl <= 0 uses the
// configured TTL. An overwrite counts as a fresh insertion.
func (c *Cache) Set(user, date string, tasks []task.Task, includeArchived bool, ttl time.Duration) {
	if c.lru == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insert(Key{User: user, Date: date, IncludeArchived: includeArchived}, tasks, ttl)
}

// Generation returns the user's invalidation counter. Read it before fetching
// from the backend and pass it to SetIfCurrent.
func (c *Cache) Generation(user string) uint64 {
	if c.lru == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generationLocked(user)
}

func (c *Cache) generationLocked(user string) uint64 {
	if g, ok := c.generations[user]; ok {
		return g
	}
	return c.floor
}

// SetIfCurrent behaves like Set unless the user was invalidated after gen was
// read, in which case the list may predate a mutation and is dropped.
// It reports whether the list was stored.
func (c *Cache) SetIfCurrent(gen uint64, user, date string, tasks []task.Task, includeArchived bool, ttl time.Duration) bool {
	if c.lru == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generationLocked(user) != gen {
		return false
	}
	c.insert(Key{User: user, Date: date, IncludeArchived: includeArchived}, tasks, ttl)
	return true
}

// insert must be called with mu held.
func (c *Cache) insert(key Key, tasks []task.Task, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.opts.TTL
	}
	now := c.now()
	// Remove first so an overwrite moves to the back of the eviction queue.
	c.lru.Remove(key)
	if evicted := c.lru.Add(key, entry{
		tasks:     task.CloneAll(tasks),
		createdAt: now,
		expiresAt: now.Add(ttl),
	}); evicted {
		c.evictions.Add(1)
	}
}

// InvalidateUser removes the user's entries for date, or every entry of the
// user when date is empty. Both archive variants of a date are removed.
func (c *Cache) InvalidateUser(user, date string) {
	if c.lru == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.generations[user] = c.epoch
	for _, k := range c.lru.Keys() {
		if k.User != user {
			continue
		}
		if date != "" && k.Date != date {
			continue
		}
		c.lru.Remove(k)
	}
}

// Cleanup removes every expired entry and returns how many were dropped.
// It also drops the generation stamp of every user left without entries, so
// the stamp map stays bounded by the users currently cached plus those
// invalidated since the last sweep.
func (c *Cache) Cleanup() int {
	if c.lru == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	// Keys returns a snapshot, so removal while ranging is safe.
	for _, k := range c.lru.Keys() {
		e, ok := c.lru.Peek(k)
		if ok && !now.Before(e.expiresAt) {
			c.lru.Remove(k)
			removed++
		}
	}
	c.expired.Add(uint64(removed))

	live := make(map[string]struct{})
	for _, k := range c.lru.Keys() {
		live[k.User] = struct{}{}
	}
	for user, g := range c.generations {
		if _, ok := live[user]; ok {
			continue
		}
		if g > c.floor {
			c.floor = g
		}
		delete(c.generations, user)
	}
	return removed
}

// Run sweeps expired entries every SweepInterval until ctx is done.
func (c *Cache) Run(ctx context.Context) {
	if c.lru == nil {
		return
	}
	ticker := time.NewTicker(c.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Cleanup()
		}
	}
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	if c.lru == nil {
		return 0
	}
	return c.lru.Len()
}

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Enabled:    c.lru != nil,
		Entries:    c.Len(),
		MaxEntries: c.opts.MaxEntries,
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Evictions:  c.evictions.Load(),
		Expired:    c.expired.Load(),
	}
}
