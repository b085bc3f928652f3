package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/josephgoksu/dayplan/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(t *testing.T, maxEntries int, ttl time.Duration) (*Cache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)}
	c := New(Options{Enabled: true, MaxEntries: maxEntries, TTL: ttl})
	c.now = clock.Now
	return c, clock
}

func list(texts ...string) []task.Task {
	out := make([]task.Task, len(texts))
	for i, s := range texts {
		out[i] = task.Task{ID: int64(i + 1), Text: s}
	}
	return out
}

func TestCache_GetSet(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Minute)

	_, ok := c.Get("u1", "2025-03-14", false)
	assert.False(t, ok)

	c.Set("u1", "2025-03-14", list("a", "b"), false, 0)
	got, ok := c.Get("u1", "2025-03-14", false)
	require.True(t, ok)
	assert.Len(t, got, 2)

	// The archive flag is part of the key.
	_, ok = c.Get("u1", "2025-03-14", true)
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(2), stats.Misses)
}

func TestCache_ReturnsCopies(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Minute)
	src := list("a")
	c.Set("u1", "d", src, false, 0)
	src[0].Text = "mutated by caller"

	got, _ := c.Get("u1", "d", false)
	got[0].Text = "mutated by reader"

	again, _ := c.Get("u1", "d", false)
	assert.Equal(t, "a", again[0].Text)
}

func TestCache_TTLExpiry(t *testing.T) {
	c, clock := newTestCache(t, 10, time.Minute)
	c.Set("u1", "d", list("a"), false, 0)
	c.Set("u1", "short", list("b"), false, 10*time.Second)

	clock.Advance(10 * time.Second)
	_, ok := c.Get("u1", "short", false)
	assert.False(t, ok, "expires exactly at its deadline")
	_, ok = c.Get("u1", "d", false)
	assert.True(t, ok)

	clock.Advance(time.Minute)
	_, ok = c.Get("u1", "d", false)
	assert.False(t, ok)
	assert.Zero(t, c.Len(), "expired entries are dropped on lookup")
	assert.Equal(t, uint64(2), c.Stats().Expired)
}

func TestCache_EvictsOldestInserted(t *testing.T) {
	c, _ := newTestCache(t, 2, time.Minute)
	c.Set("u1", "d1", list("a"), false, 0)
	c.Set("u1", "d2", list("b"), false, 0)

	// Reads don't refresh an entry's place in line.
	_, ok := c.Get("u1", "d1", false)
	require.True(t, ok)

	c.Set("u1", "d3", list("c"), false, 0)
	_, ok = c.Get("u1", "d1", false)
	assert.False(t, ok, "oldest insertion evicted despite the recent read")
	_, ok = c.Get("u1", "d2", false)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestCache_OverwriteCountsAsFreshInsertion(t *testing.T) {
	c, _ := newTestCache(t, 2, time.Minute)
	c.Set("u1", "d1", list("a"), false, 0)
	c.Set("u1", "d2", list("b"), false, 0)
	c.Set("u1", "d1", list("a2"), false, 0)

	c.Set("u1", "d3", list("c"), false, 0)
	_, ok := c.Get("u1", "d2", false)
	assert.False(t, ok)
	got, ok := c.Get("u1", "d1", false)
	require.True(t, ok)
	assert.Equal(t, "a2", got[0].Text)
}

func TestCache_InvalidateUser(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Minute)
	c.Set("u1", "d1", list("a"), false, 0)
	c.Set("u1", "d1", list("a"), true, 0)
	c.Set("u1", "d2", list("b"), false, 0)
	c.Set("u2", "d1", list("c"), false, 0)

	c.InvalidateUser("u1", "d1")
	_, ok := c.Get("u1", "d1", false)
	assert.False(t, ok)
	_, ok = c.Get("u1", "d1", true)
	assert.False(t, ok, "both archive variants go")
	_, ok = c.Get("u1", "d2", false)
	assert.True(t, ok)

	c.InvalidateUser("u1", "")
	_, ok = c.Get("u1", "d2", false)
	assert.False(t, ok)
	_, ok = c.Get("u2", "d1", false)
	assert.True(t, ok, "other users are untouched")
}

func TestCache_SetIfCurrentDropsStaleFill(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Minute)

	gen := c.Generation("u1")
	// A mutation lands while the reader is still fetching.
	c.InvalidateUser("u1", "d1")

	assert.False(t, c.SetIfCurrent(gen, "u1", "d1", list("stale"), false, 0))
	_, ok := c.Get("u1", "d1", false)
	assert.False(t, ok)

	gen = c.Generation("u1")
	assert.True(t, c.SetIfCurrent(gen, "u1", "d1", list("fresh"), false, 0))
	got, ok := c.Get("u1", "d1", false)
	require.True(t, ok)
	assert.Equal(t, "fresh", got[0].Text)
}

func TestCache_Cleanup(t *testing.T) {
	c, clock := newTestCache(t, 10, time.Minute)
	c.Set("u1", "d1", list("a"), false, 0)
	c.Set("u1", "d2", list("b"), false, 2*time.Minute)

	clock.Advance(90 * time.Second)
	assert.Equal(t, 1, c.Cleanup())
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 0, c.Cleanup())
}

func TestCache_Disabled(t *testing.T) {
	c := New(Options{Enabled: false})
	assert.False(t, c.Enabled())

	c.Set("u1", "d", list("a"), false, 0)
	_, ok := c.Get("u1", "d", false)
	assert.False(t, ok)
	assert.False(t, c.SetIfCurrent(c.Generation("u1"), "u1", "d", list("a"), false, 0))
	c.InvalidateUser("u1", "")
	assert.Zero(t, c.Cleanup())

	stats := c.Stats()
	assert.False(t, stats.Enabled)
	assert.Zero(t, stats.Entries)
	assert.Zero(t, stats.Misses, "a disabled cache keeps no counters")
}

func TestCache_RunStopsOnCancel(t *testing.T) {
	c := New(Options{Enabled: true, SweepInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestCache_CleanupDropsIdleGenerations(t *testing.T) {
	c, clock := newTestCache(t, 10, time.Minute)
	c.Set("u2", "d1", list("b"), false, 0)
	c.InvalidateUser("u1", "")
	c.InvalidateUser("u2", "d2")
	require.Len(t, c.generations, 2)

	c.Cleanup()
	assert.Len(t, c.generations, 1, "u1 has nothing cached")
	assert.Contains(t, c.generations, "u2")

	clock.Advance(2 * time.Minute)
	c.Cleanup()
	assert.Empty(t, c.generations)
}

func TestCache_SetIfCurrentAfterGenerationDropped(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Minute)

	// A fill starts, a mutation lands, then a sweep forgets the user.
	gen := c.Generation("u1")
	c.InvalidateUser("u1", "")
	c.Cleanup()
	require.Empty(t, c.generations)

	assert.False(t, c.SetIfCurrent(gen, "u1", "d1", list("stale"), false, 0))

	gen = c.Generation("u1")
	assert.True(t, c.SetIfCurrent(gen, "u1", "d1", list("fresh"), false, 0))
}

func TestCache_ConcurrentAccess(t *testing.T) {
	const maxEntries = 8
	c := New(Options{Enabled: true, MaxEntries: maxEntries, TTL: time.Millisecond})

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", g%4)
			for i := 0; i < 200; i++ {
				date := fmt.Sprintf("2025-03-%02d", 1+i%20)
				switch i % 5 {
				case 0, 1:
					c.Set(user, date, list("a", "b"), i%2 == 0, 0)
				case 2:
					if got, ok := c.Get(user, date, false); ok {
						assert.Len(t, got, 2)
					}
				case 3:
					gen := c.Generation(user)
					c.SetIfCurrent(gen, user, date, list("a", "b"), false, 0)
				case 4:
					if g%2 == 0 {
						c.InvalidateUser(user, date)
					} else {
						c.Cleanup()
					}
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), maxEntries)
	assert.LessOrEqual(t, c.Stats().Entries, maxEntries)
}
