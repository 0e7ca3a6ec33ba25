// ABOUTME: Tests for the generic TTL cache
// ABOUTME: Validates expiration, size limits, eviction order, cleanup, and concurrency safety

package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(ttl time.Duration, size int) (*Cache[int64, string], *clock) {
	clk := &clock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New[int64, string](ttl, size)
	c.now = clk.Now
	return c, clk
}

func TestCache_GetMissing(t *testing.T) {
	c, _ := newTestCache(time.Minute, 10)
	defer c.Close()

	_, ok := c.Get(1)
	assert.False(t, ok)
}

func TestCache_PutGet(t *testing.T) {
	c, _ := newTestCache(time.Minute, 10)
	defer c.Close()

	c.Put(1, "alice")
	v, ok := c.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "alice", v)

	c.Put(1, "alice2")
	v, _ = c.Get(1)
	assert.Equal(t, "alice2", v)
	assert.Equal(t, 1, c.Len())
}

func TestCache_Expired(t *testing.T) {
	c, clk := newTestCache(time.Minute, 10)
	defer c.Close()

	c.Put(1, "alice")
	clk.Advance(time.Minute)

	_, ok := c.Get(1)
	assert.False(t, ok)
}

func TestCache_EvictsOldest(t *testing.T) {
	c, _ := newTestCache(time.Minute, 2)
	defer c.Close()

	c.Put(1, "a")
	c.Put(2, "b")
	c.Put(3, "c")

	_, ok := c.Get(1)
	assert.False(t, ok, "oldest entry should be evicted")
	_, ok = c.Get(3)
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestCache_RefreshMovesToBack(t *testing.T) {
	c, _ := newTestCache(time.Minute, 2)
	defer c.Close()

	c.Put(1, "a")
	c.Put(2, "b")
	c.Put(1, "a")
	c.Put(3, "c")

	_, ok := c.Get(2)
	assert.False(t, ok)
	_, ok = c.Get(1)
	assert.True(t, ok)
}

func TestCache_RunCleanup(t *testing.T) {
	c, clk := newTestCache(time.Minute, 10)
	defer c.Close()

	c.Put(1, "a")
	clk.Advance(30 * time.Second)
	c.Put(2, "b")
	clk.Advance(45 * time.Second)

	c.runCleanup()
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get(2)
	assert.True(t, ok)
}

func TestCache_CloseIdempotent(t *testing.T) {
	c, _ := newTestCache(time.Minute, 10)
	c.Close()
	c.Close()
}

func TestCache_Concurrent(t *testing.T) {
	c, _ := newTestCache(time.Minute, 100)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := int64((i*200 + j) % 150)
				c.Put(key, "v")
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 100)
}
