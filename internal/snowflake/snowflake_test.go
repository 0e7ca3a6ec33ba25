// ABOUTME: Tests for the snowflake identifier generator
// ABOUTME: Covers bit layout, counter wrap, concurrency, and time decoding

package snowflake

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedGenerator(epoch, now time.Time) *Generator {
	g := New(epoch)
	g.now = func() time.Time { return now }
	return g
}

func TestNext_Layout(t *testing.T) {
	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := epoch.Add(1500 * time.Millisecond)
	g := fixedGenerator(epoch, now)

	first := g.Next()
	second := g.Next()

	assert.Equal(t, int64(1500)<<16, first)
	assert.Equal(t, int64(1500)<<16|1, second)
	assert.Equal(t, uint16(0), Sequence(first))
	assert.Equal(t, uint16(1), Sequence(second))
	assert.True(t, Time(first, epoch).Equal(now))
}

func TestNext_CounterWrapsWithoutTouchingTimestamp(t *testing.T) {
	epoch := DefaultEpoch
	now := epoch.Add(42 * time.Millisecond)
	g := fixedGenerator(epoch, now)
	g.counter.Store(1<<16 - 1)

	last := g.Next()
	wrapped := g.Next()

	assert.Equal(t, int64(42)<<16|0xFFFF, last)
	assert.Equal(t, int64(42)<<16, wrapped)
	assert.Greater(t, wrapped, int64(0))
}

func TestNext_CounterSurvivesUint32Overflow(t *testing.T) {
	epoch := DefaultEpoch
	g := fixedGenerator(epoch, epoch.Add(time.Second))
	g.counter.Store(^uint32(0))

	id := g.Next()
	assert.Equal(t, int64(1000)<<16|0xFFFF, id)
	assert.Equal(t, int64(1000)<<16, g.Next())
}

func TestNext_ConcurrentCallsAreDistinct(t *testing.T) {
	epoch := DefaultEpoch
	// Freeze the clock so only the counter distinguishes ids.
	g := fixedGenerator(epoch, epoch.Add(time.Hour))

	const workers = 16
	const perWorker = 1000

	var mu sync.Mutex
	seen := make(map[int64]struct{}, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, g.Next())
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}

func TestNext_OrderedAcrossMilliseconds(t *testing.T) {
	epoch := DefaultEpoch
	now := epoch.Add(10 * time.Millisecond)
	g := New(epoch)
	g.now = func() time.Time { return now }

	a := g.Next()
	now = now.Add(time.Millisecond)
	g.counter.Store(0)
	b := g.Next()

	assert.Less(t, a, b)
}

func TestNew_ZeroEpochUsesDefault(t *testing.T) {
	g := New(time.Time{})
	require.True(t, g.Epoch().Equal(DefaultEpoch))
	assert.Greater(t, g.Next(), int64(0))
}
