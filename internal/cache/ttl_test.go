package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestTTL_GetSet(t *testing.T) {
	c := NewTTL[string](time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", "v")
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	c.Set("k", "v2")
	v, _ = c.Get("k")
	assert.Equal(t, "v2", v)
}

func TestTTL_Expiry(t *testing.T) {
	clock := newFakeClock()
	c := NewTTL[int](5*time.Minute, WithClock(clock.Now))

	c.Set("k", 1)

	clock.Advance(4*time.Minute + 59*time.Second)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	clock.Advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry at exactly ttl age is expired")

	// Expired entries are kept until overwritten
	assert.Equal(t, Stats{Entries: 1, Valid: 0}, c.Stats())

	c.Set("k", 2)
	v, ok = c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestTTL_Clear(t *testing.T) {
	c := NewTTL[int](time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Clear()
	_, ok = c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, Stats{}, c.Stats())
}

func TestTTL_DefaultTTL(t *testing.T) {
	c := NewTTL[int](0)
	assert.Equal(t, DefaultTTL, c.TTL())
}

func TestTTL_SameSliceReturned(t *testing.T) {
	c := NewTTL[[]string](time.Minute)
	in := []string{"a", "b"}
	c.Set("k", in)

	out, ok := c.Get("k")
	require.True(t, ok)
	assert.Same(t, &in[0], &out[0])
}

func TestTTL_ConcurrentAccess(t *testing.T) {
	c := NewTTL[int](time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			c.Set(key, i)
			c.Get(key)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, c.Stats().Entries)
}
