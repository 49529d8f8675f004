package infra

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeClock(start time.Time) (*time.Time, func() time.Time) {
	now := start
	return &now, func() time.Time { return now }
}

func TestCacheSetGet(t *testing.T) {
	c := NewCache(time.Minute)
	c.Set("key1", "value1")

	v, ok := c.Get("key1")
	require.True(t, ok, "expected cache hit")
	assert.Equal(t, "value1", v)

	_, ok = c.Get("nonexistent")
	assert.False(t, ok, "expected cache miss for nonexistent key")
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(time.Minute)
	now, clock := fakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	c.now = clock

	c.Set("key", "val")
	c.SetWithTTL("quick", "val", time.Second)

	*now = now.Add(2 * time.Second)
	_, ok := c.Get("quick")
	assert.False(t, ok, "expected miss after custom TTL expiry")
	_, ok = c.Get("key")
	assert.True(t, ok, "default TTL entry should survive")

	*now = now.Add(2 * time.Minute)
	_, ok = c.Get("key")
	assert.False(t, ok, "expected miss after default TTL expiry")
}

func TestCacheZeroTTLDisables(t *testing.T) {
	c := NewCache(0)
	c.Set("key", "val")
	_, ok := c.Get("key")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCacheInvalidateFlushCleanup(t *testing.T) {
	c := NewCache(time.Hour)
	now, clock := fakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	c.now = clock

	c.Set("a", 1)
	c.Set("b", 2)
	c.Invalidate("a")
	_, ok := c.Get("a")
	assert.False(t, ok, "expected miss after invalidation")

	c.SetWithTTL("short", 3, time.Second)
	*now = now.Add(time.Minute)
	c.Cleanup()
	assert.Equal(t, 1, c.Len(), "only the unexpired entry should survive cleanup")

	c.Flush()
	assert.Equal(t, 0, c.Len())
}

func TestRateLimiterAllowsBurst(t *testing.T) {
	rl := NewRateLimiter(1, 3)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, rl.Wait(ctx), "Wait() #%d", i)
	}
}

func TestRateLimiterCancelledContext(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	require.NoError(t, rl.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.Wait(ctx), "expected error when the next token is far away")
}

func TestNilRateLimiterNeverBlocks(t *testing.T) {
	rl := NewRateLimiter(0, 1)
	assert.Nil(t, rl)
	assert.NoError(t, rl.Wait(context.Background()))
}

func TestSleep(t *testing.T) {
	start := time.Now()
	require.NoError(t, Sleep(context.Background(), 10*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}
