package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	_, ok, err := c.Get(ctx, "films")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "films", []byte(`[{"title":"Amélie"}]`), time.Minute))
	val, ok, err := c.Get(ctx, "films")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `[{"title":"Amélie"}]`, string(val))
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "home", []byte("x"), 30*time.Second))
	require.NoError(t, c.Set(ctx, "pinned", []byte("y"), 0))

	now = now.Add(30 * time.Second)
	_, ok, _ := c.Get(ctx, "home")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "pinned")
	assert.True(t, ok)
}

func TestMemoryCache_CopiesValue(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	buf := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", buf, time.Minute))
	buf[0] = 'z'

	val, _, _ := c.Get(ctx, "k")
	assert.Equal(t, "abc", string(val))
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	_, err := NewRedisCache("127.0.0.1:1", "", 0)
	assert.Error(t, err)
}

func TestMemoryCache_Bounded(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }
	c.maxEntries = 3

	require.NoError(t, c.Set(ctx, "pinned", []byte("p"), 0))
	require.NoError(t, c.Set(ctx, "short", []byte("s"), time.Second))
	require.NoError(t, c.Set(ctx, "long", []byte("l"), time.Hour))

	// Full: the entry closest to expiry goes.
	require.NoError(t, c.Set(ctx, "films?page=2", []byte("f"), time.Minute))
	assert.Equal(t, 3, c.Len())
	_, ok, _ := c.Get(ctx, "short")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "pinned")
	assert.True(t, ok)

	// Overwriting an existing key never evicts.
	require.NoError(t, c.Set(ctx, "long", []byte("l2"), time.Hour))
	assert.Equal(t, 3, c.Len())

	// Expired entries are swept before anything live is evicted.
	now = now.Add(2 * time.Minute)
	require.NoError(t, c.Set(ctx, "a", []byte("a"), time.Hour))
	require.NoError(t, c.Set(ctx, "b", []byte("b"), time.Hour))
	assert.Equal(t, 3, c.Len())
	for _, k := range []string{"pinned", "a", "b"} {
		_, ok, _ = c.Get(ctx, k)
		assert.True(t, ok, k)
	}
	_, ok, _ = c.Get(ctx, "long")
	assert.False(t, ok)
}

func TestMemoryCache_ManyKeysStayBounded(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	c.maxEntries = 50

	for i := range 1000 {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("archive?page=%d", i), []byte("x"), time.Minute))
	}
	assert.Equal(t, 50, c.Len())
}
