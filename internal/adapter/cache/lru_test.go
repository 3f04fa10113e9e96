package cache

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_GetPut(t *testing.T) {
	ctx := context.Background()
	c := NewLRU[string](3, 0, nil)

	c.Put(ctx, "a", "alpha")
	got, ok := c.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, "alpha", got)

	_, ok = c.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewLRU[int](2, 0, nil)

	c.Put(ctx, "a", 1)
	c.Put(ctx, "b", 2)
	c.Get(ctx, "a") // a is now most recent
	c.Put(ctx, "c", 3)

	_, ok := c.Get(ctx, "b")
	assert.False(t, ok, "b should have been evicted")
	_, ok = c.Get(ctx, "a")
	assert.True(t, ok)
	_, ok = c.Get(ctx, "c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestLRU_UpdateExisting(t *testing.T) {
	ctx := context.Background()
	c := NewLRU[int](2, 0, nil)

	c.Put(ctx, "a", 1)
	c.Put(ctx, "a", 10)

	got, ok := c.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, 10, got)
	assert.Equal(t, 1, c.Len())
}

func TestLRU_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	fc := clockwork.NewFakeClock()
	c := NewLRU[int](10, time.Minute, fc)

	c.Put(ctx, "a", 1)
	fc.Advance(59 * time.Second)
	_, ok := c.Get(ctx, "a")
	assert.True(t, ok)

	fc.Advance(2 * time.Second)
	_, ok = c.Get(ctx, "a")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestLRU_SingleEntry(t *testing.T) {
	ctx := context.Background()
	c := NewLRU[int](0, 0, nil)

	c.Put(ctx, "a", 1)
	c.Put(ctx, "b", 2)

	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "b")
	assert.True(t, ok)
}
