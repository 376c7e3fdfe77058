package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quote struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "signal:BTC/USD", quote{Symbol: "BTC/USD", Price: 80}, time.Minute))

	got, err := GetTyped[quote](ctx, mc, "signal:BTC/USD")
	require.NoError(t, err)
	assert.Equal(t, quote{Symbol: "BTC/USD", Price: 80}, got)

	var raw string
	require.NoError(t, mc.Get(ctx, "signal:BTC/USD", &raw))
	assert.JSONEq(t, `{"symbol":"BTC/USD","price":80}`, raw)

	_, err = GetTyped[quote](ctx, mc, "signal:ETH/USD")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }

	require.NoError(t, mc.Set(ctx, "k", "v", time.Minute))
	ok, err := mc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = mc.Exists(ctx, "k")
	assert.False(t, ok)

	var s string
	assert.ErrorIs(t, mc.Get(ctx, "k", &s), ErrCacheMiss)
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { now = now.Add(time.Second); return now }

	require.NoError(t, mc.Set(ctx, "a", 1, 0))
	require.NoError(t, mc.Set(ctx, "b", 2, 0))

	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	require.NoError(t, mc.Set(ctx, "c", 3, 0))

	assert.Equal(t, 2, mc.Len())
	ok, _ := mc.Exists(ctx, "b")
	assert.False(t, ok, "b was least recently used")
	ok, _ = mc.Exists(ctx, "a", "c")
	assert.True(t, ok)

	require.NoError(t, mc.Set(ctx, "c", 4, 0), "overwriting does not evict")
	assert.Equal(t, 2, mc.Len())
}

func TestGenerateKey(t *testing.T) {
	assert.Equal(t, "finfusion:signal:BTC/USD", GenerateKey("finfusion", "signal:BTC/USD"))
	assert.Equal(t, "insights", GenerateKey("", "insights"))
}
