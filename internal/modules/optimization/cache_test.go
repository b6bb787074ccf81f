package optimization

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cacheSeries() []AssetSeries {
	return []AssetSeries{
		{Symbol: "7203", Returns: []float64{0.01, -0.02, 0.005}},
		{Symbol: "6758", Returns: []float64{0.02, 0.01, -0.01}},
	}
}

func TestCovarianceCache_RoundTrip(t *testing.T) {
	cache := NewCovarianceCache(time.Minute, zerolog.Nop())
	matrix := [][]float64{{0.04, 0.01}, {0.01, 0.09}}

	key := cache.Key(cacheSeries())
	_, ok := cache.Get(key)
	assert.False(t, ok)

	cache.Put(key, matrix)
	got, ok := cache.Get(key)
	require.True(t, ok)
	assert.Equal(t, matrix, got)
	assert.Equal(t, 1, cache.Len())
}

func TestCovarianceCache_GetReturnsDetachedCopy(t *testing.T) {
	cache := NewCovarianceCache(time.Minute, zerolog.Nop())
	key := cache.Key(cacheSeries())
	cache.Put(key, [][]float64{{0.04, 0.01}, {0.01, 0.09}})

	first, ok := cache.Get(key)
	require.True(t, ok)
	first[0][0] = 999

	second, ok := cache.Get(key)
	require.True(t, ok)
	assert.InDelta(t, 0.04, second[0][0], 1e-12, "mutating a cached matrix must not poison the cache")
}

func TestCovarianceCache_KeyIsSensitiveToInputs(t *testing.T) {
	cache := NewCovarianceCache(time.Minute, zerolog.Nop())
	base := cacheSeries()
	baseKey := cache.Key(base)

	reordered := []AssetSeries{base[1], base[0]}
	assert.NotEqual(t, baseKey, cache.Key(reordered))

	renamed := cacheSeries()
	renamed[0].Symbol = "9984"
	assert.NotEqual(t, baseKey, cache.Key(renamed))

	nudged := cacheSeries()
	nudged[1].Returns[2] += 1e-10
	assert.NotEqual(t, baseKey, cache.Key(nudged))

	assert.Equal(t, baseKey, cache.Key(cacheSeries()), "identical inputs must share a key")
}

func TestCovarianceCache_EntriesExpire(t *testing.T) {
	cache := NewCovarianceCache(10*time.Millisecond, zerolog.Nop())
	key := cache.Key(cacheSeries())
	cache.Put(key, [][]float64{{0.04}})

	_, ok := cache.Get(key)
	require.True(t, ok)

	time.Sleep(25 * time.Millisecond)
	_, ok = cache.Get(key)
	assert.False(t, ok)

	// The next Put sweeps expired entries instead of letting them pile up.
	other := cache.Key(cacheSeries()[:1])
	cache.Put(other, [][]float64{{0.01}})
	assert.Equal(t, 1, cache.Len())
}

func TestNewCovarianceCache_DefaultTTL(t *testing.T) {
	cache := NewCovarianceCache(0, zerolog.Nop())
	assert.Equal(t, DefaultCovarianceTTL, cache.ttl)
}
