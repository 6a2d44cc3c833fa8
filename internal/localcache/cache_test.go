package localcache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDigest = "0123456789abcdef0123456789abcdef01234567"

func TestShardCorrectness(t *testing.T) {
	t.Parallel()
	c, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, c.StoreInCache(context.Background(), testDigest))
	path, err := c.path(testDigest)
	require.NoError(t, err)
	assert.Equal(t, testDigest[:2]+"/"+testDigest[2:], filepath.Base(filepath.Dir(path))+"/"+filepath.Base(path))
}

func TestPayloadRoundTrip(t *testing.T) {
	t.Parallel()
	c, err := New(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.StoreInCacheWithData(ctx, testDigest, []byte("hello world")))

	data, ok := c.GetCacheData(ctx, testDigest)
	require.True(t, ok)
	assert.Equal(t, "hello world", string(data))
}

func TestPayloadRoundTripCompressed(t *testing.T) {
	t.Parallel()
	c, err := New(t.TempDir(), WithCompression(true))
	require.NoError(t, err)

	ctx := context.Background()
	payload := []byte("the quick brown fox jumps over the lazy dog, repeatedly, for compressibility")
	require.NoError(t, c.StoreInCacheWithData(ctx, testDigest, payload))

	data, ok := c.GetCacheData(ctx, testDigest)
	require.True(t, ok)
	assert.Equal(t, payload, data)
}

func TestIsCachedMissThenHit(t *testing.T) {
	t.Parallel()
	c, err := New(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	assert.False(t, c.IsCached(ctx, testDigest))

	require.NoError(t, c.StoreInCache(ctx, testDigest))
	assert.True(t, c.IsCached(ctx, testDigest))
}

func TestStatsMonotonicity(t *testing.T) {
	t.Parallel()
	c, err := New(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	c.IsCached(ctx, testDigest)
	require.NoError(t, c.StoreInCache(ctx, testDigest))
	c.IsCached(ctx, testDigest)
	c.IsCached(ctx, testDigest)

	stats, err := c.QueryStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.MissCount)
	assert.Equal(t, int64(2), stats.HitCount)
}

func TestZeroStatsRemovesFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, c.UpdateStats(true))
	_, statErr := os.Stat(filepath.Join(dir, statsFileName))
	require.NoError(t, statErr)

	require.NoError(t, c.ZeroStats())
	_, statErr = os.Stat(filepath.Join(dir, statsFileName))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCleanRemovesDirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, c.StoreInCache(context.Background(), testDigest))

	require.NoError(t, c.Clean())
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestCachedCountMatchesEntryPattern(t *testing.T) {
	t.Parallel()
	c, err := New(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.StoreInCache(ctx, testDigest))
	require.NoError(t, c.StoreInCache(ctx, "ffffffffffffffffffffffffffffffffffffffff"))

	stats, err := c.QueryStats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.CachedCount)
}

func TestRenderShowsNAForMissingFields(t *testing.T) {
	t.Parallel()
	stats := Stats{HitCount: 1, MissCount: 1, HitRate: 0.5, MissRate: 0.5}
	var sb strings.Builder
	stats.Render(&sb)
	assert.Contains(t, sb.String(), "total_hit_rate: N/A")
	assert.Contains(t, sb.String(), "age_days_histogram: N/A")
	assert.Contains(t, sb.String(), "hit_count_histogram: N/A")
}

func TestRenderPrintsHistogramRows(t *testing.T) {
	t.Parallel()
	stats := Stats{
		AgeDaysHistogram:  map[int]int64{2: 3, 1: 5},
		HitCountHistogram: map[int64]int64{10: 1},
	}
	var sb strings.Builder
	stats.Render(&sb)
	assert.Contains(t, sb.String(), "age_days_histogram: 1:5,2:3")
	assert.Contains(t, sb.String(), "hit_count_histogram: 10:1")
}
