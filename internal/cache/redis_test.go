package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real server when REDIS_TEST_ADDR is set.
func TestRedisCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	c, err := NewRedisCache(addr, os.Getenv("REDIS_TEST_PASSWORD"))
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	gen, err := c.SearchGeneration(ctx)
	require.NoError(t, err)
	key := SearchKey(gen, "precio plan premium")
	want := &SearchResult{
		Query: "precio plan premium",
		Hits:  []Hit{{DocumentID: "d1", Filename: "prices.xlsx", Type: "xlsx", Similarity: 0.83, Excerpt: "Premium | 30"}},
	}
	require.NoError(t, c.SetSearchResult(ctx, key, want, time.Minute))

	got, err := c.GetSearchResult(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, c.InvalidateSearch(ctx))
	got, err = c.GetSearchResult(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)

	next, err := c.SearchGeneration(ctx)
	require.NoError(t, err)
	assert.Equal(t, gen+1, next)

	// A write for the old generation after invalidation is never read back.
	require.NoError(t, c.SetSearchResult(ctx, key, want, time.Minute))
	got, err = c.GetSearchResult(ctx, SearchKey(next, "precio plan premium"))
	require.NoError(t, err)
	assert.Nil(t, got)
}
