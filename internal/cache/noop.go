package cache

import (
	"context"
	"time"
)

// NoOpCache is a cache implementation that does nothing.
// Used when CACHE_PROVIDER=none or Redis is unreachable: every lookup misses.
type NoOpCache struct{}

func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

func (c *NoOpCache) GetSearchResult(context.Context, string) (*SearchResult, error) {
	return nil, nil
}

func (c *NoOpCache) SetSearchResult(context.Context, string, *SearchResult, time.Duration) error {
	return nil
}

func (c *NoOpCache) SearchGeneration(context.Context) (int64, error) {
	return 0, nil
}

func (c *NoOpCache) InvalidateSearch(context.Context) error {
	return nil
}

func (c *NoOpCache) Close() error {
	return nil
}
