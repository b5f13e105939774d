package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"chatbot-crm/internal/embeddings"
)

// Cache provides search result caching
type Cache interface {
	// GetSearchResult retrieves a cached search result by key
	// Returns nil if not found
	GetSearchResult(ctx context.Context, key string) (*SearchResult, error)

	// SetSearchResult stores a search result with TTL
	SetSearchResult(ctx context.Context, key string, result *SearchResult, ttl time.Duration) error

	// SearchGeneration returns the current search generation. Keys built
	// from an older generation are never read again.
	SearchGeneration(ctx context.Context) (int64, error)

	// InvalidateSearch bumps the search generation and drops every cached
	// search. Called whenever the set of searchable documents changes.
	InvalidateSearch(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}

// SearchResult represents a cached search response
type SearchResult struct {
	Query string `json:"query"`
	Hits  []Hit  `json:"hits"`
}

// Hit is one ranked document in a cached search
type Hit struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Type       string  `json:"type"`
	Similarity float64 `json:"similarity"`
	Excerpt    string  `json:"excerpt"`
}

// SearchKey derives the cache key for a query within a generation. Queries
// that clean to the same embedding input share a key; case is significant.
func SearchKey(generation int64, query string) string {
	sum := sha256.Sum256([]byte(embeddings.CleanText(query)))
	return strconv.FormatInt(generation, 10) + ":" + hex.EncodeToString(sum[:])
}
