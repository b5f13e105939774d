package cache

import (
	"context"
	"testing"
	"time"
)

func TestNoOpCache(t *testing.T) {
	cache := NewNoOpCache()
	ctx := context.Background()

	result, err := cache.GetSearchResult(ctx, "test-key")
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if result != nil {
		t.Errorf("Expected nil result (cache miss), got %v", result)
	}

	err = cache.SetSearchResult(ctx, "test-key", &SearchResult{
		Query: "horario de atención",
		Hits:  []Hit{{DocumentID: "123", Similarity: 0.91}},
	}, time.Hour)
	if err != nil {
		t.Errorf("Expected no error on SetSearchResult, got %v", err)
	}

	result, err = cache.GetSearchResult(ctx, "test-key")
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if result != nil {
		t.Errorf("Expected nil result (no-op cache doesn't store), got %v", result)
	}

	if gen, err := cache.SearchGeneration(ctx); err != nil || gen != 0 {
		t.Errorf("SearchGeneration() = %d, %v; want 0, nil", gen, err)
	}
	if err := cache.InvalidateSearch(ctx); err != nil {
		t.Errorf("Expected no error on InvalidateSearch, got %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Errorf("Expected no error on Close, got %v", err)
	}
}

func TestSearchKey(t *testing.T) {
	a := SearchKey(0, "horario  de atención ")
	b := SearchKey(0, "horario de atención")
	if a != b {
		t.Errorf("keys differ for whitespace variants: %s vs %s", a, b)
	}

	tests := []struct {
		name  string
		other string
	}{
		{"different words", SearchKey(0, "horario de cierre")},
		{"different case", SearchKey(0, "HORARIO DE ATENCIÓN")},
		{"next generation", SearchKey(1, "horario de atención")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if a == tt.other {
				t.Errorf("key %s is shared", a)
			}
		})
	}
	if want := "0:"; a[:2] != want {
		t.Errorf("key %s does not start with generation prefix %q", a, want)
	}
}
