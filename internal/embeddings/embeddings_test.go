package embeddings

import (
	"errors"
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Vector
		expected float64
	}{
		{
			name:     "identical vectors",
			a:        Vector{1, 0, 0},
			b:        Vector{1, 0, 0},
			expected: 1.0,
		},
		{
			name:     "orthogonal vectors",
			a:        Vector{1, 0},
			b:        Vector{0, 1},
			expected: 0.0,
		},
		{
			name:     "opposite vectors",
			a:        Vector{1, 0},
			b:        Vector{-1, 0},
			expected: -1.0,
		},
		{
			name:     "empty vectors",
			a:        Vector{},
			b:        Vector{},
			expected: 0.0,
		},
		{
			name:     "one empty vector",
			a:        Vector{1, 2},
			b:        nil,
			expected: 0.0,
		},
		{
			name:     "all-zero vector",
			a:        Vector{0, 0},
			b:        Vector{1, 1},
			expected: 0.0,
		},
		{
			name:     "normalized vectors 45 degrees",
			a:        Vector{1, 0},
			b:        Vector{0.707, 0.707},
			expected: 0.707,
		},
		{
			name:     "mostly aligned",
			a:        Vector{1, 0},
			b:        Vector{0.9, 0.1},
			expected: 0.9939,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := CosineSimilarity(tt.a, tt.b)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(result-tt.expected) > 0.01 {
				t.Errorf("got %f, want %f", result, tt.expected)
			}
		})
	}
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity(Vector{1, 2}, Vector{1, 2, 3})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestCosineSimilaritySymmetry(t *testing.T) {
	pairs := [][2]Vector{
		{{1, 2, 3}, {4, 5, 6}},
		{{-0.3, 0.8}, {0.5, 0.1}},
		{{0, 0, 1}, {1, 0, 0}},
	}
	for _, p := range pairs {
		ab, err := CosineSimilarity(p[0], p[1])
		if err != nil {
			t.Fatal(err)
		}
		ba, err := CosineSimilarity(p[1], p[0])
		if err != nil {
			t.Fatal(err)
		}
		if ab != ba {
			t.Errorf("similarity not symmetric: %f vs %f", ab, ba)
		}
	}
}

func TestCosineSimilaritySelf(t *testing.T) {
	for _, v := range []Vector{{3, 4}, {0.001, 0.002, 0.003}, {-7, 2, 9, 1}} {
		got, err := CosineSimilarity(v, v)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(got-1) > 1e-6 {
			t.Errorf("self similarity of %v = %f, want 1", v, got)
		}
	}
}
