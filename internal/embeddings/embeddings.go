package embeddings

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Vector is a simple float32 slice wrapper. An empty Vector means "no embedding".
type Vector []float32

// Empty reports whether the vector carries no embedding.
func (v Vector) Empty() bool { return len(v) == 0 }

// Provider turns text into a vector using the given model identifier.
type Provider interface {
	CreateEmbedding(ctx context.Context, text, model string) (Vector, error)
}

// ErrDimensionMismatch is returned when two vectors of different lengths are compared.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// CosineSimilarity returns dot(a,b) / (|a|*|b|).
// Empty or all-zero vectors score 0.
func CosineSimilarity(a, b Vector) (float64, error) {
	if a.Empty() || b.Empty() {
		return 0, nil
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
