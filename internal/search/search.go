package search

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"chatbot-crm/internal/embeddings"
	"chatbot-crm/internal/store"
)

const (
	DefaultThreshold = 0.7
	DefaultLimit     = 10
)

// ErrQueryNotEmbeddable means the query produced no vector, either because it
// is too short after cleaning or because the provider failed.
var ErrQueryNotEmbeddable = errors.New("cannot process query")

// DocumentSource lists searchable documents.
type DocumentSource interface {
	ListProcessedWithEmbedding(ctx context.Context) ([]store.Document, error)
}

// EmbeddingGenerator turns text into a vector, empty on failure.
type EmbeddingGenerator interface {
	Generate(ctx context.Context, text string) embeddings.Vector
}

type Result struct {
	Document   store.Document
	Similarity float64
	Excerpt    string
}

// Engine ranks processed documents by cosine similarity to a query.
type Engine struct {
	docs      DocumentSource
	gen       EmbeddingGenerator
	threshold float64
	limit     int
	log       *slog.Logger
}

// NewEngine builds an engine. A non-positive threshold or limit selects the
// default.
func NewEngine(docs DocumentSource, gen EmbeddingGenerator, threshold float64, limit int, log *slog.Logger) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Engine{docs: docs, gen: gen, threshold: threshold, limit: limit, log: log}
}

// Search returns at most limit documents whose similarity is strictly above
// the threshold, best first. Equal scores keep retrieval order.
func (e *Engine) Search(ctx context.Context, query string) ([]Result, error) {
	qv := e.gen.Generate(ctx, query)
	if qv.Empty() {
		return nil, ErrQueryNotEmbeddable
	}

	docs, err := e.docs.ListProcessedWithEmbedding(ctx)
	if err != nil {
		return nil, fmt.Errorf("load searchable documents: %w", err)
	}

	results := make([]Result, 0, len(docs))
	for _, doc := range docs {
		score, err := embeddings.CosineSimilarity(qv, doc.Embedding)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", doc.ID, err)
		}
		if score > e.threshold {
			results = append(results, Result{Document: doc, Similarity: score})
		}
	}

	slices.SortStableFunc(results, func(a, b Result) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})
	if len(results) > e.limit {
		results = results[:e.limit]
	}
	for i := range results {
		results[i].Excerpt = Excerpt(results[i].Document.Text(), query)
	}

	e.log.Debug("search completed", "candidates", len(docs), "hits", len(results))
	return results, nil
}
