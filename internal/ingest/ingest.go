package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"chatbot-crm/internal/blob"
	"chatbot-crm/internal/embeddings"
	"chatbot-crm/internal/store"
)

const (
	ReasonFileNotFound = "file not found"
	ReasonNoContent    = "no content extracted"
	ReasonNoEmbedding  = "embedding unavailable"
	ReasonStoreFailed  = "could not save processing result"
)

var (
	ErrFileNotFound = errors.New("document file not found")
	ErrNoContent    = errors.New("no content extracted")
	ErrNoEmbedding  = errors.New("embedding unavailable")
	ErrPanic        = errors.New("panic during processing")
)

// ContentExtractor turns a stored file into text.
type ContentExtractor interface {
	Extract(ctx context.Context, path string, typ store.DocumentType) (string, error)
}

// EmbeddingGenerator produces a vector for text, or an empty vector when it cannot.
type EmbeddingGenerator interface {
	Generate(ctx context.Context, text string) embeddings.Vector
}

// SearchInvalidator drops cached search results.
type SearchInvalidator interface {
	InvalidateSearch(ctx context.Context) error
}

type Options struct {
	// Concurrency bounds ProcessAll workers. Values below 1 mean sequential.
	Concurrency int
	// Timeout bounds a single document. Zero disables the bound.
	Timeout time.Duration
	// RequireEmbedding leaves a document unprocessed when no vector could be generated.
	RequireEmbedding bool
}

// Outcome is the result of processing one document.
type Outcome struct {
	DocumentID uuid.UUID `json:"document_id"`
	Filename   string    `json:"filename"`
	Processed  bool      `json:"processed"`
	Reason     string    `json:"reason,omitempty"`
	Err        error     `json:"-"`
}

func (o Outcome) OK() bool { return o.Processed }

// Message is the human-readable failure line for batch summaries.
func (o Outcome) Message() string {
	return fmt.Sprintf("failed to process: %s: %s", o.Filename, o.Reason)
}

// Summary aggregates a ProcessAll run.
type Summary struct {
	Total     int       `json:"total"`
	Processed int       `json:"processed"`
	Failed    int       `json:"failed"`
	Errors    []string  `json:"errors"`
	Outcomes  []Outcome `json:"-"`
}

type Pipeline struct {
	store     store.DocumentStore
	blobs     blob.Storage
	extractor ContentExtractor
	embedder  EmbeddingGenerator
	cache     SearchInvalidator
	opts      Options
	log       *slog.Logger
	now       func() time.Time
}

// New wires a pipeline. cache may be nil.
func New(st store.DocumentStore, blobs blob.Storage, extractor ContentExtractor, embedder EmbeddingGenerator, cache SearchInvalidator, opts Options, log *slog.Logger) *Pipeline {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Pipeline{
		store:     st,
		blobs:     blobs,
		extractor: extractor,
		embedder:  embedder,
		cache:     cache,
		opts:      opts,
		log:       log,
		now:       time.Now,
	}
}

// WithClock replaces the clock used for processed_at.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// ProcessDocument extracts, embeds and persists one document. Failures are
// reported in the Outcome and never returned or propagated as panics.
func (p *Pipeline) ProcessDocument(ctx context.Context, doc store.Document) (out Outcome) {
	out = Outcome{DocumentID: doc.ID, Filename: doc.Filename}
	log := p.log.With("document_id", doc.ID, "filename", doc.Filename)

	fail := func(reason string, err error) Outcome {
		log.Warn("document processing failed", "reason", reason, "err", err)
		out.Reason = reason
		out.Err = err
		return out
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("document processing panicked", "panic", r)
			out.Processed = false
			out.Reason = fmt.Sprintf("unexpected error: %v", r)
			out.Err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	if !p.blobs.Exists(ctx, doc.FilePath) {
		return fail(ReasonFileNotFound, ErrFileNotFound)
	}
	path, err := p.blobs.ResolvePath(doc.FilePath)
	if err != nil {
		return fail(ReasonFileNotFound, err)
	}

	content, err := p.extractor.Extract(ctx, path, doc.Type)
	if err != nil {
		return fail(err.Error(), err)
	}
	if strings.TrimSpace(content) == "" {
		return fail(ReasonNoContent, ErrNoContent)
	}

	vector := p.embedder.Generate(ctx, content)
	if vector.Empty() {
		if p.opts.RequireEmbedding {
			return fail(ReasonNoEmbedding, ErrNoEmbedding)
		}
		log.Warn("document processed without embedding; it will not appear in search")
	}

	if err := p.store.MarkProcessed(ctx, doc.ID, content, vector, p.now().UTC()); err != nil {
		return fail(ReasonStoreFailed, fmt.Errorf("mark processed: %w", err))
	}

	if p.cache != nil {
		if err := p.cache.InvalidateSearch(ctx); err != nil {
			log.Warn("failed to invalidate search cache", "err", err)
		}
	}

	log.Info("document processed", "chars", len(content), "dimensions", len(vector))
	out.Processed = true
	return out
}

// ProcessByID loads a document and processes it.
func (p *Pipeline) ProcessByID(ctx context.Context, id uuid.UUID) (Outcome, error) {
	doc, err := p.store.GetDocument(ctx, id)
	if err != nil {
		return Outcome{DocumentID: id}, err
	}
	return p.ProcessDocument(ctx, doc), nil
}

// ProcessAll processes every unprocessed document. Each document is
// independent; a failure is counted and the batch continues. When ctx is
// cancelled no further documents are started and the partial summary is returned.
func (p *Pipeline) ProcessAll(ctx context.Context) (Summary, error) {
	docs, err := p.store.ListUnprocessed(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list unprocessed documents: %w", err)
	}

	outcomes := make([]Outcome, len(docs))
	started := make([]bool, len(docs))

	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	for i, doc := range docs {
		if ctx.Err() != nil {
			break
		}
		started[i] = true
		g.Go(func() error {
			outcomes[i] = p.ProcessDocument(ctx, doc)
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{Errors: []string{}}
	for i, o := range outcomes {
		if !started[i] {
			continue
		}
		summary.Total++
		summary.Outcomes = append(summary.Outcomes, o)
		if o.OK() {
			summary.Processed++
			continue
		}
		summary.Failed++
		summary.Errors = append(summary.Errors, o.Message())
	}

	p.log.Info("batch processing finished",
		"total", summary.Total,
		"processed", summary.Processed,
		"failed", summary.Failed,
		"pending", len(docs)-summary.Total,
	)
	return summary, ctx.Err()
}
