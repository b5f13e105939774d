package embeddings

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MinTextLength is the shortest cleaned text worth embedding.
	MinTextLength = 10
	// MaxTextLength is the provider input limit; longer text is truncated.
	MaxTextLength = 8000
)

// Generator cleans text and asks a Provider for its embedding.
// It never returns an error: an empty Vector signals that no embedding is available.
type Generator struct {
	provider Provider
	model    string
	timeout  time.Duration
	log      *slog.Logger
}

// NewGenerator wires a provider and model into a Generator.
func NewGenerator(provider Provider, model string, timeout time.Duration, log *slog.Logger) *Generator {
	if timeout <= 0 {
		timeout = defaultEmbeddingTimeout
	}
	return &Generator{provider: provider, model: model, timeout: timeout, log: log}
}

// Model returns the embedding model identifier.
func (g *Generator) Model() string { return g.model }

// Generate returns the embedding for text, or an empty Vector when the text is
// too short or the provider fails.
func (g *Generator) Generate(ctx context.Context, text string) Vector {
	clean := CleanText(text)
	if utf8.RuneCountInString(clean) < MinTextLength {
		return nil
	}
	clean = truncateRunes(clean, MaxTextLength)

	reqCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	vec, err := g.provider.CreateEmbedding(reqCtx, clean, g.model)
	if err != nil {
		g.log.Error("embedding generation failed", "err", err, "model", g.model)
		return nil
	}
	return vec
}

// CleanText collapses whitespace runs into single spaces, trims, and drops invalid UTF-8.
func CleanText(text string) string {
	text = strings.ToValidUTF8(text, "")
	return strings.Join(strings.Fields(text), " ")
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
