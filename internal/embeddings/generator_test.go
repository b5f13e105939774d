package embeddings

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestGenerator(p Provider) *Generator {
	return NewGenerator(p, "test-model", time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGenerateShortTextSkipsProvider(t *testing.T) {
	p := new(MockProvider)
	g := newTestGenerator(p)

	for _, text := range []string{"", "   ", "short", "  a \n\t b  c  "} {
		assert.Empty(t, g.Generate(context.Background(), text), "text %q", text)
	}
	p.AssertNotCalled(t, "CreateEmbedding", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateNormalizesWhitespace(t *testing.T) {
	p := new(MockProvider)
	p.On("CreateEmbedding", mock.Anything, "hello world from the crm", "test-model").
		Return(Vector{0.1, 0.2}, nil).Once()

	g := newTestGenerator(p)
	got := g.Generate(context.Background(), "  hello\n\tworld   from the\r\ncrm  ")

	assert.Equal(t, Vector{0.1, 0.2}, got)
	p.AssertExpectations(t)
}

func TestGenerateTruncatesLongText(t *testing.T) {
	long := strings.Repeat("abcdefghij", 900) // 9000 chars
	p := new(MockProvider)
	p.On("CreateEmbedding", mock.Anything, long[:MaxTextLength], "test-model").
		Return(Vector{1}, nil).Once()

	g := newTestGenerator(p)
	assert.Equal(t, Vector{1}, g.Generate(context.Background(), long))
	p.AssertExpectations(t)
}

func TestGenerateProviderFailureReturnsEmpty(t *testing.T) {
	p := new(MockProvider)
	p.On("CreateEmbedding", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("quota exceeded")).Once()

	g := newTestGenerator(p)
	assert.Empty(t, g.Generate(context.Background(), "this text is long enough"))
	p.AssertExpectations(t)
}

func TestGenerateAppliesTimeout(t *testing.T) {
	p := new(MockProvider)
	p.On("CreateEmbedding", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	}), mock.Anything, mock.Anything).Return(Vector{1}, nil).Once()

	g := newTestGenerator(p)
	g.Generate(context.Background(), "this text is long enough")
	p.AssertExpectations(t)
}

func TestTruncateRunesMultibyte(t *testing.T) {
	assert.Equal(t, "ñañ", truncateRunes("ñañaña", 3))
	assert.Equal(t, "abc", truncateRunes("abc", 5))
}
