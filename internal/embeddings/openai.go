package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIEmbedder calls OpenAI's embeddings API.
type OpenAIEmbedder struct {
	client     *openai.Client
	dimensions int
}

const defaultEmbeddingTimeout = 30 * time.Second

// NewOpenAIEmbedder creates a new OpenAI embedder. When dimensions is positive,
// responses of any other length are rejected.
func NewOpenAIEmbedder(apiKey string, dimensions int, opts ...option.RequestOption) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key required")
	}
	cli := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &OpenAIEmbedder{
		client:     &cli,
		dimensions: dimensions,
	}, nil
}

// CreateEmbedding implements Provider.
func (e *OpenAIEmbedder) CreateEmbedding(ctx context.Context, text, model string) (Vector, error) {
	if e == nil || e.client == nil {
		return nil, fmt.Errorf("nil openai client")
	}
	if model == "" {
		model = string(openai.EmbeddingModelTextEmbeddingAda002)
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai: no embedding returned")
	}

	// Convert []float64 to []float32
	embedding := resp.Data[0].Embedding
	if e.dimensions > 0 && len(embedding) != e.dimensions {
		return nil, fmt.Errorf("%w: model %s returned %d, want %d", ErrDimensionMismatch, model, len(embedding), e.dimensions)
	}
	vec := make(Vector, len(embedding))
	for i, v := range embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
