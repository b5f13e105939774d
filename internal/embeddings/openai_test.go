package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEmbeddingServer(t *testing.T, embedding []float64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "text-embedding-ada-002", body["model"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  body["model"],
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": embedding},
			},
			"usage": map[string]any{"prompt_tokens": 3, "total_tokens": 3},
		})
	}))
}

func TestOpenAIEmbedderCreateEmbedding(t *testing.T) {
	srv := newEmbeddingServer(t, []float64{0.25, -0.5, 1})
	defer srv.Close()

	e, err := NewOpenAIEmbedder("test-key", 3, option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	require.NoError(t, err)

	vec, err := e.CreateEmbedding(context.Background(), "some text", "text-embedding-ada-002")
	require.NoError(t, err)
	assert.Equal(t, Vector{0.25, -0.5, 1}, vec)
}

func TestOpenAIEmbedderRejectsWrongDimensions(t *testing.T) {
	srv := newEmbeddingServer(t, []float64{0.25, -0.5})
	defer srv.Close()

	e, err := NewOpenAIEmbedder("test-key", 1536, option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	require.NoError(t, err)

	_, err = e.CreateEmbedding(context.Background(), "some text", "text-embedding-ada-002")
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestNewOpenAIEmbedderRequiresKey(t *testing.T) {
	_, err := NewOpenAIEmbedder("", 1536)
	assert.Error(t, err)
}
