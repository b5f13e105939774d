package embeddings

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockProvider is a mock implementation of Provider using testify/mock.
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) CreateEmbedding(ctx context.Context, text, model string) (Vector, error) {
	args := m.Called(ctx, text, model)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(Vector), args.Error(1)
}
