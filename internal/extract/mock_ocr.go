package extract

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockOCR is a mock implementation of OCR using testify/mock.
type MockOCR struct {
	mock.Mock
}

func (m *MockOCR) Recognize(ctx context.Context, imagePath string) (string, error) {
	args := m.Called(ctx, imagePath)
	return args.String(0), args.Error(1)
}
