package blob

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

// MockStorage is a mock implementation of Storage using testify/mock.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Save(ctx context.Context, ref string, r io.Reader) (int64, error) {
	args := m.Called(ctx, ref, r)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) ResolvePath(ref string) (string, error) {
	args := m.Called(ref)
	return args.String(0), args.Error(1)
}

func (m *MockStorage) Exists(ctx context.Context, ref string) bool {
	args := m.Called(ctx, ref)
	return args.Bool(0)
}

func (m *MockStorage) Delete(ctx context.Context, ref string) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

func (m *MockStorage) Size(ctx context.Context, ref string) (int64, error) {
	args := m.Called(ctx, ref)
	return args.Get(0).(int64), args.Error(1)
}
