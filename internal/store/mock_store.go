package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"chatbot-crm/internal/embeddings"
)

// MockStore is a mock implementation of Store using testify/mock.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateDocument(ctx context.Context, doc Document) (Document, error) {
	args := m.Called(ctx, doc)
	return args.Get(0).(Document), args.Error(1)
}

func (m *MockStore) GetDocument(ctx context.Context, id uuid.UUID) (Document, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Document), args.Error(1)
}

func (m *MockStore) ListDocuments(ctx context.Context, filter DocumentFilter) (DocumentPage, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(DocumentPage), args.Error(1)
}

func (m *MockStore) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStore) ListUnprocessed(ctx context.Context) ([]Document, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Document), args.Error(1)
}

func (m *MockStore) ListProcessedWithEmbedding(ctx context.Context) ([]Document, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Document), args.Error(1)
}

func (m *MockStore) MarkProcessed(ctx context.Context, id uuid.UUID, content string, vector embeddings.Vector, at time.Time) error {
	args := m.Called(ctx, id, content, vector, at)
	return args.Error(0)
}

func (m *MockStore) Stats(ctx context.Context, failedBefore time.Time) (Stats, error) {
	args := m.Called(ctx, failedBefore)
	return args.Get(0).(Stats), args.Error(1)
}

func (m *MockStore) CreateConversation(ctx context.Context, c Conversation) (Conversation, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(Conversation), args.Error(1)
}

func (m *MockStore) GetConversation(ctx context.Context, id uuid.UUID) (Conversation, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Conversation), args.Error(1)
}

func (m *MockStore) ListConversations(ctx context.Context, page, perPage int) ([]Conversation, error) {
	args := m.Called(ctx, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Conversation), args.Error(1)
}

func (m *MockStore) TouchConversation(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockStore) CreateMessage(ctx context.Context, msg Message) (Message, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(Message), args.Error(1)
}

func (m *MockStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Message), args.Error(1)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
