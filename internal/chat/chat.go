package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"chatbot-crm/internal/llm"
	"chatbot-crm/internal/search"
	"chatbot-crm/internal/store"
)

var ErrConversationNotFound = errors.New("conversation not found")

const (
	contextDocuments   = 3
	contextSnippetSize = 1000
	pageSize           = 20
)

// Searcher finds documents relevant to a message.
type Searcher interface {
	Search(ctx context.Context, query string) ([]search.Result, error)
}

type SendRequest struct {
	Message        string
	ConversationID *uuid.UUID
	Channel        string
	ContactPhone   string
	ContactName    string
}

type SendResult struct {
	Conversation store.Conversation
	UserMessage  store.Message
	AIMessage    store.Message
}

// Service stores customer messages and answers them from the document base.
type Service struct {
	store  store.ChatStore
	search Searcher
	llm    llm.Client
	log    *slog.Logger
	now    func() time.Time
}

func NewService(st store.ChatStore, searcher Searcher, client llm.Client, log *slog.Logger) *Service {
	return &Service{store: st, search: searcher, llm: client, log: log, now: time.Now}
}

// SendMessage records the customer message, generates the assistant reply and
// records it too. A new conversation is opened when req.ConversationID is nil.
func (s *Service) SendMessage(ctx context.Context, req SendRequest) (SendResult, error) {
	now := s.now().UTC()

	conv, err := s.findOrCreate(ctx, req, now)
	if err != nil {
		return SendResult{}, err
	}
	log := s.log.With("conversation_id", conv.ID, "channel", conv.Channel)

	userMsg, err := s.store.CreateMessage(ctx, store.Message{
		ConversationID: conv.ID,
		Content:        req.Message,
		Sender:         store.SenderUser,
		Type:           store.MessageText,
		CreatedAt:      now,
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("save user message: %w", err)
	}

	contextText, hits := s.buildContext(ctx, log, req.Message)

	answer, confidence, err := s.llm.Answer(ctx, req.Message, contextText)
	if err != nil {
		return SendResult{}, fmt.Errorf("generate reply: %w", err)
	}

	score := float64(confidence)
	meta := store.Metadata{
		"model":   store.String(s.llm.Model()),
		"sources": store.Number(float64(len(hits))),
	}
	if len(hits) > 0 {
		meta["top_document"] = store.String(hits[0].Document.Filename)
		meta["top_similarity"] = store.Number(hits[0].Similarity)
	}

	replyAt := s.now().UTC()
	aiMsg, err := s.store.CreateMessage(ctx, store.Message{
		ConversationID:  conv.ID,
		Content:         answer,
		Sender:          store.SenderAI,
		Type:            store.MessageText,
		Metadata:        meta,
		ConfidenceScore: &score,
		CreatedAt:       replyAt,
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("save reply: %w", err)
	}

	if err := s.store.TouchConversation(ctx, conv.ID, replyAt); err != nil {
		return SendResult{}, fmt.Errorf("touch conversation: %w", err)
	}
	conv.LastMessageAt = &replyAt

	log.Info("message answered", "sources", len(hits), "confidence", confidence)
	return SendResult{Conversation: conv, UserMessage: userMsg, AIMessage: aiMsg}, nil
}

func (s *Service) findOrCreate(ctx context.Context, req SendRequest, now time.Time) (store.Conversation, error) {
	if req.ConversationID != nil {
		conv, err := s.store.GetConversation(ctx, *req.ConversationID)
		if errors.Is(err, store.ErrNotFound) {
			return store.Conversation{}, ErrConversationNotFound
		}
		if err != nil {
			return store.Conversation{}, fmt.Errorf("load conversation: %w", err)
		}
		return conv, nil
	}

	conv, err := s.store.CreateConversation(ctx, store.Conversation{
		Channel:       req.Channel,
		ContactPhone:  req.ContactPhone,
		ContactName:   req.ContactName,
		Status:        store.ConversationActive,
		LastMessageAt: &now,
		CreatedAt:     now,
	})
	if err != nil {
		return store.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// buildContext renders the best matching documents as prompt context.
// Search failures degrade to an empty context.
func (s *Service) buildContext(ctx context.Context, log *slog.Logger, message string) (string, []search.Result) {
	if s.search == nil {
		return "", nil
	}
	hits, err := s.search.Search(ctx, message)
	if err != nil {
		if !errors.Is(err, search.ErrQueryNotEmbeddable) {
			log.Warn("document search failed; answering without context", "err", err)
		}
		return "", nil
	}
	if len(hits) > contextDocuments {
		hits = hits[:contextDocuments]
	}

	var b strings.Builder
	for i, h := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		snippet := h.Excerpt
		if snippet == "" {
			snippet = truncate(h.Document.Text(), contextSnippetSize)
		}
		fmt.Fprintf(&b, "[%s]\n%s", h.Document.Filename, snippet)
	}
	return b.String(), hits
}

// ListConversations returns one page of conversations, most recent activity first.
func (s *Service) ListConversations(ctx context.Context, page int) ([]store.Conversation, error) {
	return s.store.ListConversations(ctx, page, pageSize)
}

// History returns a conversation with its messages, oldest first.
func (s *Service) History(ctx context.Context, id uuid.UUID) (store.Conversation, []store.Message, error) {
	conv, err := s.store.GetConversation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.Conversation{}, nil, ErrConversationNotFound
	}
	if err != nil {
		return store.Conversation{}, nil, err
	}
	msgs, err := s.store.ListMessages(ctx, id)
	if err != nil {
		return store.Conversation{}, nil, err
	}
	return conv, msgs, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
