package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"chatbot-crm/internal/embeddings"
)

// DocumentType is the declared format of an uploaded file.
type DocumentType string

const (
	TypePDF   DocumentType = "pdf"
	TypeDOCX  DocumentType = "docx"
	TypeXLSX  DocumentType = "xlsx"
	TypeImage DocumentType = "image"
	TypeText  DocumentType = "text"
)

// DocumentTypes lists the closed set of supported types.
var DocumentTypes = []DocumentType{TypePDF, TypeDOCX, TypeXLSX, TypeImage, TypeText}

// Valid reports whether t is one of DocumentTypes.
func (t DocumentType) Valid() bool {
	for _, known := range DocumentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// DocumentStatus is derived from stored fields on every read and never persisted.
type DocumentStatus string

const (
	StatusProcessing DocumentStatus = "processing"
	StatusProcessed  DocumentStatus = "processed"
	StatusFailed     DocumentStatus = "failed"
)

// DefaultFailedAfter is how long an unprocessed document may wait before it is reported failed.
const DefaultFailedAfter = 10 * time.Minute

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidDocument = errors.New("invalid document")
)

type Document struct {
	ID          uuid.UUID
	Filename    string
	Type        DocumentType
	FilePath    string
	Content     *string
	Embedding   embeddings.Vector
	Processed   bool
	ProcessedAt *time.Time
	UploadedBy  string
	CreatedAt   time.Time
}

// Status derives the lifecycle state of d at now.
func (d Document) Status(now time.Time) DocumentStatus {
	return d.StatusAfter(now, DefaultFailedAfter)
}

// StatusAfter is Status with a custom failure window.
func (d Document) StatusAfter(now time.Time, failedAfter time.Duration) DocumentStatus {
	if d.Processed {
		return StatusProcessed
	}
	if now.Sub(d.CreatedAt) > failedAfter {
		return StatusFailed
	}
	return StatusProcessing
}

// Text returns the extracted content or "" before processing.
func (d Document) Text() string {
	if d.Content == nil {
		return ""
	}
	return *d.Content
}

// DocumentFilter narrows ListDocuments. Zero values mean "no filter".
type DocumentFilter struct {
	Processed *bool
	Types     []DocumentType
	Search    string
	Page      int
	PerPage   int
}

func (f DocumentFilter) normalize() DocumentFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = 20
	}
	return f
}

func (f DocumentFilter) offset() int {
	return (f.Page - 1) * f.PerPage
}

// DocumentPage is one page of ListDocuments.
type DocumentPage struct {
	Documents []Document
	Total     int
	Page      int
	PerPage   int
}

// Stats aggregates document counts.
type Stats struct {
	Total     int
	Processed int
	Pending   int
	Failed    int
	ByType    map[DocumentType]int
	Recent    []Document
}

type ConversationStatus string

const (
	ConversationActive  ConversationStatus = "active"
	ConversationClosed  ConversationStatus = "closed"
	ConversationPending ConversationStatus = "pending"
)

type Conversation struct {
	ID            uuid.UUID
	Channel       string
	ContactPhone  string
	ContactName   string
	ContactEmail  string
	Status        ConversationStatus
	Metadata      Metadata
	LastMessageAt *time.Time
	CreatedAt     time.Time
}

type Sender string

const (
	SenderUser  Sender = "user"
	SenderAI    Sender = "ai"
	SenderAgent Sender = "agent"
)

type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageDocument MessageType = "document"
	MessageAudio    MessageType = "audio"
)

type Message struct {
	ID              uuid.UUID
	ConversationID  uuid.UUID
	Content         string
	Type            MessageType
	Sender          Sender
	Metadata        Metadata
	ConfidenceScore *float64
	CreatedAt       time.Time
}

// DocumentStore persists documents and their derived knowledge.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc Document) (Document, error)
	GetDocument(ctx context.Context, id uuid.UUID) (Document, error)
	ListDocuments(ctx context.Context, filter DocumentFilter) (DocumentPage, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) error
	ListUnprocessed(ctx context.Context) ([]Document, error)
	ListProcessedWithEmbedding(ctx context.Context) ([]Document, error)
	// MarkProcessed writes content, embedding, processed=true and processed_at in one statement.
	MarkProcessed(ctx context.Context, id uuid.UUID, content string, vector embeddings.Vector, at time.Time) error
	Stats(ctx context.Context, failedBefore time.Time) (Stats, error)
}

// ChatStore persists conversations and messages.
type ChatStore interface {
	CreateConversation(ctx context.Context, c Conversation) (Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID) (Conversation, error)
	ListConversations(ctx context.Context, page, perPage int) ([]Conversation, error)
	TouchConversation(ctx context.Context, id uuid.UUID, at time.Time) error
	CreateMessage(ctx context.Context, m Message) (Message, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error)
}

// Store defines persistence contract; an external DB implementation can replace this.
type Store interface {
	DocumentStore
	ChatStore
	Close() error
}

func prepareDocument(doc Document) (Document, error) {
	if !doc.Type.Valid() {
		return Document{}, ErrInvalidDocument
	}
	if doc.Filename == "" || doc.FilePath == "" {
		return Document{}, ErrInvalidDocument
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.Content = nil
	doc.Embedding = nil
	doc.Processed = false
	doc.ProcessedAt = nil
	return doc, nil
}

func prepareConversation(c Conversation) Conversation {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = ConversationActive
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return c
}

func prepareMessage(m Message) Message {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Type == "" {
		m.Type = MessageText
	}
	if m.Sender == "" {
		m.Sender = SenderUser
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return m
}

func paging(page, perPage int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	return perPage, (page - 1) * perPage
}
