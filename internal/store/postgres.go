package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"chatbot-crm/internal/embeddings"
)

type PostgresStore struct {
	db         *sql.DB
	dimensions int
}

func NewPostgres(dsn string, dimensions int) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if dimensions <= 0 {
		dimensions = 1536
	}
	s := &PostgresStore{db: db, dimensions: dimensions}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	// Advisory lock keeps gateway and processor from migrating concurrently.
	const lockID = 715300917

	var acquired bool
	err := s.db.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, lockID).Scan(&acquired)
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}

	if !acquired {
		// Another service is running migrations; wait briefly and skip
		time.Sleep(2 * time.Second)
		return nil
	}

	defer func() {
		_, _ = s.db.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
	}()

	if _, err := s.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY,
			filename TEXT NOT NULL,
			type TEXT NOT NULL CHECK (type IN ('pdf','docx','xlsx','image','text')),
			file_path TEXT NOT NULL,
			content TEXT,
			embedding vector(%d),
			processed BOOLEAN NOT NULL DEFAULT false,
			processed_at TIMESTAMPTZ,
			uploaded_by TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`, s.dimensions),
		`CREATE INDEX IF NOT EXISTS documents_processed_idx ON documents (processed, created_at);`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id UUID PRIMARY KEY,
			channel TEXT NOT NULL,
			contact_phone TEXT,
			contact_name TEXT,
			contact_email TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			metadata JSONB,
			last_message_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY,
			conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT 'text',
			sender TEXT NOT NULL DEFAULT 'user',
			metadata JSONB,
			confidence_score DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS messages_conversation_idx ON messages (conversation_id, created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

const pgDocumentColumns = `id, filename, type, file_path, content, processed, processed_at, uploaded_by, created_at`

func (s *PostgresStore) CreateDocument(ctx context.Context, doc Document) (Document, error) {
	doc, err := prepareDocument(doc)
	if err != nil {
		return Document{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents(id, filename, type, file_path, uploaded_by, created_at)
		VALUES($1,$2,$3,$4,$5,$6)`,
		doc.ID, doc.Filename, doc.Type, doc.FilePath, doc.UploadedBy, doc.CreatedAt)
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, id uuid.UUID) (Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pgDocumentColumns+`, embedding FROM documents WHERE id=$1`, id)
	doc, err := scanPGDocument(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	return doc, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, filter DocumentFilter) (DocumentPage, error) {
	filter = filter.normalize()

	var (
		conds []string
		args  []any
	)
	if filter.Processed != nil {
		args = append(args, *filter.Processed)
		conds = append(conds, fmt.Sprintf("processed = $%d", len(args)))
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		args = append(args, pq.Array(types))
		conds = append(conds, fmt.Sprintf("type = ANY($%d)", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conds = append(conds, fmt.Sprintf("(filename ILIKE $%d OR content ILIKE $%d)", len(args), len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	page := DocumentPage{Page: filter.Page, PerPage: filter.PerPage}
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM documents`+where, args...).Scan(&page.Total); err != nil {
		return DocumentPage{}, err
	}

	args = append(args, filter.PerPage, filter.offset())
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM documents%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		pgDocumentColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return DocumentPage{}, err
	}
	defer rows.Close()

	page.Documents, err = collectPGDocuments(rows, false)
	if err != nil {
		return DocumentPage{}, err
	}
	return page, nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListUnprocessed(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+pgDocumentColumns+` FROM documents WHERE processed = false ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPGDocuments(rows, false)
}

func (s *PostgresStore) ListProcessedWithEmbedding(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+pgDocumentColumns+`, embedding
		FROM documents
		WHERE processed = true AND embedding IS NOT NULL
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPGDocuments(rows, true)
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, id uuid.UUID, content string, vector embeddings.Vector, at time.Time) error {
	var emb any
	if !vector.Empty() {
		emb = pgvector.NewVector(vector)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET content=$1, embedding=$2, processed=true, processed_at=$3
		WHERE id=$4`,
		content, emb, at, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context, failedBefore time.Time) (Stats, error) {
	st := Stats{ByType: map[DocumentType]int{}}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE processed),
			count(*) FILTER (WHERE NOT processed),
			count(*) FILTER (WHERE NOT processed AND created_at < $1)
		FROM documents`, failedBefore).Scan(&st.Total, &st.Processed, &st.Pending, &st.Failed)
	if err != nil {
		return Stats{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT type, count(*) FROM documents GROUP BY type`)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			t DocumentType
			n int
		)
		if err := rows.Scan(&t, &n); err != nil {
			return Stats{}, err
		}
		st.ByType[t] = n
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	recent, err := s.db.QueryContext(ctx, `SELECT `+pgDocumentColumns+` FROM documents ORDER BY created_at DESC LIMIT 5`)
	if err != nil {
		return Stats{}, err
	}
	defer recent.Close()
	st.Recent, err = collectPGDocuments(recent, false)
	if err != nil {
		return Stats{}, err
	}
	return st, nil
}

func (s *PostgresStore) CreateConversation(ctx context.Context, c Conversation) (Conversation, error) {
	c = prepareConversation(c)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations(id, channel, contact_phone, contact_name, contact_email, status, metadata, last_message_at, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		c.ID, c.Channel, c.ContactPhone, c.ContactName, c.ContactEmail, c.Status, c.Metadata, c.LastMessageAt, c.CreatedAt)
	if err != nil {
		return Conversation{}, err
	}
	return c, nil
}

const pgConversationColumns = `id, channel, COALESCE(contact_phone,''), COALESCE(contact_name,''), COALESCE(contact_email,''), status, metadata, last_message_at, created_at`

func (s *PostgresStore) GetConversation(ctx context.Context, id uuid.UUID) (Conversation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pgConversationColumns+` FROM conversations WHERE id=$1`, id)
	c, err := scanPGConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	return c, err
}

func (s *PostgresStore) ListConversations(ctx context.Context, page, perPage int) ([]Conversation, error) {
	limit, offset := paging(page, perPage)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+pgConversationColumns+`
		FROM conversations
		ORDER BY last_message_at DESC NULLS LAST
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		c, err := scanPGConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) TouchConversation(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE conversations SET last_message_at=$1 WHERE id=$2`, at, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateMessage(ctx context.Context, m Message) (Message, error) {
	m = prepareMessage(m)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages(id, conversation_id, content, type, sender, metadata, confidence_score, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		m.ID, m.ConversationID, m.Content, m.Type, m.Sender, m.Metadata, m.ConfidenceScore, m.CreatedAt)
	if err != nil {
		return Message{}, err
	}
	return m, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, content, type, sender, metadata, confidence_score, created_at
		FROM messages
		WHERE conversation_id=$1
		ORDER BY created_at ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			m    Message
			conf sql.NullFloat64
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Content, &m.Type, &m.Sender, &m.Metadata, &conf, &m.CreatedAt); err != nil {
			return nil, err
		}
		if conf.Valid {
			m.ConfidenceScore = &conf.Float64
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPGDocument(row rowScanner, withEmbedding bool) (Document, error) {
	var (
		d           Document
		content     sql.NullString
		processedAt sql.NullTime
		uploadedBy  sql.NullString
		emb         sql.Null[pgvector.Vector]
	)
	dest := []any{&d.ID, &d.Filename, &d.Type, &d.FilePath, &content, &d.Processed, &processedAt, &uploadedBy, &d.CreatedAt}
	if withEmbedding {
		dest = append(dest, &emb)
	}
	if err := row.Scan(dest...); err != nil {
		return Document{}, err
	}
	if content.Valid {
		d.Content = &content.String
	}
	if processedAt.Valid {
		t := processedAt.Time
		d.ProcessedAt = &t
	}
	d.UploadedBy = uploadedBy.String
	if emb.Valid {
		d.Embedding = embeddings.Vector(emb.V.Slice())
	}
	return d, nil
}

func collectPGDocuments(rows *sql.Rows, withEmbedding bool) ([]Document, error) {
	var out []Document
	for rows.Next() {
		d, err := scanPGDocument(rows, withEmbedding)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanPGConversation(row rowScanner) (Conversation, error) {
	var (
		c    Conversation
		last sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.Channel, &c.ContactPhone, &c.ContactName, &c.ContactEmail, &c.Status, &c.Metadata, &last, &c.CreatedAt); err != nil {
		return Conversation{}, err
	}
	if last.Valid {
		t := last.Time
		c.LastMessageAt = &t
	}
	return c, nil
}
