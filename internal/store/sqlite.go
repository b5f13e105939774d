package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"chatbot-crm/internal/embeddings"
)

// SQLiteStore is a single-file Store for local runs and tests.
// Timestamps are unix milliseconds and embeddings are little-endian float32 blobs.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	type TEXT NOT NULL CHECK (type IN ('pdf','docx','xlsx','image','text')),
	file_path TEXT NOT NULL,
	content TEXT,
	embedding BLOB,
	processed INTEGER NOT NULL DEFAULT 0,
	processed_at INTEGER,
	uploaded_by TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS documents_processed_idx ON documents (processed, created_at);

CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	channel TEXT NOT NULL,
	contact_phone TEXT,
	contact_name TEXT,
	contact_email TEXT,
	status TEXT NOT NULL DEFAULT 'active',
	metadata TEXT,
	last_message_at INTEGER,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	content TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT 'text',
	sender TEXT NOT NULL DEFAULT 'user',
	metadata TEXT,
	confidence_score REAL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_conversation_idx ON messages (conversation_id, created_at);
`

// NewSQLite opens or creates a database file at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return initSQLite(db)
}

// NewSQLiteInMemory creates an in-memory database (for testing).
func NewSQLiteInMemory() (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	return initSQLite(db)
}

func initSQLite(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteDocumentColumns = `id, filename, type, file_path, content, processed, processed_at, uploaded_by, created_at`

func (s *SQLiteStore) CreateDocument(ctx context.Context, doc Document) (Document, error) {
	doc, err := prepareDocument(doc)
	if err != nil {
		return Document{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents(id, filename, type, file_path, uploaded_by, created_at)
		VALUES(?,?,?,?,?,?)`,
		doc.ID.String(), doc.Filename, string(doc.Type), doc.FilePath, doc.UploadedBy, toMillis(doc.CreatedAt))
	if err != nil {
		return Document{}, err
	}
	doc.CreatedAt = fromMillis(toMillis(doc.CreatedAt))
	return doc, nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id uuid.UUID) (Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteDocumentColumns+`, embedding FROM documents WHERE id=?`, id.String())
	doc, err := scanSQLiteDocument(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	return doc, nil
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, filter DocumentFilter) (DocumentPage, error) {
	filter = filter.normalize()

	var (
		conds []string
		args  []any
	)
	if filter.Processed != nil {
		conds = append(conds, "processed = ?")
		args = append(args, boolInt(*filter.Processed))
	}
	if len(filter.Types) > 0 {
		marks := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			marks[i] = "?"
			args = append(args, string(t))
		}
		conds = append(conds, "type IN ("+strings.Join(marks, ",")+")")
	}
	if filter.Search != "" {
		conds = append(conds, "(filename LIKE ? OR content LIKE ?)")
		like := "%" + filter.Search + "%"
		args = append(args, like, like)
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
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteDocumentColumns+` FROM documents`+where+` ORDER BY created_at DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return DocumentPage{}, err
	}
	defer rows.Close()

	page.Documents, err = collectSQLiteDocuments(rows, false)
	if err != nil {
		return DocumentPage{}, err
	}
	return page, nil
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id=?`, id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ListUnprocessed(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteDocumentColumns+` FROM documents WHERE processed = 0 ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLiteDocuments(rows, false)
}

func (s *SQLiteStore) ListProcessedWithEmbedding(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteDocumentColumns+`, embedding
		FROM documents
		WHERE processed = 1 AND embedding IS NOT NULL AND length(embedding) > 0
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLiteDocuments(rows, true)
}

func (s *SQLiteStore) MarkProcessed(ctx context.Context, id uuid.UUID, content string, vector embeddings.Vector, at time.Time) error {
	var blob any
	if !vector.Empty() {
		blob = vectorToBlob(vector)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET content=?, embedding=?, processed=1, processed_at=?
		WHERE id=?`,
		content, blob, toMillis(at), id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Stats(ctx context.Context, failedBefore time.Time) (Stats, error) {
	st := Stats{ByType: map[DocumentType]int{}}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			count(*),
			COALESCE(SUM(CASE WHEN processed = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN processed = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN processed = 0 AND created_at < ? THEN 1 ELSE 0 END), 0)
		FROM documents`, toMillis(failedBefore)).Scan(&st.Total, &st.Processed, &st.Pending, &st.Failed)
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
			t string
			n int
		)
		if err := rows.Scan(&t, &n); err != nil {
			return Stats{}, err
		}
		st.ByType[DocumentType(t)] = n
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	recent, err := s.db.QueryContext(ctx, `SELECT `+sqliteDocumentColumns+` FROM documents ORDER BY created_at DESC LIMIT 5`)
	if err != nil {
		return Stats{}, err
	}
	defer recent.Close()
	st.Recent, err = collectSQLiteDocuments(recent, false)
	if err != nil {
		return Stats{}, err
	}
	return st, nil
}

func (s *SQLiteStore) CreateConversation(ctx context.Context, c Conversation) (Conversation, error) {
	c = prepareConversation(c)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations(id, channel, contact_phone, contact_name, contact_email, status, metadata, last_message_at, created_at)
		VALUES(?,?,?,?,?,?,?,?,?)`,
		c.ID.String(), c.Channel, c.ContactPhone, c.ContactName, c.ContactEmail, string(c.Status), c.Metadata, nullMillis(c.LastMessageAt), toMillis(c.CreatedAt))
	if err != nil {
		return Conversation{}, err
	}
	c.CreatedAt = fromMillis(toMillis(c.CreatedAt))
	if c.LastMessageAt != nil {
		t := fromMillis(toMillis(*c.LastMessageAt))
		c.LastMessageAt = &t
	}
	return c, nil
}

const sqliteConversationColumns = `id, channel, COALESCE(contact_phone,''), COALESCE(contact_name,''), COALESCE(contact_email,''), status, metadata, last_message_at, created_at`

func (s *SQLiteStore) GetConversation(ctx context.Context, id uuid.UUID) (Conversation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteConversationColumns+` FROM conversations WHERE id=?`, id.String())
	c, err := scanSQLiteConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	return c, err
}

func (s *SQLiteStore) ListConversations(ctx context.Context, page, perPage int) ([]Conversation, error) {
	limit, offset := paging(page, perPage)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteConversationColumns+`
		FROM conversations
		ORDER BY last_message_at IS NULL, last_message_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		c, err := scanSQLiteConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) TouchConversation(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE conversations SET last_message_at=? WHERE id=?`, toMillis(at), id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) CreateMessage(ctx context.Context, m Message) (Message, error) {
	m = prepareMessage(m)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages(id, conversation_id, content, type, sender, metadata, confidence_score, created_at)
		VALUES(?,?,?,?,?,?,?,?)`,
		m.ID.String(), m.ConversationID.String(), m.Content, string(m.Type), string(m.Sender), m.Metadata, nullFloat(m.ConfidenceScore), toMillis(m.CreatedAt))
	if err != nil {
		return Message{}, err
	}
	m.CreatedAt = fromMillis(toMillis(m.CreatedAt))
	return m, nil
}

func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, content, type, sender, metadata, confidence_score, created_at
		FROM messages
		WHERE conversation_id=?
		ORDER BY created_at ASC, rowid ASC`, conversationID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			m         Message
			id, convo string
			typ, snd  string
			conf      sql.NullFloat64
			created   int64
		)
		if err := rows.Scan(&id, &convo, &m.Content, &typ, &snd, &m.Metadata, &conf, &created); err != nil {
			return nil, err
		}
		if m.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if m.ConversationID, err = uuid.Parse(convo); err != nil {
			return nil, err
		}
		m.Type = MessageType(typ)
		m.Sender = Sender(snd)
		if conf.Valid {
			m.ConfidenceScore = &conf.Float64
		}
		m.CreatedAt = fromMillis(created)
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanSQLiteDocument(row rowScanner, withEmbedding bool) (Document, error) {
	var (
		d           Document
		id, typ     string
		content     sql.NullString
		processed   int64
		processedAt sql.NullInt64
		uploadedBy  sql.NullString
		created     int64
		blob        []byte
	)
	dest := []any{&id, &d.Filename, &typ, &d.FilePath, &content, &processed, &processedAt, &uploadedBy, &created}
	if withEmbedding {
		dest = append(dest, &blob)
	}
	if err := row.Scan(dest...); err != nil {
		return Document{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Document{}, err
	}
	d.ID = parsed
	d.Type = DocumentType(typ)
	if content.Valid {
		d.Content = &content.String
	}
	d.Processed = processed != 0
	if processedAt.Valid {
		t := fromMillis(processedAt.Int64)
		d.ProcessedAt = &t
	}
	d.UploadedBy = uploadedBy.String
	d.CreatedAt = fromMillis(created)
	if len(blob) > 0 {
		d.Embedding = blobToVector(blob)
	}
	return d, nil
}

func collectSQLiteDocuments(rows *sql.Rows, withEmbedding bool) ([]Document, error) {
	var out []Document
	for rows.Next() {
		d, err := scanSQLiteDocument(rows, withEmbedding)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanSQLiteConversation(row rowScanner) (Conversation, error) {
	var (
		c       Conversation
		id, st  string
		last    sql.NullInt64
		created int64
	)
	if err := row.Scan(&id, &c.Channel, &c.ContactPhone, &c.ContactName, &c.ContactEmail, &st, &c.Metadata, &last, &created); err != nil {
		return Conversation{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Conversation{}, err
	}
	c.ID = parsed
	c.Status = ConversationStatus(st)
	if last.Valid {
		t := fromMillis(last.Int64)
		c.LastMessageAt = &t
	}
	c.CreatedAt = fromMillis(created)
	return c, nil
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toMillis(*t)
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// vectorToBlob converts a vector to a little-endian float32 blob
func vectorToBlob(v embeddings.Vector) []byte {
	blob := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(f))
	}
	return blob
}

// blobToVector converts a little-endian float32 blob back to a vector
func blobToVector(blob []byte) embeddings.Vector {
	v := make(embeddings.Vector, len(blob)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return v
}
