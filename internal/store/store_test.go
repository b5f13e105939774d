package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentStatus(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	processedAt := now.Add(-time.Hour)

	tests := []struct {
		name string
		doc  Document
		want DocumentStatus
	}{
		{
			name: "processed",
			doc:  Document{Processed: true, ProcessedAt: &processedAt, CreatedAt: now.Add(-2 * time.Hour)},
			want: StatusProcessed,
		},
		{
			name: "fresh upload",
			doc:  Document{CreatedAt: now.Add(-time.Minute)},
			want: StatusProcessing,
		},
		{
			name: "exactly ten minutes",
			doc:  Document{CreatedAt: now.Add(-10 * time.Minute)},
			want: StatusProcessing,
		},
		{
			name: "stale upload",
			doc:  Document{CreatedAt: now.Add(-11 * time.Minute)},
			want: StatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.doc.Status(now))
		})
	}
}

func TestDocumentStatusAfterCustomWindow(t *testing.T) {
	now := time.Now()
	doc := Document{CreatedAt: now.Add(-2 * time.Minute)}
	assert.Equal(t, StatusFailed, doc.StatusAfter(now, time.Minute))
	assert.Equal(t, StatusProcessing, doc.StatusAfter(now, 5*time.Minute))
}

func TestDocumentText(t *testing.T) {
	assert.Equal(t, "", Document{}.Text())
	content := "hola"
	assert.Equal(t, "hola", Document{Content: &content}.Text())
}

func TestDocumentTypeValid(t *testing.T) {
	for _, typ := range DocumentTypes {
		assert.True(t, typ.Valid(), typ)
	}
	assert.False(t, DocumentType("doc").Valid())
	assert.False(t, DocumentType("").Valid())
}

func TestPrepareDocument(t *testing.T) {
	content := "stale"
	doc, err := prepareDocument(Document{
		Filename:  "a.pdf",
		Type:      TypePDF,
		FilePath:  "documents/a.pdf",
		Content:   &content,
		Processed: true,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, doc.ID)
	assert.False(t, doc.CreatedAt.IsZero())
	assert.Nil(t, doc.Content)
	assert.False(t, doc.Processed)

	_, err = prepareDocument(Document{Filename: "a.doc", Type: "doc", FilePath: "x"})
	assert.ErrorIs(t, err, ErrInvalidDocument)

	_, err = prepareDocument(Document{Type: TypeText, FilePath: "x"})
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestMetadataJSON(t *testing.T) {
	var m Metadata
	require.NoError(t, json.Unmarshal([]byte(`{"model":"gpt","score":0.8,"cached":true}`), &m))

	s, ok := m["model"].AsString()
	assert.True(t, ok)
	assert.Equal(t, "gpt", s)

	n, ok := m["score"].AsNumber()
	assert.True(t, ok)
	assert.InDelta(t, 0.8, n, 1e-9)

	b, ok := m["cached"].AsBool()
	assert.True(t, ok)
	assert.True(t, b)

	_, ok = m["model"].AsNumber()
	assert.False(t, ok)

	out, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"model":"gpt","score":0.8,"cached":true}`, string(out))
}

func TestMetadataRejectsNested(t *testing.T) {
	var m Metadata
	assert.Error(t, json.Unmarshal([]byte(`{"tags":["a","b"]}`), &m))
	assert.Error(t, json.Unmarshal([]byte(`{"extra":{"k":1}}`), &m))
}

func TestMetadataValueAndScan(t *testing.T) {
	v, err := Metadata(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = Metadata{"channel": String("web")}.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"channel":"web"}`, v)

	var m Metadata
	require.NoError(t, m.Scan([]byte(`{"channel":"web"}`)))
	got, _ := m["channel"].AsString()
	assert.Equal(t, "web", got)

	require.NoError(t, m.Scan(nil))
	assert.Nil(t, m)

	assert.Error(t, m.Scan(42))
}
