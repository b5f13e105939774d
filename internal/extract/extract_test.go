package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"chatbot-crm/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeDOCX(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "sample.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = io.WriteString(w, body)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestExtractText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("Horario: 9 a 18h\n"), 0o644))

	e := New(testLogger(), nil, dir)
	got, err := e.Extract(context.Background(), path, store.TypeText)
	require.NoError(t, err)
	assert.Equal(t, "Horario: 9 a 18h\n", got)
}

func TestExtractDOCX(t *testing.T) {
	dir := t.TempDir()
	body := `<?xml version="1.0"?><w:document><w:body>` +
		`<w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t> world</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Fish &amp; chips</w:t></w:r></w:p>` +
		`</w:body></w:document>`
	path := writeDOCX(t, dir, body)

	e := New(testLogger(), nil, dir)
	got, err := e.Extract(context.Background(), path, store.TypeDOCX)
	require.NoError(t, err)
	assert.Equal(t, "Hello world\nFish & chips\n", got)
}

func TestExtractDOCXFailuresAreSoft(t *testing.T) {
	dir := t.TempDir()
	notZip := filepath.Join(dir, "broken.docx")
	require.NoError(t, os.WriteFile(notZip, []byte("plain bytes"), 0o644))

	e := New(testLogger(), nil, dir)
	got, err := e.Extract(context.Background(), notZip, store.TypeDOCX)
	require.NoError(t, err)
	assert.Empty(t, got)

	// Zip without the main document part.
	path := filepath.Join(dir, "empty.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	_, err = zw.Create("word/styles.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	got, err = e.Extract(context.Background(), path, store.TypeDOCX)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExtractXLSX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prices.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	require.NoError(t, f.SetCellValue(sheet, "A1", "Plan"))
	require.NoError(t, f.SetCellValue(sheet, "B1", "Price"))
	require.NoError(t, f.SetCellValue(sheet, "C1", "Notes"))
	require.NoError(t, f.SetCellValue(sheet, "A2", "Basic"))
	require.NoError(t, f.SetCellValue(sheet, "B2", 10))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	e := New(testLogger(), nil, dir)
	got, err := e.Extract(context.Background(), path, store.TypeXLSX)
	require.NoError(t, err)
	assert.Equal(t, "Plan | Price | Notes\nBasic | 10 | \n", got)
}

func TestExtractPDFFailureIsSoft(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fake.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o644))

	e := New(testLogger(), nil, dir)
	got, err := e.Extract(context.Background(), path, store.TypePDF)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestJoinPagesLogsUnreadablePages(t *testing.T) {
	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, nil))

	got := joinPages(log, 3, func(n int) (string, bool, error) {
		switch n {
		case 2:
			return "", true, errors.New("malformed content stream")
		case 3:
			return "", false, nil
		}
		return "first page", true, nil
	})

	assert.Equal(t, "first page\n", got)
	assert.Contains(t, logs.String(), "pdf page extraction failed")
	assert.Contains(t, logs.String(), "page=2")
	assert.Contains(t, logs.String(), "malformed content stream")
	assert.NotContains(t, logs.String(), "page=3")
}

func TestExtractUnsupportedType(t *testing.T) {
	e := New(testLogger(), nil, t.TempDir())
	_, err := e.Extract(context.Background(), "whatever.bin", store.DocumentType("binary"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestExtractImageRunsOCROnScratchCopy(t *testing.T) {
	dir := t.TempDir()
	scratch := t.TempDir()
	src := filepath.Join(dir, "scan.png")

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, x, color.Black)
	}
	require.NoError(t, imaging.Save(img, src))

	ocr := new(MockOCR)
	ocr.On("Recognize", mock.Anything, mock.MatchedBy(func(p string) bool {
		_, err := os.Stat(p)
		return filepath.Dir(p) == scratch && err == nil
	})).Return("Factura 123", nil).Once()

	e := New(testLogger(), ocr, scratch)
	got, err := e.Extract(context.Background(), src, store.TypeImage)
	require.NoError(t, err)
	assert.Equal(t, "Factura 123", got)
	ocr.AssertExpectations(t)

	left, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestExtractImageOCRErrorIsSoft(t *testing.T) {
	dir := t.TempDir()
	scratch := t.TempDir()
	src := filepath.Join(dir, "scan.jpg")
	require.NoError(t, imaging.Save(image.NewGray(image.Rect(0, 0, 4, 4)), src))

	ocr := new(MockOCR)
	ocr.On("Recognize", mock.Anything, mock.Anything).Return("", errors.New("engine crashed"))

	e := New(testLogger(), ocr, scratch)
	got, err := e.Extract(context.Background(), src, store.TypeImage)
	require.NoError(t, err)
	assert.Empty(t, got)

	left, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestExtractImagePlaceholder(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	require.NoError(t, imaging.Save(image.NewRGBA(image.Rect(0, 0, 2, 2)), src))

	e := New(testLogger(), nil, t.TempDir())
	got, err := e.Extract(context.Background(), src, store.TypeImage)
	require.NoError(t, err)
	assert.Equal(t, PlaceholderText, got)
}

func TestExtractImageUnreadable(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(src, []byte("garbage"), 0o644))

	ocr := new(MockOCR)
	e := New(testLogger(), ocr, t.TempDir())
	got, err := e.Extract(context.Background(), src, store.TypeImage)
	require.NoError(t, err)
	assert.Empty(t, got)
	ocr.AssertNotCalled(t, "Recognize", mock.Anything, mock.Anything)
}
