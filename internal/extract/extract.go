package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"chatbot-crm/internal/store"
)

// ErrUnsupportedType is returned for document types with no extraction strategy.
var ErrUnsupportedType = errors.New("unsupported document type")

// Extractor turns a stored file into plain text according to its declared type.
// Format-level failures are logged and yield an empty string; only an
// unknown type is reported as an error.
type Extractor struct {
	log        *slog.Logger
	ocr        OCR
	scratchDir string
}

func New(log *slog.Logger, ocr OCR, scratchDir string) *Extractor {
	if ocr == nil {
		ocr = PlaceholderOCR{}
	}
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	return &Extractor{log: log, ocr: ocr, scratchDir: scratchDir}
}

// Extract reads the file at path and returns its text.
func (e *Extractor) Extract(ctx context.Context, path string, typ store.DocumentType) (string, error) {
	log := e.log.With("path", path, "type", typ)
	switch typ {
	case store.TypePDF:
		return e.soft(log, "pdf", func() (string, error) { return extractPDF(log, path) }), nil
	case store.TypeDOCX:
		return e.soft(log, "docx", func() (string, error) { return extractDOCX(path) }), nil
	case store.TypeXLSX:
		return e.soft(log, "xlsx", func() (string, error) { return extractXLSX(path) }), nil
	case store.TypeImage:
		return e.soft(log, "image", func() (string, error) { return e.extractImage(ctx, path) }), nil
	case store.TypeText:
		return e.soft(log, "text", func() (string, error) {
			b, err := os.ReadFile(path)
			return string(b), err
		}), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, typ)
	}
}

func (e *Extractor) soft(log *slog.Logger, kind string, fn func() (string, error)) string {
	text, err := fn()
	if err != nil {
		log.Warn("content extraction failed", "format", kind, "err", err)
		return ""
	}
	return text
}
