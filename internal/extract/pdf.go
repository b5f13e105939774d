package extract

import (
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

func extractPDF(log *slog.Logger, path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return joinPages(log, reader.NumPage(), func(n int) (string, bool, error) {
		page := reader.Page(n)
		if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
			return "", false, nil
		}
		text, err := page.GetPlainText(nil)
		return text, true, err
	}), nil
}

// joinPages concatenates the text of pages 1..count, one line per page.
// Pages without content are skipped; unreadable pages are logged and skipped.
func joinPages(log *slog.Logger, count int, page func(n int) (string, bool, error)) string {
	var b strings.Builder
	for n := 1; n <= count; n++ {
		text, ok, err := page(n)
		if err != nil {
			log.Warn("pdf page extraction failed", "page", n, "pages", count, "err", err)
			continue
		}
		if !ok {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}
