package extract

import (
	"archive/zip"
	"errors"
	"html"
	"io"
	"regexp"
	"strings"
)

var (
	errNoDocumentXML = errors.New("word/document.xml not found")
	xmlTag           = regexp.MustCompile(`<[^>]*>`)
)

// extractDOCX reads the main document part and keeps one line per paragraph.
func extractDOCX(path string) (string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", err
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", err
		}
		return docxText(string(raw)), nil
	}
	return "", errNoDocumentXML
}

func docxText(xml string) string {
	xml = strings.ReplaceAll(xml, "</w:p>", "\n")
	return html.UnescapeString(xmlTag.ReplaceAllString(xml, ""))
}
