package extract

import (
	"strings"

	"github.com/xuri/excelize/v2"
)

const cellSeparator = " | "

// extractXLSX renders the active sheet row by row. Every row is padded to the
// widest row so empty cells keep their column position.
func extractXLSX(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		return "", err
	}

	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}

	var b strings.Builder
	for _, row := range rows {
		cells := make([]string, width)
		copy(cells, row)
		b.WriteString(strings.Join(cells, cellSeparator))
		b.WriteString("\n")
	}
	return b.String(), nil
}
