package extract

import (
	"context"
	"fmt"
	"os"

	"github.com/disintegration/imaging"
)

const (
	ocrContrast   = 50
	ocrBrightness = 10
)

// extractImage normalises the picture for OCR into a scratch PNG and
// recognises text from it. The scratch file is always removed.
func (e *Extractor) extractImage(ctx context.Context, path string) (string, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	img = imaging.AdjustContrast(img, ocrContrast)
	img = imaging.AdjustBrightness(img, ocrBrightness)

	if err := os.MkdirAll(e.scratchDir, 0o755); err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	tmp, err := os.CreateTemp(e.scratchDir, "ocr-*.png")
	if err != nil {
		return "", fmt.Errorf("create scratch file: %w", err)
	}
	scratch := tmp.Name()
	defer os.Remove(scratch)

	if err := imaging.Encode(tmp, img, imaging.PNG); err != nil {
		tmp.Close()
		return "", fmt.Errorf("encode scratch png: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	return e.ocr.Recognize(ctx, scratch)
}
