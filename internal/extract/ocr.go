package extract

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// PlaceholderText is what PlaceholderOCR reports for every image.
const PlaceholderText = "Contenido extraído por OCR de la imagen"

// ErrOCRToolNotFound indicates the tesseract binary is not installed.
var ErrOCRToolNotFound = errors.New("tesseract not found: install tesseract-ocr to enable image text recognition")

// OCR recognises text in an image file.
type OCR interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// PlaceholderOCR returns fixed text without reading the image.
type PlaceholderOCR struct{}

func (PlaceholderOCR) Recognize(context.Context, string) (string, error) {
	return PlaceholderText, nil
}

// CommandRunner executes external commands.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// TesseractOCR shells out to the tesseract CLI.
type TesseractOCR struct {
	runner   CommandRunner
	binary   string
	language string
	timeout  time.Duration
}

// NewTesseract creates a TesseractOCR using the system tesseract binary.
func NewTesseract(language string, timeout time.Duration) *TesseractOCR {
	return NewTesseractWithRunner(execRunner{}, language, timeout)
}

// NewTesseractWithRunner creates a TesseractOCR with a custom command runner.
func NewTesseractWithRunner(runner CommandRunner, language string, timeout time.Duration) *TesseractOCR {
	if language == "" {
		language = "spa+eng"
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &TesseractOCR{runner: runner, binary: "tesseract", language: language, timeout: timeout}
}

// CheckAvailable reports whether the tesseract binary is on PATH.
func (t *TesseractOCR) CheckAvailable() error {
	if _, err := exec.LookPath(t.binary); err != nil {
		return ErrOCRToolNotFound
	}
	return nil
}

func (t *TesseractOCR) Recognize(ctx context.Context, imagePath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	out, err := t.runner.Run(ctx, t.binary, imagePath, "stdout", "-l", t.language)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", ErrOCRToolNotFound
		}
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
