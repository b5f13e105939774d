package extract

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner is a test double for CommandRunner.
type fakeRunner struct {
	output []byte
	err    error

	name        string
	args        []string
	hadDeadline bool
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.name = name
	f.args = args
	_, f.hadDeadline = ctx.Deadline()
	return f.output, f.err
}

func TestTesseractRecognize(t *testing.T) {
	runner := &fakeRunner{output: []byte("  Pedido 42\n\n")}
	ocr := NewTesseractWithRunner(runner, "", time.Second)

	got, err := ocr.Recognize(context.Background(), "/tmp/ocr-1.png")
	require.NoError(t, err)
	assert.Equal(t, "Pedido 42", got)
	assert.Equal(t, "tesseract", runner.name)
	assert.Equal(t, []string{"/tmp/ocr-1.png", "stdout", "-l", "spa+eng"}, runner.args)
	assert.True(t, runner.hadDeadline)
}

func TestTesseractErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{name: "binary missing", err: &exec.Error{Name: "tesseract", Err: exec.ErrNotFound}, wantErr: ErrOCRToolNotFound},
		{name: "run failure", err: errors.New("exit status 1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ocr := NewTesseractWithRunner(&fakeRunner{err: tt.err}, "eng", time.Second)
			_, err := ocr.Recognize(context.Background(), "img.png")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestPlaceholderOCR(t *testing.T) {
	got, err := PlaceholderOCR{}.Recognize(context.Background(), "ignored.png")
	require.NoError(t, err)
	assert.Equal(t, PlaceholderText, got)
}
