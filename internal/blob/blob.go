package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("blob not found")
	ErrInvalidRef = errors.New("invalid blob reference")
)

// Storage keeps uploaded files addressed by a relative reference such as
// "documents/<uuid>_<name>".
type Storage interface {
	Save(ctx context.Context, ref string, r io.Reader) (int64, error)
	ResolvePath(ref string) (string, error)
	Exists(ctx context.Context, ref string) bool
	Delete(ctx context.Context, ref string) error
	Size(ctx context.Context, ref string) (int64, error)
}

// DocumentRef builds the reference an uploaded document is stored under.
func DocumentRef(id uuid.UUID, filename string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, filepath.Base(filename))
	return "documents/" + id.String() + "_" + name
}

// Local stores blobs under a root directory on disk.
type Local struct {
	root string
}

func NewLocal(root string) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Local{root: abs}, nil
}

// ResolvePath maps ref to an absolute path inside the root.
func (l *Local) ResolvePath(ref string) (string, error) {
	if ref == "" || filepath.IsAbs(ref) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	path := filepath.Join(l.root, filepath.FromSlash(ref))
	rel, err := filepath.Rel(l.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return path, nil
}

// Save writes r to ref, replacing any existing blob.
func (l *Local) Save(ctx context.Context, ref string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	path, err := l.ResolvePath(ref)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("write blob %s: %w", ref, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, err
	}
	return n, nil
}

func (l *Local) Exists(_ context.Context, ref string) bool {
	path, err := l.ResolvePath(ref)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func (l *Local) Delete(_ context.Context, ref string) error {
	path, err := l.ResolvePath(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (l *Local) Size(_ context.Context, ref string) (int64, error) {
	path, err := l.ResolvePath(ref)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return info.Size(), nil
}
