package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/rideops/fleet-backoffice/internal/core/ports"
)

// MaxFileSize is the largest file Save accepts.
const MaxFileSize = 10 << 20

var ErrTooLarge = errors.New("file exceeds the upload size limit")

// Local stores uploads in a directory served under baseURL.
type Local struct {
	dir     string
	baseURL string
	maxSize int64
}

// NewLocal creates dir if needed. Stored files are reachable at
// baseURL + "/" + name.
func NewLocal(dir, baseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", dir, err)
	}
	return &Local{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		maxSize: MaxFileSize,
	}, nil
}

// Dir returns the storage directory.
func (l *Local) Dir() string { return l.dir }

// Save writes r under a random name that keeps the original extension.
func (l *Local) Save(ctx context.Context, originalName string, r io.Reader) (*ports.StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	name := uuid.NewString() + ext
	path := filepath.Join(l.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, l.maxSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > l.maxSize {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	return &ports.StoredFile{
		Name: name,
		URL:  l.baseURL + "/" + name,
		Size: n,
	}, nil
}

// Remove deletes a stored file. Missing files are ignored.
func (l *Local) Remove(_ context.Context, name string) error {
	if name == "" || name != filepath.Base(name) {
		return fmt.Errorf("storage: invalid name %q", name)
	}
	err := os.Remove(filepath.Join(l.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: %w", err)
	}
	return nil
}
