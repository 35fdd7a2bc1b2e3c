package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"

	errx "github.com/savant-model-analyzer/server/internal/core/error"
)

// FileReader reads a bundle from the local file system.
type FileReader struct {
	path string
}

func NewFileReader(path string) *FileReader {
	return &FileReader{path: path}
}

func (r *FileReader) Read(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errx.NotFound("file not found: %s", r.path)
		}
		return nil, err
	}
	return f, nil
}

func (r *FileReader) String() string {
	return r.path
}

var _ ObjectReader = (*FileReader)(nil)
