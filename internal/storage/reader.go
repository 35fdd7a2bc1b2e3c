package storage

import (
	"context"
	"io"
)

// ObjectReader yields the raw bytes of a model bundle. Callers close the
// returned stream.
type ObjectReader interface {
	Read(ctx context.Context) (io.ReadCloser, error)
	String() string
}
