package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	errx "github.com/savant-model-analyzer/server/internal/core/error"
	logx "github.com/savant-model-analyzer/server/pkg/logger"
)

// FileCache stores one zlib-compressed file per (id, datatype) pair under
// dir, named {id}_{datatype}.pkl. Writes land in a temp file first and are
// renamed into place.
type FileCache struct {
	dir string
}

func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory %s: %w", dir, err)
	}
	return &FileCache{dir: dir}, nil
}

func (c *FileCache) path(id, datatype string) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s_%s.pkl", id, datatype))
}

func (c *FileCache) Save(ctx context.Context, id, datatype string, data any) error {
	if err := validateKey(id, datatype); err != nil {
		return err
	}
	raw, err := encode(data)
	if err != nil {
		return err
	}
	packed, err := compress(raw)
	if err != nil {
		return fmt.Errorf("compress %s/%s: %w", id, datatype, err)
	}

	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(packed); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), c.path(id, datatype)); err != nil {
		return fmt.Errorf("publish %s/%s: %w", id, datatype, err)
	}

	logx.Debug().Str("session_id", id).Str("datatype", datatype).Int("bytes", len(packed)).Msg("saved artifact to file cache")
	return nil
}

func (c *FileCache) Load(ctx context.Context, id, datatype string, out any) error {
	if err := validateKey(id, datatype); err != nil {
		return err
	}
	b, err := os.ReadFile(c.path(id, datatype))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errx.NotFound("%s for session %s", datatype, id)
		}
		return fmt.Errorf("read %s/%s: %w", id, datatype, err)
	}
	raw, err := decompress(bytes.NewReader(b))
	if err != nil {
		return err
	}
	return decode(raw, out)
}

func (c *FileCache) Exists(ctx context.Context, id, datatype string) (bool, error) {
	if err := validateKey(id, datatype); err != nil {
		return false, err
	}
	_, err := os.Stat(c.path(id, datatype))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (c *FileCache) Delete(ctx context.Context, id, datatype string) error {
	if err := validateKey(id, datatype); err != nil {
		return err
	}
	if err := os.Remove(c.path(id, datatype)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s/%s: %w", id, datatype, err)
	}
	return nil
}

// Claim takes an exclusive lock file for id. Lock files older than ttl are
// considered abandoned and replaced.
func (c *FileCache) Claim(ctx context.Context, id string, ttl time.Duration) (func(context.Context) error, bool, error) {
	if err := validateKey(id, "lock"); err != nil {
		return nil, false, err
	}
	path := filepath.Join(c.dir, fmt.Sprintf("%s.lock", id))
	token := uuid.NewString()

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_, werr := f.WriteString(token)
			cerr := f.Close()
			if werr != nil || cerr != nil {
				os.Remove(path)
				return nil, false, fmt.Errorf("write lock %s: %w", path, errors.Join(werr, cerr))
			}
			release := func(context.Context) error {
				held, err := os.ReadFile(path)
				if err != nil {
					if errors.Is(err, fs.ErrNotExist) {
						return nil
					}
					return err
				}
				if string(held) != token {
					return nil
				}
				if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return err
				}
				return nil
			}
			return release, true, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, false, fmt.Errorf("create lock %s: %w", path, err)
		}

		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, false, err
		}
		if ttl <= 0 || time.Since(info.ModTime()) < ttl {
			return nil, false, nil
		}
		logx.Warn().Str("session_id", id).Time("locked_at", info.ModTime()).Msg("replacing stale session lock")
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, false, err
		}
	}
	return nil, false, nil
}

var (
	_ Manager = (*FileCache)(nil)
	_ Claimer = (*FileCache)(nil)
)
