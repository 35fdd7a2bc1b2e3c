package cache

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"

	errx "github.com/savant-model-analyzer/server/internal/core/error"
)

// MemoryCache keeps artifacts in an in-memory badger store. It is only
// visible to the current process.
type MemoryCache struct {
	db *badger.DB
}

func NewMemoryCache(db *badger.DB) *MemoryCache {
	return &MemoryCache{db: db}
}

func (c *MemoryCache) Save(ctx context.Context, id, datatype string, data any) error {
	if err := validateKey(id, datatype); err != nil {
		return err
	}
	b, err := encode(data)
	if err != nil {
		return err
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(storeKey(id, datatype)), b)
	})
	return errx.WrapBadger(err)
}

func (c *MemoryCache) Load(ctx context.Context, id, datatype string, out any) error {
	if err := validateKey(id, datatype); err != nil {
		return err
	}
	var b []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(storeKey(id, datatype)))
		if err != nil {
			return err
		}
		b, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return errx.WrapBadger(err)
	}
	return decode(b, out)
}

func (c *MemoryCache) Exists(ctx context.Context, id, datatype string) (bool, error) {
	if err := validateKey(id, datatype); err != nil {
		return false, err
	}
	err := c.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(storeKey(id, datatype)))
		return err
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, errx.WrapBadger(err)
	}
}

func (c *MemoryCache) Delete(ctx context.Context, id, datatype string) error {
	if err := validateKey(id, datatype); err != nil {
		return err
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(storeKey(id, datatype)))
	})
	return errx.WrapBadger(err)
}

func (c *MemoryCache) Close() error {
	return c.db.Close()
}

var _ Manager = (*MemoryCache)(nil)
