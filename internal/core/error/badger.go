package errx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dgraph-io/badger/v4"
)

// WrapBadger maps badger errors the same way WrapRedis maps Redis ones.
func WrapBadger(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, badger.ErrKeyNotFound) {
		return New(fmt.Errorf("%w: %w", ErrNotFound, err), http.StatusNotFound, NotFoundMessage)
	}

	return New(err, http.StatusInternalServerError, StoreErrorMessage)
}
