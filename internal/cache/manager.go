package cache

import (
	"context"
	"strings"
	"time"

	errx "github.com/savant-model-analyzer/server/internal/core/error"
)

// Manager persists session artifacts keyed by (id, datatype).
//
// Save overwrites silently. Load decodes into out, which must be a pointer,
// and fails with errx.ErrNotFound when nothing is stored under the pair.
// Exists never errors for a missing pair and Delete is a no-op for one.
type Manager interface {
	Save(ctx context.Context, id, datatype string, data any) error
	Load(ctx context.Context, id, datatype string, out any) error
	Exists(ctx context.Context, id, datatype string) (bool, error)
	Delete(ctx context.Context, id, datatype string) error
}

// Claimer is implemented by backends shared between processes. A claim
// expires after ttl even if never released.
type Claimer interface {
	Claim(ctx context.Context, id string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}

func validateKey(id, datatype string) error {
	for _, part := range [...]string{id, datatype} {
		if part == "" {
			return errx.InvalidReference("session id and datatype must not be empty")
		}
		if strings.ContainsAny(part, `/\`) || strings.Contains(part, "..") {
			return errx.InvalidReference("illegal session key %q", part)
		}
	}
	// datatypes such as X_test carry underscores, so the id must not for
	// "{id}_{datatype}" file names to stay unique
	if strings.Contains(id, "_") {
		return errx.InvalidReference("session id %q must not contain '_'", id)
	}
	return nil
}

// storeKey is the key shape shared by the key-value backends.
func storeKey(id, datatype string) string {
	return datatype + ":" + id
}
