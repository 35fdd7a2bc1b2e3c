package errx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestKindsMatchThroughWrapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   error
		status int
	}{
		{"not found", NotFound("session %s", "abc"), ErrNotFound, http.StatusNotFound},
		{"missing artifact", MissingArtifact("model"), ErrMissingArtifact, http.StatusUnprocessableEntity},
		{"unsupported shape", UnsupportedShape("3 classes"), ErrUnsupportedShape, http.StatusUnprocessableEntity},
		{"consistency", Consistency("shape mismatch"), ErrConsistency, http.StatusInternalServerError},
		{"uninitialized", Uninitialized("no instance"), ErrUninitialized, http.StatusServiceUnavailable},
		{"invalid reference", InvalidReference("gs://"), ErrInvalidReference, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("context: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.kind)
			assert.Equal(t, tt.status, Status(wrapped))
		})
	}
}

func TestMissingArtifactNamesKey(t *testing.T) {
	err := MissingArtifact("y_test")
	assert.Contains(t, err.Error(), `"y_test"`)
}

func TestDeserializationKeepsCause(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := Deserialization(cause)
	assert.ErrorIs(t, err, ErrDeserialization)
	assert.ErrorIs(t, err, cause)
}

func TestWrapRedis(t *testing.T) {
	assert.NoError(t, WrapRedis(nil))

	err := WrapRedis(redis.Nil)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, redis.Nil)
	assert.Equal(t, http.StatusNotFound, Status(err))

	err = WrapRedis(errors.New("connection refused"))
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, http.StatusBadGateway, Status(err))
	assert.Equal(t, RedisErrorMessage, Message(err))
}

func TestWrapBadger(t *testing.T) {
	assert.NoError(t, WrapBadger(nil))
	assert.ErrorIs(t, WrapBadger(badger.ErrKeyNotFound), ErrNotFound)
	assert.Equal(t, http.StatusInternalServerError, Status(WrapBadger(errors.New("disk full"))))
}

func TestForeignErrorsFallBack(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, http.StatusInternalServerError, Status(err))
	assert.Equal(t, SystemErrorMessage, Message(err))
}
