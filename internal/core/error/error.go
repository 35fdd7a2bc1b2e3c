package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// StoreErrorMessage describes failures of the local session stores.
	StoreErrorMessage = "session store operation failed"

	NotFoundMessage         = "resource not found"
	DeserializationMessage  = "model bundle could not be decoded"
	MissingArtifactMessage  = "model bundle is missing a required artifact"
	UnsupportedShapeMessage = "attribution shape is not supported"
	ConsistencyMessage      = "analysis results are inconsistent"
	UninitializedMessage    = "analyzer is not initialized"
	InvalidReferenceMessage = "invalid object reference"
)

// Error kinds. Match them with errors.Is; every *Error built by the
// constructors below wraps exactly one of them.
var (
	ErrNotFound         = errors.New("not found")
	ErrDeserialization  = errors.New("deserialization error")
	ErrMissingArtifact  = errors.New("missing artifact")
	ErrUnsupportedShape = errors.New("unsupported shape")
	ErrConsistency      = errors.New("consistency error")
	ErrUninitialized    = errors.New("uninitialized")
	ErrInvalidReference = errors.New("invalid reference")
)

// Error wraps an underlying error with an HTTP status and safe message.
type Error struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error with the provided information.
func New(err error, status int, message string) *Error {
	return &Error{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

func kinded(kind error, status int, message, format string, args ...any) *Error {
	return New(fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...)), status, message)
}

func NotFound(format string, args ...any) *Error {
	return kinded(ErrNotFound, http.StatusNotFound, NotFoundMessage, format, args...)
}

// Deserialization keeps the decoder error in the chain next to the kind.
func Deserialization(err error) *Error {
	return New(fmt.Errorf("%w: %w", ErrDeserialization, err), http.StatusUnprocessableEntity, DeserializationMessage)
}

// MissingArtifact names the absent bundle key.
func MissingArtifact(key string) *Error {
	return kinded(ErrMissingArtifact, http.StatusUnprocessableEntity, MissingArtifactMessage, "required key %q is absent", key)
}

func UnsupportedShape(format string, args ...any) *Error {
	return kinded(ErrUnsupportedShape, http.StatusUnprocessableEntity, UnsupportedShapeMessage, format, args...)
}

func Consistency(format string, args ...any) *Error {
	return kinded(ErrConsistency, http.StatusInternalServerError, ConsistencyMessage, format, args...)
}

func Uninitialized(format string, args ...any) *Error {
	return kinded(ErrUninitialized, http.StatusServiceUnavailable, UninitializedMessage, format, args...)
}

func InvalidReference(format string, args ...any) *Error {
	return kinded(ErrInvalidReference, http.StatusBadRequest, InvalidReferenceMessage, format, args...)
}

// Status returns the HTTP status carried by err, or 500 for foreign errors.
func Status(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

// Message returns the user-facing message carried by err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return SystemErrorMessage
}
