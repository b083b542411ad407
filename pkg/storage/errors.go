package storage

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/JaimeStill/sift/pkg/fault"
)

var (
	// ErrNotFound indicates the requested blob does not exist.
	ErrNotFound = fault.New(fault.NotFound, "blob not found")
	// ErrEmptyKey indicates an empty storage key was provided.
	ErrEmptyKey = fault.New(fault.InvalidInput, "storage key must not be empty")
	// ErrInvalidKey indicates the storage key contains a path traversal segment.
	ErrInvalidKey = fault.New(fault.InvalidInput, "storage key contains invalid path segment")
	// ErrUnavailable wraps failures reaching the storage backend.
	ErrUnavailable = fault.New(fault.StorageUnavailable, "storage unavailable")
)

// MapHTTPStatus maps storage errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrEmptyKey) || errors.Is(err, ErrInvalidKey) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func unavailable(op, key string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, op, key, err)
}
