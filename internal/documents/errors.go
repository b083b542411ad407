package documents

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/sift/pkg/fault"
	"github.com/JaimeStill/sift/pkg/storage"
)

// Domain errors for document operations.
var (
	ErrNotFound     = fault.New(fault.NotFound, "document not found")
	ErrDuplicate    = fault.New(fault.Conflict, "document already exists")
	ErrFileTooLarge = fault.New(fault.InvalidInput, "file exceeds maximum upload size")
	ErrInvalidFile  = fault.New(fault.InvalidInput, "invalid file")
	ErrBlobMissing  = fault.New(fault.StorageUnavailable, "document blob unavailable")
)

// MapHTTPStatus maps document domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrFileTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	if errors.Is(err, ErrInvalidFile) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrBlobMissing) {
		return http.StatusServiceUnavailable
	}
	return storage.MapHTTPStatus(err)
}
