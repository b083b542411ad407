package workflows

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/sift/internal/documents"
	"github.com/JaimeStill/sift/pkg/fault"
)

// Domain errors for workflow operations.
var (
	ErrNotFound          = fault.New(fault.NotFound, "workflow not found")
	ErrInvalidTransition = fault.New(fault.InvalidTransition, "invalid workflow transition")
	ErrInvalidInput      = fault.New(fault.InvalidInput, "invalid workflow input")
	ErrDuplicate         = fault.New(fault.Conflict, "workflow already exists")
	ErrConflict          = fault.New(fault.Conflict, "workflow modified concurrently")

	// errStale reports a lost compare-and-swap; callers re-read and retry.
	errStale = errors.New("workflow status changed")
)

// MapHTTPStatus maps workflow domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrInvalidInput) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrConflict) || errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, documents.ErrFileTooLarge) {
		return documents.MapHTTPStatus(err)
	}
	return fault.HTTPStatus(err)
}
