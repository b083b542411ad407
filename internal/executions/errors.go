package executions

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/sift/internal/documents"
	"github.com/JaimeStill/sift/internal/workflows"
	"github.com/JaimeStill/sift/pkg/fault"
)

// Domain errors for execution operations.
var (
	ErrNotFound          = fault.New(fault.NotFound, "execution not found")
	ErrWorkflowNotActive = fault.New(fault.WorkflowNotActive, "workflow is not active")
	ErrAlreadyTerminal   = fault.New(fault.AlreadyTerminal, "execution already terminal")
	ErrInvalidTransition = fault.New(fault.InvalidTransition, "invalid execution transition")
	ErrInvalidInput      = fault.New(fault.InvalidInput, "invalid execution input")
	ErrDuplicate         = fault.New(fault.Conflict, "execution already exists")
	ErrConflict          = fault.New(fault.Conflict, "execution modified concurrently")

	errStale = errors.New("execution status changed")
)

// MapHTTPStatus maps execution domain errors to appropriate HTTP status codes.
// ErrAlreadyTerminal is not an HTTP failure; signal handlers answer it with the
// unchanged execution.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) || errors.Is(err, workflows.ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrInvalidInput) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrWorkflowNotActive) || errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrConflict) {
		return http.StatusConflict
	}
	if errors.Is(err, documents.ErrFileTooLarge) {
		return documents.MapHTTPStatus(err)
	}
	return fault.HTTPStatus(err)
}
