// Package fault defines the error taxonomy shared by the domain systems.
// Each error carries a stable Code that handlers surface to clients alongside
// the message, so callers can branch on the code rather than on text.
package fault

import (
	"errors"
	"net/http"
)

// Code identifies a class of failure.
type Code string

// Error codes exposed to API clients.
const (
	InvalidInput         Code = "InvalidInput"
	InvalidTransition    Code = "InvalidTransition"
	EmptyConfiguration   Code = "EmptyConfiguration"
	WorkflowNotActive    Code = "WorkflowNotActive"
	AlreadyTerminal      Code = "AlreadyTerminal"
	ReferentialViolation Code = "ReferentialViolation"
	ExtractionFailed     Code = "ExtractionFailed"
	StorageUnavailable   Code = "StorageUnavailable"
	NotFound             Code = "NotFound"
	Conflict             Code = "Conflict"
	Internal             Code = "Internal"
)

var statuses = map[Code]int{
	InvalidInput:         http.StatusBadRequest,
	InvalidTransition:    http.StatusConflict,
	EmptyConfiguration:   http.StatusConflict,
	WorkflowNotActive:    http.StatusConflict,
	AlreadyTerminal:      http.StatusOK,
	ReferentialViolation: http.StatusUnprocessableEntity,
	ExtractionFailed:     http.StatusBadGateway,
	StorageUnavailable:   http.StatusServiceUnavailable,
	NotFound:             http.StatusNotFound,
	Conflict:             http.StatusConflict,
}

// Error is a coded error. Sentinel values are compared by identity with errors.Is.
type Error struct {
	Code    Code
	Message string
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

// CodeOf returns the code of the first *Error in err's chain, or Internal.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return Internal
}

// HTTPStatus maps the code of err to an HTTP status, defaulting to 500.
func HTTPStatus(err error) int {
	if status, ok := statuses[CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}
