// Package extraction defines the contract with the document understanding
// collaborator and the bounded dispatcher that runs calls against it.
package extraction

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/JaimeStill/sift/internal/schema"
	"github.com/JaimeStill/sift/pkg/fault"
)

var (
	// ErrExtractionFailed indicates the collaborator rejected or failed a call.
	ErrExtractionFailed = fault.New(fault.ExtractionFailed, "extraction failed")
	// ErrDeferred indicates no collaborator is configured; the result is
	// expected through a callback instead.
	ErrDeferred = errors.New("extraction deferred to callback")
)

// Document identifies the file a call operates on.
type Document struct {
	ID          uuid.UUID `json:"id"`
	URL         string    `json:"url"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
}

// AnalyzeRequest asks the collaborator to propose a schema for a document.
type AnalyzeRequest struct {
	WorkflowID uuid.UUID      `json:"workflow_id"`
	Document   Document       `json:"document"`
	Existing   *schema.Schema `json:"existing_schema,omitempty"`
}

// Analysis is the proposed schema and, when available, sample values
// extracted with it.
type Analysis struct {
	Schema     schema.Schema            `json:"schema"`
	SampleData *schema.ExtractionResult `json:"sample_data"`
}

// ExtractRequest asks the collaborator to extract a schema from a document.
type ExtractRequest struct {
	WorkflowID  uuid.UUID     `json:"workflow_id"`
	ExecutionID *uuid.UUID    `json:"execution_id,omitempty"`
	Document    Document      `json:"document"`
	Schema      schema.Schema `json:"schema"`
}

// Client is the collaborator contract. Calls may be retried by the caller, so
// implementations need only at-least-once semantics.
type Client interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*Analysis, error)
	Extract(ctx context.Context, req ExtractRequest) (*schema.ExtractionResult, error)
}

type deferred struct{}

// Deferred returns a Client that performs no calls and returns ErrDeferred.
func Deferred() Client {
	return deferred{}
}

func (deferred) Analyze(context.Context, AnalyzeRequest) (*Analysis, error) {
	return nil, ErrDeferred
}

func (deferred) Extract(context.Context, ExtractRequest) (*schema.ExtractionResult, error) {
	return nil, ErrDeferred
}
