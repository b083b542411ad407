// Package executions tracks runs of an active workflow against documents,
// from enqueue through a processing signal to a terminal result.
package executions

import (
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/sift/internal/documents"
	"github.com/JaimeStill/sift/internal/schema"
)

// Status is the lifecycle state of an execution.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Execution is one run of a workflow against one document.
//
// ExtractionResult is set exactly when Completed, ErrorMessage exactly when
// Failed, and CompletedAt exactly when terminal.
type Execution struct {
	ID               uuid.UUID                `json:"id"`
	WorkflowID       uuid.UUID                `json:"workflow_id"`
	FileID           uuid.UUID                `json:"file_id"`
	Filename         string                   `json:"filename"`
	Status           Status                   `json:"status"`
	ExtractionResult *schema.ExtractionResult `json:"extraction_result"`
	ErrorMessage     *string                  `json:"error_message"`
	StartedAt        time.Time                `json:"started_at"`
	ProcessingAt     *time.Time               `json:"processing_at"`
	CompletedAt      *time.Time               `json:"completed_at"`
	CreatedAt        time.Time                `json:"created_at"`
	OwnerID          string                   `json:"owner_id"`
}

// Clone returns a deep copy of e.
func (e *Execution) Clone() *Execution {
	out := *e
	out.ExtractionResult = e.ExtractionResult.Clone()
	out.ErrorMessage = clonePtr(e.ErrorMessage)
	out.ProcessingAt = clonePtr(e.ProcessingAt)
	out.CompletedAt = clonePtr(e.CompletedAt)
	return &out
}

// View returns the status projection of e.
func (e *Execution) View() StatusView {
	return StatusView{
		Status:       e.Status,
		Result:       e.ExtractionResult.Clone(),
		ErrorMessage: clonePtr(e.ErrorMessage),
	}
}

// StatusView is the polling projection of an execution.
type StatusView struct {
	Status       Status                   `json:"status"`
	Result       *schema.ExtractionResult `json:"result,omitempty"`
	ErrorMessage *string                  `json:"error_message,omitempty"`
}

// EnqueueCommand queues a document against a workflow.
type EnqueueCommand struct {
	WorkflowID uuid.UUID `json:"-"`
	FileID     uuid.UUID `json:"file_id"`
	Filename   string    `json:"-"`
	OwnerID    string    `json:"-"`
}

// Source is one file submitted for execution: either an existing document
// or an upload that is stored before it is queued.
type Source struct {
	FileID uuid.UUID
	Upload *documents.CreateCommand
}

// BulkCommand runs a workflow against every source, in submission order.
type BulkCommand struct {
	WorkflowID uuid.UUID
	Sources    []Source
	OwnerID    string
}

// CompleteCommand is the body of the completion signal.
type CompleteCommand struct {
	Result *schema.ExtractionResult `json:"result"`
}

// FailCommand is the body of the failure signal.
type FailCommand struct {
	Reason string `json:"reason"`
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
