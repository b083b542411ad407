// Package workflows owns the workflow lifecycle: creation from an uploaded
// document, schema analysis, configuration editing, publishing, and deletion.
package workflows

import (
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/sift/internal/documents"
	"github.com/JaimeStill/sift/internal/schema"
)

// Status is the lifecycle state of a workflow.
type Status string

const (
	StatusDraft       Status = "draft"
	StatusAnalyzing   Status = "analyzing"
	StatusExtracting  Status = "extracting"
	StatusConfiguring Status = "configuring"
	StatusActive      Status = "active"
	StatusError       Status = "error"
)

// Workflow is a reusable extraction schema derived from a sample document.
type Workflow struct {
	ID                    uuid.UUID                `json:"id"`
	Name                  string                   `json:"name"`
	Description           string                   `json:"description"`
	Categories            []schema.Category        `json:"categories"`
	Configuration         schema.Configuration     `json:"configuration"`
	Status                Status                   `json:"status"`
	FileID                uuid.UUID                `json:"file_id"`
	SampleData            *schema.ExtractionResult `json:"sample_data"`
	SampleDataExtractedAt *time.Time               `json:"sample_data_extracted_at"`
	ErrorMessage          *string                  `json:"error_message"`
	OwnerID               string                   `json:"owner_id"`
	OrganizationID        string                   `json:"organization_id"`
	CreatedAt             time.Time                `json:"created_at"`
	UpdatedAt             time.Time                `json:"updated_at"`
}

// Schema returns the workflow's categories and configuration as one value.
func (w *Workflow) Schema() schema.Schema {
	return schema.Schema{Categories: w.Categories, Configuration: w.Configuration}
}

// SetSchema replaces the workflow's categories and configuration.
func (w *Workflow) SetSchema(s schema.Schema) {
	w.Categories = s.Categories
	w.Configuration = s.Configuration
}

// Clone returns a deep copy of w.
func (w *Workflow) Clone() *Workflow {
	out := *w
	out.SetSchema(w.Schema().Clone())
	out.SampleData = w.SampleData.Clone()
	if w.SampleDataExtractedAt != nil {
		t := *w.SampleDataExtractedAt
		out.SampleDataExtractedAt = &t
	}
	if w.ErrorMessage != nil {
		m := *w.ErrorMessage
		out.ErrorMessage = &m
	}
	return &out
}

// CreateCommand registers a draft workflow over an existing document.
type CreateCommand struct {
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	FileID         uuid.UUID `json:"file_id"`
	OwnerID        string    `json:"-"`
	OrganizationID string    `json:"-"`
}

// UploadCommand stores a document and creates a workflow over it.
type UploadCommand struct {
	Name           string
	Description    string
	Document       documents.CreateCommand
	OwnerID        string
	OrganizationID string
}

// UpdateCommand edits a workflow. Nil fields are left unchanged, so categories
// can be reordered or renamed without resubmitting the configuration, and the
// configuration can be edited against the stored categories.
type UpdateCommand struct {
	Name          *string               `json:"name,omitempty"`
	Description   *string               `json:"description,omitempty"`
	Categories    []schema.Category     `json:"categories,omitempty"`
	Configuration *schema.Configuration `json:"configuration,omitempty"`
}

// FailCommand is the body of the analysis failure callback.
type FailCommand struct {
	Reason string `json:"reason"`
}
