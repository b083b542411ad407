package executions

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/JaimeStill/sift/pkg/query"
	"github.com/JaimeStill/sift/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "executions", "e").
	Project("id", "ID").
	Project("workflow_id", "WorkflowID").
	Project("file_id", "FileID").
	Project("filename", "Filename").
	Project("status", "Status").
	Project("extraction_result", "ExtractionResult").
	Project("error_message", "ErrorMessage").
	Project("started_at", "StartedAt").
	Project("processing_at", "ProcessingAt").
	Project("completed_at", "CompletedAt").
	Project("created_at", "CreatedAt").
	Project("owner_id", "OwnerID")

var defaultSort = query.SortField{
	Field: "StartedAt",
}

// Filters contains optional filtering criteria for execution queries.
type Filters struct {
	WorkflowID *uuid.UUID `json:"workflow_id,omitempty"`
	FileID     *uuid.UUID `json:"file_id,omitempty"`
	Status     *Status    `json:"status,omitempty"`
	OwnerID    *string    `json:"owner_id,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("WorkflowID", f.WorkflowID).
		WhereEquals("FileID", f.FileID).
		WhereEquals("Status", f.Status).
		WhereEquals("OwnerID", f.OwnerID)
}

// FiltersFromQuery extracts filter values from URL query parameters.
// Unparseable ids are ignored.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if v := values.Get("file_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			f.FileID = &id
		}
	}
	if v := values.Get("status"); v != "" {
		s := Status(v)
		f.Status = &s
	}
	if v := values.Get("owner_id"); v != "" {
		f.OwnerID = &v
	}

	return f
}

func scanExecution(s repository.Scanner) (Execution, error) {
	var e Execution
	var result []byte

	err := s.Scan(
		&e.ID,
		&e.WorkflowID,
		&e.FileID,
		&e.Filename,
		&e.Status,
		&result,
		&e.ErrorMessage,
		&e.StartedAt,
		&e.ProcessingAt,
		&e.CompletedAt,
		&e.CreatedAt,
		&e.OwnerID,
	)
	if err != nil {
		return e, err
	}

	if result != nil {
		if err := json.Unmarshal(result, &e.ExtractionResult); err != nil {
			return e, fmt.Errorf("decode extraction result: %w", err)
		}
	}
	return e, nil
}
