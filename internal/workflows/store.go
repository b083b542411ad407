package workflows

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/sift/pkg/pagination"
)

// Store persists workflows together with their categories, fields, and tables.
type Store interface {
	Create(ctx context.Context, w *Workflow) (*Workflow, error)
	Find(ctx context.Context, id uuid.UUID) (*Workflow, error)
	// List returns workflow summaries; categories and configuration are omitted.
	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Workflow], error)
	// Save replaces the stored workflow when its status still equals expected,
	// returning errStale otherwise. The schema is replaced in the same transaction.
	Save(ctx context.Context, w *Workflow, expected Status) (*Workflow, error)
	// Delete removes the workflow with its schema and executions in one transaction.
	Delete(ctx context.Context, id uuid.UUID) error
}
