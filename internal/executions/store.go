package executions

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/sift/pkg/pagination"
)

// Store persists executions.
type Store interface {
	Create(ctx context.Context, e *Execution) (*Execution, error)
	Find(ctx context.Context, id uuid.UUID) (*Execution, error)
	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Execution], error)
	// Save writes e when the stored status is one of expected, returning
	// errStale otherwise.
	Save(ctx context.Context, e *Execution, expected ...Status) (*Execution, error)
	// Stale returns non-terminal executions whose last progress is before cutoff.
	Stale(ctx context.Context, cutoff time.Time) ([]Execution, error)
}
