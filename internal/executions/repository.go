package executions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/sift/internal/workflows"
	"github.com/JaimeStill/sift/pkg/pagination"
	"github.com/JaimeStill/sift/pkg/query"
	"github.com/JaimeStill/sift/pkg/repository"
)

const returning = `RETURNING id, workflow_id, file_id, filename, status, extraction_result, error_message, started_at, processing_at, completed_at, created_at, owner_id`

type repo struct {
	db *sql.DB
}

// NewRepository creates a PostgreSQL-backed Store. Terminal-state invariants
// are also enforced by CHECK constraints on the executions table.
func NewRepository(db *sql.DB) Store {
	return &repo{db: db}
}

func (r *repo) Create(ctx context.Context, e *Execution) (*Execution, error) {
	result, err := jsonArg(e)
	if err != nil {
		return nil, err
	}

	q := `
		INSERT INTO executions(id, workflow_id, file_id, filename, status, extraction_result, error_message, started_at, processing_at, completed_at, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9, $10, $11)
		` + returning

	args := []any{
		e.ID, e.WorkflowID, e.FileID, e.Filename, e.Status,
		result, e.ErrorMessage, e.StartedAt, e.ProcessingAt, e.CompletedAt,
		e.OwnerID,
	}

	out, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Execution, error) {
		return repository.QueryOne(ctx, tx, q, args, scanExecution)
	})
	if err != nil {
		return nil, mapWriteError(err)
	}
	return &out, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Execution, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	e, err := repository.QueryOne(ctx, r.db, q, args, scanExecution)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &e, nil
}

func (r *repo) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Execution], error) {
	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Filename")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count executions: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanExecution)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Save(ctx context.Context, e *Execution, expected ...Status) (*Execution, error) {
	result, err := jsonArg(e)
	if err != nil {
		return nil, err
	}

	statuses := make([]string, len(expected))
	for i, s := range expected {
		statuses[i] = string(s)
	}

	q := `
		UPDATE executions
		SET status = $3, extraction_result = $4::jsonb, error_message = $5,
			processing_at = $6, completed_at = $7
		WHERE id = $1 AND status = ANY($2)
		` + returning

	args := []any{
		e.ID, statuses, e.Status,
		result, e.ErrorMessage, e.ProcessingAt, e.CompletedAt,
	}

	out, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Execution, error) {
		out, err := repository.QueryOne(ctx, tx, q, args, scanExecution)
		if errors.Is(err, sql.ErrNoRows) {
			var exists bool
			if err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM executions WHERE id = $1)", e.ID).Scan(&exists); err != nil {
				return out, err
			}
			if exists {
				return out, errStale
			}
			return out, ErrNotFound
		}
		return out, err
	})
	if err != nil {
		if errors.Is(err, errStale) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, mapWriteError(err)
	}
	return &out, nil
}

func (r *repo) Stale(ctx context.Context, cutoff time.Time) ([]Execution, error) {
	q, args := query.NewBuilder(projection, defaultSort).
		WhereIn("Status", StatusQueued, StatusProcessing).
		Where("coalesce(e.processing_at, e.started_at) < $%d", cutoff).
		Build()

	items, err := repository.QueryMany(ctx, r.db, q, args, scanExecution)
	if err != nil {
		return nil, fmt.Errorf("query stale executions: %w", err)
	}
	return items, nil
}

func mapWriteError(err error) error {
	if repository.IsForeignKeyViolation(err) {
		return workflows.ErrNotFound
	}
	if repository.IsCheckViolation(err) {
		return fmt.Errorf("execution invariant violated: %w", err)
	}
	return repository.MapError(err, ErrNotFound, ErrDuplicate)
}

func jsonArg(e *Execution) (any, error) {
	if e.ExtractionResult == nil {
		return nil, nil
	}
	data, err := json.Marshal(e.ExtractionResult)
	if err != nil {
		return nil, fmt.Errorf("encode extraction result: %w", err)
	}
	return string(data), nil
}
