package workflows

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/JaimeStill/sift/internal/schema"
	"github.com/JaimeStill/sift/pkg/pagination"
	"github.com/JaimeStill/sift/pkg/query"
	"github.com/JaimeStill/sift/pkg/repository"
)

const returning = `RETURNING id, name, description, status, file_id, sample_data, sample_data_extracted_at, error_message, owner_id, organization_id, created_at, updated_at`

type repo struct {
	db *sql.DB
}

// NewRepository creates a PostgreSQL-backed Store.
func NewRepository(db *sql.DB) Store {
	return &repo{db: db}
}

func (r *repo) Create(ctx context.Context, w *Workflow) (*Workflow, error) {
	sample, err := jsonArg(w.SampleData)
	if err != nil {
		return nil, err
	}

	q := `
		INSERT INTO workflows(id, name, description, status, file_id, sample_data, sample_data_extracted_at, error_message, owner_id, organization_id)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9, $10)
		` + returning

	args := []any{
		w.ID, w.Name, w.Description, w.Status, w.FileID,
		sample, w.SampleDataExtractedAt, w.ErrorMessage,
		w.OwnerID, w.OrganizationID,
	}

	saved, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (*Workflow, error) {
		out, err := repository.QueryOne(ctx, tx, q, args, scanWorkflow)
		if err != nil {
			return nil, err
		}
		if err := writeSchema(ctx, tx, out.ID, w.Schema()); err != nil {
			return nil, err
		}
		out.SetSchema(w.Schema().Clone())
		return &out, nil
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return saved, nil
}

// Find reads the workflow row and its schema from one snapshot, so the
// extraction baseline always matches the schema it is compared against.
func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Workflow, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	w, err := repository.WithTxOptions(ctx, r.db, repository.ReadSnapshot, func(tx *sql.Tx) (*Workflow, error) {
		w, err := repository.QueryOne(ctx, tx, q, args, scanWorkflow)
		if err != nil {
			return nil, err
		}

		s, err := readSchema(ctx, tx, id)
		if err != nil {
			return nil, fmt.Errorf("read workflow schema: %w", err)
		}
		w.SetSchema(s)
		return &w, nil
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return w, nil
}

func (r *repo) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Workflow], error) {
	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Name", "Description")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count workflows: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanWorkflow)
	if err != nil {
		return nil, fmt.Errorf("query workflows: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Save(ctx context.Context, w *Workflow, expected Status) (*Workflow, error) {
	sample, err := jsonArg(w.SampleData)
	if err != nil {
		return nil, err
	}

	q := `
		UPDATE workflows
		SET name = $2, description = $3, status = $4, sample_data = $5::jsonb,
			sample_data_extracted_at = $6, error_message = $7, updated_at = now()
		WHERE id = $1 AND status = $8
		` + returning

	args := []any{
		w.ID, w.Name, w.Description, w.Status,
		sample, w.SampleDataExtractedAt, w.ErrorMessage,
		expected,
	}

	saved, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (*Workflow, error) {
		out, err := repository.QueryOne(ctx, tx, q, args, scanWorkflow)
		if errors.Is(err, sql.ErrNoRows) {
			var exists bool
			if err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM workflows WHERE id = $1)", w.ID).Scan(&exists); err != nil {
				return nil, err
			}
			if exists {
				return nil, errStale
			}
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}

		if err := writeSchema(ctx, tx, w.ID, w.Schema()); err != nil {
			return nil, err
		}
		out.SetSchema(w.Schema().Clone())
		return &out, nil
	})
	if err != nil {
		if errors.Is(err, errStale) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return saved, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		return struct{}{}, repository.ExecExpectOne(ctx, tx, "DELETE FROM workflows WHERE id = $1", id)
	})
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return nil
}

// writeSchema replaces the stored categories; fields and tables go with them
// through ON DELETE CASCADE.
func writeSchema(ctx context.Context, tx *sql.Tx, id uuid.UUID, s schema.Schema) error {
	stmts := []repository.Statement{
		{Query: "DELETE FROM workflow_categories WHERE workflow_id = $1", Args: []any{id}},
	}

	for _, c := range s.Categories {
		stmts = append(stmts, repository.Statement{
			Query: `INSERT INTO workflow_categories(workflow_id, id, slug, display_name, ordinal) VALUES ($1, $2, $3, $4, $5)`,
			Args:  []any{id, c.ID, c.Slug, c.DisplayName, c.Ordinal},
		})
	}

	for i, f := range s.Configuration.Fields {
		stmts = append(stmts, repository.Statement{
			Query: `INSERT INTO workflow_fields(workflow_id, id, category_id, name, description, type, required, modified_at, position)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			Args: []any{id, f.ID, f.CategoryID, f.Name, f.Description, f.Type, f.Required, f.ModifiedAt, i},
		})
	}

	for i, t := range s.Configuration.Tables {
		columns, err := json.Marshal(t.Columns)
		if err != nil {
			return fmt.Errorf("encode columns of %s: %w", t.Name, err)
		}
		stmts = append(stmts, repository.Statement{
			Query: `INSERT INTO workflow_tables(workflow_id, id, category_id, name, description, columns, modified_at, position)
				VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8)`,
			Args: []any{id, t.ID, t.CategoryID, t.Name, t.Description, string(columns), t.ModifiedAt, i},
		})
	}

	return repository.Exec(ctx, tx, stmts...)
}

func readSchema(ctx context.Context, db repository.Querier, id uuid.UUID) (schema.Schema, error) {
	categories, err := repository.QueryMany(ctx, db,
		`SELECT id, slug, display_name, ordinal FROM workflow_categories WHERE workflow_id = $1 ORDER BY ordinal`,
		[]any{id},
		func(s repository.Scanner) (schema.Category, error) {
			var c schema.Category
			err := s.Scan(&c.ID, &c.Slug, &c.DisplayName, &c.Ordinal)
			return c, err
		},
	)
	if err != nil {
		return schema.Schema{}, err
	}

	fields, err := repository.QueryMany(ctx, db,
		`SELECT id, category_id, name, description, type, required, modified_at FROM workflow_fields WHERE workflow_id = $1 ORDER BY position`,
		[]any{id},
		func(s repository.Scanner) (schema.Field, error) {
			var f schema.Field
			err := s.Scan(&f.ID, &f.CategoryID, &f.Name, &f.Description, &f.Type, &f.Required, &f.ModifiedAt)
			return f, err
		},
	)
	if err != nil {
		return schema.Schema{}, err
	}

	tables, err := repository.QueryMany(ctx, db,
		`SELECT id, category_id, name, description, columns, modified_at FROM workflow_tables WHERE workflow_id = $1 ORDER BY position`,
		[]any{id},
		func(s repository.Scanner) (schema.Table, error) {
			var t schema.Table
			var columns []byte
			if err := s.Scan(&t.ID, &t.CategoryID, &t.Name, &t.Description, &columns, &t.ModifiedAt); err != nil {
				return t, err
			}
			if err := json.Unmarshal(columns, &t.Columns); err != nil {
				return t, fmt.Errorf("decode columns of %s: %w", t.Name, err)
			}
			return t, nil
		},
	)
	if err != nil {
		return schema.Schema{}, err
	}

	return schema.Schema{
		Categories: categories,
		Configuration: schema.Configuration{
			Fields: fields,
			Tables: tables,
		},
	}, nil
}

func scanWorkflow(s repository.Scanner) (Workflow, error) {
	var w Workflow
	var sample []byte

	err := s.Scan(
		&w.ID,
		&w.Name,
		&w.Description,
		&w.Status,
		&w.FileID,
		&sample,
		&w.SampleDataExtractedAt,
		&w.ErrorMessage,
		&w.OwnerID,
		&w.OrganizationID,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return w, err
	}

	if sample != nil {
		if err := json.Unmarshal(sample, &w.SampleData); err != nil {
			return w, fmt.Errorf("decode sample data: %w", err)
		}
	}
	return w, nil
}

func jsonArg(v *schema.ExtractionResult) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode sample data: %w", err)
	}
	return string(data), nil
}
