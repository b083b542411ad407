//go:build integration

package workflows_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/sift/internal/pgtest"
	"github.com/JaimeStill/sift/internal/schema"
	"github.com/JaimeStill/sift/internal/workflows"
	"github.com/JaimeStill/sift/pkg/pagination"
)

func storedWorkflow(status workflows.Status) *workflows.Workflow {
	stamp := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &workflows.Workflow{
		ID:         uuid.New(),
		Name:       "Invoices",
		Status:     status,
		FileID:     uuid.New(),
		OwnerID:    "u-1",
		Categories: []schema.Category{{ID: "c1", Slug: "header", DisplayName: "Header"}},
		Configuration: schema.Configuration{
			Fields: []schema.Field{
				{ID: "f1", CategoryID: "c1", Name: "total", Type: schema.FieldCurrency, ModifiedAt: stamp},
				{ID: "f2", CategoryID: "c1", Name: "date", Type: schema.FieldDate, ModifiedAt: stamp},
			},
			Tables: []schema.Table{
				{ID: "t1", CategoryID: "c1", Name: "items", Columns: []schema.Column{{ID: "k1", Name: "sku", Type: schema.ColumnString}}, ModifiedAt: stamp},
			},
		},
	}
}

func TestRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := workflows.NewRepository(pgtest.Open(t))

	created, err := store.Create(ctx, storedWorkflow(workflows.StatusConfiguring))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	found, err := store.Find(ctx, created.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(found.Categories) != 1 || len(found.Configuration.Fields) != 2 || len(found.Configuration.Tables) != 1 {
		t.Fatalf("schema not persisted: %+v", found.Schema())
	}
	if found.Configuration.Fields[1].Name != "date" {
		t.Errorf("field order not preserved")
	}
	if found.Configuration.Tables[0].Columns[0].Name != "sku" {
		t.Errorf("columns = %+v", found.Configuration.Tables[0].Columns)
	}

	page, err := store.List(ctx, pagination.PageRequest{Page: 1, PageSize: 10}, workflows.Filters{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 1 {
		t.Errorf("total = %d, want 1", page.Total)
	}
}

func TestRepositorySaveCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store := workflows.NewRepository(pgtest.Open(t))

	created, err := store.Create(ctx, storedWorkflow(workflows.StatusConfiguring))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	next := created.Clone()
	next.Status = workflows.StatusActive
	next.Configuration.Fields = next.Configuration.Fields[:1]
	if _, err := store.Save(ctx, next, workflows.StatusConfiguring); err != nil {
		t.Fatalf("Save: %v", err)
	}

	stale := created.Clone()
	stale.Status = workflows.StatusExtracting
	_, err = store.Save(ctx, stale, workflows.StatusConfiguring)
	if err == nil || errors.Is(err, workflows.ErrNotFound) {
		t.Fatalf("stale save err = %v, want stale rejection", err)
	}

	found, _ := store.Find(ctx, created.ID)
	if found.Status != workflows.StatusActive || len(found.Configuration.Fields) != 1 {
		t.Errorf("stored = %s with %d fields", found.Status, len(found.Configuration.Fields))
	}

	missing := storedWorkflow(workflows.StatusConfiguring)
	if _, err := store.Save(ctx, missing, workflows.StatusConfiguring); !errors.Is(err, workflows.ErrNotFound) {
		t.Errorf("save unknown err = %v, want ErrNotFound", err)
	}
}

func TestRepositoryFindReadsOneSnapshot(t *testing.T) {
	ctx := context.Background()
	store := workflows.NewRepository(pgtest.Open(t))

	created, err := store.Create(ctx, storedWorkflow(workflows.StatusConfiguring))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Each version pairs a row value with a schema shape: "one" has one field,
	// "two" has two.
	versions := map[string]int{"one": 1, "two": 2}
	version := func(name string) *workflows.Workflow {
		w := created.Clone()
		w.Name = name
		w.Configuration.Fields = created.Configuration.Fields[:versions[name]]
		return w
	}

	done := make(chan struct{})
	writeErr := make(chan error, 1)
	go func() {
		defer close(writeErr)
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
			}
			name := "one"
			if i%2 == 1 {
				name = "two"
			}
			if _, err := store.Save(ctx, version(name), workflows.StatusConfiguring); err != nil {
				writeErr <- err
				return
			}
		}
	}()

	for range 200 {
		found, err := store.Find(ctx, created.ID)
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if want, ok := versions[found.Name]; ok && len(found.Configuration.Fields) != want {
			t.Fatalf("row %q read with %d fields, want %d", found.Name, len(found.Configuration.Fields), want)
		}
	}
	close(done)

	if err := <-writeErr; err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestRepositoryDeleteCascades(t *testing.T) {
	ctx := context.Background()
	db := pgtest.Open(t)
	store := workflows.NewRepository(db)

	created, err := store.Create(ctx, storedWorkflow(workflows.StatusActive))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO executions(id, workflow_id, file_id, status, started_at) VALUES ($1, $2, $3, 'queued', now())`,
		uuid.New(), created.ID, uuid.New(),
	); err != nil {
		t.Fatalf("seed execution: %v", err)
	}

	if err := store.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	for _, table := range []string{"workflow_categories", "workflow_fields", "workflow_tables", "executions"} {
		var n int
		if err := db.QueryRowContext(ctx, "SELECT count(*) FROM "+table+" WHERE workflow_id = $1", created.ID).Scan(&n); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if n != 0 {
			t.Errorf("%s has %d rows after delete", table, n)
		}
	}

	if err := store.Delete(ctx, created.ID); !errors.Is(err, workflows.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}
