package workflows

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"

	"github.com/JaimeStill/sift/internal/memory"
	"github.com/JaimeStill/sift/internal/schema"
	"github.com/JaimeStill/sift/pkg/pagination"
	"github.com/JaimeStill/sift/pkg/query"
)

var ordering = memory.Ordering[Workflow]{
	Fields: map[string]func(a, b *Workflow) int{
		"Name":      func(a, b *Workflow) int { return strings.Compare(a.Name, b.Name) },
		"Status":    func(a, b *Workflow) int { return strings.Compare(string(a.Status), string(b.Status)) },
		"CreatedAt": func(a, b *Workflow) int { return a.CreatedAt.Compare(b.CreatedAt) },
		"UpdatedAt": func(a, b *Workflow) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
	},
	Default: []query.SortField{defaultSort},
}

type memStore struct {
	db *memdb.MemDB
}

// NewMemoryStore creates a Store over the shared in-memory database. Deleting
// a workflow also removes its rows from the executions table.
func NewMemoryStore(db *memdb.MemDB) Store {
	return &memStore{db: db}
}

func (m *memStore) Create(ctx context.Context, w *Workflow) (*Workflow, error) {
	txn := m.db.Txn(true)
	defer txn.Abort()

	existing, err := memory.Find[Workflow](txn, memory.Workflows, w.ID.String())
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicate
	}

	stored := w.Clone()
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	if err := txn.Insert(memory.Workflows, &memory.Row{ID: stored.ID.String(), Value: stored}); err != nil {
		return nil, err
	}
	txn.Commit()
	return stored.Clone(), nil
}

func (m *memStore) Find(ctx context.Context, id uuid.UUID) (*Workflow, error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	w, err := memory.Find[Workflow](txn, memory.Workflows, id.String())
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrNotFound
	}
	return w.Clone(), nil
}

func (m *memStore) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Workflow], error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	all, err := memory.All[Workflow](txn, memory.Workflows)
	if err != nil {
		return nil, err
	}

	result := memory.Page(all, page, ordering, func(w *Workflow) bool {
		return (memory.Contains(w.Name, page.Search) || memory.Contains(w.Description, page.Search)) &&
			memory.Equals(w.Status, filters.Status) &&
			memory.Contains(w.Name, filters.Name) &&
			memory.Equals(w.OwnerID, filters.OwnerID) &&
			memory.Equals(w.OrganizationID, filters.OrganizationID)
	})

	for i := range result.Data {
		summary := result.Data[i].Clone()
		summary.Categories = nil
		summary.Configuration = schema.Configuration{}
		result.Data[i] = *summary
	}
	return &result, nil
}

func (m *memStore) Save(ctx context.Context, w *Workflow, expected Status) (*Workflow, error) {
	txn := m.db.Txn(true)
	defer txn.Abort()

	current, err := memory.Find[Workflow](txn, memory.Workflows, w.ID.String())
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNotFound
	}
	if current.Status != expected {
		return nil, errStale
	}

	stored := w.Clone()
	stored.CreatedAt = current.CreatedAt
	stored.UpdatedAt = time.Now().UTC()
	stored.FileID = current.FileID
	stored.OwnerID = current.OwnerID
	stored.OrganizationID = current.OrganizationID

	if err := txn.Insert(memory.Workflows, &memory.Row{ID: stored.ID.String(), Value: stored}); err != nil {
		return nil, err
	}
	txn.Commit()
	return stored.Clone(), nil
}

func (m *memStore) Delete(ctx context.Context, id uuid.UUID) error {
	txn := m.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(memory.Workflows, memory.IndexID, id.String())
	if err != nil {
		return err
	}
	if raw == nil {
		return ErrNotFound
	}

	if err := txn.Delete(memory.Workflows, raw); err != nil {
		return err
	}
	if _, err := txn.DeleteAll(memory.Executions, memory.IndexParent, id.String()); err != nil {
		return err
	}

	txn.Commit()
	return nil
}
