package executions

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"

	"github.com/JaimeStill/sift/internal/memory"
	"github.com/JaimeStill/sift/internal/workflows"
	"github.com/JaimeStill/sift/pkg/pagination"
	"github.com/JaimeStill/sift/pkg/query"
)

var ordering = memory.Ordering[Execution]{
	Fields: map[string]func(a, b *Execution) int{
		"Filename":  func(a, b *Execution) int { return strings.Compare(a.Filename, b.Filename) },
		"Status":    func(a, b *Execution) int { return strings.Compare(string(a.Status), string(b.Status)) },
		"StartedAt": func(a, b *Execution) int { return a.StartedAt.Compare(b.StartedAt) },
		"CreatedAt": func(a, b *Execution) int { return a.CreatedAt.Compare(b.CreatedAt) },
	},
	Default: []query.SortField{defaultSort},
}

type memStore struct {
	db *memdb.MemDB
}

// NewMemoryStore creates a Store over the shared in-memory database. Rows are
// parented to their workflow so workflow deletion removes them.
func NewMemoryStore(db *memdb.MemDB) Store {
	return &memStore{db: db}
}

func (m *memStore) Create(ctx context.Context, e *Execution) (*Execution, error) {
	txn := m.db.Txn(true)
	defer txn.Abort()

	wf, err := txn.First(memory.Workflows, memory.IndexID, e.WorkflowID.String())
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, workflows.ErrNotFound
	}

	existing, err := memory.Find[Execution](txn, memory.Executions, e.ID.String())
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicate
	}

	stored := e.Clone()
	stored.CreatedAt = time.Now().UTC()

	if err := m.insert(txn, stored); err != nil {
		return nil, err
	}
	txn.Commit()
	return stored.Clone(), nil
}

func (m *memStore) Find(ctx context.Context, id uuid.UUID) (*Execution, error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	e, err := memory.Find[Execution](txn, memory.Executions, id.String())
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrNotFound
	}
	return e.Clone(), nil
}

func (m *memStore) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Execution], error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	var (
		all []*Execution
		err error
	)
	if filters.WorkflowID != nil {
		all, err = memory.Children[Execution](txn, memory.Executions, filters.WorkflowID.String())
	} else {
		all, err = memory.All[Execution](txn, memory.Executions)
	}
	if err != nil {
		return nil, err
	}

	result := memory.Page(all, page, ordering, func(e *Execution) bool {
		return memory.Contains(e.Filename, page.Search) &&
			memory.Equals(e.FileID, filters.FileID) &&
			memory.Equals(e.Status, filters.Status) &&
			memory.Equals(e.OwnerID, filters.OwnerID)
	})
	return &result, nil
}

func (m *memStore) Save(ctx context.Context, e *Execution, expected ...Status) (*Execution, error) {
	txn := m.db.Txn(true)
	defer txn.Abort()

	current, err := memory.Find[Execution](txn, memory.Executions, e.ID.String())
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNotFound
	}
	if !slices.Contains(expected, current.Status) {
		return nil, errStale
	}

	stored := current.Clone()
	stored.Status = e.Status
	stored.ExtractionResult = e.ExtractionResult.Clone()
	stored.ErrorMessage = clonePtr(e.ErrorMessage)
	stored.ProcessingAt = clonePtr(e.ProcessingAt)
	stored.CompletedAt = clonePtr(e.CompletedAt)

	if err := m.insert(txn, stored); err != nil {
		return nil, err
	}
	txn.Commit()
	return stored.Clone(), nil
}

func (m *memStore) Stale(ctx context.Context, cutoff time.Time) ([]Execution, error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	all, err := memory.All[Execution](txn, memory.Executions)
	if err != nil {
		return nil, err
	}

	var stale []Execution
	for _, e := range all {
		if e.Status.Terminal() {
			continue
		}
		progress := e.StartedAt
		if e.ProcessingAt != nil {
			progress = *e.ProcessingAt
		}
		if progress.Before(cutoff) {
			stale = append(stale, *e.Clone())
		}
	}

	slices.SortFunc(stale, func(a, b Execution) int { return a.StartedAt.Compare(b.StartedAt) })
	return stale, nil
}

func (m *memStore) insert(txn *memdb.Txn, e *Execution) error {
	return txn.Insert(memory.Executions, &memory.Row{
		ID:       e.ID.String(),
		ParentID: e.WorkflowID.String(),
		Value:    e,
	})
}
