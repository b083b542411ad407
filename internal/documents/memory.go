package documents

import (
	"cmp"
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"

	"github.com/JaimeStill/sift/internal/memory"
	"github.com/JaimeStill/sift/pkg/pagination"
	"github.com/JaimeStill/sift/pkg/query"
)

var ordering = memory.Ordering[Document]{
	Fields: map[string]func(a, b *Document) int{
		"Filename":   func(a, b *Document) int { return strings.Compare(a.Filename, b.Filename) },
		"SizeBytes":  func(a, b *Document) int { return cmp.Compare(a.SizeBytes, b.SizeBytes) },
		"UploadedAt": func(a, b *Document) int { return a.UploadedAt.Compare(b.UploadedAt) },
		"UpdatedAt":  func(a, b *Document) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
	},
	Default: []query.SortField{defaultSort},
}

type memStore struct {
	db *memdb.MemDB
}

// NewMemoryStore creates a Store over the shared in-memory database.
func NewMemoryStore(db *memdb.MemDB) Store {
	return &memStore{db: db}
}

func (m *memStore) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Document], error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	all, err := memory.All[Document](txn, memory.Documents)
	if err != nil {
		return nil, err
	}

	result := memory.Page(all, page, ordering, func(d *Document) bool {
		return memory.Contains(d.Filename, page.Search) &&
			memory.Equals(d.OwnerID, filters.OwnerID) &&
			memory.Contains(d.Filename, filters.Filename) &&
			memory.Equals(d.ContentType, filters.ContentType)
	})
	return &result, nil
}

func (m *memStore) Find(ctx context.Context, id uuid.UUID) (*Document, error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	d, err := memory.Find[Document](txn, memory.Documents, id.String())
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrNotFound
	}
	out := *d
	return &out, nil
}

func (m *memStore) Insert(ctx context.Context, doc Document) (*Document, error) {
	txn := m.db.Txn(true)
	defer txn.Abort()

	existing, err := memory.Find[Document](txn, memory.Documents, doc.ID.String())
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicate
	}

	now := time.Now().UTC()
	doc.UploadedAt = now
	doc.UpdatedAt = now

	if err := txn.Insert(memory.Documents, &memory.Row{ID: doc.ID.String(), Value: &doc}); err != nil {
		return nil, err
	}
	txn.Commit()

	out := doc
	return &out, nil
}

func (m *memStore) Delete(ctx context.Context, id uuid.UUID) error {
	txn := m.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(memory.Documents, memory.IndexID, id.String())
	if err != nil {
		return err
	}
	if raw == nil {
		return ErrNotFound
	}
	if err := txn.Delete(memory.Documents, raw); err != nil {
		return err
	}
	txn.Commit()
	return nil
}
