// Package memory builds the go-memdb database backing the in-process stores.
//
// Every table holds Row values keyed by ID. ParentID links a row to its owner
// (an execution to its workflow) so cascades can run inside one write transaction.
package memory

import (
	"fmt"

	"github.com/hashicorp/go-memdb"
)

// Table names.
const (
	Documents  = "documents"
	Workflows  = "workflows"
	Executions = "executions"
)

// Index names.
const (
	IndexID     = "id"
	IndexParent = "parent"
)

// Row is the stored form of every entity. Value holds a pointer to the entity
// and must be treated as immutable once inserted.
type Row struct {
	ID       string
	ParentID string
	Value    any
}

// New creates an empty database with the documents, workflows, and executions tables.
func New() (*memdb.MemDB, error) {
	tables := make(map[string]*memdb.TableSchema)
	for _, name := range []string{Documents, Workflows, Executions} {
		tables[name] = table(name)
	}

	db, err := memdb.NewMemDB(&memdb.DBSchema{Tables: tables})
	if err != nil {
		return nil, fmt.Errorf("create memory database: %w", err)
	}
	return db, nil
}

func table(name string) *memdb.TableSchema {
	return &memdb.TableSchema{
		Name: name,
		Indexes: map[string]*memdb.IndexSchema{
			IndexID: {
				Name:    IndexID,
				Unique:  true,
				Indexer: &memdb.StringFieldIndex{Field: "ID"},
			},
			IndexParent: {
				Name:         IndexParent,
				AllowMissing: true,
				Indexer:      &memdb.StringFieldIndex{Field: "ParentID"},
			},
		},
	}
}

// All returns every value in table, in id order.
func All[T any](txn *memdb.Txn, table string) ([]*T, error) {
	return collect[T](txn.Get(table, IndexID))
}

// Children returns the values in table whose ParentID is parent.
func Children[T any](txn *memdb.Txn, table, parent string) ([]*T, error) {
	return collect[T](txn.Get(table, IndexParent, parent))
}

// Find returns the value stored under id, or nil when absent.
func Find[T any](txn *memdb.Txn, table, id string) (*T, error) {
	raw, err := txn.First(table, IndexID, id)
	if err != nil {
		return nil, fmt.Errorf("find %s %s: %w", table, id, err)
	}
	if raw == nil {
		return nil, nil
	}
	return raw.(*Row).Value.(*T), nil
}

func collect[T any](it memdb.ResultIterator, err error) ([]*T, error) {
	if err != nil {
		return nil, err
	}
	var out []*T
	for raw := it.Next(); raw != nil; raw = it.Next() {
		out = append(out, raw.(*Row).Value.(*T))
	}
	return out, nil
}
