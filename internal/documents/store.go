package documents

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/sift/pkg/pagination"
)

// Store persists document records. Blob contents are handled by storage.System.
type Store interface {
	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Document], error)
	Find(ctx context.Context, id uuid.UUID) (*Document, error)
	Insert(ctx context.Context, d Document) (*Document, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
