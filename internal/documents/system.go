package documents

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/sift/pkg/pagination"
	"github.com/JaimeStill/sift/pkg/storage"
)

// System defines the public contract for document domain operations.
type System interface {
	Handler(maxUploadSize int64) *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Document], error)

	Find(ctx context.Context, id uuid.UUID) (*Document, error)
	Create(ctx context.Context, cmd CreateCommand) (*Document, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// PresignURL returns a time-limited read URL for the document blob.
	PresignURL(ctx context.Context, id uuid.UUID) (*URL, error)
	// Resolve returns the document when both its record and its blob are
	// reachable. A missing blob or storage failure yields ErrBlobMissing.
	Resolve(ctx context.Context, id uuid.UUID) (*Document, error)
}

type system struct {
	store      Store
	storage    storage.System
	logger     *slog.Logger
	pagination pagination.Config
	presignTTL time.Duration
}

// New creates the document system over the given record store and blob storage.
func New(
	store Store,
	blobs storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
	presignTTL time.Duration,
) System {
	return &system{
		store:      store,
		storage:    blobs,
		logger:     logger.With("system", "documents"),
		pagination: pagination,
		presignTTL: presignTTL,
	}
}

func (s *system) Handler(maxUploadSize int64) *Handler {
	return NewHandler(s, s.logger, s.pagination, maxUploadSize)
}

func (s *system) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Document], error) {
	page.Normalize(s.pagination)
	return s.store.List(ctx, page, filters)
}

func (s *system) Find(ctx context.Context, id uuid.UUID) (*Document, error) {
	return s.store.Find(ctx, id)
}

func (s *system) Create(ctx context.Context, cmd CreateCommand) (*Document, error) {
	if len(cmd.Data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidFile)
	}

	id := cmd.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	key := buildStorageKey(id, sanitizeFilename(cmd.Filename))

	if err := s.storage.Upload(ctx, key, bytes.NewReader(cmd.Data), cmd.ContentType); err != nil {
		return nil, fmt.Errorf("upload document blob: %w", err)
	}

	d, err := s.store.Insert(ctx, Document{
		ID:          id,
		OwnerID:     cmd.OwnerID,
		Filename:    cmd.Filename,
		ContentType: cmd.ContentType,
		SizeBytes:   int64(len(cmd.Data)),
		PageCount:   cmd.PageCount,
		StorageKey:  key,
	})
	if err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.logger.Warn("compensating blob delete failed", "key", key, "error", delErr)
		}
		return nil, err
	}

	s.logger.Info("document created", "id", d.ID, "filename", d.Filename)
	return d, nil
}

func (s *system) Delete(ctx context.Context, id uuid.UUID) error {
	doc, err := s.store.Find(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	if delErr := s.storage.Delete(ctx, doc.StorageKey); delErr != nil {
		s.logger.Warn(
			"blob delete failed after record delete",
			"key", doc.StorageKey,
			"error", delErr,
		)
	}

	s.logger.Info("document deleted", "id", id)
	return nil
}

func (s *system) PresignURL(ctx context.Context, id uuid.UUID) (*URL, error) {
	doc, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	expires := time.Now().UTC().Add(s.presignTTL)
	u, err := s.storage.PresignURL(ctx, doc.StorageKey, s.presignTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBlobMissing, err)
	}

	return &URL{URL: u, ExpiresAt: expires}, nil
}

func (s *system) Resolve(ctx context.Context, id uuid.UUID) (*Document, error) {
	doc, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	ok, err := s.storage.Exists(ctx, doc.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBlobMissing, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBlobMissing, doc.StorageKey)
	}

	return doc, nil
}

func buildStorageKey(id uuid.UUID, filename string) string {
	return fmt.Sprintf("documents/%s/%s", id, filename)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	if name == "." || name == "" || name == "/" {
		name = "document"
	}
	return url.PathEscape(name)
}
