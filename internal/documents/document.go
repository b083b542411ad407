// Package documents registers uploaded files and their blobs. Workflows and
// executions refer to documents by id; analysis and extraction read them
// through presigned URLs.
package documents

import (
	"time"

	"github.com/google/uuid"
)

// Document represents a registered document with its metadata and blob storage reference.
type Document struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	PageCount   *int      `json:"page_count"`
	StorageKey  string    `json:"storage_key"`
	UploadedAt  time.Time `json:"uploaded_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateCommand carries the data needed to upload and register a new document.
// ID may be preallocated by the caller so a failed upload can still be
// referenced; the zero value requests a new id.
type CreateCommand struct {
	ID          uuid.UUID
	OwnerID     string
	Data        []byte
	Filename    string
	ContentType string
	PageCount   *int
}

// URL is a time-limited read link to a document's blob.
type URL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
