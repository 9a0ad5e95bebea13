package core

import (
	"context"
	"io"

	"github.com/markdave123-py/chunkenizer/internal/models"
)

// MetadataStore holds document bookkeeping records.
// It abstracts Postgres/SQLite so higher layers never depend on a specific DB.
type MetadataStore interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	// FindDocumentsByFingerprint returns matches oldest first. More than one
	// match is possible when two ingests of the same content race.
	FindDocumentsByFingerprint(ctx context.Context, fingerprint string) ([]models.Document, error)
	ListDocuments(ctx context.Context) ([]models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id string, status string) error
	MarkIngested(ctx context.Context, id string, chunkCount, totalTokens int) error
	DeleteDocument(ctx context.Context, id string) error

	Ping(ctx context.Context) error
	Close() error
}

// VectorStore is a nearest-neighbour index over chunk vectors with payload.
// Filters are applied before ranking so excluded chunks never use up topK.
type VectorStore interface {
	EnsureCollection(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, points []models.ChunkPoint) error
	// Delete removes every point matching filter. An empty filter is refused.
	Delete(ctx context.Context, filter models.SearchFilter) error
	Search(ctx context.Context, vector []float32, topK int, filter models.SearchFilter) ([]models.ScoredChunk, error)
	Count(ctx context.Context, filter models.SearchFilter) (int, error)

	Ping(ctx context.Context) error
	Close() error
}

// ObjectClient archives raw uploads in S3 or any object storage. The client
// owns its bucket; callers pass keys only.
type ObjectClient interface {
	UploadFile(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, key string) error

	GetObjectReader(ctx context.Context, key string) (io.ReadCloser, error)
}
