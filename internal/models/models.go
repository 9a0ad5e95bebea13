package models

import (
	"encoding/json"
	"time"
)

// Document lifecycle states.
const (
	StatusPending  = "pending"
	StatusIngested = "ingested"
	StatusFailed   = "failed"
)

// Document is the metadata-store record for one uploaded file.
type Document struct {
	ID          string          `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	ContentType string          `db:"content_type" json:"content_type"`
	Fingerprint string          `db:"fingerprint" json:"fingerprint"`
	Status      string          `db:"status" json:"status"` // pending | ingested | failed
	Metadata    json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	StorageURL  string          `db:"storage_url" json:"storage_url,omitempty"` // archived raw upload, if any
	ChunkCount  int             `db:"chunk_count" json:"chunk_count"`
	TotalTokens int             `db:"total_tokens" json:"total_tokens"` // tokens in the canonical text; overlap is not counted twice
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// TextChunk is one token window of a document before it is embedded.
type TextChunk struct {
	Index      int
	Text       string
	TokenCount int
}

// ChunkPoint is what the vector store holds for one chunk: the vector plus a
// payload carrying denormalised copies of the parent document fields.
type ChunkPoint struct {
	ID           string          `json:"id"` // <document_id>:<chunk_index>
	DocumentID   string          `json:"document_id"`
	ChunkIndex   int             `json:"chunk_index"`
	Text         string          `json:"chunk_text"`
	TokenCount   int             `json:"token_count"`
	Embedding    []float32       `json:"-"`
	DocumentName string          `json:"name"`
	ContentType  string          `json:"content_type"`
	Fingerprint  string          `json:"fingerprint"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ScoredChunk is a search hit. Score is cosine similarity, higher is closer.
type ScoredChunk struct {
	Score        float32         `json:"score"`
	DocumentID   string          `json:"document_id"`
	DocumentName string          `json:"document_name"`
	ChunkIndex   int             `json:"chunk_index"`
	Text         string          `json:"chunk_text"`
	TokenCount   int             `json:"token_count"`
	ContentType  string          `json:"content_type"`
	Fingerprint  string          `json:"fingerprint"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// SearchFilter is a conjunctive equality predicate over chunk payload fields.
// Zero-valued fields do not constrain. Metadata values must be scalars.
type SearchFilter struct {
	DocumentID   string         `json:"document_id,omitempty"`
	DocumentName string         `json:"document_name,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// IsEmpty reports whether the filter matches everything.
func (f SearchFilter) IsEmpty() bool {
	return f.DocumentID == "" && f.DocumentName == "" && len(f.Metadata) == 0
}

// IngestionResult summarises one call to Ingest.
//
// TotalTokens is the token count of the whole canonical text. It is smaller
// than the sum of the chunks' TokenCount whenever chunks overlap.
type IngestionResult struct {
	DocumentID     string `json:"document_id"`
	ChunkCount     int    `json:"chunk_count"`
	TotalTokens    int    `json:"total_tokens"`
	Fingerprint    string `json:"fingerprint"`
	AlreadyExisted bool   `json:"already_existed"`
}

// Stats aggregates bookkeeping across both stores.
type Stats struct {
	Documents          int     `json:"documents"`
	TotalChunks        int     `json:"total_chunks"`
	TotalTokens        int     `json:"total_tokens"`
	AvgChunksPerDoc    float64 `json:"avg_chunks_per_document"`
	VectorsStored      int     `json:"vectors_stored"`
	PendingDocuments   int     `json:"pending_documents"`
	FailedDocuments    int     `json:"failed_documents"`
	EmbeddingModel     string  `json:"embedding_model,omitempty"`
	EmbeddingDimension int     `json:"embedding_dimension,omitempty"`
}
