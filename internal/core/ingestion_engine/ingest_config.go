package ingestion_engine

import (
	"encoding/json"
	"time"

	"github.com/markdave123-py/chunkenizer/internal/core"
)

// IngestConfig tunes the pipeline.
//
// ChunkSize:           tokens per chunk (e.g., 500).
// ChunkOverlap:        tokens shared by consecutive chunks (e.g., 50).
// BatchSize:           chunks per embedding call (e.g., 16).
// Concurrency:         embedding calls in flight per document (e.g., 4).
// CompensationTimeout: rollback budget, applied even after cancellation.
type IngestConfig struct {
	ChunkSize           int
	ChunkOverlap        int
	BatchSize           int
	Concurrency         int
	CompensationTimeout time.Duration
}

func (c *IngestConfig) withDefaults() IngestConfig {
	out := *c
	if out.BatchSize <= 0 {
		out.BatchSize = 16
	}
	if out.Concurrency <= 0 {
		out.Concurrency = 4
	}
	if out.CompensationTimeout <= 0 {
		out.CompensationTimeout = 30 * time.Second
	}
	return out
}

// IngestRequest is one upload.
//
// Metadata must be a JSON object or empty. It is stored and copied into every
// chunk payload without being rewritten.
type IngestRequest struct {
	Data         []byte
	Name         string
	ContentType  string
	Metadata     json.RawMessage
	ForceReindex bool
}

// DocumentIngestor owns the write path across both stores:
//
// meta:      document bookkeeping records.
// vectors:   chunk vectors with denormalised payload.
// archive:   optional raw upload copy (nil disables it).
// embedder:  embedding provider (Gemini/OpenAI/etc).
// extractor: upload to canonical text.
// tok:       tokenizer used for chunking and token totals.
type DocumentIngestor struct {
	meta      core.MetadataStore
	vectors   core.VectorStore
	archive   core.ObjectClient
	embedder  core.EmbeddingProvider
	extractor core.DocumentExtractor
	tok       core.Tokenizer
	chunker   *Chunker
	cfg       IngestConfig

	now   func() time.Time
	newID func() string
}
