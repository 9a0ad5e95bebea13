package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/markdave123-py/chunkenizer/internal/core"
	"github.com/markdave123-py/chunkenizer/internal/core/ingestion_engine"
	"github.com/markdave123-py/chunkenizer/internal/models"
)

// Ingestor is the write path the surfaces depend on.
type Ingestor interface {
	Ingest(ctx context.Context, req ingestion_engine.IngestRequest) (*models.IngestionResult, error)
}

// IngestService reads uploads from a stream with a size ceiling and hands
// them to the ingestor.
type IngestService struct {
	ingestor Ingestor
	maxBytes int64
}

func NewIngestService(ing Ingestor, maxBytes int64) *IngestService {
	return &IngestService{ingestor: ing, maxBytes: maxBytes}
}

// UploadOptions carries the per-upload settings that are not file content.
type UploadOptions struct {
	Name         string
	ContentType  string
	Metadata     json.RawMessage
	ForceReindex bool
}

// IngestReader reads r fully (up to the ceiling) and ingests it. Uploads
// larger than the ceiling are rejected as malformed input.
func (s *IngestService) IngestReader(ctx context.Context, r io.Reader, opts UploadOptions) (*models.IngestionResult, error) {
	var data []byte
	var err error
	if s.maxBytes > 0 {
		data, err = io.ReadAll(io.LimitReader(r, s.maxBytes+1))
		if err == nil && int64(len(data)) > s.maxBytes {
			return nil, fmt.Errorf("%w: %s exceeds %d bytes", core.ErrMalformedInput, opts.Name, s.maxBytes)
		}
	} else {
		data, err = io.ReadAll(r)
	}
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", opts.Name, err)
	}

	return s.ingestor.Ingest(ctx, ingestion_engine.IngestRequest{
		Data:         data,
		Name:         opts.Name,
		ContentType:  opts.ContentType,
		Metadata:     opts.Metadata,
		ForceReindex: opts.ForceReindex,
	})
}
