package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/markdave123-py/chunkenizer/internal/core"
	objectclient "github.com/markdave123-py/chunkenizer/internal/core/object-client"
	"github.com/markdave123-py/chunkenizer/internal/models"
)

// DocumentService is the read and delete side of the document lifecycle.
type DocumentService struct {
	meta     core.MetadataStore
	vectors  core.VectorStore
	archive  core.ObjectClient
	embedder core.EmbeddingProvider
}

// NewDocumentService wires the service. archive and embedder may be nil.
func NewDocumentService(meta core.MetadataStore, vectors core.VectorStore, archive core.ObjectClient, emb core.EmbeddingProvider) *DocumentService {
	return &DocumentService{meta: meta, vectors: vectors, archive: archive, embedder: emb}
}

func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	return s.meta.GetDocumentByID(ctx, id)
}

// List returns every record, newest first.
func (s *DocumentService) List(ctx context.Context) ([]models.Document, error) {
	return s.meta.ListDocuments(ctx)
}

// Delete removes the document's vectors, its archived upload and finally its
// record. Vectors go first so a partial failure never strands vectors that no
// record points at.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	doc, err := s.meta.GetDocumentByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.vectors.Delete(ctx, models.SearchFilter{DocumentID: doc.ID}); err != nil {
		return fmt.Errorf("%w: delete vectors for %s: %w", core.ErrStoreWrite, doc.ID, err)
	}
	if s.archive != nil && doc.StorageURL != "" {
		if err := s.archive.DeleteFile(ctx, objectclient.ObjectKey(doc.ID, doc.Name)); err != nil {
			log.Printf("DocumentService: archive delete for %s failed: %v", doc.ID, err)
		}
	}
	if err := s.meta.DeleteDocument(ctx, doc.ID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: delete record %s: %w", core.ErrStoreWrite, doc.ID, err)
	}

	log.Printf("DocumentService: deleted document %s (%s)", doc.ID, doc.Name)
	return nil
}

// OpenRaw streams the archived upload of a document.
func (s *DocumentService) OpenRaw(ctx context.Context, id string) (io.ReadCloser, *models.Document, error) {
	doc, err := s.meta.GetDocumentByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if s.archive == nil || doc.StorageURL == "" {
		return nil, nil, fmt.Errorf("%w: no archived copy of %s", core.ErrNotFound, id)
	}
	rc, err := s.archive.GetObjectReader(ctx, objectclient.ObjectKey(doc.ID, doc.Name))
	if err != nil {
		return nil, nil, err
	}
	return rc, doc, nil
}

// Stats aggregates the metadata records and the vector count. Chunk and
// token totals only include ingested documents.
func (s *DocumentService) Stats(ctx context.Context) (*models.Stats, error) {
	docs, err := s.meta.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	vectors, err := s.vectors.Count(ctx, models.SearchFilter{})
	if err != nil {
		return nil, fmt.Errorf("count vectors: %w", err)
	}

	st := &models.Stats{Documents: len(docs), VectorsStored: vectors}
	ingested := 0
	for _, d := range docs {
		switch d.Status {
		case models.StatusIngested:
			ingested++
			st.TotalChunks += d.ChunkCount
			st.TotalTokens += d.TotalTokens
		case models.StatusPending:
			st.PendingDocuments++
		case models.StatusFailed:
			st.FailedDocuments++
		}
	}
	if ingested > 0 {
		st.AvgChunksPerDoc = float64(st.TotalChunks) / float64(ingested)
	}
	if s.embedder != nil {
		st.EmbeddingModel = s.embedder.ModelName()
		st.EmbeddingDimension = s.embedder.Dimension()
	}
	return st, nil
}

// Health pings both stores and reports the first failure.
func (s *DocumentService) Health(ctx context.Context) error {
	if err := s.meta.Ping(ctx); err != nil {
		return fmt.Errorf("metadata store: %w", err)
	}
	if err := s.vectors.Ping(ctx); err != nil {
		return fmt.Errorf("vector store: %w", err)
	}
	return nil
}
