package ingestion_engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/chunkenizer/internal/core"
	objectclient "github.com/markdave123-py/chunkenizer/internal/core/object-client"
	"github.com/markdave123-py/chunkenizer/internal/models"
)

// NewDocumentIngestor wires the pipeline. archive may be nil.
func NewDocumentIngestor(
	meta core.MetadataStore,
	vectors core.VectorStore,
	archive core.ObjectClient,
	emb core.EmbeddingProvider,
	extractor core.DocumentExtractor,
	tok core.Tokenizer,
	cfg *IngestConfig,
) (*DocumentIngestor, error) {
	if meta == nil || vectors == nil || emb == nil || extractor == nil || tok == nil {
		return nil, fmt.Errorf("%w: ingestor is missing a collaborator", core.ErrConfiguration)
	}
	if cfg == nil {
		cfg = &IngestConfig{ChunkSize: 500, ChunkOverlap: 50}
	}
	chunker, err := NewChunker(tok, cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	return &DocumentIngestor{
		meta: meta, vectors: vectors, archive: archive, embedder: emb,
		extractor: extractor, tok: tok, chunker: chunker, cfg: cfg.withDefaults(),
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}, nil
}

// Ingest extracts, deduplicates, chunks, embeds and writes one document.
//
// Write order is metadata record (pending), then vectors, then the record is
// marked ingested. A failure after the record exists rolls both stores back;
// if the rollback itself fails the error wraps core.ErrInconsistentState.
func (i *DocumentIngestor) Ingest(ctx context.Context, req IngestRequest) (*models.IngestionResult, error) {
	meta, err := normalizeMetadata(req.Metadata)
	if err != nil {
		return nil, err
	}

	text, err := i.extractor.ExtractText(ctx, req.Data, req.ContentType, req.Name)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: document %q has no text", core.ErrMalformedInput, req.Name)
	}

	fp := Fingerprint(text)

	existing, err := i.meta.FindDocumentsByFingerprint(ctx, fp)
	if err != nil {
		return nil, fmt.Errorf("fingerprint lookup: %w", err)
	}
	if len(existing) > 0 {
		if !req.ForceReindex {
			if doc := firstIngested(existing); doc != nil {
				log.Printf("DocumentIngestor: %q matches document %s (fingerprint %s), skipping", req.Name, doc.ID, fp[:12])
				return &models.IngestionResult{
					DocumentID:     doc.ID,
					ChunkCount:     doc.ChunkCount,
					TotalTokens:    doc.TotalTokens,
					Fingerprint:    fp,
					AlreadyExisted: true,
				}, nil
			}
		} else {
			for _, doc := range existing {
				if err := i.removeDocument(ctx, &doc); err != nil {
					return nil, fmt.Errorf("%w: reindex could not remove document %s: %w", core.ErrStoreWrite, doc.ID, err)
				}
				log.Printf("DocumentIngestor: removed document %s for reindex", doc.ID)
			}
		}
	}

	chunks := i.chunker.Chunk(text)
	totalTokens := i.tok.CountTokens(text)

	now := i.now()
	doc := &models.Document{
		ID:          i.newID(),
		Name:        req.Name,
		ContentType: ResolveContentType(req.ContentType, req.Name, req.Data),
		Fingerprint: fp,
		Status:      models.StatusPending,
		Metadata:    meta,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	log.Printf("DocumentIngestor: ingesting %q as %s (%d chunks, %d tokens)", req.Name, doc.ID, len(chunks), totalTokens)

	archiveKey := i.archiveUpload(ctx, doc, req)

	if err := i.meta.CreateDocument(ctx, doc); err != nil {
		if archiveKey != "" {
			i.deleteArchived(context.WithoutCancel(ctx), archiveKey)
		}
		return nil, fmt.Errorf("%w: create document: %w", core.ErrStoreWrite, err)
	}

	vectors, err := i.embedChunks(ctx, chunks)
	if err != nil {
		return nil, i.compensate(ctx, doc, archiveKey, err)
	}

	points := make([]models.ChunkPoint, len(chunks))
	for j, ch := range chunks {
		points[j] = models.ChunkPoint{
			ID:           ChunkID(doc.ID, ch.Index),
			DocumentID:   doc.ID,
			ChunkIndex:   ch.Index,
			Text:         ch.Text,
			TokenCount:   ch.TokenCount,
			Embedding:    vectors[j],
			DocumentName: doc.Name,
			ContentType:  doc.ContentType,
			Fingerprint:  fp,
			Metadata:     meta,
			CreatedAt:    doc.CreatedAt,
		}
	}
	if err := i.vectors.Upsert(ctx, points); err != nil {
		return nil, i.compensate(ctx, doc, archiveKey, fmt.Errorf("%w: upsert vectors: %w", core.ErrStoreWrite, err))
	}

	if err := i.meta.MarkIngested(ctx, doc.ID, len(chunks), totalTokens); err != nil {
		return nil, i.compensate(ctx, doc, archiveKey, fmt.Errorf("%w: mark ingested: %w", core.ErrStoreWrite, err))
	}

	log.Printf("DocumentIngestor: document %s ingested", doc.ID)
	return &models.IngestionResult{
		DocumentID:  doc.ID,
		ChunkCount:  len(chunks),
		TotalTokens: totalTokens,
		Fingerprint: fp,
	}, nil
}

// ChunkID is the vector-store key of one chunk.
func ChunkID(docID string, index int) string {
	return docID + ":" + strconv.Itoa(index)
}

// embedChunks runs batches concurrently and slots each result by chunk index,
// so output order never depends on completion order.
func (i *DocumentIngestor) embedChunks(ctx context.Context, chunks []models.TextChunk) ([][]float32, error) {
	out := make([][]float32, len(chunks))
	dim := i.embedder.Dimension()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.cfg.Concurrency)

	for start := 0; start < len(chunks); start += i.cfg.BatchSize {
		end := min(start+i.cfg.BatchSize, len(chunks))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			texts := make([]string, 0, end-start)
			for _, ch := range chunks[start:end] {
				texts = append(texts, ch.Text)
			}

			vecs, err := i.embedder.EmbedTexts(gctx, texts)
			if err != nil {
				return fmt.Errorf("%w: chunks %d-%d: %w", core.ErrEmbedding, start, end-1, err)
			}
			if len(vecs) != len(texts) {
				return fmt.Errorf("%w: chunks %d-%d: got %d vectors", core.ErrEmbedding, start, end-1, len(vecs))
			}
			for j, v := range vecs {
				if len(v) != dim {
					return fmt.Errorf("%w: chunk %d: dimension %d, want %d", core.ErrEmbedding, start+j, len(v), dim)
				}
				out[start+j] = v
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
			return nil, fmt.Errorf("%w: %w", err, ctx.Err())
		}
		return nil, err
	}
	return out, nil
}

// compensate undoes a partial write on a context that outlives the caller's
// cancellation. It returns the error to surface.
func (i *DocumentIngestor) compensate(ctx context.Context, doc *models.Document, archiveKey string, cause error) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), i.cfg.CompensationTimeout)
	defer cancel()

	log.Printf("DocumentIngestor: rolling back document %s: %v", doc.ID, cause)

	var failures []error
	if err := i.vectors.Delete(cctx, models.SearchFilter{DocumentID: doc.ID}); err != nil {
		failures = append(failures, fmt.Errorf("delete vectors: %w", err))
	}
	if archiveKey != "" {
		i.deleteArchived(cctx, archiveKey)
	}
	if err := i.meta.DeleteDocument(cctx, doc.ID); err != nil && !errors.Is(err, core.ErrNotFound) {
		failures = append(failures, fmt.Errorf("delete record: %w", err))
		if uerr := i.meta.UpdateDocumentStatus(cctx, doc.ID, models.StatusFailed); uerr != nil {
			failures = append(failures, fmt.Errorf("mark failed: %w", uerr))
		}
	}

	if len(failures) == 0 {
		return cause
	}

	rollbackErr := errors.Join(failures...)
	log.Printf("INCONSISTENT_STATE doc=%s fingerprint=%s cause=%q rollback=%q", doc.ID, doc.Fingerprint, cause, rollbackErr)
	return errors.Join(core.ErrInconsistentState, cause, rollbackErr)
}

// removeDocument deletes vectors first so a failure never leaves vectors
// without a record to find them by.
func (i *DocumentIngestor) removeDocument(ctx context.Context, doc *models.Document) error {
	if err := i.vectors.Delete(ctx, models.SearchFilter{DocumentID: doc.ID}); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if doc.StorageURL != "" {
		i.deleteArchived(ctx, objectclient.ObjectKey(doc.ID, doc.Name))
	}
	if err := i.meta.DeleteDocument(ctx, doc.ID); err != nil && !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// archiveUpload copies the raw bytes to object storage. Failure only loses
// the archive copy, so it is logged and ingestion continues.
func (i *DocumentIngestor) archiveUpload(ctx context.Context, doc *models.Document, req IngestRequest) string {
	if i.archive == nil {
		return ""
	}
	key := objectclient.ObjectKey(doc.ID, req.Name)
	url, err := i.archive.UploadFile(ctx, key, req.Data, doc.ContentType)
	if err != nil {
		log.Printf("DocumentIngestor: archive upload for %s failed: %v", doc.ID, err)
		return ""
	}
	doc.StorageURL = url
	return key
}

func (i *DocumentIngestor) deleteArchived(ctx context.Context, key string) {
	if i.archive == nil {
		return
	}
	if err := i.archive.DeleteFile(ctx, key); err != nil {
		log.Printf("DocumentIngestor: archive delete %s failed: %v", key, err)
	}
}

func firstIngested(docs []models.Document) *models.Document {
	for j := range docs {
		if docs[j].Status == models.StatusIngested {
			return &docs[j]
		}
	}
	return nil
}

// normalizeMetadata accepts a JSON object, or nothing. The bytes are kept as
// given apart from surrounding whitespace.
func normalizeMetadata(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, fmt.Errorf("%w: metadata must be a JSON object: %v", core.ErrMalformedInput, err)
	}
	return bytes.Clone(trimmed), nil
}
