package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/markdave123-py/chunkenizer/internal/core"
	"github.com/markdave123-py/chunkenizer/internal/models"
)

var _ core.MetadataStore = (*MemoryClient)(nil)

// MemoryClient keeps documents in a map. Records are copied on the way in and
// out so callers cannot mutate stored state.
type MemoryClient struct {
	mu   sync.RWMutex
	docs map[string]*memoryDoc
	seq  uint64
}

type memoryDoc struct {
	doc models.Document
	seq uint64
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{docs: make(map[string]*memoryDoc)}
}

func (c *MemoryClient) Ping(ctx context.Context) error { return ctx.Err() }
func (c *MemoryClient) Close() error                   { return nil }

func (c *MemoryClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[doc.ID]; ok {
		return fmt.Errorf("insert document: duplicate id %s", doc.ID)
	}
	c.seq++
	c.docs[doc.ID] = &memoryDoc{doc: cloneDocument(*doc), seq: c.seq}
	return nil
}

func (c *MemoryClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	md, ok := c.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", core.ErrNotFound, id)
	}
	d := cloneDocument(md.doc)
	return &d, nil
}

func (c *MemoryClient) FindDocumentsByFingerprint(ctx context.Context, fingerprint string) ([]models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.sorted(func(d *models.Document) bool { return d.Fingerprint == fingerprint }, false), nil
}

func (c *MemoryClient) ListDocuments(ctx context.Context) ([]models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.sorted(func(*models.Document) bool { return true }, true), nil
}

func (c *MemoryClient) UpdateDocumentStatus(ctx context.Context, id string, status string) error {
	return c.update(ctx, id, func(d *models.Document) { d.Status = status })
}

func (c *MemoryClient) MarkIngested(ctx context.Context, id string, chunkCount, totalTokens int) error {
	return c.update(ctx, id, func(d *models.Document) {
		d.Status = models.StatusIngested
		d.ChunkCount = chunkCount
		d.TotalTokens = totalTokens
	})
}

func (c *MemoryClient) DeleteDocument(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[id]; !ok {
		return fmt.Errorf("%w: document %s", core.ErrNotFound, id)
	}
	delete(c.docs, id)
	return nil
}

func (c *MemoryClient) update(ctx context.Context, id string, fn func(d *models.Document)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	md, ok := c.docs[id]
	if !ok {
		return fmt.Errorf("%w: document %s", core.ErrNotFound, id)
	}
	fn(&md.doc)
	md.doc.UpdatedAt = time.Now().UTC()
	return nil
}

// sorted orders by creation time, then insertion order.
func (c *MemoryClient) sorted(keep func(*models.Document) bool, newestFirst bool) []models.Document {
	c.mu.RLock()
	matches := make([]memoryDoc, 0, len(c.docs))
	for _, md := range c.docs {
		if keep(&md.doc) {
			matches = append(matches, memoryDoc{doc: cloneDocument(md.doc), seq: md.seq})
		}
	}
	c.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		less := a.seq < b.seq
		if !a.doc.CreatedAt.Equal(b.doc.CreatedAt) {
			less = a.doc.CreatedAt.Before(b.doc.CreatedAt)
		}
		if newestFirst {
			return !less
		}
		return less
	})

	out := make([]models.Document, len(matches))
	for i := range matches {
		out[i] = matches[i].doc
	}
	return out
}

func cloneDocument(d models.Document) models.Document {
	d.Metadata = bytes.Clone(d.Metadata)
	return d
}
