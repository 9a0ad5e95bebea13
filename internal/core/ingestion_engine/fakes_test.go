package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/markdave123-py/chunkenizer/internal/core"
	db "github.com/markdave123-py/chunkenizer/internal/core/database"
	"github.com/markdave123-py/chunkenizer/internal/core/llm"
	"github.com/markdave123-py/chunkenizer/internal/core/vectorstore"
	"github.com/markdave123-py/chunkenizer/internal/models"
)

// wordTokenizer maps each whitespace-separated word to one token. Decode joins
// with single spaces, so round trips hold for single-spaced text.
type wordTokenizer struct {
	mu    sync.Mutex
	vocab map[string]int
	words []string
}

func newWordTokenizer() *wordTokenizer {
	return &wordTokenizer{vocab: map[string]int{}}
}

func (w *wordTokenizer) Encode(text string) []int {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	ids := make([]int, len(fields))
	for i, f := range fields {
		id, ok := w.vocab[f]
		if !ok {
			id = len(w.words)
			w.vocab[f] = id
			w.words = append(w.words, f)
		}
		ids[i] = id
	}
	return ids
}

func (w *wordTokenizer) Decode(tokens []int) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = w.words[t]
	}
	return strings.Join(parts, " ")
}

func (w *wordTokenizer) CountTokens(text string) int {
	return len(strings.Fields(text))
}

// numberedWords returns "w0 w1 ... w(n-1)".
func numberedWords(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString("w")
		b.WriteString(strconv.Itoa(i))
	}
	return b.String()
}

// scriptedEmbedder wraps a real embedder with hooks for failure and pacing.
type scriptedEmbedder struct {
	core.EmbeddingProvider
	calls  atomic.Int32
	before func(ctx context.Context, call int, texts []string) error
	wrong  bool
}

func newScriptedEmbedder() *scriptedEmbedder {
	return &scriptedEmbedder{EmbeddingProvider: llm.NewHashEmbedder(16)}
}

func (s *scriptedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	call := int(s.calls.Add(1))
	if s.before != nil {
		if err := s.before(ctx, call, texts); err != nil {
			return nil, err
		}
	}
	vecs, err := s.EmbeddingProvider.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, err
	}
	if s.wrong {
		vecs[0] = vecs[0][:len(vecs[0])-1]
	}
	return vecs, nil
}

// faultyVectors injects failures into a memory vector store and records
// upserted batches. Like the qdrant and pgvector payload encoders it refuses
// chunk text that is not valid UTF-8.
type faultyVectors struct {
	*vectorstore.MemoryStore
	mu        sync.Mutex
	upserts   [][]models.ChunkPoint
	upsertErr error
	deleteErr error
}

func newFaultyVectors() *faultyVectors {
	return &faultyVectors{MemoryStore: vectorstore.NewMemoryStore()}
}

func (f *faultyVectors) Upsert(ctx context.Context, points []models.ChunkPoint) error {
	f.mu.Lock()
	f.upserts = append(f.upserts, points)
	f.mu.Unlock()
	for _, p := range points {
		if !utf8.ValidString(p.Text) {
			return fmt.Errorf("%w: chunk %s: invalid UTF-8 in payload", core.ErrStoreWrite, p.ID)
		}
	}
	if f.upsertErr != nil {
		// Half of the batch lands before the failure.
		_ = f.MemoryStore.Upsert(ctx, points[:len(points)/2])
		return f.upsertErr
	}
	return f.MemoryStore.Upsert(ctx, points)
}

func (f *faultyVectors) Delete(ctx context.Context, filter models.SearchFilter) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.MemoryStore.Delete(ctx, filter)
}

// faultyMeta injects failures into a memory metadata store.
type faultyMeta struct {
	*db.MemoryClient
	deleteErr error
	markErr   error
}

func (f *faultyMeta) DeleteDocument(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.MemoryClient.DeleteDocument(ctx, id)
}

func (f *faultyMeta) MarkIngested(ctx context.Context, id string, chunks, tokens int) error {
	if f.markErr != nil {
		return f.markErr
	}
	return f.MemoryClient.MarkIngested(ctx, id, chunks, tokens)
}

type failingArchive struct{}

func (failingArchive) UploadFile(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	return "", errors.New("bucket unavailable")
}
func (failingArchive) DeleteFile(ctx context.Context, key string) error { return nil }
func (failingArchive) GetObjectReader(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, errors.New("bucket unavailable")
}
