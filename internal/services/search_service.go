package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/markdave123-py/chunkenizer/internal/core"
	"github.com/markdave123-py/chunkenizer/internal/core/vectorstore"
	"github.com/markdave123-py/chunkenizer/internal/models"
)

// SearchService embeds a query once and asks the vector store for the
// nearest chunks. Filtering happens inside the store, before ranking.
type SearchService struct {
	vectors  core.VectorStore
	embedder core.EmbeddingProvider
	maxTopK  int
}

func NewSearchService(vectors core.VectorStore, emb core.EmbeddingProvider, maxTopK int) *SearchService {
	return &SearchService{vectors: vectors, embedder: emb, maxTopK: maxTopK}
}

// Search returns at most topK chunks ordered by descending similarity.
// topK above the configured ceiling is clamped.
func (s *SearchService) Search(ctx context.Context, query string, topK int, filter models.SearchFilter) ([]models.ScoredChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query text is empty", core.ErrInvalidQuery)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", core.ErrInvalidQuery, topK)
	}
	if s.maxTopK > 0 && topK > s.maxTopK {
		topK = s.maxTopK
	}
	if err := vectorstore.ValidateFilter(filter); err != nil {
		return nil, err
	}

	vecs, err := s.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", core.ErrEmbedding, err)
	}
	if len(vecs) != 1 || len(vecs[0]) != s.embedder.Dimension() {
		return nil, fmt.Errorf("%w: query embedding has the wrong shape", core.ErrEmbedding)
	}

	hits, err := s.vectors.Search(ctx, vecs[0], topK, filter)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}
