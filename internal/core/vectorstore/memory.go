package vectorstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/markdave123-py/chunkenizer/internal/core"
	"github.com/markdave123-py/chunkenizer/internal/models"
)

var _ core.VectorStore = (*MemoryStore)(nil)

// MemoryStore is a brute-force cosine index. Filters are evaluated before
// ranking.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	points    map[string]*memoryPoint
}

type memoryPoint struct {
	point models.ChunkPoint
	meta  map[string]any
	norm  float64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{points: make(map[string]*memoryPoint)}
}

func (s *MemoryStore) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != 0 && s.dimension != dimension {
		return fmt.Errorf("%w: collection has dimension %d, want %d", core.ErrConfiguration, s.dimension, dimension)
	}
	s.dimension = dimension
	return nil
}

func (s *MemoryStore) Upsert(ctx context.Context, points []models.ChunkPoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	staged := make([]*memoryPoint, len(points))
	s.mu.RLock()
	dim := s.dimension
	s.mu.RUnlock()
	for i := range points {
		p := points[i]
		if dim > 0 && len(p.Embedding) != dim {
			return fmt.Errorf("vector dimension mismatch: got %d, want %d", len(p.Embedding), dim)
		}
		meta, err := decodeMetadata(p.Metadata)
		if err != nil {
			return fmt.Errorf("point %s metadata: %w", p.ID, err)
		}
		p.Embedding = append([]float32(nil), p.Embedding...)
		p.Metadata = bytes.Clone(p.Metadata)
		staged[i] = &memoryPoint{point: p, meta: meta, norm: norm(p.Embedding)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, mp := range staged {
		s.points[mp.point.ID] = mp
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, filter models.SearchFilter) error {
	if filter.IsEmpty() {
		return errors.New("refusing to delete with an empty filter")
	}
	if err := ValidateFilter(filter); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, mp := range s.points {
		if matchPoint(&mp.point, mp.meta, filter) {
			delete(s.points, id)
		}
	}
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, vector []float32, topK int, filter models.SearchFilter) ([]models.ScoredChunk, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", core.ErrInvalidQuery)
	}
	if err := ValidateFilter(filter); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	qn := norm(vector)

	s.mu.RLock()
	hits := make([]models.ScoredChunk, 0, len(s.points))
	for _, mp := range s.points {
		if !matchPoint(&mp.point, mp.meta, filter) {
			continue
		}
		hits = append(hits, toScored(&mp.point, cosine(vector, qn, mp.point.Embedding, mp.norm)))
	}
	s.mu.RUnlock()

	// Ties break on document then chunk position so results are stable.
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].DocumentID != hits[j].DocumentID {
			return hits[i].DocumentID < hits[j].DocumentID
		}
		return hits[i].ChunkIndex < hits[j].ChunkIndex
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *MemoryStore) Count(ctx context.Context, filter models.SearchFilter) (int, error) {
	if err := ValidateFilter(filter); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, mp := range s.points {
		if matchPoint(&mp.point, mp.meta, filter) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }
func (s *MemoryStore) Close() error                   { return nil }

func toScored(p *models.ChunkPoint, score float32) models.ScoredChunk {
	return models.ScoredChunk{
		Score:        score,
		DocumentID:   p.DocumentID,
		DocumentName: p.DocumentName,
		ChunkIndex:   p.ChunkIndex,
		Text:         p.Text,
		TokenCount:   p.TokenCount,
		ContentType:  p.ContentType,
		Fingerprint:  p.Fingerprint,
		Metadata:     bytes.Clone(p.Metadata),
		CreatedAt:    p.CreatedAt,
	}
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(q []float32, qn float64, v []float32, vn float64) float32 {
	if qn == 0 || vn == 0 {
		return 0
	}
	n := min(len(q), len(v))
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(q[i]) * float64(v[i])
	}
	return float32(dot / (qn * vn))
}
