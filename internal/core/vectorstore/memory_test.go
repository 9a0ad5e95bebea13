package vectorstore

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/chunkenizer/internal/core"
	"github.com/markdave123-py/chunkenizer/internal/models"
)

func point(docID string, idx int, vec []float32, meta string) models.ChunkPoint {
	p := models.ChunkPoint{
		ID:           docID + ":" + strconv.Itoa(idx),
		DocumentID:   docID,
		ChunkIndex:   idx,
		Text:         docID + " chunk " + strconv.Itoa(idx),
		TokenCount:   3,
		Embedding:    vec,
		DocumentName: docID + ".txt",
		ContentType:  "text/plain",
		Fingerprint:  "fp-" + docID,
		CreatedAt:    time.Now().UTC(),
	}
	if meta != "" {
		p.Metadata = json.RawMessage(meta)
	}
	return p
}

func setupMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	require.NoError(t, s.EnsureCollection(context.Background(), 2))
	return s
}

func TestMemoryStore_SearchEmpty(t *testing.T) {
	s := setupMemoryStore(t)
	hits, err := s.Search(context.Background(), []float32{1, 0}, 5, models.SearchFilter{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryStore_RanksByCosine(t *testing.T) {
	ctx := context.Background()
	s := setupMemoryStore(t)

	require.NoError(t, s.Upsert(ctx, []models.ChunkPoint{
		point("a", 0, []float32{1, 0}, ""),
		point("a", 1, []float32{0, 1}, ""),
		point("b", 0, []float32{1, 1}, ""),
	}))

	hits, err := s.Search(ctx, []float32{1, 0}, 10, models.SearchFilter{})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "a", hits[0].DocumentID)
	assert.Equal(t, 0, hits[0].ChunkIndex)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, "b", hits[1].DocumentID)
	assert.InDelta(t, 0.7071, hits[1].Score, 1e-3)
	assert.InDelta(t, 0.0, hits[2].Score, 1e-6)

	top1, err := s.Search(ctx, []float32{1, 0}, 1, models.SearchFilter{})
	require.NoError(t, err)
	assert.Len(t, top1, 1)
}

func TestMemoryStore_PreFilterDoesNotConsumeTopK(t *testing.T) {
	ctx := context.Background()
	s := setupMemoryStore(t)

	var pts []models.ChunkPoint
	for i := 0; i < 10; i++ {
		pts = append(pts, point("near", i, []float32{1, 0}, `{"team":"x"}`))
	}
	pts = append(pts, point("far", 0, []float32{0, 1}, `{"team":"y"}`))
	require.NoError(t, s.Upsert(ctx, pts))

	hits, err := s.Search(ctx, []float32{1, 0}, 3, models.SearchFilter{Metadata: map[string]any{"team": "y"}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "far", hits[0].DocumentID)
}

func TestMemoryStore_Filters(t *testing.T) {
	ctx := context.Background()
	s := setupMemoryStore(t)
	require.NoError(t, s.Upsert(ctx, []models.ChunkPoint{
		point("a", 0, []float32{1, 0}, `{"year": 2024, "score": 1.50, "draft": false, "tag": "go"}`),
		point("b", 0, []float32{1, 0}, `{"year": 2023, "tag": "go"}`),
		point("c", 0, []float32{1, 0}, ""),
	}))

	cases := []struct {
		name   string
		filter models.SearchFilter
		want   int
	}{
		{"none", models.SearchFilter{}, 3},
		{"document id", models.SearchFilter{DocumentID: "b"}, 1},
		{"document name", models.SearchFilter{DocumentName: "c.txt"}, 1},
		{"string", models.SearchFilter{Metadata: map[string]any{"tag": "go"}}, 2},
		{"integer as float64", models.SearchFilter{Metadata: map[string]any{"year": float64(2024)}}, 1},
		{"float equality", models.SearchFilter{Metadata: map[string]any{"score": 1.5}}, 1},
		{"bool", models.SearchFilter{Metadata: map[string]any{"draft": false}}, 1},
		{"conjunction", models.SearchFilter{DocumentID: "a", Metadata: map[string]any{"tag": "go", "year": 2023}}, 0},
		{"missing key", models.SearchFilter{Metadata: map[string]any{"absent": "x"}}, 0},
		{"type mismatch", models.SearchFilter{Metadata: map[string]any{"year": "2024"}}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hits, err := s.Search(ctx, []float32{1, 0}, 10, tc.filter)
			require.NoError(t, err)
			assert.Len(t, hits, tc.want)

			n, err := s.Count(ctx, tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, n)
		})
	}
}

func TestMemoryStore_RejectsNonScalarFilter(t *testing.T) {
	s := setupMemoryStore(t)
	_, err := s.Search(context.Background(), []float32{1, 0}, 1, models.SearchFilter{
		Metadata: map[string]any{"tags": []any{"a"}},
	})
	assert.ErrorIs(t, err, core.ErrInvalidQuery)
}

func TestMemoryStore_DeleteByDocument(t *testing.T) {
	ctx := context.Background()
	s := setupMemoryStore(t)
	require.NoError(t, s.Upsert(ctx, []models.ChunkPoint{
		point("a", 0, []float32{1, 0}, ""),
		point("a", 1, []float32{1, 0}, ""),
		point("b", 0, []float32{1, 0}, ""),
	}))

	require.NoError(t, s.Delete(ctx, models.SearchFilter{DocumentID: "a"}))

	n, err := s.Count(ctx, models.SearchFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Error(t, s.Delete(ctx, models.SearchFilter{}), "empty filter must be refused")
}

func TestMemoryStore_UpsertReplacesByID(t *testing.T) {
	ctx := context.Background()
	s := setupMemoryStore(t)
	require.NoError(t, s.Upsert(ctx, []models.ChunkPoint{point("a", 0, []float32{1, 0}, "")}))
	require.NoError(t, s.Upsert(ctx, []models.ChunkPoint{point("a", 0, []float32{0, 1}, "")}))

	n, err := s.Count(ctx, models.SearchFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryStore_DimensionChecks(t *testing.T) {
	ctx := context.Background()
	s := setupMemoryStore(t)

	assert.Error(t, s.Upsert(ctx, []models.ChunkPoint{point("a", 0, []float32{1, 0, 0}, "")}))
	assert.ErrorIs(t, s.EnsureCollection(ctx, 3), core.ErrConfiguration)
	assert.NoError(t, s.EnsureCollection(ctx, 2))
}

func TestMemoryStore_MetadataBytesPreserved(t *testing.T) {
	ctx := context.Background()
	s := setupMemoryStore(t)
	meta := `{"z": 1, "a": {"nested": [1, 2]}}`
	require.NoError(t, s.Upsert(ctx, []models.ChunkPoint{point("a", 0, []float32{1, 0}, meta)}))

	hits, err := s.Search(ctx, []float32{1, 0}, 1, models.SearchFilter{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, meta, string(hits[0].Metadata))
}

func TestMemoryStore_InvalidTopK(t *testing.T) {
	_, err := setupMemoryStore(t).Search(context.Background(), []float32{1, 0}, 0, models.SearchFilter{})
	assert.ErrorIs(t, err, core.ErrInvalidQuery)
}
