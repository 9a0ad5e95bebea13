package vectorstore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/chunkenizer/internal/core"
	"github.com/markdave123-py/chunkenizer/internal/models"
)

func TestValidateFilter(t *testing.T) {
	ok := models.SearchFilter{Metadata: map[string]any{
		"s": "x", "b": true, "f": 1.5, "i": 3, "n": json.Number("7"),
	}}
	require.NoError(t, ValidateFilter(ok))

	for name, v := range map[string]any{
		"null":   nil,
		"array":  []any{1},
		"object": map[string]any{"a": 1},
	} {
		err := ValidateFilter(models.SearchFilter{Metadata: map[string]any{"k": v}})
		assert.ErrorIs(t, err, core.ErrInvalidQuery, name)
	}

	err := ValidateFilter(models.SearchFilter{Metadata: map[string]any{"": "x"}})
	assert.ErrorIs(t, err, core.ErrInvalidQuery)
}

func TestWhereClause(t *testing.T) {
	where, args, err := whereClause(models.SearchFilter{}, 1)
	require.NoError(t, err)
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args, err = whereClause(models.SearchFilter{
		DocumentID: "d1",
		Metadata:   map[string]any{"b": "x", "a": 2},
	}, 3)
	require.NoError(t, err)
	assert.Equal(t,
		"WHERE document_id = $3 AND (metadata::jsonb -> $4) = $5::jsonb AND (metadata::jsonb -> $6) = $7::jsonb",
		where)
	assert.Equal(t, []any{"d1", "a", "2", "b", `"x"`}, args)
}

func TestPointID_Deterministic(t *testing.T) {
	assert.Equal(t, PointID("doc:0"), PointID("doc:0"))
	assert.NotEqual(t, PointID("doc:0"), PointID("doc:1"))
	assert.Len(t, PointID("doc:0"), 36)
}

func TestQdrantFilter(t *testing.T) {
	f, err := qdrantFilter(models.SearchFilter{})
	require.NoError(t, err)
	assert.Nil(t, f)

	f, err = qdrantFilter(models.SearchFilter{
		DocumentID: "d1",
		Metadata:   map[string]any{"year": 2024.0, "score": 1.5, "tag": "go", "ok": true},
	})
	require.NoError(t, err)
	require.Len(t, f.GetMust(), 5)

	_, err = qdrantFilter(models.SearchFilter{Metadata: map[string]any{"x": []any{}}})
	assert.ErrorIs(t, err, core.ErrInvalidQuery)
}

func TestPointPayload_RoundTrip(t *testing.T) {
	p := point("doc", 4, []float32{1, 0}, `{"year": 2024, "tags": ["a"]}`)
	payload, err := pointPayload(&p)
	require.NoError(t, err)

	got := scoredFromPayload(0.5, payload)
	assert.Equal(t, "doc", got.DocumentID)
	assert.Equal(t, 4, got.ChunkIndex)
	assert.Equal(t, p.Text, got.Text)
	assert.Equal(t, p.Fingerprint, got.Fingerprint)
	assert.Equal(t, `{"year": 2024, "tags": ["a"]}`, string(got.Metadata))
	assert.WithinDuration(t, p.CreatedAt, got.CreatedAt, 0)
	assert.Equal(t, int64(2024), payload["metadata"].GetStructValue().GetFields()["year"].GetIntegerValue())
}
