package db

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/chunkenizer/internal/core"
	"github.com/markdave123-py/chunkenizer/internal/models"
)

// setupSQLiteStore creates a SQLite store in a temporary directory.
func setupSQLiteStore(t *testing.T) core.MetadataStore {
	t.Helper()

	store, err := NewSQLiteClient(context.Background(), filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func setupMemoryStore(t *testing.T) core.MetadataStore {
	t.Helper()
	return NewMemoryClient()
}

// forEachStore runs the same contract against every embedded backend.
func forEachStore(t *testing.T, fn func(t *testing.T, store core.MetadataStore)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, setupSQLiteStore(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, setupMemoryStore(t)) })
}

func testDocument(id, fingerprint string, created time.Time) *models.Document {
	return &models.Document{
		ID:          id,
		Name:        id + ".txt",
		ContentType: "text/plain",
		Fingerprint: fingerprint,
		Status:      models.StatusPending,
		Metadata:    json.RawMessage(`{"z":1,"a":"b"}`),
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func TestMetadataStore_CreateAndGet(t *testing.T) {
	forEachStore(t, func(t *testing.T, store core.MetadataStore) {
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Millisecond)

		require.NoError(t, store.CreateDocument(ctx, testDocument("doc-1", "fp1", now)))

		got, err := store.GetDocumentByID(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, "doc-1.txt", got.Name)
		assert.Equal(t, "text/plain", got.ContentType)
		assert.Equal(t, "fp1", got.Fingerprint)
		assert.Equal(t, models.StatusPending, got.Status)
		assert.JSONEq(t, `{"z":1,"a":"b"}`, string(got.Metadata))
		assert.Equal(t, `{"z":1,"a":"b"}`, string(got.Metadata), "metadata bytes are kept as given")
		assert.WithinDuration(t, now, got.CreatedAt, time.Millisecond)
		assert.Equal(t, 0, got.ChunkCount)
	})
}

func TestMetadataStore_NilMetadata(t *testing.T) {
	forEachStore(t, func(t *testing.T, store core.MetadataStore) {
		ctx := context.Background()
		doc := testDocument("doc-1", "fp1", time.Now())
		doc.Metadata = nil
		require.NoError(t, store.CreateDocument(ctx, doc))

		got, err := store.GetDocumentByID(ctx, "doc-1")
		require.NoError(t, err)
		assert.Empty(t, got.Metadata)
	})
}

func TestMetadataStore_NotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, store core.MetadataStore) {
		ctx := context.Background()

		_, err := store.GetDocumentByID(ctx, "missing")
		assert.ErrorIs(t, err, core.ErrNotFound)
		assert.ErrorIs(t, store.DeleteDocument(ctx, "missing"), core.ErrNotFound)
		assert.ErrorIs(t, store.UpdateDocumentStatus(ctx, "missing", models.StatusFailed), core.ErrNotFound)
		assert.ErrorIs(t, store.MarkIngested(ctx, "missing", 1, 1), core.ErrNotFound)
	})
}

func TestMetadataStore_FingerprintLookupOldestFirst(t *testing.T) {
	forEachStore(t, func(t *testing.T, store core.MetadataStore) {
		ctx := context.Background()
		base := time.Now().UTC()

		require.NoError(t, store.CreateDocument(ctx, testDocument("newer", "same", base.Add(time.Second))))
		require.NoError(t, store.CreateDocument(ctx, testDocument("older", "same", base)))
		require.NoError(t, store.CreateDocument(ctx, testDocument("other", "different", base)))

		docs, err := store.FindDocumentsByFingerprint(ctx, "same")
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "older", docs[0].ID)
		assert.Equal(t, "newer", docs[1].ID)

		none, err := store.FindDocumentsByFingerprint(ctx, "nothing")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestMetadataStore_ListNewestFirst(t *testing.T) {
	forEachStore(t, func(t *testing.T, store core.MetadataStore) {
		ctx := context.Background()
		base := time.Now().UTC()

		for i, id := range []string{"a", "b", "c"} {
			require.NoError(t, store.CreateDocument(ctx, testDocument(id, id, base.Add(time.Duration(i)*time.Second))))
		}

		docs, err := store.ListDocuments(ctx)
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.Equal(t, []string{"c", "b", "a"}, []string{docs[0].ID, docs[1].ID, docs[2].ID})
	})
}

func TestMetadataStore_StatusTransitions(t *testing.T) {
	forEachStore(t, func(t *testing.T, store core.MetadataStore) {
		ctx := context.Background()
		require.NoError(t, store.CreateDocument(ctx, testDocument("doc-1", "fp", time.Now())))

		require.NoError(t, store.MarkIngested(ctx, "doc-1", 3, 1200))
		got, err := store.GetDocumentByID(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusIngested, got.Status)
		assert.Equal(t, 3, got.ChunkCount)
		assert.Equal(t, 1200, got.TotalTokens)

		require.NoError(t, store.UpdateDocumentStatus(ctx, "doc-1", models.StatusFailed))
		got, err = store.GetDocumentByID(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusFailed, got.Status)
		assert.Equal(t, 3, got.ChunkCount)
	})
}

func TestMetadataStore_Delete(t *testing.T) {
	forEachStore(t, func(t *testing.T, store core.MetadataStore) {
		ctx := context.Background()
		require.NoError(t, store.CreateDocument(ctx, testDocument("doc-1", "fp", time.Now())))
		require.NoError(t, store.DeleteDocument(ctx, "doc-1"))

		_, err := store.GetDocumentByID(ctx, "doc-1")
		assert.ErrorIs(t, err, core.ErrNotFound)

		docs, err := store.ListDocuments(ctx)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}

func TestMetadataStore_Ping(t *testing.T) {
	forEachStore(t, func(t *testing.T, store core.MetadataStore) {
		assert.NoError(t, store.Ping(context.Background()))
	})
}

func TestSQLiteClient_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "persist.db")

	first, err := NewSQLiteClient(ctx, path)
	require.NoError(t, err)
	require.NoError(t, first.CreateDocument(ctx, testDocument("doc-1", "fp", time.Now())))
	require.NoError(t, first.Close())

	second, err := NewSQLiteClient(ctx, path)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.GetDocumentByID(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "fp", got.Fingerprint)
}

func TestMemoryClient_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryClient()
	require.NoError(t, store.CreateDocument(ctx, testDocument("doc-1", "fp", time.Now())))

	got, err := store.GetDocumentByID(ctx, "doc-1")
	require.NoError(t, err)
	got.Status = "tampered"
	got.Metadata[0] = '['

	again, err := store.GetDocumentByID(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, again.Status)
	assert.Equal(t, `{"z":1,"a":"b"}`, string(again.Metadata))
}
