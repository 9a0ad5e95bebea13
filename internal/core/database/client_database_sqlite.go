package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/markdave123-py/chunkenizer/internal/core"
	"github.com/markdave123-py/chunkenizer/internal/models"
)

var _ core.MetadataStore = (*SQLiteClient)(nil)

// sqliteTime is fixed width so text order matches time order.
const sqliteTime = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteClient is the single-file metadata store.
type SQLiteClient struct {
	db   *sql.DB
	path string
}

// NewSQLiteClient opens (creating if needed) the database at path.
func NewSQLiteClient(ctx context.Context, path string) (*SQLiteClient, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: SQLITE_PATH is empty", core.ErrConfiguration)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	// WAL for concurrent readers while an ingest writes.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	schema, err := bootstrapFS.ReadFile("scripts/sqlite.sql")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("read sqlite.sql: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(schema)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	log.Printf("SQLiteClient: using %s", path)
	return &SQLiteClient{db: db, path: path}, nil
}

// Path returns the database file path.
func (c *SQLiteClient) Path() string { return c.path }

func (c *SQLiteClient) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *SQLiteClient) Close() error {
	return c.db.Close()
}

func (c *SQLiteClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	const q = `
		INSERT INTO documents
			(` + documentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := c.db.ExecContext(ctx, q,
		doc.ID, doc.Name, doc.ContentType, doc.Fingerprint, doc.Status, nullableJSON(doc.Metadata),
		doc.StorageURL, doc.ChunkCount, doc.TotalTokens, formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (c *SQLiteClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	const q = `SELECT ` + documentColumns + ` FROM documents WHERE id = ?`

	d, err := scanDocument(c.db.QueryRowContext(ctx, q, id), scanTextTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %s", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (c *SQLiteClient) FindDocumentsByFingerprint(ctx context.Context, fingerprint string) ([]models.Document, error) {
	const q = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE fingerprint = ?
		ORDER BY created_at ASC, rowid ASC
	`
	rows, err := c.db.QueryContext(ctx, q, fingerprint)
	if err != nil {
		return nil, err
	}
	return collectDocuments(rows, scanTextTime)
}

func (c *SQLiteClient) ListDocuments(ctx context.Context) ([]models.Document, error) {
	const q = `
		SELECT ` + documentColumns + `
		FROM documents
		ORDER BY created_at DESC, rowid DESC
	`
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	return collectDocuments(rows, scanTextTime)
}

func (c *SQLiteClient) UpdateDocumentStatus(ctx context.Context, id string, status string) error {
	const q = `UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`
	res, err := c.db.ExecContext(ctx, q, status, formatTime(time.Now()), id)
	return affectedOne(res, err, id)
}

func (c *SQLiteClient) MarkIngested(ctx context.Context, id string, chunkCount, totalTokens int) error {
	const q = `
		UPDATE documents
		SET status = ?, chunk_count = ?, total_tokens = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := c.db.ExecContext(ctx, q, models.StatusIngested, chunkCount, totalTokens, formatTime(time.Now()), id)
	return affectedOne(res, err, id)
}

func (c *SQLiteClient) DeleteDocument(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return affectedOne(res, err, id)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(sqliteTime)
}

func scanTextTime() (any, func() (time.Time, error)) {
	var s string
	return &s, func() (time.Time, error) { return time.Parse(sqliteTime, s) }
}
