package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/chunkenizer/internal/config"
	"github.com/markdave123-py/chunkenizer/internal/core"
	"github.com/markdave123-py/chunkenizer/internal/models"
)

var _ core.MetadataStore = (*DatabaseClient)(nil)

// DatabaseClient is the Postgres metadata store.
type DatabaseClient struct {
	db *sql.DB
}

// OpenPostgres opens a pooled pgx connection and checks it is reachable.
func OpenPostgres(ctx context.Context, databaseURL string) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("%w: DATABASE_URL is empty", core.ErrConfiguration)
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// NewDatabaseClient connects and bootstraps the schema.
func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}

	db, err := OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	// Ensure bootstrap once
	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	log.Println("DatabaseClient: connected to Postgres")
	return &DatabaseClient{db: db}, nil
}

// NewDatabaseClientFromDB wraps an existing pool. The schema must already exist.
func NewDatabaseClientFromDB(db *sql.DB) *DatabaseClient {
	return &DatabaseClient{db: db}
}

// DB exposes the pool so the pgvector store can share it.
func (c *DatabaseClient) DB() *sql.DB { return c.db }

func (c *DatabaseClient) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

const documentColumns = `id, name, content_type, fingerprint, status, metadata, storage_url, chunk_count, total_tokens, created_at, updated_at`

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	const q = `
		INSERT INTO documents
			(` + documentColumns + `)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := c.db.ExecContext(ctx, q,
		doc.ID, doc.Name, doc.ContentType, doc.Fingerprint, doc.Status, nullableJSON(doc.Metadata),
		doc.StorageURL, doc.ChunkCount, doc.TotalTokens, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	const q = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	d, err := scanDocument(c.db.QueryRowContext(ctx, q, id), scanTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %s", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (c *DatabaseClient) FindDocumentsByFingerprint(ctx context.Context, fingerprint string) ([]models.Document, error) {
	const q = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE fingerprint = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := c.db.QueryContext(ctx, q, fingerprint)
	if err != nil {
		return nil, err
	}
	return collectDocuments(rows, scanTime)
}

func (c *DatabaseClient) ListDocuments(ctx context.Context) ([]models.Document, error) {
	const q = `
		SELECT ` + documentColumns + `
		FROM documents
		ORDER BY created_at DESC, id DESC
	`
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	return collectDocuments(rows, scanTime)
}

func (c *DatabaseClient) UpdateDocumentStatus(ctx context.Context, id string, status string) error {
	const q = `
		UPDATE documents
		SET status = $2, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, status)
	return affectedOne(res, err, id)
}

func (c *DatabaseClient) MarkIngested(ctx context.Context, id string, chunkCount, totalTokens int) error {
	const q = `
		UPDATE documents
		SET status = $2, chunk_count = $3, total_tokens = $4, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, models.StatusIngested, chunkCount, totalTokens)
	return affectedOne(res, err, id)
}

func (c *DatabaseClient) DeleteDocument(ctx context.Context, id string) error {
	const q = `DELETE FROM documents WHERE id = $1`
	res, err := c.db.ExecContext(ctx, q, id)
	return affectedOne(res, err, id)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// timeScanner returns a Scan destination and a function yielding the value
// once Scan has run. Postgres scans TIMESTAMPTZ directly; SQLite stores text.
type timeScanner func() (dest any, value func() (time.Time, error))

func scanTime() (any, func() (time.Time, error)) {
	var t time.Time
	return &t, func() (time.Time, error) { return t, nil }
}

func scanDocument(row rowScanner, ts timeScanner) (*models.Document, error) {
	var (
		d    models.Document
		meta []byte
	)
	createdDest, created := ts()
	updatedDest, updated := ts()

	if err := row.Scan(
		&d.ID, &d.Name, &d.ContentType, &d.Fingerprint, &d.Status, &meta,
		&d.StorageURL, &d.ChunkCount, &d.TotalTokens, createdDest, updatedDest,
	); err != nil {
		return nil, err
	}

	var err error
	if d.CreatedAt, err = created(); err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	if d.UpdatedAt, err = updated(); err != nil {
		return nil, fmt.Errorf("updated_at: %w", err)
	}
	if len(meta) > 0 {
		d.Metadata = meta
	}
	return &d, nil
}

func collectDocuments(rows *sql.Rows, ts timeScanner) ([]models.Document, error) {
	defer rows.Close()

	out := []models.Document{}
	for rows.Next() {
		d, err := scanDocument(rows, ts)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func affectedOne(res sql.Result, err error, id string) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: document %s", core.ErrNotFound, id)
	}
	return nil
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
