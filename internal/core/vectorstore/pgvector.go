package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/markdave123-py/chunkenizer/internal/core"
	"github.com/markdave123-py/chunkenizer/internal/models"
)

var _ core.VectorStore = (*PgVectorStore)(nil)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PgVectorStore keeps chunk vectors in a Postgres table next to the metadata.
// Search is an exact scan ordered by cosine distance, so filters in the WHERE
// clause never shrink the result below topK.
type PgVectorStore struct {
	db    *sql.DB
	table string
}

// NewPgVectorStore shares db with the metadata store. The pgvector extension
// is created by the metadata bootstrap.
func NewPgVectorStore(db *sql.DB, table string) (*PgVectorStore, error) {
	if table == "" {
		table = "document_chunks"
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("%w: invalid table name %q", core.ErrConfiguration, table)
	}
	return &PgVectorStore{db: db, table: table}, nil
}

func (s *PgVectorStore) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	q := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS %[1]s (
			id             TEXT PRIMARY KEY,
			document_id    TEXT NOT NULL,
			chunk_index    INTEGER NOT NULL,
			chunk_text     TEXT NOT NULL,
			token_count    INTEGER NOT NULL,
			embedding      vector(%[2]d) NOT NULL,
			document_name  TEXT NOT NULL,
			content_type   TEXT NOT NULL,
			fingerprint    TEXT NOT NULL,
			metadata       JSON,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS %[1]s_document_id_idx ON %[1]s (document_id);
	`, s.table, dimension)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}

	// An existing table built for another model is a configuration error.
	var typmod int
	err := s.db.QueryRowContext(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = $1::regclass AND attname = 'embedding'
	`, s.table).Scan(&typmod)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", s.table, err)
	}
	if typmod > 0 && typmod != dimension {
		return fmt.Errorf("%w: %s.embedding has dimension %d, want %d", core.ErrConfiguration, s.table, typmod, dimension)
	}
	return nil
}

// Upsert writes all points in one transaction.
func (s *PgVectorStore) Upsert(ctx context.Context, points []models.ChunkPoint) error {
	if len(points) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	q := fmt.Sprintf(`
		INSERT INTO %s
			(id, document_id, chunk_index, chunk_text, token_count, embedding,
			 document_name, content_type, fingerprint, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			chunk_text = EXCLUDED.chunk_text,
			token_count = EXCLUDED.token_count,
			embedding = EXCLUDED.embedding,
			document_name = EXCLUDED.document_name,
			content_type = EXCLUDED.content_type,
			fingerprint = EXCLUDED.fingerprint,
			metadata = EXCLUDED.metadata,
			created_at = EXCLUDED.created_at
	`, s.table)
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range points {
		p := &points[i]
		var meta any
		if len(p.Metadata) > 0 {
			meta = string(p.Metadata)
		}
		if _, err := stmt.ExecContext(ctx,
			p.ID, p.DocumentID, p.ChunkIndex, p.Text, p.TokenCount, pgvector.NewVector(p.Embedding),
			p.DocumentName, p.ContentType, p.Fingerprint, meta, p.CreatedAt,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

func (s *PgVectorStore) Delete(ctx context.Context, filter models.SearchFilter) error {
	if filter.IsEmpty() {
		return errors.New("refusing to delete with an empty filter")
	}
	where, args, err := whereClause(filter, 1)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s %s`, s.table, where), args...)
	return err
}

func (s *PgVectorStore) Search(ctx context.Context, vector []float32, topK int, filter models.SearchFilter) ([]models.ScoredChunk, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", core.ErrInvalidQuery)
	}
	where, args, err := whereClause(filter, 3)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
		SELECT document_id, chunk_index, chunk_text, token_count, document_name,
		       content_type, fingerprint, metadata, created_at,
		       1 - (embedding <=> $1) AS score
		FROM %s
		%s
		ORDER BY embedding <=> $1, document_id, chunk_index
		LIMIT $2
	`, s.table, where)

	rows, err := s.db.QueryContext(ctx, q, append([]any{pgvector.NewVector(vector), topK}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.ScoredChunk{}
	for rows.Next() {
		var (
			c     models.ScoredChunk
			meta  []byte
			score float64
		)
		if err := rows.Scan(&c.DocumentID, &c.ChunkIndex, &c.Text, &c.TokenCount, &c.DocumentName,
			&c.ContentType, &c.Fingerprint, &meta, &c.CreatedAt, &score); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			c.Metadata = meta
		}
		c.Score = float32(score)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PgVectorStore) Count(ctx context.Context, filter models.SearchFilter) (int, error) {
	where, args, err := whereClause(filter, 1)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %s %s`, s.table, where), args...).Scan(&n)
	return n, err
}

func (s *PgVectorStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to the metadata store.
func (s *PgVectorStore) Close() error { return nil }

// whereClause renders filter as SQL with placeholders numbered from first.
// Metadata keys are compared as jsonb so 1.5 and 1.50 match.
func whereClause(f models.SearchFilter, first int) (string, []any, error) {
	if err := ValidateFilter(f); err != nil {
		return "", nil, err
	}

	var (
		conds []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(first+len(args)-1)
	}

	if f.DocumentID != "" {
		conds = append(conds, "document_id = "+next(f.DocumentID))
	}
	if f.DocumentName != "" {
		conds = append(conds, "document_name = "+next(f.DocumentName))
	}

	keys := make([]string, 0, len(f.Metadata))
	for k := range f.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		val, err := json.Marshal(f.Metadata[k])
		if err != nil {
			return "", nil, fmt.Errorf("%w: metadata filter %q: %v", core.ErrInvalidQuery, k, err)
		}
		conds = append(conds, fmt.Sprintf("(metadata::jsonb -> %s) = %s::jsonb", next(k), next(string(val))))
	}

	if len(conds) == 0 {
		return "", nil, nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args, nil
}
