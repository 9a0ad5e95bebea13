// internal/app/app.go
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/markdave123-py/chunkenizer/internal/config"
	"github.com/markdave123-py/chunkenizer/internal/core"
	db "github.com/markdave123-py/chunkenizer/internal/core/database"
	"github.com/markdave123-py/chunkenizer/internal/core/ingestion_engine"
	"github.com/markdave123-py/chunkenizer/internal/core/llm"
	objectclient "github.com/markdave123-py/chunkenizer/internal/core/object-client"
	"github.com/markdave123-py/chunkenizer/internal/core/tokenizer"
	"github.com/markdave123-py/chunkenizer/internal/core/vectorstore"
	"github.com/markdave123-py/chunkenizer/internal/services"
)

// App holds every long-lived client. Everything is built once here and
// passed down; nothing below connects lazily.
type App struct {
	Config   *config.Config
	Meta     core.MetadataStore
	Vectors  core.VectorStore
	Archive  core.ObjectClient
	Embedder core.EmbeddingProvider

	Ingest    *services.IngestService
	Documents *services.DocumentService
	Search    *services.SearchService

	closers []io.Closer
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	a := &App{Config: cfg}
	if err := a.init(appCtx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	tok, err := tokenizer.NewTiktoken(cfg.TokenizerEncoding)
	if err != nil {
		return err
	}

	var pg *sql.DB
	switch cfg.MetadataBackend {
	case config.BackendPostgres:
		client, err := db.NewDatabaseClient(ctx, cfg)
		if err != nil {
			return err
		}
		a.Meta, pg = client, client.DB()
	case config.BackendSQLite:
		client, err := db.NewSQLiteClient(ctx, cfg.SQLitePath)
		if err != nil {
			return err
		}
		a.Meta = client
	default:
		a.Meta = db.NewMemoryClient()
	}
	a.closers = append(a.closers, a.Meta)
	log.Printf("Metadata store (%s) initialized and ready.", cfg.MetadataBackend)

	switch cfg.VectorBackend {
	case config.BackendPgvector:
		if pg == nil {
			if pg, err = db.OpenPostgres(ctx, cfg.DatabaseURL); err != nil {
				return err
			}
			a.closers = append(a.closers, pg)
		}
		store, err := vectorstore.NewPgVectorStore(pg, "")
		if err != nil {
			return err
		}
		a.Vectors = store
	case config.BackendQdrant:
		store, err := vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
			Host:       cfg.QdrantHost,
			Port:       cfg.QdrantPort,
			APIKey:     cfg.QdrantAPIKey,
			UseTLS:     cfg.QdrantAPIKey != "",
			Collection: cfg.QdrantCollection,
		})
		if err != nil {
			return err
		}
		a.Vectors = store
	default:
		a.Vectors = vectorstore.NewMemoryStore()
	}
	a.closers = append(a.closers, a.Vectors)

	emb, err := newEmbedder(ctx, cfg)
	if err != nil {
		return fmt.Errorf("couldn't initialize the embedder, %w", err)
	}
	if c, ok := emb.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	a.Embedder = llm.WithRateLimit(emb, cfg.EmbedRPS, cfg.EmbedConcurrency)

	if err := a.Vectors.EnsureCollection(ctx, a.Embedder.Dimension()); err != nil {
		return fmt.Errorf("vector store: %w", err)
	}
	log.Printf("Vector store (%s) initialized and ready, dimension %d.", cfg.VectorBackend, a.Embedder.Dimension())

	if cfg.ArchiveEnabled() {
		s3c, err := objectclient.NewS3Client(ctx, cfg)
		if err != nil {
			return err
		}
		a.Archive = s3c
		log.Println("Object client initialized and ready.")
	}

	ing, err := ingestion_engine.NewDocumentIngestor(a.Meta, a.Vectors, a.Archive, a.Embedder,
		ingestion_engine.NewExtractor(false), tok,
		&ingestion_engine.IngestConfig{
			ChunkSize:    cfg.ChunkSizeTokens,
			ChunkOverlap: cfg.ChunkOverlapTokens,
			BatchSize:    cfg.EmbedBatchSize,
			Concurrency:  cfg.EmbedConcurrency,
		})
	if err != nil {
		return err
	}

	a.Ingest = services.NewIngestService(ing, int64(cfg.MaxUploadMB)<<20)
	a.Documents = services.NewDocumentService(a.Meta, a.Vectors, a.Archive, a.Embedder)
	a.Search = services.NewSearchService(a.Vectors, a.Embedder, cfg.MaxTopK)
	return nil
}

func newEmbedder(ctx context.Context, cfg *config.Config) (core.EmbeddingProvider, error) {
	switch cfg.EmbedProvider {
	case config.ProviderGemini:
		return llm.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedModel, cfg.EmbedDim)
	case config.ProviderOpenAI:
		return llm.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbedModel, cfg.EmbedDim)
	default:
		return llm.NewHashEmbedder(cfg.EmbedDim), nil
	}
}

// Close releases clients in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Printf("App: close: %v", err)
		}
	}
	a.closers = nil
}
