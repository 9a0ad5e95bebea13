package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/markdave123-py/chunkenizer/internal/core"
)

// Backend names accepted by METADATA_BACKEND and VECTOR_BACKEND.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendPgvector = "pgvector"
	BackendQdrant   = "qdrant"
	BackendMemory   = "memory"
)

// Embedding providers accepted by EMBED_PROVIDER.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderHash   = "hash"
)

type Config struct {
	ChunkSizeTokens    int
	ChunkOverlapTokens int
	TokenizerEncoding  string

	MetadataBackend string
	DatabaseURL     string
	SQLitePath      string

	VectorBackend    string
	QdrantHost       string
	QdrantPort       int
	QdrantAPIKey     string
	QdrantCollection string

	EmbedProvider    string
	GeminiAPIKey     string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	EmbedModel       string
	EmbedDim         int
	EmbedBatchSize   int
	EmbedConcurrency int
	EmbedRPS         float64

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	Port        string
	MaxUploadMB int
	MaxTopK     int
}

// LoadConfig reads .env (if present) and the process environment, then
// validates the result.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	provider := strings.ToLower(getEnv("EMBED_PROVIDER", ProviderHash))

	cfg := &Config{
		ChunkSizeTokens:    getEnvInt("CHUNK_SIZE_TOKENS", 500),
		ChunkOverlapTokens: getEnvInt("CHUNK_OVERLAP_TOKENS", 50),
		TokenizerEncoding:  getEnv("TOKENIZER_ENCODING", "cl100k_base"),

		MetadataBackend: strings.ToLower(getEnv("METADATA_BACKEND", BackendSQLite)),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		SQLitePath:      getEnv("SQLITE_PATH", "./data/chunkenizer.db"),

		VectorBackend:    strings.ToLower(getEnv("VECTOR_BACKEND", BackendQdrant)),
		QdrantHost:       getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:       getEnvInt("QDRANT_PORT", 6334),
		QdrantAPIKey:     getEnv("QDRANT_API_KEY", ""),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "documents"),

		EmbedProvider:    provider,
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
		EmbedModel:       getEnv("EMBED_MODEL", ""),
		EmbedDim:         getEnvInt("EMBED_DIM", defaultDim(provider)),
		EmbedBatchSize:   getEnvInt("EMBED_BATCH_SIZE", 16),
		EmbedConcurrency: getEnvInt("EMBED_CONCURRENCY", 4),
		EmbedRPS:         getEnvFloat("EMBED_RPS", 0),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", ""),

		Port:        getEnv("PORT", "8000"),
		MaxUploadMB: getEnvInt("MAX_UPLOAD_MB", 50),
		MaxTopK:     getEnvInt("MAX_TOP_K", 100),
	}

	if cfg.EmbedModel == "" {
		cfg.EmbedModel = defaultModel(cfg.EmbedProvider)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// geminiDims lists Gemini embedding models whose output size is fixed.
var geminiDims = map[string]int{
	"text-embedding-004": 768,
	"embedding-001":      768,
}

// defaultDim is the native output size of the provider's default model.
func defaultDim(provider string) int {
	switch provider {
	case ProviderGemini:
		return 768
	case ProviderOpenAI:
		return 1536
	default:
		return 384
	}
}

func defaultModel(provider string) string {
	switch provider {
	case ProviderGemini:
		return "text-embedding-004"
	case ProviderOpenAI:
		return "text-embedding-3-small"
	default:
		return "hash-embedding"
	}
}

// Validate rejects settings no component could run with. Every error wraps
// core.ErrConfiguration.
func (c *Config) Validate() error {
	if c.ChunkSizeTokens <= 0 {
		return configErr("CHUNK_SIZE_TOKENS must be positive, got %d", c.ChunkSizeTokens)
	}
	if c.ChunkOverlapTokens < 0 || c.ChunkOverlapTokens >= c.ChunkSizeTokens {
		return configErr("CHUNK_OVERLAP_TOKENS must be in [0, %d), got %d", c.ChunkSizeTokens, c.ChunkOverlapTokens)
	}

	switch c.MetadataBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return configErr("DATABASE_URL not set")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return configErr("SQLITE_PATH not set")
		}
	case BackendMemory:
	default:
		return configErr("unknown METADATA_BACKEND %q", c.MetadataBackend)
	}

	switch c.VectorBackend {
	case BackendPgvector:
		if c.DatabaseURL == "" {
			return configErr("DATABASE_URL not set")
		}
	case BackendQdrant:
		if c.QdrantHost == "" || c.QdrantPort <= 0 {
			return configErr("QDRANT_HOST and QDRANT_PORT must be set")
		}
	case BackendMemory:
	default:
		return configErr("unknown VECTOR_BACKEND %q", c.VectorBackend)
	}

	switch c.EmbedProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return configErr("GEMINI_API_KEY not set")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return configErr("OPENAI_API_KEY not set")
		}
	case ProviderHash:
	default:
		return configErr("unknown EMBED_PROVIDER %q", c.EmbedProvider)
	}

	if c.EmbedDim <= 0 {
		return configErr("EMBED_DIM must be positive, got %d", c.EmbedDim)
	}
	if c.EmbedProvider == ProviderGemini {
		if native, ok := geminiDims[c.EmbedModel]; ok && native != c.EmbedDim {
			return configErr("EMBED_DIM=%d but %s returns %d dimensions", c.EmbedDim, c.EmbedModel, native)
		}
	}
	if c.EmbedBatchSize <= 0 {
		return configErr("EMBED_BATCH_SIZE must be positive, got %d", c.EmbedBatchSize)
	}
	if c.EmbedConcurrency <= 0 {
		return configErr("EMBED_CONCURRENCY must be positive, got %d", c.EmbedConcurrency)
	}
	if c.EmbedRPS < 0 {
		return configErr("EMBED_RPS must not be negative")
	}
	if c.MaxUploadMB <= 0 {
		return configErr("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	if c.MaxTopK <= 0 {
		return configErr("MAX_TOP_K must be positive, got %d", c.MaxTopK)
	}
	return nil
}

// ArchiveEnabled reports whether raw uploads are copied to S3.
func (c *Config) ArchiveEnabled() bool {
	return c.BucketName != ""
}

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", core.ErrConfiguration, fmt.Sprintf(format, args...))
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("WARN: %s=%q not a number, using default %v", key, v, def)
		return def
	}
	return f
}
