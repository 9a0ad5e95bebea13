package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/markdave123-py/chunkenizer/internal/core"
	"github.com/markdave123-py/chunkenizer/internal/models"
)

var _ core.VectorStore = (*QdrantStore)(nil)

// Payload keys written with every point.
const (
	payloadChunkID      = "chunk_id"
	payloadDocumentID   = "doc_id"
	payloadName         = "name"
	payloadContentType  = "content_type"
	payloadFingerprint  = "sha256"
	payloadChunkIndex   = "chunk_index"
	payloadTokenCount   = "token_count"
	payloadText         = "chunk_text"
	payloadMetadata     = "metadata"
	payloadMetadataJSON = "metadata_json"
	payloadCreatedAt    = "created_at"
)

// pointNamespace seeds deterministic point UUIDs; Qdrant ids must be UUIDs
// or unsigned integers.
var pointNamespace = uuid.MustParse("6f1c2a4e-3b7d-5c8e-9a0f-1d2e3f405162")

// QdrantStore talks to Qdrant over gRPC with cosine distance.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
}

type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.Collection == "" {
		cfg.Collection = "documents"
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant client: %w", err)
	}
	return &QdrantStore{client: client, collection: cfg.Collection}, nil
}

// PointID maps a chunk id (<document>:<index>) to its Qdrant UUID.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

func (s *QdrantStore) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("qdrant collection check: %w", err)
	}
	if exists {
		info, err := s.client.GetCollectionInfo(ctx, s.collection)
		if err != nil {
			return fmt.Errorf("qdrant collection info: %w", err)
		}
		if p := info.GetConfig().GetParams().GetVectorsConfig().GetParams(); p != nil && p.GetSize() != uint64(dimension) {
			return fmt.Errorf("%w: collection %s has dimension %d, want %d", core.ErrConfiguration, s.collection, p.GetSize(), dimension)
		}
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection: %w", err)
	}

	// Keyword indexes keep filtered searches exact on large collections.
	for _, field := range []string{payloadDocumentID, payloadName} {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			log.Printf("QdrantStore: index on %s not created: %v", field, err)
		}
	}
	log.Printf("QdrantStore: created collection %s (dim=%d, cosine)", s.collection, dimension)
	return nil
}

func (s *QdrantStore) Upsert(ctx context.Context, points []models.ChunkPoint) error {
	if len(points) == 0 {
		return nil
	}

	structs := make([]*qdrant.PointStruct, len(points))
	for i := range points {
		p := &points[i]
		payload, err := pointPayload(p)
		if err != nil {
			return fmt.Errorf("point %s payload: %w", p.ID, err)
		}
		structs[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(p.ID)),
			Vectors: qdrant.NewVectors(p.Embedding...),
			Payload: payload,
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

func (s *QdrantStore) Delete(ctx context.Context, filter models.SearchFilter) error {
	if filter.IsEmpty() {
		return errors.New("refusing to delete with an empty filter")
	}
	f, err := qdrantFilter(filter)
	if err != nil {
		return err
	}
	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(f),
	})
	if err != nil {
		return fmt.Errorf("qdrant delete: %w", err)
	}
	return nil
}

func (s *QdrantStore) Search(ctx context.Context, vector []float32, topK int, filter models.SearchFilter) ([]models.ScoredChunk, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", core.ErrInvalidQuery)
	}
	f, err := qdrantFilter(filter)
	if err != nil {
		return nil, err
	}

	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         f,
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	out := make([]models.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		out = append(out, scoredFromPayload(h.GetScore(), h.GetPayload()))
	}
	return out, nil
}

func (s *QdrantStore) Count(ctx context.Context, filter models.SearchFilter) (int, error) {
	f, err := qdrantFilter(filter)
	if err != nil {
		return 0, err
	}
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Filter:         f,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant count: %w", err)
	}
	return int(n), nil
}

func (s *QdrantStore) Ping(ctx context.Context) error {
	_, err := s.client.HealthCheck(ctx)
	return err
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func pointPayload(p *models.ChunkPoint) (map[string]*qdrant.Value, error) {
	fields := map[string]any{
		payloadChunkID:     p.ID,
		payloadDocumentID:  p.DocumentID,
		payloadName:        p.DocumentName,
		payloadContentType: p.ContentType,
		payloadFingerprint: p.Fingerprint,
		payloadChunkIndex:  int64(p.ChunkIndex),
		payloadTokenCount:  int64(p.TokenCount),
		payloadText:        p.Text,
		payloadCreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if len(p.Metadata) > 0 {
		meta, err := decodeMetadata(p.Metadata)
		if err != nil {
			return nil, err
		}
		// metadata is the filterable copy; metadata_json keeps the caller's bytes.
		fields[payloadMetadata] = payloadValue(meta)
		fields[payloadMetadataJSON] = string(p.Metadata)
	}
	return qdrant.TryValueMap(fields)
}

func scoredFromPayload(score float32, payload map[string]*qdrant.Value) models.ScoredChunk {
	c := models.ScoredChunk{
		Score:        score,
		DocumentID:   payload[payloadDocumentID].GetStringValue(),
		DocumentName: payload[payloadName].GetStringValue(),
		ChunkIndex:   int(payload[payloadChunkIndex].GetIntegerValue()),
		Text:         payload[payloadText].GetStringValue(),
		TokenCount:   int(payload[payloadTokenCount].GetIntegerValue()),
		ContentType:  payload[payloadContentType].GetStringValue(),
		Fingerprint:  payload[payloadFingerprint].GetStringValue(),
	}
	if raw := payload[payloadMetadataJSON].GetStringValue(); raw != "" {
		c.Metadata = json.RawMessage(raw)
	}
	if t, err := time.Parse(time.RFC3339Nano, payload[payloadCreatedAt].GetStringValue()); err == nil {
		c.CreatedAt = t
	}
	return c
}

// qdrantFilter turns a SearchFilter into Must conditions. Integers use exact
// match; fractional numbers use a closed range because Qdrant has no float
// equality match. A nil filter matches everything.
func qdrantFilter(f models.SearchFilter) (*qdrant.Filter, error) {
	if err := ValidateFilter(f); err != nil {
		return nil, err
	}
	if f.IsEmpty() {
		return nil, nil
	}

	var must []*qdrant.Condition
	if f.DocumentID != "" {
		must = append(must, qdrant.NewMatch(payloadDocumentID, f.DocumentID))
	}
	if f.DocumentName != "" {
		must = append(must, qdrant.NewMatch(payloadName, f.DocumentName))
	}

	keys := make([]string, 0, len(f.Metadata))
	for k := range f.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		field := payloadMetadata + "." + k
		sc, _ := normalizeScalar(f.Metadata[k])
		switch sc.kind {
		case 's':
			must = append(must, qdrant.NewMatch(field, sc.s))
		case 'b':
			must = append(must, qdrant.NewMatchBool(field, sc.b))
		case 'n':
			if i, ok := sc.integral(); ok {
				must = append(must, qdrant.NewMatchInt(field, i))
			} else {
				must = append(must, qdrant.NewRange(field, &qdrant.Range{
					Gte: qdrant.PtrOf(sc.n),
					Lte: qdrant.PtrOf(sc.n),
				}))
			}
		default:
			return nil, fmt.Errorf("%w: metadata filter %q: unsupported value %s", core.ErrInvalidQuery, k, strconv.Quote(fmt.Sprint(f.Metadata[k])))
		}
	}
	return &qdrant.Filter{Must: must}, nil
}
