package llm

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/markdave123-py/chunkenizer/internal/core"
)

var _ core.EmbeddingProvider = (*HashEmbedder)(nil)

// HashEmbedder is an offline embedder for local runs and tests. Each lowercase
// word is hashed into one signed bucket, so texts sharing words score closer.
// It is deterministic across processes and needs no network.
type HashEmbedder struct {
	dim int
}

func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = 384
	}
	return &HashEmbedder{dim: dim}
}

func (e *HashEmbedder) Dimension() int    { return e.dim }
func (e *HashEmbedder) ModelName() string { return "hash-embedding" }

func (e *HashEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e *HashEmbedder) embed(text string) []float32 {
	vec := make([]float32, e.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New64a()
		_, _ = h.Write([]byte(w))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dim))
		if sum&(1<<63) != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}
	l2normalize(vec)
	return vec
}
