package core

import "context"

// EmbeddingProvider turns texts into dense vectors of a fixed dimension.
// The returned slice is parallel to texts.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelName() string
}

// Tokenizer wraps a subword tokenizer. Decode(Encode(s)) == s for whole
// sequences; a window cut through a multi-byte rune decodes lossily.
type Tokenizer interface {
	CountTokens(text string) int
	Encode(text string) []int
	Decode(tokens []int) string
}
