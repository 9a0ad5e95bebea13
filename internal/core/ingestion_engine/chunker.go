package ingestion_engine

import (
	"fmt"
	"strings"

	"github.com/markdave123-py/chunkenizer/internal/core"
	"github.com/markdave123-py/chunkenizer/internal/models"
)

// Span is a half-open token window [Start, End).
type Span struct {
	Start int
	End   int
}

// Len returns the number of tokens in the window.
func (s Span) Len() int { return s.End - s.Start }

// Chunker splits text into overlapping token windows.
//
// size:    tokens per chunk (e.g., 500).
// overlap: tokens shared by consecutive chunks (e.g., 50). Must be below size.
type Chunker struct {
	tok     core.Tokenizer
	size    int
	overlap int
}

// NewChunker validates the window settings.
func NewChunker(tok core.Tokenizer, size, overlap int) (*Chunker, error) {
	if tok == nil {
		return nil, fmt.Errorf("%w: chunker needs a tokenizer", core.ErrConfiguration)
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", core.ErrConfiguration, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", core.ErrConfiguration, size, overlap)
	}
	return &Chunker{tok: tok, size: size, overlap: overlap}, nil
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Spans lays windows over a sequence of n tokens. Each window after the first
// starts overlap tokens before the previous one ends. The walk stops at the
// first window that reaches n, so no window is ever a suffix of its
// predecessor.
func (c *Chunker) Spans(n int) []Span {
	if n <= 0 {
		return nil
	}
	stride := c.size - c.overlap
	spans := make([]Span, 0, (n+stride-1)/stride)
	for start := 0; ; start += stride {
		end := min(start+c.size, n)
		spans = append(spans, Span{Start: start, End: end})
		if end == n {
			return spans
		}
	}
}

// Chunk tokenizes text and returns its windows in document order. Blank text
// yields no chunks. Text that fits in one window comes back verbatim.
func (c *Chunker) Chunk(text string) []models.TextChunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	tokens := c.tok.Encode(text)
	if len(tokens) <= c.size {
		return []models.TextChunk{{Index: 0, Text: text, TokenCount: len(tokens)}}
	}

	spans := c.Spans(len(tokens))
	chunks := make([]models.TextChunk, len(spans))
	for i, sp := range spans {
		chunks[i] = models.TextChunk{
			Index:      i,
			Text:       c.tok.Decode(tokens[sp.Start:sp.End]),
			TokenCount: sp.Len(),
		}
	}
	return chunks
}
