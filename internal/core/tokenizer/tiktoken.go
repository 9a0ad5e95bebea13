// Package tokenizer adapts tiktoken BPE encodings to core.Tokenizer.
package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/markdave123-py/chunkenizer/internal/core"
)

// DefaultEncoding is the BPE used for chunk sizing.
const DefaultEncoding = "cl100k_base"

var loaderOnce sync.Once

var _ core.Tokenizer = (*Tiktoken)(nil)

// Tiktoken is stateless apart from the loaded ranks; safe for concurrent use.
//
// Decoding a full Encode result gives back the input byte for byte. Decoding a
// sub-slice may not: a window boundary can split the bytes of one rune, and
// those bytes decode to U+FFFD. Chunk texts inherit that behaviour.
type Tiktoken struct {
	enc      *tiktoken.Tiktoken
	encoding string
}

// NewTiktoken loads the named encoding from the embedded BPE files, so no
// network access is needed at startup.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: tokenizer encoding %q: %v", core.ErrConfiguration, encoding, err)
	}
	return &Tiktoken{enc: enc, encoding: encoding}, nil
}

// Encoding returns the BPE name.
func (t *Tiktoken) Encoding() string { return t.encoding }

func (t *Tiktoken) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(t.Encode(text))
}

// Encode treats special-token text as ordinary text.
func (t *Tiktoken) Encode(text string) []int {
	if text == "" {
		return nil
	}
	return t.enc.EncodeOrdinary(text)
}

func (t *Tiktoken) Decode(tokens []int) string {
	if len(tokens) == 0 {
		return ""
	}
	// A window cut inside a multi-byte rune decodes to raw partial bytes.
	return strings.ToValidUTF8(t.enc.Decode(tokens), "\uFFFD")
}
