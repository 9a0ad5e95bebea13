package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"
	"github.com/jaytaylor/html2text"
	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/unicode/norm"

	"github.com/markdave123-py/chunkenizer/internal/core"
)

// Content types the extractor understands.
const (
	TypePlain    = "text/plain"
	TypeMarkdown = "text/markdown"
	TypeCSV      = "text/csv"
	TypeJSON     = "application/json"
	TypeYAML     = "application/yaml"
	TypePDF      = "application/pdf"
	TypeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	TypeODT      = "application/vnd.oasis.opendocument.text"
	TypeHTML     = "text/html"
	TypeRTF      = "application/rtf"
)

// aliases folds equivalent media types onto the ones above.
var aliases = map[string]string{
	"text/x-markdown":       TypeMarkdown,
	"text/json":             TypeJSON,
	"application/x-yaml":    TypeYAML,
	"text/yaml":             TypeYAML,
	"text/x-yaml":           TypeYAML,
	"text/rtf":              TypeRTF,
	"application/xhtml+xml": TypeHTML,
}

var extensionTypes = map[string]string{
	".txt":      TypePlain,
	".text":     TypePlain,
	".log":      TypePlain,
	".md":       TypeMarkdown,
	".markdown": TypeMarkdown,
	".csv":      TypeCSV,
	".json":     TypeJSON,
	".yaml":     TypeYAML,
	".yml":      TypeYAML,
	".pdf":      TypePDF,
	".docx":     TypeDOCX,
	".odt":      TypeODT,
	".html":     TypeHTML,
	".htm":      TypeHTML,
	".rtf":      TypeRTF,
}

var _ core.DocumentExtractor = (*Extractor)(nil)

// Extractor turns an upload into canonical text. The canonical form is valid
// UTF-8 without a byte order mark, with LF line endings, in Unicode NFC.
type Extractor struct {
	useReadability bool
}

// NewExtractor builds an Extractor. useReadability is passed to docconv for
// HTML input.
func NewExtractor(useReadability bool) *Extractor {
	return &Extractor{useReadability: useReadability}
}

// ResolveContentType strips parameters from the declared type and folds
// aliases. An empty or generic declaration is replaced by a guess from the
// file extension, then from the leading bytes.
func ResolveContentType(declared, name string, data []byte) string {
	ct := mediaType(declared)
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}

	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	if t := mediaType(mime.TypeByExtension(ext)); t != "" {
		return t
	}
	if len(data) > 0 {
		return mediaType(http.DetectContentType(data))
	}
	return ct
}

func mediaType(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(strings.SplitN(v, ";", 2)[0]))
	}
	if a, ok := aliases[mt]; ok {
		return a
	}
	return mt
}

// ExtractText dispatches on the resolved content type.
func (e *Extractor) ExtractText(ctx context.Context, data []byte, contentType, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ct := ResolveContentType(contentType, name, data)
	switch ct {
	case TypePlain, TypeMarkdown, TypeCSV:
		text, err := decodeText(data)
		if err != nil {
			return "", err
		}
		return Canonicalize(text), nil

	case TypeJSON, TypeYAML:
		text, err := decodeText(data)
		if err != nil {
			return "", err
		}
		var flat string
		if ct == TypeJSON {
			flat, err = FlattenJSON([]byte(text))
		} else {
			flat, err = FlattenYAML([]byte(text))
		}
		if err != nil {
			return "", err
		}
		return Canonicalize(flat), nil

	case TypePDF:
		text, err := extractPDF(data)
		if err != nil {
			return "", err
		}
		return Canonicalize(strings.ToValidUTF8(text, "�")), nil

	case TypeHTML:
		text, err := html2text.FromString(string(data), html2text.Options{OmitLinks: true})
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", core.ErrMalformedInput, ct, err)
		}
		return Canonicalize(strings.ToValidUTF8(text, "�")), nil

	case TypeDOCX, TypeODT, TypeRTF:
		res, err := docconv.Convert(bytes.NewReader(data), ct, e.useReadability)
		if err != nil {
			log.Printf("docconv: extraction failed for content type '%s': %v", ct, err)
			return "", fmt.Errorf("%w: %s: %v", core.ErrMalformedInput, ct, err)
		}
		return Canonicalize(strings.ToValidUTF8(res.Body, "�")), nil

	default:
		return "", fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, ct)
	}
}

// Canonicalize folds line endings to LF and composes to NFC.
func Canonicalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return norm.NFC.String(text)
}

// decodeText accepts UTF-8 with or without a BOM and UTF-16 with a BOM.
func decodeText(data []byte) (string, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}), bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		out, err := dec.Bytes(data)
		if err != nil {
			return "", fmt.Errorf("%w: utf-16: %v", core.ErrMalformedInput, err)
		}
		return string(out), nil
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		data = data[3:]
	}

	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: text is not valid UTF-8", core.ErrMalformedInput)
	}
	return string(data), nil
}

func extractPDF(data []byte) (text string, err error) {
	// The parser panics on some corrupt inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: pdf: %v", core.ErrMalformedInput, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: pdf: %v", core.ErrMalformedInput, err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: pdf: %v", core.ErrMalformedInput, err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("%w: pdf: %v", core.ErrMalformedInput, err)
	}
	return string(b), nil
}
