package ingestion_engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/chunkenizer/internal/core"
)

func TestResolveContentType(t *testing.T) {
	cases := []struct {
		declared, name string
		data           []byte
		want           string
	}{
		{"text/plain; charset=utf-8", "a.bin", nil, TypePlain},
		{"TEXT/Markdown", "", nil, TypeMarkdown},
		{"text/x-markdown", "", nil, TypeMarkdown},
		{"application/x-yaml", "", nil, TypeYAML},
		{"text/json", "", nil, TypeJSON},
		{"", "notes.md", nil, TypeMarkdown},
		{"application/octet-stream", "config.YML", nil, TypeYAML},
		{"", "report.pdf", nil, TypePDF},
		{"", "unknown", []byte("just some text"), TypePlain},
		{"", "unknown", []byte("%PDF-1.4 ..."), TypePDF},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ResolveContentType(tc.declared, tc.name, tc.data), "%q %q", tc.declared, tc.name)
	}
}

func TestExtractText_PlainCanonicalises(t *testing.T) {
	e := NewExtractor(false)
	ctx := context.Background()

	// BOM, CRLF, lone CR, and a decomposed e-acute.
	raw := []byte("\xEF\xBB\xBFcafe\u0301\r\nline two\rend")
	text, err := e.ExtractText(ctx, raw, "text/plain", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9\nline two\nend", text)
}

func TestExtractText_UTF16(t *testing.T) {
	e := NewExtractor(false)

	le := []byte{0xFF, 0xFE, 'h', 0, 'i', 0, '\n', 0}
	text, err := e.ExtractText(context.Background(), le, "text/plain", "")
	require.NoError(t, err)
	assert.Equal(t, "hi\n", text)

	be := []byte{0xFE, 0xFF, 0, 'h', 0, 'i'}
	text, err = e.ExtractText(context.Background(), be, "text/plain", "")
	require.NoError(t, err)
	assert.Equal(t, "hi", text)
}

func TestExtractText_EquivalentInputsShareFingerprint(t *testing.T) {
	e := NewExtractor(false)
	ctx := context.Background()

	a, err := e.ExtractText(ctx, []byte("one\r\ntwo"), "text/plain", "")
	require.NoError(t, err)
	b, err := e.ExtractText(ctx, []byte("\xEF\xBB\xBFone\ntwo"), "text/markdown", "")
	require.NoError(t, err)

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestExtractText_InvalidUTF8(t *testing.T) {
	_, err := NewExtractor(false).ExtractText(context.Background(), []byte{'a', 0xC3, 0x28}, "text/plain", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMalformedInput)
}

func TestExtractText_JSON(t *testing.T) {
	text, err := NewExtractor(false).ExtractText(context.Background(),
		[]byte(`{"title": "Doc", "tags": ["x", "y"]}`), "application/json", "d.json")
	require.NoError(t, err)
	assert.Equal(t, "title: Doc\ntags[0]: x\ntags[1]: y", text)
}

func TestExtractText_MalformedJSON(t *testing.T) {
	_, err := NewExtractor(false).ExtractText(context.Background(), []byte(`{"title": `), "application/json", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMalformedInput)
}

func TestExtractText_YAMLByExtension(t *testing.T) {
	text, err := NewExtractor(false).ExtractText(context.Background(), []byte("a:\n  b: c\n"), "", "x.yaml")
	require.NoError(t, err)
	assert.Equal(t, "a.b: c", text)
}

func TestExtractText_Unsupported(t *testing.T) {
	_, err := NewExtractor(false).ExtractText(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "image/png", "a.png")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
}

func TestExtractText_CorruptPDF(t *testing.T) {
	_, err := NewExtractor(false).ExtractText(context.Background(), []byte("%PDF-1.4 truncated"), "application/pdf", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMalformedInput)
}

func TestExtractText_HTML(t *testing.T) {
	text, err := NewExtractor(false).ExtractText(context.Background(),
		[]byte("<html><body><p>Hello there</p></body></html>"), "text/html", "")
	require.NoError(t, err)
	assert.Contains(t, text, "Hello there")
}

func TestExtractText_HTMLPage(t *testing.T) {
	page := `<!DOCTYPE html>
<html>
<head><title>Release notes</title></head>
<body>
  <h1>Version 2</h1>
  <p>Chunks are now sized with the cl100k encoding.</p>
  <p>See <a href="https://example.com/docs">the docs</a> for details.</p>
  <ul><li>Faster uploads</li><li>Smaller payloads</li></ul>
</body>
</html>`
	text, err := NewExtractor(false).ExtractText(context.Background(), []byte(page), "text/html; charset=utf-8", "notes.html")
	require.NoError(t, err)
	require.NotEmpty(t, text)
	assert.Contains(t, text, "Version 2")
	assert.Contains(t, text, "Chunks are now sized with the cl100k encoding.")
	assert.Contains(t, text, "the docs")
	assert.Contains(t, text, "Smaller payloads")
	assert.NotContains(t, text, "https://example.com/docs")
	assert.NotContains(t, text, "<p>")
}

func TestExtractText_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewExtractor(false).ExtractText(ctx, []byte("x"), "text/plain", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFingerprint(t *testing.T) {
	// sha256("hello")
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", Fingerprint("hello"))
	assert.Len(t, Fingerprint(""), 64)
	assert.NotEqual(t, Fingerprint("a"), Fingerprint("b"))
}
