package ingestion_engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/chunkenizer/internal/core"
)

func TestFlattenJSON_Paths(t *testing.T) {
	in := `{
		"name": "test",
		"nested": {"key": "value", "n": 1.50, "ok": true, "none": null},
		"items": [1, {"a": "b"}, [2, 3]],
		"empty_obj": {},
		"empty_arr": []
	}`

	out, err := FlattenJSON([]byte(in))
	require.NoError(t, err)

	want := strings.Join([]string{
		"name: test",
		"nested.key: value",
		"nested.n: 1.50",
		"nested.ok: true",
		"nested.none: null",
		"items[0]: 1",
		"items[1].a: b",
		"items[2][0]: 2",
		"items[2][1]: 3",
		"empty_obj: {}",
		"empty_arr: []",
	}, "\n")
	assert.Equal(t, want, out)
}

func TestFlattenJSON_KeepsDocumentKeyOrder(t *testing.T) {
	out, err := FlattenJSON([]byte(`{"z": 1, "a": 2, "m": 3}`))
	require.NoError(t, err)
	assert.Equal(t, "z: 1\na: 2\nm: 3", out)
}

func TestFlattenJSON_Roots(t *testing.T) {
	cases := map[string]string{
		`[1, "two"]`: "[0]: 1\n[1]: two",
		`"hello"`:    "hello",
		`42`:         "42",
		`{}`:         "",
		`[]`:         "",
	}
	for in, want := range cases {
		out, err := FlattenJSON([]byte(in))
		require.NoError(t, err, in)
		assert.Equal(t, want, out, in)
	}
}

func TestFlattenJSON_Deterministic(t *testing.T) {
	in := []byte(`{"b": [1, 2, {"c": "d"}], "a": {"x": null}}`)
	first, err := FlattenJSON(in)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := FlattenJSON(in)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestFlattenJSON_Malformed(t *testing.T) {
	inputs := []string{
		``,
		`{"a": }`,
		`{"a": 1`,
		`[1, 2]]`,
		`{"a": 1} {"b": 2}`,
		`not json`,
	}
	for _, in := range inputs {
		_, err := FlattenJSON([]byte(in))
		require.Error(t, err, in)
		assert.ErrorIs(t, err, core.ErrMalformedInput, in)
	}
}

func TestFlattenJSON_DepthBound(t *testing.T) {
	ok := strings.Repeat("[", maxNestingDepth) + "1" + strings.Repeat("]", maxNestingDepth)
	_, err := FlattenJSON([]byte(ok))
	require.NoError(t, err)

	deep := strings.Repeat("[", maxNestingDepth+1) + "1" + strings.Repeat("]", maxNestingDepth+1)
	_, err = FlattenJSON([]byte(deep))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMalformedInput)
}

func TestFlattenYAML_MatchesJSONScheme(t *testing.T) {
	in := `
name: test
nested:
  key: value
  flag: true
  missing:
items:
  - 1
  - a: b
empty_map: {}
empty_list: []
`
	out, err := FlattenYAML([]byte(in))
	require.NoError(t, err)

	want := strings.Join([]string{
		"name: test",
		"nested.key: value",
		"nested.flag: true",
		"nested.missing: null",
		"items[0]: 1",
		"items[1].a: b",
		"empty_map: {}",
		"empty_list: []",
	}, "\n")
	assert.Equal(t, want, out)
}

func TestFlattenYAML_Aliases(t *testing.T) {
	in := `
base: &b
  host: localhost
copy: *b
`
	out, err := FlattenYAML([]byte(in))
	require.NoError(t, err)
	assert.Equal(t, "base.host: localhost\ncopy.host: localhost", out)
}

func TestFlattenYAML_MultiDocument(t *testing.T) {
	out, err := FlattenYAML([]byte("a: 1\n---\nb: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, "a: 1\nb: 2", out)
}

func TestFlattenYAML_Malformed(t *testing.T) {
	_, err := FlattenYAML([]byte("a: [1, 2\nb: c"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMalformedInput)

	_, err = FlattenYAML([]byte("? [a, b]\n: value\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMalformedInput)
}

func TestFlattenYAML_DepthBound(t *testing.T) {
	deep := strings.Repeat("[", maxNestingDepth+1) + "1" + strings.Repeat("]", maxNestingDepth+1)
	_, err := FlattenYAML([]byte(deep))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMalformedInput)
}
