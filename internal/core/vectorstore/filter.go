package vectorstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/markdave123-py/chunkenizer/internal/core"
	"github.com/markdave123-py/chunkenizer/internal/models"
)

// ValidateFilter checks that every metadata value is a JSON scalar other than
// null. Numbers may arrive as float64, any Go integer, or json.Number.
func ValidateFilter(f models.SearchFilter) error {
	for k, v := range f.Metadata {
		if k == "" {
			return fmt.Errorf("%w: empty metadata filter key", core.ErrInvalidQuery)
		}
		if _, ok := normalizeScalar(v); !ok {
			return fmt.Errorf("%w: metadata filter %q must be a string, number or boolean", core.ErrInvalidQuery, k)
		}
	}
	return nil
}

// scalar is a comparable form of a JSON scalar.
type scalar struct {
	kind byte // 's', 'n', 'b'
	s    string
	n    float64
	b    bool
}

func normalizeScalar(v any) (scalar, bool) {
	switch t := v.(type) {
	case string:
		return scalar{kind: 's', s: t}, true
	case bool:
		return scalar{kind: 'b', b: t}, true
	case float64:
		return scalar{kind: 'n', n: t}, !math.IsNaN(t) && !math.IsInf(t, 0)
	case float32:
		return normalizeScalar(float64(t))
	case int:
		return scalar{kind: 'n', n: float64(t)}, true
	case int32:
		return scalar{kind: 'n', n: float64(t)}, true
	case int64:
		return scalar{kind: 'n', n: float64(t)}, true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return scalar{}, false
		}
		return scalar{kind: 'n', n: f}, true
	default:
		return scalar{}, false
	}
}

// integral reports whether a numeric scalar has no fractional part and fits
// in an int64.
func (s scalar) integral() (int64, bool) {
	if s.kind != 'n' || s.n != math.Trunc(s.n) || math.Abs(s.n) > 1<<53 {
		return 0, false
	}
	return int64(s.n), true
}

// decodeMetadata parses stored metadata keeping numbers exact.
func decodeMetadata(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// payloadValue converts decoded metadata into types the payload encoders
// accept: integral numbers become int64, others float64.
func payloadValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(t.String(), 10, 64); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = payloadValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = payloadValue(e)
		}
		return out
	default:
		return v
	}
}

// matchPoint applies a filter to one stored point.
func matchPoint(p *models.ChunkPoint, meta map[string]any, f models.SearchFilter) bool {
	if f.DocumentID != "" && p.DocumentID != f.DocumentID {
		return false
	}
	if f.DocumentName != "" && p.DocumentName != f.DocumentName {
		return false
	}
	for k, want := range f.Metadata {
		got, ok := meta[k]
		if !ok {
			return false
		}
		a, okA := normalizeScalar(got)
		b, okB := normalizeScalar(want)
		if !okA || !okB || a != b {
			return false
		}
	}
	return true
}
