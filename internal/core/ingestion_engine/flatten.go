package ingestion_engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/markdave123-py/chunkenizer/internal/core"
)

const (
	// maxNestingDepth bounds container nesting in structured uploads.
	maxNestingDepth = 64
	// maxYAMLNodes bounds alias expansion.
	maxYAMLNodes = 1 << 20
)

type valueKind int

const (
	kindScalar valueKind = iota
	kindObject
	kindArray
)

type field struct {
	key string
	val *value
}

// value is a parsed structured document. Object fields keep source order.
type value struct {
	kind   valueKind
	scalar string
	fields []field
	items  []*value
}

// FlattenJSON renders a JSON document as "path: value" lines.
//
// Object members become parent.child, array elements parent[i] ([i] at the
// root). Strings render unquoted, numbers as written, and true, false and null
// as their literals. Empty containers render as "path: {}" or "path: []".
// A scalar root renders as the bare value.
func FlattenJSON(data []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	root, err := parseJSONValue(dec, 0)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("%w: empty JSON document", core.ErrMalformedInput)
		}
		return "", fmt.Errorf("%w: json: %v", core.ErrMalformedInput, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: json: trailing data after top-level value", core.ErrMalformedInput)
	}
	return render(root), nil
}

// FlattenYAML renders YAML with the same path scheme as FlattenJSON. Every
// document in a multi-document stream is rendered in order.
func FlattenYAML(data []byte) (string, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var parts []string
	budget := maxYAMLNodes
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: yaml: %v", core.ErrMalformedInput, err)
		}
		v, err := fromYAMLNode(&doc, 0, &budget)
		if err != nil {
			return "", err
		}
		if v == nil {
			continue
		}
		if s := render(v); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n"), nil
}

func parseJSONValue(dec *json.Decoder, depth int) (*value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		if depth >= maxNestingDepth {
			return nil, fmt.Errorf("nesting deeper than %d levels", maxNestingDepth)
		}
		switch t {
		case '{':
			v := &value{kind: kindObject}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("object key is %T", kt)
				}
				child, err := parseJSONValue(dec, depth+1)
				if err != nil {
					return nil, err
				}
				v.fields = append(v.fields, field{key: key, val: child})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return v, nil
		case '[':
			v := &value{kind: kindArray}
			for dec.More() {
				child, err := parseJSONValue(dec, depth+1)
				if err != nil {
					return nil, err
				}
				v.items = append(v.items, child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return v, nil
		default:
			return nil, fmt.Errorf("unexpected %q", t.String())
		}
	case string:
		return &value{kind: kindScalar, scalar: t}, nil
	case json.Number:
		return &value{kind: kindScalar, scalar: t.String()}, nil
	case bool:
		return &value{kind: kindScalar, scalar: strconv.FormatBool(t)}, nil
	case nil:
		return &value{kind: kindScalar, scalar: "null"}, nil
	default:
		return nil, fmt.Errorf("unexpected token %T", tok)
	}
}

func fromYAMLNode(n *yaml.Node, depth int, budget *int) (*value, error) {
	*budget--
	if *budget < 0 {
		return nil, fmt.Errorf("%w: yaml: document expands beyond %d nodes", core.ErrMalformedInput, maxYAMLNodes)
	}

	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return fromYAMLNode(n.Content[0], depth, budget)
	case yaml.AliasNode:
		if n.Alias == nil {
			return nil, fmt.Errorf("%w: yaml: dangling alias", core.ErrMalformedInput)
		}
		return fromYAMLNode(n.Alias, depth, budget)
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return &value{kind: kindScalar, scalar: "null"}, nil
		}
		return &value{kind: kindScalar, scalar: n.Value}, nil
	}

	if depth >= maxNestingDepth {
		return nil, fmt.Errorf("%w: yaml: nesting deeper than %d levels", core.ErrMalformedInput, maxNestingDepth)
	}

	switch n.Kind {
	case yaml.MappingNode:
		v := &value{kind: kindObject}
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i]
			if k.Kind == yaml.AliasNode && k.Alias != nil {
				k = k.Alias
			}
			if k.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("%w: yaml: non-scalar mapping key at line %d", core.ErrMalformedInput, k.Line)
			}
			child, err := fromYAMLNode(n.Content[i+1], depth+1, budget)
			if err != nil {
				return nil, err
			}
			if child == nil {
				child = &value{kind: kindScalar, scalar: "null"}
			}
			v.fields = append(v.fields, field{key: k.Value, val: child})
		}
		return v, nil
	case yaml.SequenceNode:
		v := &value{kind: kindArray}
		for _, item := range n.Content {
			child, err := fromYAMLNode(item, depth+1, budget)
			if err != nil {
				return nil, err
			}
			if child == nil {
				child = &value{kind: kindScalar, scalar: "null"}
			}
			v.items = append(v.items, child)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: yaml: unknown node kind %d", core.ErrMalformedInput, n.Kind)
	}
}

// render walks the tree with an explicit stack so output order is the
// document order.
func render(root *value) string {
	type frame struct {
		path string
		v    *value
	}

	var b strings.Builder
	emit := func(line string) {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}

	stack := []frame{{v: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch f.v.kind {
		case kindScalar:
			if f.path == "" {
				emit(f.v.scalar)
			} else {
				emit(f.path + ": " + f.v.scalar)
			}
		case kindObject:
			if len(f.v.fields) == 0 {
				if f.path != "" {
					emit(f.path + ": {}")
				}
				continue
			}
			for i := len(f.v.fields) - 1; i >= 0; i-- {
				fd := f.v.fields[i]
				p := fd.key
				if f.path != "" {
					p = f.path + "." + fd.key
				}
				stack = append(stack, frame{path: p, v: fd.val})
			}
		case kindArray:
			if len(f.v.items) == 0 {
				if f.path != "" {
					emit(f.path + ": []")
				}
				continue
			}
			for i := len(f.v.items) - 1; i >= 0; i-- {
				stack = append(stack, frame{path: f.path + "[" + strconv.Itoa(i) + "]", v: f.v.items[i]})
			}
		}
	}
	return b.String()
}
