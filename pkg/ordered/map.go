// Package ordered provides an insertion-ordered string-keyed map that keeps
// document order through JSON and YAML round trips.
//
// Configuration sections (edits, inspections, output formats), codebook
// value tables and the ingestion ledger are all processed in the order they
// were declared or recorded, so a plain Go map cannot hold them.
package ordered

import (
	"bytes"
	stdjson "encoding/json"
	"fmt"
	"sort"

	gojson "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Map is an insertion-ordered map. The zero value is ready to use.
type Map[V any] struct {
	keys   []string
	values map[string]V
}

// New returns an empty map
func New[V any]() *Map[V] {
	return &Map[V]{values: make(map[string]V)}
}

// Set stores v under key. New keys go to the end; existing keys keep their position.
func (m *Map[V]) Set(key string, v V) {
	if m.values == nil {
		m.values = make(map[string]V)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Get returns the value stored under key
func (m *Map[V]) Get(key string) (V, bool) {
	if m == nil {
		var zero V
		return zero, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present
func (m *Map[V]) Has(key string) bool {
	if m == nil {
		return false
	}
	_, ok := m.values[key]
	return ok
}

// Delete removes key, keeping the order of the remaining keys
func (m *Map[V]) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Keys returns a copy of the keys in order
func (m *Map[V]) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of entries. Read methods accept a nil map.
func (m *Map[V]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Range calls fn for each entry in order until fn returns false
func (m *Map[V]) Range(fn func(key string, v V) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// Clone returns a shallow copy
func (m *Map[V]) Clone() *Map[V] {
	out := New[V]()
	m.Range(func(k string, v V) bool {
		out.Set(k, v)
		return true
	})
	return out
}

// SortKeys reorders the entries by key using less
func (m *Map[V]) SortKeys(less func(a, b string) bool) {
	sort.SliceStable(m.keys, func(i, j int) bool { return less(m.keys[i], m.keys[j]) })
}

// MarshalJSON writes the entries as a JSON object in order
func (m Map[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := gojson.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := gojson.Marshal(m.values[k])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keeping member order
func (m *Map[V]) UnmarshalJSON(data []byte) error {
	m.keys = nil
	m.values = make(map[string]V)

	dec := stdjson.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(stdjson.Delim); !ok || d != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var raw stdjson.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("failed to read %q: %w", key, err)
		}
		var v V
		if err := gojson.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("failed to decode %q: %w", key, err)
		}
		m.Set(key, v)
	}
	_, err = dec.Token()
	return err
}

// UnmarshalYAML reads a YAML mapping keeping key order
func (m *Map[V]) UnmarshalYAML(node *yaml.Node) error {
	m.keys = nil
	m.values = make(map[string]V)

	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		var v V
		if err := node.Content[i+1].Decode(&v); err != nil {
			return fmt.Errorf("line %d: failed to decode %q: %w", node.Content[i+1].Line, key, err)
		}
		m.Set(key, v)
	}
	return nil
}

// MarshalYAML writes the entries as a YAML mapping in order
func (m Map[V]) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range m.keys {
		var vn yaml.Node
		if err := vn.Encode(m.values[k]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: k}, &vn)
	}
	return node, nil
}
