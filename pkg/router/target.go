// Package router resolves the targets of configured edits and dispatches
// each resolved edit to the codebook, the domain table, or both.
package router

import (
	"fmt"
	"strings"

	"github.com/ajitpratap0/cura/pkg/ordered"
	"github.com/ajitpratap0/cura/pkg/transform"
)

// Target key syntax
const (
	// ValuesSuffix routes an edit to a key's labels instead of its codes
	ValuesSuffix = "-values"
	// AllKeys applies an edit to every whitelist key
	AllKeys = "all_keys"
	// AllValues applies an edit to the labels of every whitelist key
	AllValues = "all_values"
)

// Kind tells which variant an EditTarget holds
type Kind int

const (
	// KindKey addresses one key's codes or one domain column
	KindKey Kind = iota
	// KindKeyValues addresses one key's labels
	KindKeyValues
	// KindAllKeys expands to a KindKey per whitelist key
	KindAllKeys
	// KindAllValues expands to a KindKeyValues per whitelist key
	KindAllValues
)

func (k Kind) String() string {
	switch k {
	case KindKey:
		return "key"
	case KindKeyValues:
		return "key_values"
	case KindAllKeys:
		return "all_keys"
	case KindAllValues:
		return "all_values"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// EditTarget is the parsed form of a target key. Key is empty for the
// wildcard kinds and never carries the values suffix.
type EditTarget struct {
	Kind Kind
	Key  string
}

// ParseTarget reads a target key as written in the configuration
func ParseTarget(s string) EditTarget {
	switch s {
	case AllKeys:
		return EditTarget{Kind: KindAllKeys}
	case AllValues:
		return EditTarget{Kind: KindAllValues}
	}
	if base, ok := strings.CutSuffix(s, ValuesSuffix); ok && base != "" {
		return EditTarget{Kind: KindKeyValues, Key: base}
	}
	return EditTarget{Kind: KindKey, Key: s}
}

// Wildcard reports whether the target expands over the whitelist
func (t EditTarget) Wildcard() bool {
	return t.Kind == KindAllKeys || t.Kind == KindAllValues
}

// TargetValues reports whether the target addresses labels
func (t EditTarget) TargetValues() bool {
	return t.Kind == KindKeyValues
}

// String renders the target in configuration syntax
func (t EditTarget) String() string {
	switch t.Kind {
	case KindAllKeys:
		return AllKeys
	case KindAllValues:
		return AllValues
	case KindKeyValues:
		return t.Key + ValuesSuffix
	default:
		return t.Key
	}
}

// Entry is one resolved edit on one concrete target
type Entry struct {
	Transform string
	Target    EditTarget
	Params    transform.Params
}

// Edit is one configured edit: a transform and its targets with their
// parameters, in document order
type Edit struct {
	Transform string
	Targets   *ordered.Map[[]interface{}]
}

// Expand resolves the wildcard targets of edit against the whitelist keys.
// Explicit targets come first in declared order, then all_keys expansions,
// then all_values expansions, each in whitelist order. An explicit target
// wins over the wildcard expansion of the same key.
func Expand(edit Edit, whitelistKeys []string) []Entry {
	var entries []Entry
	explicit := make(map[EditTarget]bool)
	var allKeys, allValues []interface{}
	hasAllKeys, hasAllValues := false, false

	edit.Targets.Range(func(raw string, params []interface{}) bool {
		t := ParseTarget(raw)
		switch t.Kind {
		case KindAllKeys:
			allKeys, hasAllKeys = params, true
		case KindAllValues:
			allValues, hasAllValues = params, true
		default:
			explicit[t] = true
			entries = append(entries, Entry{Transform: edit.Transform, Target: t, Params: copyParams(params)})
		}
		return true
	})

	expand := func(kind Kind, params []interface{}) {
		for _, k := range whitelistKeys {
			t := EditTarget{Kind: kind, Key: k}
			if explicit[t] {
				continue
			}
			entries = append(entries, Entry{Transform: edit.Transform, Target: t, Params: copyParams(params)})
		}
	}
	if hasAllKeys {
		expand(KindKey, allKeys)
	}
	if hasAllValues {
		expand(KindKeyValues, allValues)
	}
	return entries
}

// copyParams gives every entry its own slice so dispatch cannot leak
// parameters between keys
func copyParams(p []interface{}) transform.Params {
	out := make(transform.Params, len(p))
	copy(out, p)
	return out
}
