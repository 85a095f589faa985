// Package whitelist holds the ordered set of keys allowed through the pipeline.
package whitelist

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Whitelist is an ordered set of unique key names. It only ever grows, and
// only through Append.
type Whitelist struct {
	keys  []string
	index map[string]struct{}
}

// New builds a whitelist, rejecting empty and duplicate names
func New(keys []string) (*Whitelist, error) {
	w := &Whitelist{index: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		if err := w.Append(k); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Append adds key at the end
func (w *Whitelist) Append(key string) error {
	if key == "" {
		return fmt.Errorf("whitelist key must not be empty")
	}
	if w.index == nil {
		w.index = make(map[string]struct{})
	}
	if _, ok := w.index[key]; ok {
		return fmt.Errorf("duplicate whitelist key %q", key)
	}
	w.keys = append(w.keys, key)
	w.index[key] = struct{}{}
	return nil
}

// Contains reports whether key is whitelisted
func (w *Whitelist) Contains(key string) bool {
	_, ok := w.index[key]
	return ok
}

// Keys returns a copy of the keys in order
func (w *Whitelist) Keys() []string {
	out := make([]string, len(w.keys))
	copy(out, w.keys)
	return out
}

// Len returns the number of keys
func (w *Whitelist) Len() int {
	return len(w.keys)
}

// Missing returns the whitelist keys not present in have, in whitelist order
func (w *Whitelist) Missing(have []string) []string {
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	var missing []string
	for _, k := range w.keys {
		if _, ok := set[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

var digits = regexp.MustCompile(`\d+`)

// NaturalSort sorts keys so embedded numbers compare numerically:
// A2 sorts before A10. Text parts compare case-insensitively.
func NaturalSort(keys []string) []string {
	out := make([]string, len(keys))
	copy(out, keys)
	sort.SliceStable(out, func(i, j int) bool {
		return naturalLess(out[i], out[j])
	})
	return out
}

func naturalLess(a, b string) bool {
	pa, pb := splitNatural(a), splitNatural(b)
	for i := 0; i < len(pa) && i < len(pb); i++ {
		x, y := pa[i], pb[i]
		if x.isNum && y.isNum {
			if x.num != y.num {
				return x.num < y.num
			}
			continue
		}
		if x.text != y.text {
			return x.text < y.text
		}
	}
	return len(pa) < len(pb)
}

type naturalPart struct {
	text  string
	num   uint64
	isNum bool
}

// splitNatural splits s into alternating text and number parts, always
// starting with a (possibly empty) text part so positions line up.
func splitNatural(s string) []naturalPart {
	var parts []naturalPart
	last := 0
	for _, loc := range digits.FindAllStringIndex(s, -1) {
		parts = append(parts, naturalPart{text: strings.ToLower(s[last:loc[0]])})
		n, err := strconv.ParseUint(s[loc[0]:loc[1]], 10, 64)
		if err != nil {
			parts = append(parts, naturalPart{text: s[loc[0]:loc[1]]})
		} else {
			parts = append(parts, naturalPart{num: n, isNum: true})
		}
		last = loc[1]
	}
	parts = append(parts, naturalPart{text: strings.ToLower(s[last:])})
	return parts
}
