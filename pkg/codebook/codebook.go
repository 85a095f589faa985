// Package codebook models the reference codebook: per key, the permitted
// value codes with their labels, plus free-form metadata.
package codebook

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ajitpratap0/cura/pkg/errors"
	"github.com/ajitpratap0/cura/pkg/json"
	"github.com/ajitpratap0/cura/pkg/ordered"
	"github.com/ajitpratap0/cura/pkg/whitelist"
)

// Values maps value codes to labels in source order
type Values = ordered.Map[string]

// Metadata holds the attributes of one key
type Metadata = map[string]interface{}

// Codebook is the parsed codebook entity
type Codebook struct {
	Data     *ordered.Map[*Values]  `json:"data"`
	Metadata *ordered.Map[Metadata] `json:"metadata"`
}

// New returns an empty codebook
func New() *Codebook {
	return &Codebook{
		Data:     ordered.New[*Values](),
		Metadata: ordered.New[Metadata](),
	}
}

// Load reads a codebook document
func Load(path string) (*Codebook, error) {
	cb := New()
	if err := json.ReadFile(path, cb); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to load codebook").
			WithDetail("path", path)
	}
	cb.normalize()
	return cb, nil
}

// Save writes the codebook document to path
func (cb *Codebook) Save(path string) error {
	if err := json.WriteFile(path, cb); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to save codebook").
			WithDetail("path", path)
	}
	return nil
}

// normalize replaces absent sections and null value tables with empty ones
func (cb *Codebook) normalize() {
	if cb.Data == nil {
		cb.Data = ordered.New[*Values]()
	}
	if cb.Metadata == nil {
		cb.Metadata = ordered.New[Metadata]()
	}
	for _, k := range cb.Data.Keys() {
		if v, _ := cb.Data.Get(k); v == nil {
			cb.Data.Set(k, ordered.New[string]())
		}
	}
}

// Keys returns the data keys in order
func (cb *Codebook) Keys() []string {
	return cb.Data.Keys()
}

// Values returns the value table of key
func (cb *Codebook) Values(key string) (*Values, bool) {
	return cb.Data.Get(key)
}

// SetValues replaces the value table of key
func (cb *Codebook) SetValues(key string, v *Values) {
	cb.Data.Set(key, v)
}

// FilterByWhitelist keeps only whitelisted keys, in whitelist order. Every
// whitelist key must be present in both data and metadata.
func (cb *Codebook) FilterByWhitelist(wl *whitelist.Whitelist) (*Codebook, error) {
	var dataMissing, metaMissing []string
	for _, k := range wl.Keys() {
		if !cb.Data.Has(k) {
			dataMissing = append(dataMissing, k)
		}
		if !cb.Metadata.Has(k) {
			metaMissing = append(metaMissing, k)
		}
	}
	if len(dataMissing) > 0 || len(metaMissing) > 0 {
		return nil, errors.Newf(errors.ErrorTypeData,
			"not all whitelist keys are in the codebook: data missing [%s], metadata missing [%s]",
			strings.Join(dataMissing, ", "), strings.Join(metaMissing, ", ")).
			WithDetail("data_missing", dataMissing).
			WithDetail("metadata_missing", metaMissing)
	}

	out := New()
	for _, k := range wl.Keys() {
		v, _ := cb.Data.Get(k)
		out.Data.Set(k, v.Clone())
		m, _ := cb.Metadata.Get(k)
		out.Metadata.Set(k, m)
	}
	return out, nil
}

// SortValues orders every key's codes lexicographically
func (cb *Codebook) SortValues() {
	cb.Data.Range(func(_ string, v *Values) bool {
		v.SortKeys(func(a, b string) bool { return a < b })
		return true
	})
}

// MetadataFor returns the metadata of key, creating an empty entry if needed
func (cb *Codebook) MetadataFor(key string) Metadata {
	m, ok := cb.Metadata.Get(key)
	if !ok || m == nil {
		m = Metadata{}
		cb.Metadata.Set(key, m)
	}
	return m
}

// RebuildValues applies fn to every code/label pair of v and returns a new
// table. When two codes map to the same new code the later pair wins; the
// collided codes are returned so callers can report them.
func RebuildValues(v *Values, fn func(code, label string) (string, string)) (*Values, []string) {
	out := ordered.New[string]()
	var collisions []string
	v.Range(func(code, label string) bool {
		nc, nl := fn(code, label)
		if out.Has(nc) {
			collisions = append(collisions, nc)
		}
		out.Set(nc, nl)
		return true
	})
	sort.Strings(collisions)
	return out, collisions
}

// String summarizes the codebook for logs
func (cb *Codebook) String() string {
	n := 0
	cb.Data.Range(func(_ string, v *Values) bool {
		n += v.Len()
		return true
	})
	return fmt.Sprintf("codebook{keys=%d, values=%d}", cb.Data.Len(), n)
}
