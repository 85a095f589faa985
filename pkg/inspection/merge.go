// Package inspection accumulates inspection results across the passes of a
// run. Each accumulator maps a key to its results, one sub-entry per pass.
package inspection

import (
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/ajitpratap0/cura/pkg/codebook"
	"github.com/ajitpratap0/cura/pkg/errors"
	"github.com/ajitpratap0/cura/pkg/json"
	"github.com/ajitpratap0/cura/pkg/logger"
	"github.com/ajitpratap0/cura/pkg/transform"
)

// Entity prefixes of inspection tags
const (
	EntityCodebook       = "CODEBOOK"
	EntityCodebookValues = "CODEBOOK_VALUES"
	EntityDomain         = "DOMAIN_DATA"
)

// ProcessedSuffix marks results computed after edits
const ProcessedSuffix = "_PROCESSED"

// Accumulator maps key → pass tag → result
type Accumulator map[string]map[string]interface{}

// Accumulators holds the accumulator of every inspection tag of a run
type Accumulators map[string]Accumulator

// NewAccumulator seeds an empty entry for every key
func NewAccumulator(keys []string) Accumulator {
	acc := make(Accumulator, len(keys))
	for _, k := range keys {
		acc[k] = map[string]interface{}{}
	}
	return acc
}

// Keys returns the accumulator keys, sorted
func (a Accumulator) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Tag names the accumulator of an inspection, e.g. CODEBOOK_VALUES_char_map
func Tag(entity, inspection string) string {
	return entity + "_" + inspection
}

// SubkeyTag names the result of one pass
func SubkeyTag(inspection string, processed bool) string {
	if processed {
		return inspection + ProcessedSuffix
	}
	return inspection
}

// Merge files result under tag for every key of acc and returns the new
// accumulator; acc itself is not modified. Every key of acc must be present
// in result. Keys only in result, such as appended columns, get a new entry.
func Merge(acc Accumulator, result transform.Result, tag string) (Accumulator, error) {
	var missing []string
	for k := range acc {
		if _, ok := result[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, errors.Sentinel(errors.ErrKeySet, errors.ErrorTypeMerge, "inspection result is missing accumulated keys").
			WithDetail("tag", tag).
			WithDetail("keys", missing)
	}

	merged := make(Accumulator, len(result))
	for k, entry := range acc {
		next := make(map[string]interface{}, len(entry)+1)
		for sub, v := range entry {
			next[sub] = v
		}
		next[tag] = result[k]
		merged[k] = next
	}

	var added []string
	for k, v := range result {
		if _, ok := acc[k]; ok {
			continue
		}
		merged[k] = map[string]interface{}{tag: v}
		added = append(added, k)
	}
	if len(added) > 0 {
		sort.Strings(added)
		logger.Get().Info("inspection result has keys not seen before, likely appended columns",
			zap.String("tag", tag), zap.Strings("keys", added))
	}
	return merged, nil
}

// MergeMetadata files result under tag in the metadata of every key.
// Every metadata key must be present in result.
func MergeMetadata(cb *codebook.Codebook, result transform.Result, tag string) error {
	var missing []string
	for _, k := range cb.Metadata.Keys() {
		if _, ok := result[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return errors.Sentinel(errors.ErrKeySet, errors.ErrorTypeMerge, "inspection result is missing metadata keys").
			WithDetail("tag", tag).
			WithDetail("keys", missing)
	}
	keys := make([]string, 0, len(result))
	for k := range result {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cb.MetadataFor(k)[tag] = result[k]
	}
	return nil
}

// Write stores acc as <dir>/<tag>.json and returns the path
func Write(dir, tag string, acc Accumulator) (string, error) {
	path := filepath.Join(dir, tag+".json")
	if err := json.WriteFile(path, acc); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to write inspection").
			WithDetail("tag", tag)
	}
	return path, nil
}
