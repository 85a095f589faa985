package inspection

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/cura/pkg/codebook"
	"github.com/ajitpratap0/cura/pkg/errors"
	"github.com/ajitpratap0/cura/pkg/json"
	"github.com/ajitpratap0/cura/pkg/transform"
)

func TestMergeAcrossPasses(t *testing.T) {
	acc := NewAccumulator([]string{"a", "b"})

	first, err := Merge(acc, transform.Result{"a": 1, "b": 2}, SubkeyTag("length_map", false))
	require.NoError(t, err)
	second, err := Merge(first, transform.Result{"a": 3, "b": 4, "year": 5}, SubkeyTag("length_map", true))
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{"length_map": 1, "length_map_PROCESSED": 3}, second["a"])
	assert.Equal(t, map[string]interface{}{"length_map_PROCESSED": 5}, second["year"])
	assert.Equal(t, []string{"a", "b", "year"}, second.Keys())

	assert.Empty(t, acc["a"], "inputs are not modified")
	assert.NotContains(t, first["a"], "length_map_PROCESSED")
}

func TestMergeRejectsMissingKeys(t *testing.T) {
	acc := NewAccumulator([]string{"a", "b"})
	_, err := Merge(acc, transform.Result{"a": 1, "c": 2}, "char_map")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrKeySet)
	assert.True(t, errors.IsType(err, errors.ErrorTypeMerge))

	var cerr *errors.Error
	require.True(t, errors.As(err, &cerr))
	keys, _ := cerr.Detail("keys")
	assert.Equal(t, []string{"b"}, keys)
}

func TestTags(t *testing.T) {
	assert.Equal(t, "CODEBOOK_VALUES_char_map", Tag(EntityCodebookValues, "char_map"))
	assert.Equal(t, "DOMAIN_DATA_length_map", Tag(EntityDomain, "length_map"))
	assert.Equal(t, "char_map_PROCESSED", SubkeyTag("char_map", true))
}

func TestMergeMetadata(t *testing.T) {
	cb := codebook.New()
	cb.Metadata.Set("Q1", codebook.Metadata{"label": "x"})

	require.NoError(t, MergeMetadata(cb, transform.Result{"Q1": []string{"a"}}, "char_map_PROCESSED"))
	m, _ := cb.Metadata.Get("Q1")
	assert.Equal(t, []string{"a"}, m["char_map_PROCESSED"])
	assert.Equal(t, "x", m["label"])

	err := MergeMetadata(cb, transform.Result{}, "char_map")
	assert.ErrorIs(t, err, errors.ErrKeySet)
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	acc, err := Merge(NewAccumulator([]string{"a"}), transform.Result{"a": map[string]int{"1": 2}}, "length_map")
	require.NoError(t, err)

	path, err := Write(dir, "DOMAIN_DATA_length_map", acc)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "DOMAIN_DATA_length_map.json"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]map[string]map[string]int
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, 2, got["a"]["length_map"]["1"])
}
