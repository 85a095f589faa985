package router

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/cura/pkg/errors"
	"github.com/ajitpratap0/cura/pkg/ordered"
	"github.com/ajitpratap0/cura/pkg/transform"
	"github.com/ajitpratap0/cura/pkg/whitelist"
)

type call struct {
	entity       string
	key          string
	transform    string
	params       transform.Params
	targetValues bool
}

type recorder struct {
	calls []call
	wl    *whitelist.Whitelist
}

func (r *recorder) EditCodebook(key, name string, params transform.Params, targetValues bool) error {
	r.calls = append(r.calls, call{"codebook", key, name, params, targetValues})
	return nil
}

func (r *recorder) EditDomain(key, name string, params transform.Params) error {
	r.calls = append(r.calls, call{"domain", key, name, params, false})
	if name == transform.AppendColumn && !r.wl.Contains(key) {
		return r.wl.Append(key)
	}
	return nil
}

func targets(kv ...interface{}) *ordered.Map[[]interface{}] {
	m := ordered.New[[]interface{}]()
	for i := 0; i+1 < len(kv); i += 2 {
		m.Set(kv[i].(string), kv[i+1].([]interface{}))
	}
	return m
}

func newRouter(t *testing.T, mode Mode, keys ...string) (*Router, *recorder) {
	t.Helper()
	wl, err := whitelist.New(keys)
	require.NoError(t, err)
	rec := &recorder{wl: wl}
	return New(Options{
		Mode:      mode,
		Whitelist: wl,
		RowIDKey:  "cura_id",
		RowIDs:    true,
		Codebook:  rec,
		Domain:    rec,
	}), rec
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in   string
		want EditTarget
	}{
		{"Q1", EditTarget{Kind: KindKey, Key: "Q1"}},
		{"Q1-values", EditTarget{Kind: KindKeyValues, Key: "Q1"}},
		{"all_keys", EditTarget{Kind: KindAllKeys}},
		{"all_values", EditTarget{Kind: KindAllValues}},
		{"-values", EditTarget{Kind: KindKey, Key: "-values"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseTarget(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestExpandAllKeysWithOverride(t *testing.T) {
	edit := Edit{
		Transform: transform.ApplyCase,
		Targets: targets(
			"all_keys", []interface{}{"upper"},
			"b", []interface{}{"lower"},
		),
	}
	entries := Expand(edit, []string{"a", "b", "c"})

	var got []string
	for _, e := range entries {
		got = append(got, fmt.Sprintf("%s=%v", e.Target, e.Params))
	}
	assert.Equal(t, []string{"b=[lower]", "a=[upper]", "c=[upper]"}, got)
}

func TestExpandOrder(t *testing.T) {
	edit := Edit{
		Transform: transform.ApplyTrim,
		Targets: targets(
			"all_values", []interface{}{},
			"z", []interface{}{},
			"all_keys", []interface{}{},
			"a-values", []interface{}{},
		),
	}
	entries := Expand(edit, []string{"a", "b"})

	var got []string
	for _, e := range entries {
		got = append(got, e.Target.String())
	}
	assert.Equal(t, []string{"z", "a-values", "a", "b", "b-values"}, got)
}

func TestExpandCopiesParams(t *testing.T) {
	edit := Edit{Transform: transform.ApplyCase, Targets: targets("all_keys", []interface{}{"upper"})}
	entries := Expand(edit, []string{"a", "b"})
	require.Len(t, entries, 2)
	entries[0].Params[0] = "lower"
	assert.Equal(t, "upper", entries[1].Params[0])
}

func TestRouteBothWithValues(t *testing.T) {
	r, rec := newRouter(t, ModeBoth, "a")

	d, err := r.Route(Entry{Transform: transform.ApplyCase, Target: ParseTarget("a-values"), Params: transform.Params{"upper"}})
	require.NoError(t, err)
	assert.Equal(t, Dispatched, d)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, call{"codebook", "a", transform.ApplyCase, transform.Params{"upper"}, true}, rec.calls[0])

	rec.calls = nil
	d, err = r.Route(Entry{Transform: transform.ApplyCase, Target: ParseTarget("a"), Params: transform.Params{"upper"}})
	require.NoError(t, err)
	assert.Equal(t, Dispatched, d)
	require.Len(t, rec.calls, 2)
	assert.Equal(t, "domain", rec.calls[0].entity)
	assert.Equal(t, "codebook", rec.calls[1].entity)
	assert.False(t, rec.calls[1].targetValues)
	assert.Equal(t, rec.calls[0].params, rec.calls[1].params)
}

func TestRouteModes(t *testing.T) {
	tests := []struct {
		name     string
		mode     Mode
		target   string
		edit     string
		decision Decision
		entities []string
	}{
		{name: "domain key", mode: ModeDomain, target: "a", edit: transform.ApplyTrim, decision: Dispatched, entities: []string{"domain"}},
		{name: "domain values dropped", mode: ModeDomain, target: "a-values", edit: transform.ApplyTrim, decision: Dropped},
		{name: "codebook key", mode: ModeCodebook, target: "a", edit: transform.ApplyTrim, decision: Dispatched, entities: []string{"codebook"}},
		{name: "codebook values", mode: ModeCodebook, target: "a-values", edit: transform.ApplyTrim, decision: Dispatched, entities: []string{"codebook"}},
		{name: "not whitelisted", mode: ModeBoth, target: "zz", edit: transform.ApplyTrim, decision: Rejected},
		{name: "not whitelisted values", mode: ModeBoth, target: "zz-values", edit: transform.ApplyTrim, decision: Rejected},
		{name: "append column", mode: ModeDomain, target: "year", edit: transform.AppendColumn, decision: Dispatched, entities: []string{"domain"}},
		{name: "row id", mode: ModeDomain, target: "cura_id", edit: transform.ApplyPadding, decision: Dispatched, entities: []string{"domain"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, rec := newRouter(t, tt.mode, "a")
			d, err := r.Route(Entry{Transform: tt.edit, Target: ParseTarget(tt.target)})
			require.NoError(t, err)
			assert.Equal(t, tt.decision, d)
			var entities []string
			for _, c := range rec.calls {
				entities = append(entities, c.entity)
			}
			assert.Equal(t, tt.entities, entities)
		})
	}
}

func TestRowIDDisabled(t *testing.T) {
	r, rec := newRouter(t, ModeDomain, "a")
	r.opts.RowIDs = false
	d, err := r.Route(Entry{Transform: transform.ApplyTrim, Target: ParseTarget("cura_id")})
	require.NoError(t, err)
	assert.Equal(t, Rejected, d)
	assert.Empty(t, rec.calls)
}

func TestRunAppendedColumnBecomesTarget(t *testing.T) {
	r, rec := newRouter(t, ModeDomain, "a")
	err := r.Run([]Edit{
		{Transform: transform.AppendColumn, Targets: targets("year", []interface{}{"a", `(\d+)`})},
		{Transform: transform.ApplyCase, Targets: targets("all_keys", []interface{}{"upper"}, "year", []interface{}{"lower"})},
	})
	require.NoError(t, err)

	var got []string
	for _, c := range rec.calls {
		got = append(got, c.transform+":"+c.key)
	}
	// all_keys was resolved before the column existed
	assert.Equal(t, []string{"append_column:year", "apply_case:year", "apply_case:a"}, got)
}

func TestRunUnknownTransform(t *testing.T) {
	r, rec := newRouter(t, ModeBoth, "a")
	err := r.Run([]Edit{
		{Transform: transform.ApplyTrim, Targets: targets("a", []interface{}{})},
		{Transform: "apply_magic", Targets: targets("a", []interface{}{})},
	})
	assert.ErrorIs(t, err, errors.ErrUnknownTransform)
	assert.Empty(t, rec.calls)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"cb": ModeCodebook, "Domain": ModeDomain, "both": ModeBoth} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("all")
	assert.Error(t, err)
}
