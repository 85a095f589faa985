package frame

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T) *Frame {
	t.Helper()
	f, err := FromRows([]string{"id", "name", "file_name"}, [][]string{
		{"1", "alpha", "a.csv"},
		{"2", "beta", "a.csv"},
		{"3", "gamma", "b.csv"},
	})
	require.NoError(t, err)
	return f
}

func TestFrameBasics(t *testing.T) {
	f := sample(t)
	assert.Equal(t, 3, f.NumRows())
	assert.Equal(t, []string{"2", "beta", "a.csv"}, f.Row(1))

	sel, err := f.Select("name", "id")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "id"}, sel.Columns())

	_, err = f.Select("missing")
	assert.Error(t, err)

	_, err = New([]string{"a", "a"}, [][]string{{}, {}})
	assert.Error(t, err)
	_, err = New([]string{"a", "b"}, [][]string{{"1"}, {}})
	assert.Error(t, err)
}

func TestLazyPlan(t *testing.T) {
	ctx := context.Background()
	lf := FromFrame(sample(t)).
		Filter("file_name", "a.csv").
		MapColumn("name", strings.ToUpper).
		Derive("initial", "name", func(s string) string { return s[:1] }).
		Select("id", "initial")

	cols, err := lf.Schema(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "initial"}, cols)

	out, err := lf.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, out.NumRows())
	initials, err := out.Column("initial")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, initials)

	n, err := FromFrame(sample(t)).Slice(1, 5).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = FromFrame(sample(t)).Select("nope").Schema(ctx)
	assert.Error(t, err)
}

func TestLazyIsImmutable(t *testing.T) {
	ctx := context.Background()
	base := FromFrame(sample(t))
	_ = base.Filter("file_name", "b.csv")

	n, err := base.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestCSVRoundTrip(t *testing.T) {
	in := "\ufeffid;name;extra\n1;\"a;b\";x\n2;c;y\n"
	f, err := ReadCSV(strings.NewReader(in), CSVOptions{Delimiter: ';', Columns: []string{"name", "id"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "id"}, f.Columns())
	names, _ := f.Column("name")
	assert.Equal(t, []string{"a;b", "c"}, names)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, f, '|'))
	assert.Equal(t, "name|id\na;b|1\nc|2\n", buf.String())

	header, err := ReadCSVHeader(strings.NewReader(in), ';')
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "extra"}, header)

	_, err = ReadCSV(strings.NewReader(""), CSVOptions{})
	assert.Error(t, err)
}

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		in      string
		want    rune
		wantErr bool
	}{
		{"", ',', false},
		{";", ';', false},
		{`\t`, '\t', false},
		{"||", 0, true},
		{`"`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDelimiter(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParquetRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.parquet")

	fh, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, WriteParquet(fh, sample(t), ParquetZstd))
	require.NoError(t, fh.Close())

	cols, err := ParquetSchema(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "file_name"}, cols)

	back, err := ReadParquet(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, sample(t).Row(2), back.Row(2))
}

func TestFeatherRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.feather")

	fh, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, WriteFeather(fh, sample(t)))
	require.NoError(t, fh.Close())

	back, err := ReadFeather(path)
	require.NoError(t, err)
	assert.Equal(t, 3, back.NumRows())
	assert.Equal(t, sample(t).Row(0), back.Row(0))
}
