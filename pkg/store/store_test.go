package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/cura/pkg/errors"
	"github.com/ajitpratap0/cura/pkg/frame"
)

func rows(t *testing.T, cols []string, data ...[]string) *frame.Frame {
	t.Helper()
	f, err := frame.FromRows(cols, data)
	require.NoError(t, err)
	return f
}

func TestAppendAndScan(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cols := []string{"a", "file_name"}

	assert.False(t, Exists(dir))
	cat, err := Open(ctx, dir)
	require.NoError(t, err)
	defer cat.Close()
	assert.True(t, Exists(dir))

	tbl, err := cat.CreateTable(ctx, "survey", "domain_data", cols)
	require.NoError(t, err)

	s1, err := tbl.Append(ctx, rows(t, cols, []string{"1", "f1.csv"}, []string{"2", "f1.csv"}), "f1.csv")
	require.NoError(t, err)
	// Column order of the appended frame does not matter.
	s2, err := tbl.Append(ctx, rows(t, []string{"file_name", "a"}, []string{"f2.csv", "3"}), "f2.csv")
	require.NoError(t, err)

	assert.Equal(t, int64(1), s1.Sequence)
	assert.Equal(t, s1.ID, s2.ParentID)
	assert.Contains(t, s2.String(), "added_rows=1")

	out, err := tbl.Lazy().Collect(ctx)
	require.NoError(t, err)
	values, _ := out.Column("a")
	assert.Equal(t, []string{"1", "2", "3"}, values)

	n, err := tbl.Lazy().Filter("file_name", "f1.csv").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = tbl.Append(ctx, rows(t, []string{"a"}, []string{"x"}), "bad.csv")
	assert.True(t, errors.IsType(err, errors.ErrorTypeIngestion))
}

func TestLoadOrCreateTable(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cat, err := Open(ctx, dir)
	require.NoError(t, err)
	_, err = cat.LoadTable(ctx, "p", "t")
	assert.ErrorIs(t, err, ErrTableNotFound)

	_, err = cat.LoadOrCreateTable(ctx, "p", "t", []string{"a", "b"})
	require.NoError(t, err)
	require.NoError(t, cat.Close())

	cat, err = Open(ctx, dir)
	require.NoError(t, err)
	defer cat.Close()

	tbl, err := cat.LoadOrCreateTable(ctx, "p", "t", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tbl.Columns())

	_, err = cat.LoadOrCreateTable(ctx, "p", "t", []string{"a", "c"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeStructural))
}

func TestDropSnapshot(t *testing.T) {
	ctx := context.Background()
	cols := []string{"a", "file_name"}

	cat, err := Open(ctx, t.TempDir())
	require.NoError(t, err)
	defer cat.Close()
	tbl, err := cat.CreateTable(ctx, "survey", "domain_data", cols)
	require.NoError(t, err)

	keep, err := tbl.Append(ctx, rows(t, cols, []string{"1", "f1.csv"}), "f1.csv")
	require.NoError(t, err)
	drop, err := tbl.Append(ctx, rows(t, cols, []string{"2", "f2.csv"}, []string{"3", "f2.csv"}), "f2.csv")
	require.NoError(t, err)

	require.NoError(t, tbl.DropSnapshot(ctx, drop.ID))
	assert.NoFileExists(t, drop.DataFile)
	assert.FileExists(t, keep.DataFile)

	snaps, err := tbl.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, keep.ID, snaps[0].ID)

	n, err := tbl.Lazy().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Error(t, tbl.DropSnapshot(ctx, drop.ID))
}
