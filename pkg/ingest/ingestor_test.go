package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/cura/pkg/errors"
	"github.com/ajitpratap0/cura/pkg/frame"
	"github.com/ajitpratap0/cura/pkg/ledger"
	"github.com/ajitpratap0/cura/pkg/prompt"
	"github.com/ajitpratap0/cura/pkg/whitelist"
)

type fixture struct {
	input  string
	buffer string
	wl     *whitelist.Whitelist
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	root := t.TempDir()
	fx := &fixture{
		input:  filepath.Join(root, "domain"),
		buffer: filepath.Join(root, "buffer_dd"),
	}
	require.NoError(t, os.MkdirAll(fx.input, 0o755))
	for name, content := range files {
		fx.write(t, name, content)
	}
	wl, err := whitelist.New([]string{"a", "b"})
	require.NoError(t, err)
	fx.wl = wl
	return fx
}

func (fx *fixture) write(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(fx.input, name), []byte(content), 0o644))
}

func (fx *fixture) ingestor(addRowID bool, p prompt.Prompter) *Ingestor {
	return New(Options{
		Project:   "survey",
		InputDir:  fx.input,
		BufferDir: fx.buffer,
		AddRowID:  addRowID,
	}, p)
}

func (fx *fixture) run(t *testing.T, addRowID bool) *Result {
	t.Helper()
	res, err := fx.ingestor(addRowID, &prompt.Scripted{AssumeYes: true}).IngestAll(context.Background(), fx.wl)
	require.NoError(t, err)
	t.Cleanup(func() { res.Close() })
	return res
}

func TestRowIDsContinueAcrossFiles(t *testing.T) {
	fx := newFixture(t, map[string]string{
		"F1.csv": "a,b,c\n1,x,q\n2,y,q\n3,z,q\n",
		"F2.csv": "b;a\nu;4\nv;5\n",
	})

	res := fx.run(t, true)
	assert.Equal(t, []string{"F1.csv", "F2.csv"}, res.Ingested)

	out, err := res.Lazy().Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "file_name", "cura_id"}, out.Columns())

	ids, _ := out.Column("cura_id")
	files, _ := out.Column("file_name")
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, ids)
	assert.Equal(t, []string{"F1.csv", "F1.csv", "F1.csv", "F2.csv", "F2.csv"}, files)

	a, _ := out.Column("a")
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, a)
}

func TestIngestionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, map[string]string{"F1.csv": "a,b\n1,2\n3,4\n"})

	first := fx.run(t, false)
	ledgerBefore, err := os.ReadFile(first.Ledger.Path())
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := fx.run(t, false)
	assert.Empty(t, second.Ingested)
	assert.Equal(t, []string{"F1.csv"}, second.Skipped)

	ledgerAfter, err := os.ReadFile(second.Ledger.Path())
	require.NoError(t, err)
	assert.Equal(t, ledgerBefore, ledgerAfter)

	n, err := second.Lazy().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestChangedChecksumIsNotReingested(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, map[string]string{"F1.csv": "a,b\n1,2\n"})

	first := fx.run(t, false)
	entry, ok := first.Ledger.Get("F1.csv")
	require.True(t, ok)
	require.NoError(t, first.Close())

	fx.write(t, "F1.csv", "a,b\n1,2\n9,9\n")
	fx.write(t, "F2.csv", "a,b\n5,6\n")

	second := fx.run(t, false)
	assert.Equal(t, []string{"F2.csv"}, second.Ingested)
	assert.Equal(t, []string{"F1.csv"}, second.Skipped)

	after, _ := second.Ledger.Get("F1.csv")
	assert.Equal(t, entry, after)

	n, err := second.Lazy().Filter("file_name", "F1.csv").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSkipRevalidation(t *testing.T) {
	fx := newFixture(t, map[string]string{"F1.csv": "a,b\n1,2\n"})
	require.NoError(t, fx.run(t, false).Close())

	fx.write(t, "F2.csv", "a,b\n3,4\n")
	p := &prompt.Scripted{Answers: map[string]bool{prompt.RevalidateInput: false}}
	res, err := fx.ingestor(false, p).IngestAll(context.Background(), fx.wl)
	require.NoError(t, err)
	defer res.Close()

	assert.Nil(t, res.Report)
	assert.Empty(t, res.Ingested)
	assert.Contains(t, p.Asked(), prompt.RevalidateInput)

	n, err := res.Lazy().Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInvalidStructure(t *testing.T) {
	fx := newFixture(t, map[string]string{
		"F1.csv": "a,b\n1,2\n",
		"F2.csv": "a,c\n1,2\n",
	})

	_, err := fx.ingestor(false, &prompt.Scripted{}).IngestAll(context.Background(), fx.wl)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidStructure)

	_, statErr := os.Stat(filepath.Join(fx.buffer, "structure_analysis.json"))
	assert.NoError(t, statErr, "the report is written even when invalid")
}

func TestParseFailureKeepsEarlierFiles(t *testing.T) {
	fx := newFixture(t, map[string]string{
		"F1.csv": "a,b\n1,2\n",
		"F2.csv": "a,b\n1,2,3\n",
	})

	_, err := fx.ingestor(false, &prompt.Scripted{}).IngestAll(context.Background(), fx.wl)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIngestion))

	require.NoError(t, os.Remove(filepath.Join(fx.input, "F2.csv")))
	res := fx.run(t, false)
	assert.Empty(t, res.Ingested)
	_, ok := res.Ledger.Get("F1.csv")
	assert.True(t, ok, "F1 stays committed")
}

func TestRowIDsContinueAcrossRuns(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, map[string]string{"F1.csv": "a,b\n1,x\n2,y\n3,z\n"})
	require.NoError(t, fx.run(t, true).Close())

	fx.write(t, "F2.csv", "a,b\n4,u\n5,v\n")
	res := fx.run(t, true)
	assert.Equal(t, []string{"F2.csv"}, res.Ingested)

	out, err := res.Lazy().Filter("file_name", "F2.csv").Collect(ctx)
	require.NoError(t, err)
	ids, _ := out.Column("cura_id")
	assert.Equal(t, []string{"4", "5"}, ids)
}

func TestLedgerFailureRollsBackAppend(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, map[string]string{"F1.csv": "a,b\n1,2\n3,4\n"})
	in := fx.ingestor(false, &prompt.Scripted{})

	res, err := in.open(ctx, fx.wl, nil)
	require.NoError(t, err)
	defer res.Close()

	// A regular file where the ledger directory should be makes every
	// ledger write fail.
	ledgerDir := filepath.Join(t.TempDir(), "ledger")
	l, err := ledger.Load(filepath.Join(ledgerDir, ledger.FileName))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(ledgerDir, []byte("x"), 0o644))
	res.Ledger = l

	_, err = in.ingestFile(ctx, res, fx.wl, "F1.csv", ',', "sum", 1)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))

	snaps, err := res.Table.Snapshots(ctx)
	require.NoError(t, err)
	assert.Empty(t, snaps)
	assert.Equal(t, 0, res.Ledger.Len())

	n, err := res.Lazy().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestOrphanSnapshotsAreDropped(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, map[string]string{"F1.csv": "a,b\n1,2\n"})
	in := fx.ingestor(false, &prompt.Scripted{})

	// Simulate a run that stopped after the append, before the ledger write.
	res, err := in.open(ctx, fx.wl, nil)
	require.NoError(t, err)
	orphan, err := frame.FromRows(in.Columns(fx.wl), [][]string{{"1", "2", "F1.csv"}})
	require.NoError(t, err)
	_, err = res.Table.Append(ctx, orphan, "F1.csv")
	require.NoError(t, err)
	require.NoError(t, res.Close())

	again := fx.run(t, false)
	assert.Equal(t, []string{"F1.csv"}, again.Ingested)

	snaps, err := again.Table.Snapshots(ctx)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)

	n, err := again.Lazy().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "rows are not duplicated")
}
