package export

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/linkedin/goavro/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/cura/pkg/compression"
	"github.com/ajitpratap0/cura/pkg/config"
	"github.com/ajitpratap0/cura/pkg/frame"
	"github.com/ajitpratap0/cura/pkg/testutil"
)

func domainFrame(t *testing.T) *frame.LazyFrame {
	t.Helper()
	f, err := frame.FromRows([]string{"Q1", "Q2", "file_name", "cura_id"}, [][]string{
		{"1", "a", "f1.csv", "1"},
		{"2", "b", "f1.csv", "2"},
		{"1", "c", "f1.csv", "3"},
		{"2", "d", "f2.txt", "4"},
		{"1", "e", "f2.txt", "5"},
	})
	require.NoError(t, err)
	return frame.FromFrame(f)
}

func newTestExporter(t *testing.T, opts Options) (*Exporter, string) {
	t.Helper()
	testutil.TestLogger(t)
	dir := t.TempDir()
	return NewExporter(ExporterOptions{
		Dir:        dir,
		Columns:    []string{"cura_id", "Q1", "Q2"},
		FileColumn: "file_name",
		Files:      []string{"f1.csv", "f2.txt"},
		Writer:     opts,
	}), dir
}

func lines(t *testing.T, path string) []string {
	t.Helper()
	return strings.Split(strings.TrimSpace(testutil.ReadFile(t, path)), "\n")
}

func TestExportCSVBatchings(t *testing.T) {
	e, dir := newTestExporter(t, Options{Delimiter: ';'})
	report, err := e.Export(context.Background(), domainFrame(t), []config.OutputFormat{
		{Format: "csv", Batching: config.Batching{Mode: config.BatchMonolith}},
	})
	require.NoError(t, err)
	require.NoError(t, report.Err())

	got := lines(t, filepath.Join(dir, "csv", MonolithName+".csv"))
	assert.Equal(t, []string{"cura_id;Q1;Q2", "1;1;a", "2;2;b", "3;1;c", "4;2;d", "5;1;e"}, got)

	tests := []struct {
		name     string
		batching config.Batching
		files    map[string][]string
	}{
		{
			name:     "mirror input",
			batching: config.Batching{Mode: config.BatchMirrorInput},
			files: map[string][]string{
				"f1.csv": {"cura_id;Q1;Q2", "1;1;a", "2;2;b", "3;1;c"},
				"f2.csv": {"cura_id;Q1;Q2", "4;2;d", "5;1;e"},
			},
		},
		{
			name:     "rows",
			batching: config.Batching{Mode: config.BatchRows, Rows: 2},
			files: map[string][]string{
				BatchPrefix + "1.csv": {"cura_id;Q1;Q2", "1;1;a", "2;2;b"},
				BatchPrefix + "2.csv": {"cura_id;Q1;Q2", "3;1;c", "4;2;d"},
				BatchPrefix + "3.csv": {"cura_id;Q1;Q2", "5;1;e"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, dir := newTestExporter(t, Options{Delimiter: ';'})
			report, err := e.Export(context.Background(), domainFrame(t), []config.OutputFormat{
				{Format: "csv", Batching: tt.batching},
			})
			require.NoError(t, err)
			require.NoError(t, report.Err())
			assert.Len(t, report.Files[CSV], len(tt.files))
			for name, want := range tt.files {
				assert.Equal(t, want, lines(t, filepath.Join(dir, "csv", name)), name)
			}
		})
	}
}

func TestExportCompressedCSV(t *testing.T) {
	e, dir := newTestExporter(t, Options{Delimiter: ',', Compression: compression.Gzip})
	report, err := e.Export(context.Background(), domainFrame(t), []config.OutputFormat{
		{Format: "csv", Batching: config.Batching{Mode: config.BatchMonolith}},
	})
	require.NoError(t, err)
	require.NoError(t, report.Err())

	path := filepath.Join(dir, "csv", MonolithName+".csv.gz")
	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()
	r, err := compression.NewReader(fh, compression.Gzip)
	require.NoError(t, err)
	defer r.Close()

	sc := bufio.NewScanner(r)
	require.True(t, sc.Scan())
	assert.Equal(t, "cura_id,Q1,Q2", sc.Text())
}

func TestExportBinaryFormats(t *testing.T) {
	e, dir := newTestExporter(t, Options{Compression: compression.Zstd})
	report, err := e.Export(context.Background(), domainFrame(t), []config.OutputFormat{
		{Format: "parquet", Batching: config.Batching{Mode: config.BatchMonolith}},
		{Format: "feather", Batching: config.Batching{Mode: config.BatchRows, Rows: 3}},
		{Format: "avro", Batching: config.Batching{Mode: config.BatchMirrorInput}},
		{Format: "json", Batching: config.Batching{Mode: config.BatchMonolith}},
	})
	require.NoError(t, err)
	require.NoError(t, report.Err())

	pq, err := frame.ReadParquet(context.Background(), filepath.Join(dir, "parquet", MonolithName+".parquet"))
	require.NoError(t, err)
	assert.Equal(t, []string{"cura_id", "Q1", "Q2"}, pq.Columns())
	assert.Equal(t, 5, pq.NumRows())

	require.Len(t, report.Files[Feather], 2)
	fe, err := frame.ReadFeather(report.Files[Feather][1])
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "2", "d"}, fe.Row(0))

	fh, err := os.Open(filepath.Join(dir, "avro", "f2.avro"))
	require.NoError(t, err)
	defer fh.Close()
	ocf, err := goavro.NewOCFReader(fh)
	require.NoError(t, err)
	var rows []map[string]interface{}
	for ocf.Scan() {
		datum, err := ocf.Read()
		require.NoError(t, err)
		rows = append(rows, datum.(map[string]interface{}))
	}
	require.Len(t, rows, 2)
	assert.Equal(t, "d", rows[0]["Q2"])

	assert.Equal(t, `{"cura_id":"1","Q1":"1","Q2":"a"}`,
		firstJSONLine(t, filepath.Join(dir, "json", MonolithName+".ndjson.zst")))
}

func firstJSONLine(t *testing.T, path string) string {
	t.Helper()
	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()
	r, err := compression.NewReader(fh, compression.Zstd)
	require.NoError(t, err)
	defer r.Close()
	sc := bufio.NewScanner(r)
	require.True(t, sc.Scan())
	return sc.Text()
}

func TestExportFailingFormatDoesNotStopOthers(t *testing.T) {
	e, dir := newTestExporter(t, Options{})
	report, err := e.Export(context.Background(), domainFrame(t), []config.OutputFormat{
		{Format: "xlsx", Batching: config.Batching{Mode: config.BatchMonolith}},
		{Format: "csv", Batching: config.Batching{Mode: config.BatchMonolith}},
	})
	require.NoError(t, err)
	require.Error(t, report.Err())
	assert.Contains(t, report.Failures, Format("xlsx"))
	assert.FileExists(t, filepath.Join(dir, "csv", MonolithName+".csv"))
}

func TestAvroSchemaSanitizesNames(t *testing.T) {
	schema, names, err := AvroSchema([]string{"Q 1", "1st", "Q_1", "ok"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Q_1", "_1st", "Q_1_1", "ok"}, names)
	_, err = goavro.NewCodec(schema)
	require.NoError(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("Parquet")
	require.NoError(t, err)
	assert.Equal(t, Parquet, f)
	_, err = ParseFormat("xlsx")
	assert.Error(t, err)

	assert.Equal(t, ".csv.zst", CSV.Extension(compression.Zstd))
	assert.Equal(t, ".parquet", Parquet.Extension(compression.Zstd))
}
