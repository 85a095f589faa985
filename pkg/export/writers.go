package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/cura/pkg/compression"
	"github.com/ajitpratap0/cura/pkg/frame"
	"github.com/ajitpratap0/cura/pkg/json"
	"github.com/ajitpratap0/cura/pkg/ordered"
)

// csvWriter writes delimited text with a header row
type csvWriter struct {
	cw   *csv.Writer
	rows int64
}

func newCSVWriter(w io.Writer, columns []string, opts Options) (Writer, error) {
	cw := csv.NewWriter(w)
	if opts.Delimiter != 0 {
		cw.Comma = opts.Delimiter
	}
	if err := cw.Write(columns); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	return &csvWriter{cw: cw}, nil
}

func (w *csvWriter) Write(f *frame.Frame) error {
	for r := 0; r < f.NumRows(); r++ {
		if err := w.cw.Write(f.Row(r)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.rows += int64(f.NumRows())
	return nil
}

func (w *csvWriter) Close() error {
	w.cw.Flush()
	return w.cw.Error()
}

func (w *csvWriter) Rows() int64 { return w.rows }

// jsonWriter writes one object per row, keys in column order
type jsonWriter struct {
	enc     *json.LineEncoder
	columns []string
	rows    int64
}

func newJSONWriter(w io.Writer, columns []string, _ Options) (Writer, error) {
	return &jsonWriter{enc: json.NewLineEncoder(w), columns: columns}, nil
}

func (w *jsonWriter) Write(f *frame.Frame) error {
	for r := 0; r < f.NumRows(); r++ {
		row := f.Row(r)
		obj := ordered.New[string]()
		for i, c := range w.columns {
			obj.Set(c, row[i])
		}
		if err := w.enc.Encode(obj); err != nil {
			return fmt.Errorf("failed to write JSON row: %w", err)
		}
	}
	w.rows += int64(f.NumRows())
	return nil
}

func (w *jsonWriter) Close() error { return nil }

func (w *jsonWriter) Rows() int64 { return w.rows }

// parquetWriter writes one row group per frame
type parquetWriter struct {
	fw   *pqarrow.FileWriter
	pool memory.Allocator
	rows int64
}

func parquetCodec(algo compression.Algorithm) compress.Compression {
	switch algo {
	case compression.Zstd:
		return compress.Codecs.Zstd
	case compression.Gzip, compression.Deflate:
		return compress.Codecs.Gzip
	default:
		return compress.Codecs.Snappy
	}
}

func newParquetWriter(w io.Writer, columns []string, opts Options) (Writer, error) {
	pool := memory.NewGoAllocator()
	props := parquet.NewWriterProperties(
		parquet.WithCompression(parquetCodec(opts.Compression)),
		parquet.WithDictionaryDefault(true),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(pool),
		pqarrow.WithStoreSchema(),
	)
	fw, err := pqarrow.NewFileWriter(frame.ArrowSchema(columns), noCloseWriter{w}, props, arrowProps)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	return &parquetWriter{fw: fw, pool: pool}, nil
}

func (w *parquetWriter) Write(f *frame.Frame) error {
	if f.NumRows() == 0 {
		return nil
	}
	rec := frame.ToRecord(f, w.pool)
	defer rec.Release()
	if err := w.fw.Write(rec); err != nil {
		return fmt.Errorf("failed to write parquet record: %w", err)
	}
	w.rows += int64(f.NumRows())
	return nil
}

func (w *parquetWriter) Close() error {
	if err := w.fw.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

func (w *parquetWriter) Rows() int64 { return w.rows }

// featherWriter writes an Arrow IPC file, one record batch per frame.
// LZ4 and zstd become IPC body compression.
type featherWriter struct {
	fw   *ipc.FileWriter
	pool memory.Allocator
	rows int64
}

func newFeatherWriter(w io.Writer, columns []string, opts Options) (Writer, error) {
	pool := memory.NewGoAllocator()
	schema := frame.ArrowSchema(columns)
	ipcOpts := []ipc.Option{ipc.WithSchema(schema), ipc.WithAllocator(pool)}
	switch opts.Compression {
	case compression.LZ4:
		ipcOpts = append(ipcOpts, ipc.WithLZ4())
	case compression.Zstd:
		ipcOpts = append(ipcOpts, ipc.WithZstd())
	}
	fw, err := ipc.NewFileWriter(noCloseWriter{w}, ipcOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create feather writer: %w", err)
	}
	return &featherWriter{fw: fw, pool: pool}, nil
}

func (w *featherWriter) Write(f *frame.Frame) error {
	if f.NumRows() == 0 {
		return nil
	}
	rec := frame.ToRecord(f, w.pool)
	defer rec.Release()
	if err := w.fw.Write(rec); err != nil {
		return fmt.Errorf("failed to write feather record: %w", err)
	}
	w.rows += int64(f.NumRows())
	return nil
}

func (w *featherWriter) Close() error {
	return w.fw.Close()
}

func (w *featherWriter) Rows() int64 { return w.rows }
