package frame

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// ArrowSchema returns a schema of nullable string fields
func ArrowSchema(columns []string) *arrow.Schema {
	fields := make([]arrow.Field, len(columns))
	for i, c := range columns {
		fields[i] = arrow.Field{Name: c, Type: arrow.BinaryTypes.String, Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// ToRecord converts f into an arrow record. The caller must Release it.
func ToRecord(f *Frame, pool memory.Allocator) arrow.Record {
	if pool == nil {
		pool = memory.NewGoAllocator()
	}
	b := array.NewRecordBuilder(pool, ArrowSchema(f.columns))
	defer b.Release()

	for i := range f.columns {
		sb := b.Field(i).(*array.StringBuilder)
		sb.Reserve(f.rows)
		sb.AppendValues(f.data[i], nil)
	}
	return b.NewRecord()
}

// FromRecord converts an arrow record into a frame. Nulls become empty
// strings. Cells are copied out so the record can be released.
func FromRecord(rec arrow.Record) (*Frame, error) {
	schema := rec.Schema()
	columns := make([]string, schema.NumFields())
	data := make([][]string, schema.NumFields())
	rows := int(rec.NumRows())

	for i, field := range schema.Fields() {
		columns[i] = field.Name
		out := make([]string, rows)
		switch col := rec.Column(i).(type) {
		case *array.String:
			for r := 0; r < rows; r++ {
				if !col.IsNull(r) {
					out[r] = strings.Clone(col.Value(r))
				}
			}
		case *array.LargeString:
			for r := 0; r < rows; r++ {
				if !col.IsNull(r) {
					out[r] = strings.Clone(col.Value(r))
				}
			}
		default:
			for r := 0; r < rows; r++ {
				if !col.IsNull(r) {
					out[r] = col.ValueStr(r)
				}
			}
		}
		data[i] = out
	}
	return New(columns, data)
}

// ParquetCodec names a parquet page compression codec
type ParquetCodec string

const (
	ParquetSnappy       ParquetCodec = "snappy"
	ParquetZstd         ParquetCodec = "zstd"
	ParquetGzip         ParquetCodec = "gzip"
	ParquetUncompressed ParquetCodec = "none"
)

func (c ParquetCodec) compression() compress.Compression {
	switch c {
	case ParquetZstd:
		return compress.Codecs.Zstd
	case ParquetGzip:
		return compress.Codecs.Gzip
	case ParquetUncompressed:
		return compress.Codecs.Uncompressed
	default:
		return compress.Codecs.Snappy
	}
}

// noCloseWriter hides Close so the parquet and IPC writers do not close
// files the caller still has to sync.
type noCloseWriter struct{ io.Writer }

// WriteParquet writes f as a single row group parquet file
func WriteParquet(w io.Writer, f *Frame, codec ParquetCodec) error {
	pool := memory.NewGoAllocator()
	rec := ToRecord(f, pool)
	defer rec.Release()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(codec.compression()),
		parquet.WithDictionaryDefault(true),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(pool),
		pqarrow.WithStoreSchema(),
	)

	fw, err := pqarrow.NewFileWriter(rec.Schema(), noCloseWriter{w}, props, arrowProps)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return fmt.Errorf("failed to write parquet record: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// ParquetSchema reads the column names from a parquet file footer
func ParquetSchema(path string) ([]string, error) {
	pf, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer pf.Close()

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
	if err != nil {
		return nil, fmt.Errorf("failed to create arrow reader: %w", err)
	}
	schema, err := fr.Schema()
	if err != nil {
		return nil, err
	}
	cols := make([]string, schema.NumFields())
	for i, f := range schema.Fields() {
		cols[i] = f.Name
	}
	return cols, nil
}

// ScanParquet reads a parquet file and calls fn once per record batch
func ScanParquet(ctx context.Context, path string, fn func(*Frame) error) error {
	pf, err := file.OpenParquetFile(path, false)
	if err != nil {
		return fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer pf.Close()

	pool := memory.NewGoAllocator()
	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: 64 * 1024}, pool)
	if err != nil {
		return fmt.Errorf("failed to create arrow reader: %w", err)
	}

	rr, err := fr.GetRecordReader(ctx, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create record reader: %w", err)
	}
	defer rr.Release()

	for rr.Next() {
		batch, err := FromRecord(rr.Record())
		if err != nil {
			return err
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
	if err := rr.Err(); err != nil && err != io.EOF {
		return fmt.Errorf("failed to read parquet file: %w", err)
	}
	return nil
}

// ReadParquet materializes a parquet file
func ReadParquet(ctx context.Context, path string) (*Frame, error) {
	cols, err := ParquetSchema(path)
	if err != nil {
		return nil, err
	}
	var batches []*Frame
	if err := ScanParquet(ctx, path, func(f *Frame) error {
		batches = append(batches, f)
		return nil
	}); err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		return Empty(cols), nil
	}
	return Concat(cols, batches...)
}

// WriteFeather writes f as an Arrow IPC file (Feather v2)
func WriteFeather(w io.Writer, f *Frame) error {
	pool := memory.NewGoAllocator()
	rec := ToRecord(f, pool)
	defer rec.Release()

	fw, err := ipc.NewFileWriter(noCloseWriter{w}, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(pool))
	if err != nil {
		return fmt.Errorf("failed to create feather writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return fmt.Errorf("failed to write feather record: %w", err)
	}
	return fw.Close()
}

// ReadFeather materializes an Arrow IPC file
func ReadFeather(path string) (*Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	reader, err := ipc.NewFileReader(fh, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, fmt.Errorf("failed to open feather file: %w", err)
	}
	defer reader.Close()

	cols := make([]string, reader.Schema().NumFields())
	for i, f := range reader.Schema().Fields() {
		cols[i] = f.Name
	}
	batches := make([]*Frame, 0, reader.NumRecords())
	for i := 0; i < reader.NumRecords(); i++ {
		rec, err := reader.Record(i)
		if err != nil {
			return nil, err
		}
		batch, err := FromRecord(rec)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	if len(batches) == 0 {
		return Empty(cols), nil
	}
	return Concat(cols, batches...)
}
