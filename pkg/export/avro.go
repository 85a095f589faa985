package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/linkedin/goavro/v2"

	"github.com/ajitpratap0/cura/pkg/compression"
	"github.com/ajitpratap0/cura/pkg/frame"
	"github.com/ajitpratap0/cura/pkg/json"
)

// AvroRecordName names the record type of exported rows
const AvroRecordName = "domain_data"

// avroWriter writes an object container file with one string field per
// column. Column names that are not valid Avro names are sanitized and the
// original name is kept as the field doc.
type avroWriter struct {
	ocf    *goavro.OCFWriter
	fields []string
	rows   int64
}

type avroField struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Doc  string `json:"doc,omitempty"`
}

type avroSchema struct {
	Type   string      `json:"type"`
	Name   string      `json:"name"`
	Fields []avroField `json:"fields"`
}

// AvroSchema returns the schema used for columns and the field name of each
// column
func AvroSchema(columns []string) (string, []string, error) {
	s := avroSchema{Type: "record", Name: AvroRecordName}
	names := make([]string, len(columns))
	seen := make(map[string]int, len(columns))
	for i, c := range columns {
		name := avroName(c)
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name += "_" + strconv.Itoa(n)
		} else {
			seen[name] = 1
		}
		field := avroField{Name: name, Type: "string"}
		if name != c {
			field.Doc = c
		}
		names[i] = name
		s.Fields = append(s.Fields, field)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", nil, err
	}
	return string(data), names, nil
}

// avroName maps a column to [A-Za-z_][A-Za-z0-9_]*
func avroName(c string) string {
	var b strings.Builder
	for i, r := range c {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

func avroCompression(algo compression.Algorithm) string {
	switch algo {
	case compression.Snappy, compression.S2:
		return goavro.CompressionSnappyLabel
	case compression.Deflate, compression.Gzip:
		return goavro.CompressionDeflateLabel
	default:
		return goavro.CompressionNullLabel
	}
}

func newAvroWriter(w io.Writer, columns []string, opts Options) (Writer, error) {
	schema, fields, err := AvroSchema(columns)
	if err != nil {
		return nil, fmt.Errorf("failed to build Avro schema: %w", err)
	}
	codec, err := goavro.NewCodec(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to create Avro codec: %w", err)
	}
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: avroCompression(opts.Compression),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Avro writer: %w", err)
	}
	return &avroWriter{ocf: ocf, fields: fields}, nil
}

func (w *avroWriter) Write(f *frame.Frame) error {
	if f.NumRows() == 0 {
		return nil
	}
	batch := make([]interface{}, f.NumRows())
	for r := range batch {
		row := f.Row(r)
		native := make(map[string]interface{}, len(w.fields))
		for i, name := range w.fields {
			native[name] = row[i]
		}
		batch[r] = native
	}
	if err := w.ocf.Append(batch); err != nil {
		return fmt.Errorf("failed to write Avro records: %w", err)
	}
	w.rows += int64(f.NumRows())
	return nil
}

// Close is a no-op: the OCF writer flushes every Append as a block
func (w *avroWriter) Close() error { return nil }

func (w *avroWriter) Rows() int64 { return w.rows }
