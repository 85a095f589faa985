// Package export writes the cleaned domain table in the configured file
// formats and batchings.
package export

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ajitpratap0/cura/pkg/compression"
	"github.com/ajitpratap0/cura/pkg/frame"
)

// Format represents an export file format
type Format string

const (
	// CSV is delimited text with a header row
	CSV Format = "csv"
	// Parquet is Apache Parquet
	Parquet Format = "parquet"
	// Feather is the Arrow IPC file format
	Feather Format = "feather"
	// JSON is newline delimited JSON, one object per row
	JSON Format = "json"
	// Avro is an Avro object container file
	Avro Format = "avro"
)

// Writer writes frames of one output file. Close finishes the file format
// but does not close the underlying io.Writer.
type Writer interface {
	Write(f *frame.Frame) error
	Close() error
	// Rows returns the number of rows written so far
	Rows() int64
}

// Options configures format writers
type Options struct {
	// Delimiter separates CSV fields
	Delimiter rune
	// Compression is applied as a stream around text formats and mapped
	// to the internal codec of binary formats
	Compression compression.Algorithm
}

type openFunc func(w io.Writer, columns []string, opts Options) (Writer, error)

type formatInfo struct {
	extension string
	// streamed formats are wrapped in the compression stream
	streamed bool
	open     openFunc
}

var formats = map[Format]formatInfo{
	CSV:     {extension: ".csv", streamed: true, open: newCSVWriter},
	JSON:    {extension: ".ndjson", streamed: true, open: newJSONWriter},
	Parquet: {extension: ".parquet", open: newParquetWriter},
	Feather: {extension: ".feather", open: newFeatherWriter},
	Avro:    {extension: ".avro", open: newAvroWriter},
}

// ParseFormat reads a format name, case insensitive
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := formats[f]; !ok {
		return "", fmt.Errorf("unsupported export format %q, expected one of %v", s, Formats())
	}
	return f, nil
}

// Formats lists the supported formats
func Formats() []Format {
	out := make([]Format, 0, len(formats))
	for f := range formats {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Streamed reports whether files of f are wrapped in stream compression
func (f Format) Streamed() bool {
	return formats[f].streamed
}

// Extension returns the file suffix for f written with algo
func (f Format) Extension(algo compression.Algorithm) string {
	info := formats[f]
	if info.streamed {
		return info.extension + algo.Extension()
	}
	return info.extension
}

// NewWriter opens a writer of format f on w
func NewWriter(f Format, w io.Writer, columns []string, opts Options) (Writer, error) {
	info, ok := formats[f]
	if !ok {
		return nil, fmt.Errorf("unsupported export format %q", f)
	}
	return info.open(w, columns, opts)
}

// noCloseWriter hides Close so format writers do not close files the
// exporter still has to sync.
type noCloseWriter struct{ io.Writer }
