// Package compression wraps streamed export files (csv, ndjson) in a
// compressed stream. Columnar formats compress internally and do not go
// through this package.
//
//	w, err := compression.NewWriter(f, compression.Zstd)
//	frame.WriteCSV(w, data, ',')
//	w.Close()
package compression

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm names a stream compressor as written in export_compression
type Algorithm string

const (
	None    Algorithm = "none"
	Gzip    Algorithm = "gzip"
	Snappy  Algorithm = "snappy"
	LZ4     Algorithm = "lz4"
	Zstd    Algorithm = "zstd"
	S2      Algorithm = "s2"
	Deflate Algorithm = "deflate"
)

type codec struct {
	ext       string
	newWriter func(io.Writer) (io.WriteCloser, error)
	newReader func(io.Reader) (io.ReadCloser, error)
}

var codecs = map[Algorithm]codec{
	None: {
		newWriter: func(w io.Writer) (io.WriteCloser, error) { return nopWriteCloser{w}, nil },
		newReader: func(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(r), nil },
	},
	Gzip: {
		ext: ".gz",
		newWriter: func(w io.Writer) (io.WriteCloser, error) {
			return gzip.NewWriterLevel(w, gzip.DefaultCompression)
		},
		newReader: func(r io.Reader) (io.ReadCloser, error) { return gzip.NewReader(r) },
	},
	Snappy: {
		ext:       ".sz",
		newWriter: func(w io.Writer) (io.WriteCloser, error) { return snappy.NewBufferedWriter(w), nil },
		newReader: func(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(snappy.NewReader(r)), nil },
	},
	LZ4: {
		ext: ".lz4",
		newWriter: func(w io.Writer) (io.WriteCloser, error) {
			zw := lz4.NewWriter(w)
			if err := zw.Apply(lz4.CompressionLevelOption(lz4.Level5)); err != nil {
				return nil, err
			}
			return zw, nil
		},
		newReader: func(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(lz4.NewReader(r)), nil },
	},
	Zstd: {
		ext: ".zst",
		newWriter: func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		},
		newReader: func(r io.Reader) (io.ReadCloser, error) {
			d, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return d.IOReadCloser(), nil
		},
	},
	S2: {
		ext:       ".s2",
		newWriter: func(w io.Writer) (io.WriteCloser, error) { return s2.NewWriter(w), nil },
		newReader: func(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(s2.NewReader(r)), nil },
	},
	Deflate: {
		ext: ".deflate",
		newWriter: func(w io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(w, flate.DefaultCompression)
		},
		newReader: func(r io.Reader) (io.ReadCloser, error) { return flate.NewReader(r), nil },
	},
}

// ParseAlgorithm reads an algorithm name. The empty string means None.
func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	if a == "" {
		return None, nil
	}
	if _, ok := codecs[a]; !ok {
		return "", fmt.Errorf("unsupported compression algorithm: %s", s)
	}
	return a, nil
}

// Algorithms lists the supported algorithms
func Algorithms() []Algorithm {
	return []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2, Deflate}
}

// Extension returns the suffix appended to compressed file names,
// including the dot
func (a Algorithm) Extension() string {
	return codecs[a].ext
}

func lookup(algo Algorithm) (codec, error) {
	if algo == "" {
		algo = None
	}
	c, ok := codecs[algo]
	if !ok {
		return codec{}, fmt.Errorf("unsupported compression algorithm: %s", algo)
	}
	return c, nil
}

// NewWriter returns a writer compressing into dst. Close flushes the
// compressed stream but does not close dst.
func NewWriter(dst io.Writer, algo Algorithm) (io.WriteCloser, error) {
	c, err := lookup(algo)
	if err != nil {
		return nil, err
	}
	return c.newWriter(dst)
}

// NewReader returns a reader decompressing src
func NewReader(src io.Reader, algo Algorithm) (io.ReadCloser, error) {
	c, err := lookup(algo)
	if err != nil {
		return nil, err
	}
	return c.newReader(src)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
