// Package json reads and writes the JSON documents cura keeps on disk:
// ledgers, structure reports, codebook mirrors and inspection results.
package json

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	gojson "github.com/goccy/go-json"
)

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	// Avoid pinning large documents in the pool
	if buf.Cap() > 1<<20 {
		return
	}
	bufferPool.Put(buf)
}

// Marshal encodes v with four-space indentation and unescaped non-ASCII text
func Marshal(v interface{}) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	if err := Encode(buf, v); err != nil {
		return nil, err
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// Encode writes v to w with four-space indentation
func Encode(w io.Writer, v interface{}) error {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	return enc.Encode(v)
}

// Unmarshal decodes data into v
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// WriteFile replaces path with the encoding of v. The document is written to
// a temporary file in the same directory, fsynced and renamed over path, so
// readers see either the old or the new document.
func WriteFile(path string, v interface{}) error {
	data, err := Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return syncDir(dir)
}

// ReadFile decodes the document at path into v
func ReadFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := gojson.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	// Some filesystems refuse fsync on directories; the rename already happened.
	_ = d.Sync()
	return nil
}

// LineEncoder writes one compact document per line (NDJSON)
type LineEncoder struct {
	enc *gojson.Encoder
}

// NewLineEncoder creates a LineEncoder writing to w
func NewLineEncoder(w io.Writer) *LineEncoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &LineEncoder{enc: enc}
}

// Encode writes v followed by a newline
func (e *LineEncoder) Encode(v interface{}) error {
	return e.enc.Encode(v)
}
