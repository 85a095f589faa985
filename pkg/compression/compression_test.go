package compression

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	original := []byte(strings.Repeat("cura_id,Q1,Q2\n1,ja,nein\n", 200))

	for _, algo := range Algorithms() {
		t.Run(string(algo), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(&buf, algo)
			require.NoError(t, err)
			_, err = w.Write(original)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			if algo != None {
				assert.Less(t, buf.Len(), len(original))
			}

			r, err := NewReader(&buf, algo)
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			require.NoError(t, r.Close())
			assert.Equal(t, original, got)
		})
	}
}

func TestUnknownAlgorithm(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, Algorithm("brotli"))
	assert.Error(t, err)
	_, err = NewReader(&bytes.Buffer{}, Algorithm("brotli"))
	assert.Error(t, err)

	w, err := NewWriter(&bytes.Buffer{}, "")
	require.NoError(t, err)
	assert.NoError(t, w.Close())
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		ext     string
		wantErr bool
	}{
		{in: "", want: None, ext: ""},
		{in: "none", want: None, ext: ""},
		{in: "GZIP", want: Gzip, ext: ".gz"},
		{in: "zstd", want: Zstd, ext: ".zst"},
		{in: "lz4", want: LZ4, ext: ".lz4"},
		{in: "brotli", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ext, got.Extension())
		})
	}
}
