package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordPersistsInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	l, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, l.Len())
	assert.False(t, Exists(path))

	require.NoError(t, l.Record("z.csv", Entry{Checksum: "c1", Snapshot: "s1"}))
	require.NoError(t, l.Record("a.csv", Entry{Checksum: "c2", Snapshot: "s2"}))
	assert.Error(t, l.Record("a.csv", Entry{Checksum: "c3"}))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"z.csv", "a.csv"}, reloaded.Files())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Less(t, strings.Index(string(raw), "z.csv"), strings.Index(string(raw), "a.csv"))
}

func TestCheck(t *testing.T) {
	l, err := Load(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	require.NoError(t, l.Record("f.csv", Entry{Checksum: "abc", Snapshot: "s"}))

	tests := []struct {
		name     string
		file     string
		checksum string
		want     Status
	}{
		{"absent", "g.csv", "abc", StatusNew},
		{"same", "f.csv", "abc", StatusUnchanged},
		{"changed", "f.csv", "def", StatusChanged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := l.Check(tt.file, tt.checksum)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	content := strings.Repeat("a,b,c\n", 5000)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	sum := sha256.Sum256([]byte(content))
	got, err := Checksum(path, SHA256)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(sum[:]), got)

	b3, err := Checksum(path, BLAKE3)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(b3, "blake3:"))
	assert.NotEqual(t, got, b3)

	_, err = Checksum(path, "md5")
	assert.Error(t, err)
}
