package publish

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/cura/pkg/testutil"
)

type memUploader struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
	failOn  string
}

func newMemUploader() *memUploader {
	return &memUploader{objects: map[string]string{}, types: map[string]string{}}
}

func (m *memUploader) Upload(_ context.Context, key string, body io.Reader, contentType string, _ map[string]string) (string, error) {
	if key == m.failOn {
		return "", fmt.Errorf("denied")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = string(data)
	m.types[key] = contentType
	return "mem://" + key, nil
}

func (m *memUploader) Close() error { return nil }

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in      string
		want    Target
		wantErr bool
	}{
		{in: "s3://bucket/exports/run", want: Target{Scheme: "s3", Bucket: "bucket", Prefix: "exports/run"}},
		{in: "gs://bucket", want: Target{Scheme: "gs", Bucket: "bucket"}},
		{in: "gs://bucket/p/", want: Target{Scheme: "gs", Bucket: "bucket", Prefix: "p"}},
		{in: "ftp://bucket", wantErr: true},
		{in: "s3://", wantErr: true},
		{in: "bucket/p", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTarget(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPublishDir(t *testing.T) {
	testutil.TestLogger(t)
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "final_codebook.json", "{}")
	testutil.WriteFile(t, filepath.Join(dir, "domain_exports", "csv"), "domain_data_monolith.csv", "a,b\n")

	up := newMemUploader()
	p := NewWithUploader(Target{Scheme: "s3", Bucket: "b", Prefix: "runs/1"}, up)
	locs, err := p.PublishDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, locs, 2)

	keys := make([]string, 0, len(up.objects))
	for k := range up.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{"runs/1/domain_exports/csv/domain_data_monolith.csv", "runs/1/final_codebook.json"}, keys)
	assert.Equal(t, "a,b\n", up.objects["runs/1/domain_exports/csv/domain_data_monolith.csv"])
	assert.Equal(t, "application/json", up.types["runs/1/final_codebook.json"])
}

func TestPublishDirStopsOnFailure(t *testing.T) {
	testutil.TestLogger(t)
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "a.txt", "a")

	up := newMemUploader()
	up.failOn = "a.txt"
	p := NewWithUploader(Target{Scheme: "gs", Bucket: "b"}, up)
	_, err := p.PublishDir(context.Background(), dir)
	assert.Error(t, err)
}
