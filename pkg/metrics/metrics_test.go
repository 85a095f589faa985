package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAndTextfile(t *testing.T) {
	before := testutil.ToFloat64(FilesSkipped.WithLabelValues("metrics_test", "changed"))
	FilesSkipped.WithLabelValues("metrics_test", "changed").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(FilesSkipped.WithLabelValues("metrics_test", "changed")))

	timer := NewTimer("metrics_test")
	assert.GreaterOrEqual(t, timer.ObservePhase().Nanoseconds(), int64(0))

	path := filepath.Join(t.TempDir(), "out", "metrics.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "cura_files_skipped_total")
	assert.Contains(t, string(data), `phase="metrics_test"`)
}
