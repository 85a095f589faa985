package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/cura/pkg/testutil"
)

func TestTracingDisabled(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracing(TracingConfig{ServiceName: "cura", Output: &buf})
	require.NoError(t, err)

	_, phase := StartPhase(context.Background(), "ingest")
	phase.End(nil)
	require.NoError(t, shutdown(context.Background()))
	assert.Empty(t, buf.String())
}

func TestTracingExportsPhases(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracing(TracingConfig{
		Enabled:        true,
		ServiceName:    "cura",
		ServiceVersion: "test",
		Output:         &buf,
	})
	require.NoError(t, err)

	ctx, run := StartPhase(context.Background(), "run")
	_, edits := StartPhase(ctx, "edits")
	edits.SetAttribute("edits", 3)
	edits.End(errors.New("boom"))
	run.End(nil)

	require.NoError(t, shutdown(context.Background()))
	out := buf.String()
	assert.Contains(t, out, `"Name": "run"`)
	assert.Contains(t, out, `"Name": "edits"`)
	assert.Contains(t, out, "boom")
}

func TestResourceMonitor(t *testing.T) {
	log := testutil.TestLogger(t)
	rm, err := NewResourceMonitor()
	require.NoError(t, err)

	u := rm.Usage()
	assert.Positive(t, u.GoroutineCount)
	rm.Log(log, "test")
}
