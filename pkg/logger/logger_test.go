package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesLogFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "cura_logs.txt")

	require.NoError(t, Init(Config{Level: "info", Encoding: "json", LogFile: logFile}))
	ctx := context.WithValue(context.Background(), ProjectKey, "survey")
	WithContext(ctx).Info("ingested file")
	_ = Sync()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ingested file")
	assert.Contains(t, string(data), `"project":"survey"`)

	require.NoError(t, RemoveLogFile(logFile))
	_, err = os.Stat(logFile)
	assert.True(t, os.IsNotExist(err))
	// Removing twice is fine.
	assert.NoError(t, RemoveLogFile(logFile))
}

func TestInitRejectsBadLevel(t *testing.T) {
	assert.Error(t, Init(Config{Level: "loud"}))
}
