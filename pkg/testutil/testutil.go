// Package testutil provides testing utilities for cura
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/cura/pkg/logger"
)

// TestLogger creates a test logger that writes to the test output and
// installs it as the global logger until the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	t.Helper()
	l := zaptest.NewLogger(t)
	prev := logger.Get()
	logger.Set(l)
	t.Cleanup(func() { logger.Set(prev) })
	return l
}

// TestContext creates a test context with a 30-second timeout.
// The context is cancelled when the test completes.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// WriteFile writes content to dir/name, creating dir, and returns the path
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// WriteCSV writes a delimited file from a header and rows
func WriteCSV(t *testing.T, dir, name string, delimiter string, header []string, rows ...[]string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(strings.Join(header, delimiter))
	b.WriteByte('\n')
	for _, r := range rows {
		b.WriteString(strings.Join(r, delimiter))
		b.WriteByte('\n')
	}
	return WriteFile(t, dir, name, b.String())
}

// ReadFile returns the content of path
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path) //nolint:gosec
	require.NoError(t, err)
	return string(data)
}
