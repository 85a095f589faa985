package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelMatching(t *testing.T) {
	err := Sentinel(ErrMissingColumns, ErrorTypeIngestion, "file is missing columns").
		WithDetail("file", "a.csv")

	assert.True(t, Is(err, ErrMissingColumns))
	assert.False(t, Is(err, ErrKeySet))
	assert.True(t, IsType(err, ErrorTypeIngestion))

	wrapped := fmt.Errorf("ingest: %w", err)
	assert.True(t, Is(wrapped, ErrMissingColumns))

	var e *Error
	require.True(t, As(wrapped, &e))
	v, ok := e.Detail("file")
	require.True(t, ok)
	assert.Equal(t, "a.csv", v)
}

func TestWrapPreservesStack(t *testing.T) {
	inner := New(ErrorTypeFile, "cannot open")
	outer := Wrap(inner, ErrorTypeIngestion, "ingestion failed")

	assert.Equal(t, inner.Stack, outer.Stack)
	assert.Equal(t, "ingestion: ingestion failed: file: cannot open", outer.Error())
	assert.Nil(t, Wrap(nil, ErrorTypeData, "nothing"))
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil", nil, false},
		{"routing", New(ErrorTypeRouting, "key not whitelisted"), false},
		{"merge", Sentinel(ErrKeySet, ErrorTypeMerge, "missing y"), true},
		{"plain", fmt.Errorf("boom"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fatal, IsFatal(tt.err))
		})
	}
}
