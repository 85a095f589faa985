// Package errors provides examples of structured error handling in cura.
package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/cura/pkg/errors"
)

// Example demonstrates basic error creation with context details.
func Example() {
	err := errors.New(errors.ErrorTypeRouting, "target is not in the whitelist").
		WithDetail("key", "Q7").
		WithDetail("transform", "apply_trim")

	fmt.Println(err.Error())
	key, _ := err.Detail("key")
	fmt.Println(key)

	// Output:
	// routing: target is not in the whitelist
	// Q7
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeIngestion, "failed to parse domain file").
		WithDetail("file", "wave1.csv")

	if errors.IsType(err, errors.ErrorTypeIngestion) {
		fmt.Println("ingestion error")
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("caused by unexpected EOF")
	}

	// Output:
	// ingestion error
	// caused by unexpected EOF
}

// ExampleSentinel shows matching structured errors against sentinels.
func ExampleSentinel() {
	err := errors.Sentinel(errors.ErrMissingColumns, errors.ErrorTypeIngestion, "file lacks whitelist columns").
		WithDetail("columns", []string{"Q2"})

	fmt.Println(errors.Is(err, errors.ErrMissingColumns))
	fmt.Println(errors.Is(err, errors.ErrKeySet))

	// Output:
	// true
	// false
}

// ExampleIsFatal shows which errors stop a run.
func ExampleIsFatal() {
	fmt.Println(errors.IsFatal(errors.New(errors.ErrorTypeRouting, "dropped")))
	fmt.Println(errors.IsFatal(errors.New(errors.ErrorTypeMerge, "key set mismatch")))

	// Output:
	// false
	// true
}
