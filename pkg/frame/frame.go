// Package frame provides the tabular engine cura runs on: materialized
// string frames, a lazy plan over a scannable source, and CSV, Parquet and
// Arrow IPC codecs built on arrow-go.
//
// All cells are strings. Source files are survey exports whose codes carry
// leading zeros and mixed encodings, so nothing is type-inferred.
package frame

import (
	"fmt"
	"strings"
)

// Frame is a materialized table stored column-major
type Frame struct {
	columns []string
	index   map[string]int
	data    [][]string
	rows    int
}

// New builds a frame from column-major data
func New(columns []string, data [][]string) (*Frame, error) {
	if len(columns) != len(data) {
		return nil, fmt.Errorf("got %d columns but %d data vectors", len(columns), len(data))
	}
	f := &Frame{
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
		data:    data,
	}
	for i, c := range columns {
		if _, dup := f.index[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		f.index[c] = i
		if i == 0 {
			f.rows = len(data[i])
		} else if len(data[i]) != f.rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c, len(data[i]), f.rows)
		}
	}
	return f, nil
}

// FromRows builds a frame from row-major data
func FromRows(columns []string, rows [][]string) (*Frame, error) {
	data := make([][]string, len(columns))
	for i := range data {
		data[i] = make([]string, len(rows))
	}
	for r, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d fields, expected %d", r, len(row), len(columns))
		}
		for c, v := range row {
			data[c][r] = v
		}
	}
	return New(columns, data)
}

// Empty returns a frame with the given columns and no rows
func Empty(columns []string) *Frame {
	data := make([][]string, len(columns))
	for i := range data {
		data[i] = []string{}
	}
	f, _ := New(columns, data)
	return f
}

// Columns returns the column names in order
func (f *Frame) Columns() []string {
	return append([]string(nil), f.columns...)
}

// NumRows returns the row count
func (f *Frame) NumRows() int {
	return f.rows
}

// Has reports whether the frame has a column
func (f *Frame) Has(column string) bool {
	_, ok := f.index[column]
	return ok
}

// Column returns the cells of a column. The slice must not be modified.
func (f *Frame) Column(name string) ([]string, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, fmt.Errorf("column %q not found", name)
	}
	return f.data[i], nil
}

// Row returns a copy of row r in column order
func (f *Frame) Row(r int) []string {
	row := make([]string, len(f.columns))
	for c := range f.columns {
		row[c] = f.data[c][r]
	}
	return row
}

// Select returns a frame with only the named columns, in the given order
func (f *Frame) Select(columns ...string) (*Frame, error) {
	data := make([][]string, len(columns))
	for i, c := range columns {
		col, err := f.Column(c)
		if err != nil {
			return nil, err
		}
		data[i] = col
	}
	return New(columns, data)
}

// WithColumn returns a frame where column name holds values. An existing
// column is replaced in place; a new one is appended.
func (f *Frame) WithColumn(name string, values []string) (*Frame, error) {
	if len(f.columns) > 0 && len(values) != f.rows {
		return nil, fmt.Errorf("column %q has %d rows, expected %d", name, len(values), f.rows)
	}
	columns := f.Columns()
	data := append([][]string(nil), f.data...)
	if i, ok := f.index[name]; ok {
		data[i] = values
	} else {
		columns = append(columns, name)
		data = append(data, values)
	}
	return New(columns, data)
}

// Filter keeps the rows where keep returns true
func (f *Frame) Filter(keep func(row int) bool) *Frame {
	var idx []int
	for r := 0; r < f.rows; r++ {
		if keep(r) {
			idx = append(idx, r)
		}
	}
	return f.take(idx)
}

// Slice returns rows [offset, offset+length), clamped to the frame
func (f *Frame) Slice(offset, length int) *Frame {
	if offset > f.rows {
		offset = f.rows
	}
	end := offset + length
	if length < 0 || end > f.rows {
		end = f.rows
	}
	data := make([][]string, len(f.data))
	for i, col := range f.data {
		data[i] = col[offset:end]
	}
	out, _ := New(f.columns, data)
	return out
}

func (f *Frame) take(idx []int) *Frame {
	data := make([][]string, len(f.data))
	for i, col := range f.data {
		out := make([]string, len(idx))
		for j, r := range idx {
			out[j] = col[r]
		}
		data[i] = out
	}
	out, _ := New(f.columns, data)
	return out
}

// Concat stacks frames with identical columns
func Concat(columns []string, frames ...*Frame) (*Frame, error) {
	total := 0
	for _, f := range frames {
		if !sameColumns(columns, f.columns) {
			return nil, fmt.Errorf("cannot concat frame with columns [%s] onto [%s]",
				strings.Join(f.columns, ","), strings.Join(columns, ","))
		}
		total += f.rows
	}
	data := make([][]string, len(columns))
	for i := range data {
		data[i] = make([]string, 0, total)
		for _, f := range frames {
			data[i] = append(data[i], f.data[i]...)
		}
	}
	return New(columns, data)
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
