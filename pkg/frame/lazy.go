package frame

import (
	"context"
	"fmt"
)

// Source is anything a lazy plan can scan: an in-memory frame or the data
// files of a store table.
type Source interface {
	// Schema returns the column names without reading data
	Schema(ctx context.Context) ([]string, error)
	// Scan calls fn with each batch in order
	Scan(ctx context.Context, fn func(*Frame) error) error
}

// op is one step of a lazy plan. Row-local steps run per batch while
// scanning; the rest run once on the concatenated result.
type op struct {
	name     string
	rowLocal bool
	schema   func(cols []string) ([]string, error)
	apply    func(f *Frame) (*Frame, error)
}

// LazyFrame is an immutable query plan. Every method returns a new plan and
// nothing is read until Collect, Count or Stream is called.
type LazyFrame struct {
	src Source
	ops []op
}

// Lazy returns a plan over src
func Lazy(src Source) *LazyFrame {
	return &LazyFrame{src: src}
}

// FromFrame returns a plan over an in-memory frame
func FromFrame(f *Frame) *LazyFrame {
	return Lazy(memSource{f})
}

type memSource struct{ f *Frame }

func (m memSource) Schema(context.Context) ([]string, error) { return m.f.Columns(), nil }

func (m memSource) Scan(_ context.Context, fn func(*Frame) error) error { return fn(m.f) }

func (lf *LazyFrame) with(o op) *LazyFrame {
	ops := make([]op, len(lf.ops), len(lf.ops)+1)
	copy(ops, lf.ops)
	return &LazyFrame{src: lf.src, ops: append(ops, o)}
}

// Filter keeps rows where column equals literal
func (lf *LazyFrame) Filter(column, literal string) *LazyFrame {
	return lf.with(op{
		name:     "filter",
		rowLocal: true,
		schema: func(cols []string) ([]string, error) {
			if !contains(cols, column) {
				return nil, fmt.Errorf("filter: column %q not found", column)
			}
			return cols, nil
		},
		apply: func(f *Frame) (*Frame, error) {
			col, err := f.Column(column)
			if err != nil {
				return nil, err
			}
			return f.Filter(func(r int) bool { return col[r] == literal }), nil
		},
	})
}

// Select projects to columns in the given order
func (lf *LazyFrame) Select(columns ...string) *LazyFrame {
	columns = append([]string(nil), columns...)
	return lf.with(op{
		name:     "select",
		rowLocal: true,
		schema: func(cols []string) ([]string, error) {
			for _, c := range columns {
				if !contains(cols, c) {
					return nil, fmt.Errorf("select: column %q not found", c)
				}
			}
			return columns, nil
		},
		apply: func(f *Frame) (*Frame, error) { return f.Select(columns...) },
	})
}

// MapColumn replaces every cell of column with fn(cell)
func (lf *LazyFrame) MapColumn(column string, fn func(string) string) *LazyFrame {
	return lf.Derive(column, column, fn)
}

// Derive sets column target to fn applied to each cell of column source.
// target is appended when it does not exist yet.
func (lf *LazyFrame) Derive(target, source string, fn func(string) string) *LazyFrame {
	return lf.with(op{
		name:     "derive",
		rowLocal: true,
		schema: func(cols []string) ([]string, error) {
			if !contains(cols, source) {
				return nil, fmt.Errorf("derive: column %q not found", source)
			}
			if contains(cols, target) {
				return cols, nil
			}
			return append(append([]string(nil), cols...), target), nil
		},
		apply: func(f *Frame) (*Frame, error) {
			src, err := f.Column(source)
			if err != nil {
				return nil, err
			}
			out := make([]string, len(src))
			for i, v := range src {
				out[i] = fn(v)
			}
			return f.WithColumn(target, out)
		},
	})
}

// Slice keeps rows [offset, offset+length) of the full result
func (lf *LazyFrame) Slice(offset, length int) *LazyFrame {
	return lf.with(op{
		name:   "slice",
		schema: func(cols []string) ([]string, error) { return cols, nil },
		apply:  func(f *Frame) (*Frame, error) { return f.Slice(offset, length), nil },
	})
}

// Schema resolves the output columns of the plan without reading data
func (lf *LazyFrame) Schema(ctx context.Context) ([]string, error) {
	cols, err := lf.src.Schema(ctx)
	if err != nil {
		return nil, err
	}
	for _, o := range lf.ops {
		if cols, err = o.schema(cols); err != nil {
			return nil, err
		}
	}
	return cols, nil
}

// Stream runs the plan and calls fn with each result batch. Plans that
// contain a non row-local step are materialized first and yield one batch.
func (lf *LazyFrame) Stream(ctx context.Context, fn func(*Frame) error) error {
	cols, err := lf.Schema(ctx)
	if err != nil {
		return err
	}

	split := len(lf.ops)
	for i, o := range lf.ops {
		if !o.rowLocal {
			split = i
			break
		}
	}
	local, global := lf.ops[:split], lf.ops[split:]

	if len(global) == 0 {
		return lf.src.Scan(ctx, func(batch *Frame) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := applyOps(batch, local)
			if err != nil {
				return err
			}
			return fn(out)
		})
	}

	midCols, err := (&LazyFrame{src: lf.src, ops: local}).Schema(ctx)
	if err != nil {
		return err
	}
	var batches []*Frame
	err = lf.src.Scan(ctx, func(batch *Frame) error {
		out, err := applyOps(batch, local)
		if err != nil {
			return err
		}
		batches = append(batches, out)
		return nil
	})
	if err != nil {
		return err
	}
	all, err := Concat(midCols, batches...)
	if err != nil {
		return err
	}
	out, err := applyOps(all, global)
	if err != nil {
		return err
	}
	if !sameColumns(cols, out.columns) {
		return fmt.Errorf("plan produced columns %v, expected %v", out.columns, cols)
	}
	return fn(out)
}

// Collect runs the plan and materializes the result
func (lf *LazyFrame) Collect(ctx context.Context) (*Frame, error) {
	cols, err := lf.Schema(ctx)
	if err != nil {
		return nil, err
	}
	var batches []*Frame
	if err := lf.Stream(ctx, func(f *Frame) error {
		batches = append(batches, f)
		return nil
	}); err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		return Empty(cols), nil
	}
	return Concat(cols, batches...)
}

// Count runs the plan and returns the number of result rows
func (lf *LazyFrame) Count(ctx context.Context) (int, error) {
	n := 0
	err := lf.Stream(ctx, func(f *Frame) error {
		n += f.NumRows()
		return nil
	})
	return n, err
}

func applyOps(f *Frame, ops []op) (*Frame, error) {
	var err error
	for _, o := range ops {
		if f, err = o.apply(f); err != nil {
			return nil, fmt.Errorf("%s: %w", o.name, err)
		}
	}
	return f, nil
}

func contains(cols []string, c string) bool {
	for _, x := range cols {
		if x == c {
			return true
		}
	}
	return false
}
