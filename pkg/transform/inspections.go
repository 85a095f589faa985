package transform

import (
	"context"
	"sort"
	"strconv"
	"unicode/utf8"

	"github.com/ajitpratap0/cura/pkg/codebook"
	"github.com/ajitpratap0/cura/pkg/frame"
)

// Inspection names
const (
	CharMap       = "char_map"
	LengthMap     = "length_map"
	OccurrenceMap = "occurrence_map"
)

// collector folds the cells of one key into a finding
type collector interface {
	Add(s string)
	Result() interface{}
}

type collectorInspection struct {
	name         string
	newCollector func() collector
}

func newCollectorInspection(name string, fn func() collector) collectorInspection {
	return collectorInspection{name: name, newCollector: fn}
}

func (c collectorInspection) Name() string { return c.name }

// InspectCodebook folds each key's codes, or labels with targetValues
func (c collectorInspection) InspectCodebook(cb *codebook.Codebook, targetValues bool) (Result, error) {
	out := make(Result, cb.Data.Len())
	cb.Data.Range(func(key string, v *codebook.Values) bool {
		if c.name == LengthMap && v.Len() == 0 {
			out[key] = map[string]string{"null": "null"}
			return true
		}
		col := c.newCollector()
		v.Range(func(code, label string) bool {
			if targetValues {
				col.Add(label)
			} else {
				col.Add(code)
			}
			return true
		})
		out[key] = col.Result()
		return true
	})
	return out, nil
}

// InspectDomain folds every listed column in one streaming pass. Columns
// absent from the plan are left out of the result.
func (c collectorInspection) InspectDomain(ctx context.Context, lf *frame.LazyFrame, columns []string) (Result, error) {
	schema, err := lf.Schema(ctx)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(schema))
	for _, col := range schema {
		present[col] = true
	}
	var cols []string
	collectors := make(map[string]collector)
	for _, col := range columns {
		if present[col] {
			cols = append(cols, col)
			collectors[col] = c.newCollector()
		}
	}
	if len(cols) == 0 {
		return Result{}, nil
	}

	err = lf.Select(cols...).Stream(ctx, func(f *frame.Frame) error {
		for _, col := range cols {
			cells, err := f.Column(col)
			if err != nil {
				return err
			}
			acc := collectors[col]
			for _, s := range cells {
				acc.Add(s)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make(Result, len(cols))
	for _, col := range cols {
		out[col] = collectors[col].Result()
	}
	return out, nil
}

// charCollector gathers the distinct characters, sorted
type charCollector struct{ seen map[rune]struct{} }

func newCharCollector() collector { return &charCollector{seen: map[rune]struct{}{}} }

func (c *charCollector) Add(s string) {
	for _, r := range s {
		c.seen[r] = struct{}{}
	}
}

func (c *charCollector) Result() interface{} {
	runes := make([]rune, 0, len(c.seen))
	for r := range c.seen {
		runes = append(runes, r)
	}
	sort.Slice(runes, func(i, j int) bool { return runes[i] < runes[j] })
	out := make([]string, len(runes))
	for i, r := range runes {
		out[i] = string(r)
	}
	return out
}

// lengthCollector counts cells per character length
type lengthCollector struct{ counts map[int]int }

func newLengthCollector() collector { return &lengthCollector{counts: map[int]int{}} }

func (c *lengthCollector) Add(s string) { c.counts[utf8.RuneCountInString(s)]++ }

func (c *lengthCollector) Result() interface{} {
	out := make(map[string]int, len(c.counts))
	for n, count := range c.counts {
		out[strconv.Itoa(n)] = count
	}
	return out
}

// occurrenceCollector counts each distinct cell
type occurrenceCollector struct{ counts map[string]int }

func newOccurrenceCollector() collector { return &occurrenceCollector{counts: map[string]int{}} }

func (c *occurrenceCollector) Add(s string) { c.counts[s]++ }

func (c *occurrenceCollector) Result() interface{} { return c.counts }
