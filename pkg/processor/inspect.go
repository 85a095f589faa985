// Package processor owns the codebook and the domain table of a run and
// applies parsing, inspections, edits and exports to them.
package processor

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/cura/pkg/inspection"
	"github.com/ajitpratap0/cura/pkg/metrics"
	"github.com/ajitpratap0/cura/pkg/transform"
)

// pass runs one inspection pass step: it seeds the accumulator of tag on
// the first pass, merges result and writes the accumulator to dir.
type pass struct {
	dir       string
	processed bool
	logger    *zap.Logger
}

func (p pass) merge(accs inspection.Accumulators, tag, name string, seed []string, result transform.Result) (inspection.Accumulators, error) {
	acc, ok := accs[tag]
	if !ok || !p.processed {
		acc = inspection.NewAccumulator(seed)
	}
	merged, err := inspection.Merge(acc, result, inspection.SubkeyTag(name, p.processed))
	if err != nil {
		return accs, err
	}

	next := make(inspection.Accumulators, len(accs)+1)
	for k, v := range accs {
		next[k] = v
	}
	next[tag] = merged

	path, err := inspection.Write(p.dir, tag, merged)
	if err != nil {
		return next, err
	}
	p.logger.Info("exported inspection", zap.String("tag", tag), zap.String("path", path))
	return next, nil
}

func countInspection(entity, name string, processed bool) {
	p := "first"
	if processed {
		p = "processed"
	}
	metrics.InspectionsRun.WithLabelValues(entity, name, p).Inc()
}
