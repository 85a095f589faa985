package router

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/cura/pkg/errors"
	"github.com/ajitpratap0/cura/pkg/logger"
	"github.com/ajitpratap0/cura/pkg/metrics"
	"github.com/ajitpratap0/cura/pkg/transform"
	"github.com/ajitpratap0/cura/pkg/whitelist"
)

// Mode selects which entities receive edits
type Mode string

const (
	ModeCodebook Mode = "cb"
	ModeDomain   Mode = "dd"
	ModeBoth     Mode = "both"
)

// ParseMode accepts the short and the long entity names
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cb", "codebook":
		return ModeCodebook, nil
	case "dd", "domain":
		return ModeDomain, nil
	case "both":
		return ModeBoth, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unknown target %q, expected cb, dd or both", s)
	}
}

// Codebook reports whether the mode touches the codebook
func (m Mode) Codebook() bool { return m == ModeCodebook || m == ModeBoth }

// Domain reports whether the mode touches the domain table
func (m Mode) Domain() bool { return m == ModeDomain || m == ModeBoth }

// CodebookDispatcher applies an edit to one codebook key
type CodebookDispatcher interface {
	EditCodebook(key, transform string, params transform.Params, targetValues bool) error
}

// DomainDispatcher applies an edit to one domain column
type DomainDispatcher interface {
	EditDomain(key, transform string, params transform.Params) error
}

// Decision is what the router did with one entry
type Decision int

const (
	// Dispatched means at least one entity received the edit
	Dispatched Decision = iota
	// Rejected means the target may not receive the edit
	Rejected
	// Dropped means the target does not exist on the selected entity
	Dropped
)

func (d Decision) String() string {
	switch d {
	case Dispatched:
		return "dispatched"
	case Rejected:
		return "rejected"
	case Dropped:
		return "dropped"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Options configures a Router
type Options struct {
	Mode Mode
	// Whitelist is read live, so columns appended by earlier edits become
	// valid targets for later ones
	Whitelist *whitelist.Whitelist
	RowIDKey  string
	RowIDs    bool
	Codebook  CodebookDispatcher
	Domain    DomainDispatcher
}

// Router dispatches resolved edits
type Router struct {
	opts   Options
	logger *zap.Logger
}

// New creates a Router
func New(opts Options) *Router {
	return &Router{
		opts:   opts,
		logger: logger.Get().With(zap.String("component", "router"), zap.String("mode", string(opts.Mode))),
	}
}

// Run expands every edit against the whitelist as it is now, then routes the
// entries in order. Unknown transforms fail before any edit runs.
func (r *Router) Run(edits []Edit) error {
	for _, s := range edits {
		if _, err := transform.GetEdit(s.Transform); err != nil {
			return err
		}
	}

	keys := r.opts.Whitelist.Keys()
	resolved := make([][]Entry, len(edits))
	for i, s := range edits {
		resolved[i] = Expand(s, keys)
	}

	for _, entries := range resolved {
		for _, e := range entries {
			if _, err := r.Route(e); err != nil {
				return err
			}
		}
	}
	return nil
}

// Route dispatches one entry. Targets outside the whitelist are rejected
// unless the edit creates a column or the target is the row id column.
func (r *Router) Route(e Entry) (Decision, error) {
	if e.Target.Wildcard() {
		return Rejected, errors.Newf(errors.ErrorTypeRouting, "unexpanded target %s", e.Target)
	}
	log := r.logger.With(zap.String("transform", e.Transform), zap.String("target", e.Target.String()))

	if !r.allowed(e) {
		log.Warn("edit target not in whitelist, skipping edit",
			zap.Error(errors.New(errors.ErrorTypeRouting, "target not in whitelist").
				WithDetail("key", e.Target.Key)))
		metrics.EditsRejected.WithLabelValues(e.Transform, "not_whitelisted").Inc()
		return Rejected, nil
	}

	log.Info("running edit", zap.Any("params", []interface{}(e.Params)))
	key := e.Target.Key

	switch r.opts.Mode {
	case ModeDomain:
		if e.Target.TargetValues() {
			log.Info("domain data has no value labels, skipping edit")
			metrics.EditsRejected.WithLabelValues(e.Transform, "values_on_domain").Inc()
			return Dropped, nil
		}
		return Dispatched, r.domain(key, e)

	case ModeCodebook:
		return Dispatched, r.codebook(key, e)

	case ModeBoth:
		if e.Target.TargetValues() {
			return Dispatched, r.codebook(key, e)
		}
		if err := r.domain(key, e); err != nil {
			return Dispatched, err
		}
		return Dispatched, r.codebook(key, e)

	default:
		return Rejected, errors.Newf(errors.ErrorTypeConfig, "unknown mode %q", r.opts.Mode)
	}
}

func (r *Router) allowed(e Entry) bool {
	key := e.Target.Key
	if r.opts.Whitelist.Contains(key) || e.Transform == transform.AppendColumn {
		return true
	}
	return r.opts.RowIDs && key == r.opts.RowIDKey && !e.Target.TargetValues()
}

func (r *Router) domain(key string, e Entry) error {
	if r.opts.Domain == nil {
		return errors.New(errors.ErrorTypeInternal, "no domain dispatcher")
	}
	metrics.EditsDispatched.WithLabelValues("domain", e.Transform).Inc()
	return r.opts.Domain.EditDomain(key, e.Transform, e.Params)
}

func (r *Router) codebook(key string, e Entry) error {
	if r.opts.Codebook == nil {
		return errors.New(errors.ErrorTypeInternal, "no codebook dispatcher")
	}
	target := "codebook"
	if e.Target.TargetValues() {
		target = "codebook_values"
	}
	metrics.EditsDispatched.WithLabelValues(target, e.Transform).Inc()
	return r.opts.Codebook.EditCodebook(key, e.Transform, e.Params, e.Target.TargetValues())
}
