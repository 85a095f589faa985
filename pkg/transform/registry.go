// Package transform holds the named edits and inspections that a project
// configuration can refer to, behind a static registry.
package transform

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/cura/pkg/codebook"
	"github.com/ajitpratap0/cura/pkg/errors"
	"github.com/ajitpratap0/cura/pkg/frame"
	"github.com/ajitpratap0/cura/pkg/logger"
)

// Edit changes one domain column or one codebook key
type Edit interface {
	Name() string
	// Validate checks params before any data is touched
	Validate(p Params) error
	// ApplyDomain returns a plan with column edited
	ApplyDomain(lf *frame.LazyFrame, column string, p Params) (*frame.LazyFrame, error)
	// ApplyCodebook returns the edited value table of one key. With
	// targetValues the labels are edited, otherwise the codes.
	ApplyCodebook(v *codebook.Values, targetValues bool, p Params) (*codebook.Values, error)
}

// Result maps each inspected key to its finding
type Result map[string]interface{}

// Inspection summarizes the keys of a codebook or the columns of a table
type Inspection interface {
	Name() string
	InspectCodebook(cb *codebook.Codebook, targetValues bool) (Result, error)
	InspectDomain(ctx context.Context, lf *frame.LazyFrame, columns []string) (Result, error)
}

// Registry manages the available edits and inspections
type Registry struct {
	edits       map[string]Edit
	inspections map[string]Inspection
	mu          sync.RWMutex
	logger      *zap.Logger
}

var globalRegistry = NewRegistry()

func init() {
	for _, e := range []Edit{
		appendColumn{},
		newCellEdit(ApplyCase, caseFunc),
		newCellEdit(ApplyCharReplace, charReplaceFunc),
		newCellEdit(ApplyPadding, paddingFunc),
		newCellEdit(ApplyTokenReplace, tokenReplaceFunc),
		newCellEdit(ApplyTrim, trimFunc),
	} {
		if err := globalRegistry.RegisterEdit(e); err != nil {
			panic(err)
		}
	}
	for _, in := range []Inspection{
		newCollectorInspection(CharMap, newCharCollector),
		newCollectorInspection(LengthMap, newLengthCollector),
		newCollectorInspection(OccurrenceMap, newOccurrenceCollector),
	} {
		if err := globalRegistry.RegisterInspection(in); err != nil {
			panic(err)
		}
	}
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		edits:       make(map[string]Edit),
		inspections: make(map[string]Inspection),
		logger:      logger.Get().With(zap.String("component", "transform_registry")),
	}
}

// RegisterEdit adds an edit under its name
func (r *Registry) RegisterEdit(e Edit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.edits[e.Name()]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "edit %s already registered", e.Name())
	}
	r.edits[e.Name()] = e
	r.logger.Debug("edit registered", zap.String("name", e.Name()))
	return nil
}

// RegisterInspection adds an inspection under its name
func (r *Registry) RegisterInspection(in Inspection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.inspections[in.Name()]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "inspection %s already registered", in.Name())
	}
	r.inspections[in.Name()] = in
	r.logger.Debug("inspection registered", zap.String("name", in.Name()))
	return nil
}

// Edit looks up an edit by name
func (r *Registry) Edit(name string) (Edit, error) {
	r.mu.RLock()
	e, ok := r.edits[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Sentinel(errors.ErrUnknownTransform, errors.ErrorTypeConfig, "edit "+name+" not found").
			WithDetail("transform", name)
	}
	return e, nil
}

// Inspection looks up an inspection by name
func (r *Registry) Inspection(name string) (Inspection, error) {
	r.mu.RLock()
	in, ok := r.inspections[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Sentinel(errors.ErrUnknownTransform, errors.ErrorTypeConfig, "inspection "+name+" not found").
			WithDetail("transform", name)
	}
	return in, nil
}

// ListEdits returns the sorted edit names
func (r *Registry) ListEdits() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.edits))
	for n := range r.edits {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ListInspections returns the sorted inspection names
func (r *Registry) ListInspections() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.inspections))
	for n := range r.inspections {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// GetRegistry returns the global registry
func GetRegistry() *Registry {
	return globalRegistry
}

// GetEdit looks up an edit in the global registry
func GetEdit(name string) (Edit, error) {
	return globalRegistry.Edit(name)
}

// GetInspection looks up an inspection in the global registry
func GetInspection(name string) (Inspection, error) {
	return globalRegistry.Inspection(name)
}
