// Package metrics provides run telemetry for cura using Prometheus metrics.
//
// # Overview
//
// The pipeline is a batch job, so metrics are not scraped. They are
// collected in the default registry while a run executes and written to a
// textfile (node_exporter textfile collector format) when the run ends:
//
//	defer metrics.WriteTextfile(filepath.Join(outDir, "metrics.prom"))
//
//	metrics.FilesIngested.WithLabelValues(project).Inc()
//	timer := metrics.NewTimer("ingestion")
//	ingest()
//	timer.ObservePhase()
//
// # Metric Types
//
// Counter: files, rows, routed edits, inspections, exports
// Histogram: phase durations in seconds
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FilesIngested counts source files appended to the store.
	// Labels: project
	FilesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cura_files_ingested_total",
			Help: "Total number of source files appended to the store",
		},
		[]string{"project"},
	)

	// FilesSkipped counts source files not ingested.
	// Labels: project, reason (unchanged/changed)
	//
	// Example:
	//	metrics.FilesSkipped.WithLabelValues("survey", "changed").Inc()
	FilesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cura_files_skipped_total",
			Help: "Total number of source files skipped by the ingestion ledger",
		},
		[]string{"project", "reason"},
	)

	// RowsAppended counts rows appended to the store.
	// Labels: project
	RowsAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cura_rows_appended_total",
			Help: "Total number of rows appended to the store",
		},
		[]string{"project"},
	)

	// EditsDispatched counts edits handed to an entity.
	// Labels: target (codebook/codebook_values/domain), transform
	EditsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cura_edits_dispatched_total",
			Help: "Total number of per-key edits dispatched",
		},
		[]string{"target", "transform"},
	)

	// EditsRejected counts per-key edits skipped by the router.
	// Labels: transform, reason (not_whitelisted/values_on_domain)
	EditsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cura_edits_rejected_total",
			Help: "Total number of per-key edits rejected by the router",
		},
		[]string{"transform", "reason"},
	)

	// InspectionsRun counts inspection passes.
	// Labels: entity (codebook/domain), inspection, pass (first/processed)
	InspectionsRun = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cura_inspections_total",
			Help: "Total number of inspections computed",
		},
		[]string{"entity", "inspection", "pass"},
	)

	// ExportsWritten counts export files.
	// Labels: format, status (success/failure)
	ExportsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cura_export_files_total",
			Help: "Total number of export files written",
		},
		[]string{"format", "status"},
	)

	// FilesPublished counts export files uploaded to object storage.
	// Labels: scheme (s3/gs), status (success/failure)
	FilesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cura_files_published_total",
			Help: "Total number of output files uploaded after a run",
		},
		[]string{"scheme", "status"},
	)

	// PhaseDuration tracks how long each pipeline phase takes.
	// Labels: phase
	PhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cura_phase_duration_seconds",
			Help:    "Duration of pipeline phases in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		},
		[]string{"phase"},
	)
)

// Timer measures the duration of a phase
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Stop returns the elapsed duration since creation
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ObservePhase records the elapsed time under the timer's name and returns it
func (t *Timer) ObservePhase() time.Duration {
	d := t.Stop()
	PhaseDuration.WithLabelValues(t.name).Observe(d.Seconds())
	return d
}

// WriteTextfile writes every metric of the default registry to path
func WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
