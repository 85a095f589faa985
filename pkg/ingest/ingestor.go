// Package ingest moves raw domain files into the columnar store, exactly
// once per file, gated by the ingestion ledger.
package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/ajitpratap0/cura/pkg/errors"
	"github.com/ajitpratap0/cura/pkg/frame"
	"github.com/ajitpratap0/cura/pkg/ledger"
	"github.com/ajitpratap0/cura/pkg/logger"
	"github.com/ajitpratap0/cura/pkg/metrics"
	"github.com/ajitpratap0/cura/pkg/prompt"
	"github.com/ajitpratap0/cura/pkg/store"
	"github.com/ajitpratap0/cura/pkg/structure"
	"github.com/ajitpratap0/cura/pkg/whitelist"
)

const (
	// TableName is the store table holding all domain rows
	TableName = "domain_data"
	// FileNameColumn holds the source file of each row
	FileNameColumn = "file_name"
	// DefaultRowIDKey is the column holding generated row ids
	DefaultRowIDKey = "cura_id"
)

// Options configures an Ingestor
type Options struct {
	// Project namespaces the store table
	Project string
	// InputDir holds the raw domain files
	InputDir string
	// BufferDir holds the ledger, the structure report and the store
	BufferDir string
	AddRowID  bool
	RowIDKey  string
	Checksum  ledger.Algorithm
}

// Result is what a completed ingestion hands to the domain processor
type Result struct {
	Catalog *store.Catalog
	Table   *store.Table
	Ledger  *ledger.Ledger
	// Report is nil when re-validation was skipped
	Report   *structure.Report
	Ingested []string
	Skipped  []string
}

// Lazy returns a lazy handle over the full store table
func (r *Result) Lazy() *frame.LazyFrame {
	return r.Table.Lazy()
}

// Close releases the store catalog
func (r *Result) Close() error {
	if r.Catalog == nil {
		return nil
	}
	return r.Catalog.Close()
}

// Ingestor runs checksum-gated ingestion
type Ingestor struct {
	opts     Options
	prompter prompt.Prompter
	analyzer *structure.Analyzer
	logger   *zap.Logger
}

// New creates an Ingestor
func New(opts Options, p prompt.Prompter) *Ingestor {
	if opts.RowIDKey == "" {
		opts.RowIDKey = DefaultRowIDKey
	}
	if opts.Checksum == "" {
		opts.Checksum = ledger.SHA256
	}
	return &Ingestor{
		opts:     opts,
		prompter: p,
		analyzer: structure.NewAnalyzer(),
		logger:   logger.Get().With(zap.String("component", "ingestor"), zap.String("project", opts.Project)),
	}
}

// LedgerPath returns where the ledger is kept
func (in *Ingestor) LedgerPath() string {
	return filepath.Join(in.opts.BufferDir, ledger.FileName)
}

// Columns returns the store table layout for wl
func (in *Ingestor) Columns(wl *whitelist.Whitelist) []string {
	cols := append(wl.Keys(), FileNameColumn)
	if in.opts.AddRowID {
		cols = append(cols, in.opts.RowIDKey)
	}
	return cols
}

// IngestAll appends every new file of the input directory to the store and
// returns a handle over the whole table. Files already in the ledger are
// skipped; a changed checksum is reported and skipped, never re-ingested.
// A failing file aborts the run, but files committed before it stay in the
// store and the ledger.
func (in *Ingestor) IngestAll(ctx context.Context, wl *whitelist.Whitelist) (*Result, error) {
	timer := metrics.NewTimer("ingestion")
	defer timer.ObservePhase()

	if err := os.MkdirAll(in.opts.BufferDir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create buffer directory")
	}

	if ledger.Exists(in.LedgerPath()) && store.Exists(in.opts.BufferDir) {
		check, err := in.prompter.Confirm(prompt.Question{
			ID:      prompt.RevalidateInput,
			Text:    "Domain data was ingested before. Check the input directory for new or changed files?",
			Default: true,
		})
		if err != nil {
			return nil, err
		}
		if !check {
			in.logger.Info("skipping input re-validation, using existing store")
			return in.open(ctx, wl, nil)
		}
	}

	report, err := in.analyzer.Analyze(in.opts.InputDir, wl)
	if report != nil {
		if werr := structure.WriteReport(filepath.Join(in.opts.BufferDir, structure.ReportFileName), report); werr != nil {
			in.logger.Warn("failed to write structure report", zap.Error(werr))
		}
	}
	if err != nil {
		return nil, err
	}
	if !report.IsValid {
		return nil, errors.Sentinel(errors.ErrInvalidStructure, errors.ErrorTypeStructural,
			"whitelist columns are not common to all input files").
			WithDetail("missing", report.MissingWhitelistColumns)
	}

	res, err := in.open(ctx, wl, report)
	if err != nil {
		return nil, err
	}

	nextID, err := in.nextRowID(ctx, res.Table)
	if err != nil {
		res.Close()
		return nil, err
	}

	for _, name := range report.Files {
		if err := ctx.Err(); err != nil {
			res.Close()
			return nil, err
		}

		path := filepath.Join(in.opts.InputDir, name)
		sum, err := ledger.Checksum(path, in.opts.Checksum)
		if err != nil {
			res.Close()
			return nil, errors.Wrap(err, errors.ErrorTypeIngestion, "failed to checksum file").
				WithDetail("file", name)
		}

		status, entry := res.Ledger.Check(name, sum)
		switch status {
		case ledger.StatusUnchanged:
			in.logger.Info("file already ingested", zap.String("file", name))
			metrics.FilesSkipped.WithLabelValues(in.opts.Project, "unchanged").Inc()
			res.Skipped = append(res.Skipped, name)
			continue
		case ledger.StatusChanged:
			in.logger.Warn("file changed since it was ingested; not re-ingesting, reset the data buffer to pick up the new content",
				zap.String("file", name),
				zap.String("ledger_checksum", entry.Checksum),
				zap.String("current_checksum", sum))
			metrics.FilesSkipped.WithLabelValues(in.opts.Project, "changed").Inc()
			res.Skipped = append(res.Skipped, name)
			continue
		}

		n, err := in.ingestFile(ctx, res, wl, name, report.Delimiter(name), sum, nextID)
		if err != nil {
			res.Close()
			return nil, err
		}
		nextID += n
		res.Ingested = append(res.Ingested, name)
	}

	in.logger.Info("ingestion complete",
		zap.Int("ingested", len(res.Ingested)),
		zap.Int("skipped", len(res.Skipped)),
		zap.Int("ledger_entries", res.Ledger.Len()))
	return res, nil
}

func (in *Ingestor) open(ctx context.Context, wl *whitelist.Whitelist, report *structure.Report) (*Result, error) {
	l, err := ledger.Load(in.LedgerPath())
	if err != nil {
		return nil, err
	}
	cat, err := store.Open(ctx, in.opts.BufferDir)
	if err != nil {
		return nil, err
	}
	tbl, err := cat.LoadOrCreateTable(ctx, in.opts.Project, TableName, in.Columns(wl))
	if err != nil {
		cat.Close()
		return nil, err
	}
	if err := in.dropOrphans(ctx, tbl, l); err != nil {
		cat.Close()
		return nil, err
	}
	return &Result{Catalog: cat, Table: tbl, Ledger: l, Report: report}, nil
}

// dropOrphans removes snapshots whose source file has no ledger entry.
// They are left behind when a run stops between the append and the ledger
// write, and would otherwise be appended a second time.
func (in *Ingestor) dropOrphans(ctx context.Context, tbl *store.Table, l *ledger.Ledger) error {
	snaps, err := tbl.Snapshots(ctx)
	if err != nil {
		return err
	}
	for _, s := range snaps {
		if _, ok := l.Get(s.SourceFile); ok {
			continue
		}
		in.logger.Warn("dropping snapshot missing from the ingestion ledger",
			zap.String("file", s.SourceFile),
			zap.Int64("snapshot_id", s.ID))
		if err := tbl.DropSnapshot(ctx, s.ID); err != nil {
			return err
		}
	}
	return nil
}

// nextRowID continues after the rows already stored, so ids stay unique
// across incremental runs. A fresh store starts at 1.
func (in *Ingestor) nextRowID(ctx context.Context, tbl *store.Table) (int, error) {
	snaps, err := tbl.Snapshots(ctx)
	if err != nil {
		return 0, err
	}
	next := 1
	for _, s := range snaps {
		next += int(s.RowCount)
	}
	return next, nil
}

// ingestFile parses, projects and appends one file, then records it in the
// ledger. It returns the number of rows appended.
func (in *Ingestor) ingestFile(ctx context.Context, res *Result, wl *whitelist.Whitelist, name string, sep rune, sum string, firstID int) (int, error) {
	path := filepath.Join(in.opts.InputDir, name)
	log := in.logger.With(zap.String("file", name))

	fh, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeIngestion, "failed to open file").WithDetail("file", name)
	}
	defer fh.Close()

	header, err := frame.ReadCSVHeader(fh, sep)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeIngestion, "failed to read header").WithDetail("file", name)
	}
	if missing := wl.Missing(header); len(missing) > 0 {
		return 0, errors.Sentinel(errors.ErrMissingColumns, errors.ErrorTypeStructural, "file is missing whitelist columns").
			WithDetail("file", name).
			WithDetail("columns", missing)
	}
	if _, err := fh.Seek(0, 0); err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeIngestion, "failed to rewind file").WithDetail("file", name)
	}

	data, err := frame.ReadCSV(fh, frame.CSVOptions{Delimiter: sep, Columns: wl.Keys()})
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeIngestion, "failed to parse file").WithDetail("file", name)
	}

	rows := data.NumRows()
	names := make([]string, rows)
	for i := range names {
		names[i] = name
	}
	if data, err = data.WithColumn(FileNameColumn, names); err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeIngestion, "failed to add file name column").WithDetail("file", name)
	}

	if in.opts.AddRowID {
		ids := make([]string, rows)
		for i := range ids {
			ids[i] = strconv.Itoa(firstID + i)
		}
		if data, err = data.WithColumn(in.opts.RowIDKey, ids); err != nil {
			return 0, errors.Wrap(err, errors.ErrorTypeIngestion, "failed to add row ids").WithDetail("file", name)
		}
	}

	snap, err := res.Table.Append(ctx, data, name)
	if err != nil {
		return 0, err
	}
	if err := res.Ledger.Record(name, ledger.Entry{Checksum: sum, Snapshot: snap.String()}); err != nil {
		// The ledger must reflect exactly what the store holds.
		if derr := res.Table.DropSnapshot(ctx, snap.ID); derr != nil {
			log.Error("failed to roll back snapshot after ledger failure",
				zap.Int64("snapshot_id", snap.ID),
				zap.Error(derr))
		}
		return 0, err
	}

	metrics.FilesIngested.WithLabelValues(in.opts.Project).Inc()
	metrics.RowsAppended.WithLabelValues(in.opts.Project).Add(float64(rows))
	log.Info("file ingested", zap.Int("rows", rows), zap.Int64("snapshot_id", snap.ID))
	return rows, nil
}
