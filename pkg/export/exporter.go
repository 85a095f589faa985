package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/cura/pkg/compression"
	"github.com/ajitpratap0/cura/pkg/config"
	"github.com/ajitpratap0/cura/pkg/errors"
	"github.com/ajitpratap0/cura/pkg/frame"
	"github.com/ajitpratap0/cura/pkg/logger"
	"github.com/ajitpratap0/cura/pkg/metrics"
)

// Base names of generated export files
const (
	MonolithName = "domain_data_monolith"
	BatchPrefix  = "domain_data_batch_"
)

// ExporterOptions configures an Exporter
type ExporterOptions struct {
	// Dir receives one subdirectory per format
	Dir string
	// Columns are exported in order
	Columns []string
	// FileColumn holds the source file of each row, used by mirror_input
	FileColumn string
	// Files lists the ingested source files in ledger order
	Files  []string
	Writer Options
}

// Report lists the files written per format and the formats that failed
type Report struct {
	Files    map[Format][]string
	Failures map[Format]error
}

// Err joins the failures of the report, or returns nil
func (r *Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(r.Failures))
	for f, err := range r.Failures {
		msgs = append(msgs, fmt.Sprintf("%s: %v", f, err))
	}
	sort.Strings(msgs)
	return errors.New(errors.ErrorTypeExport, "export failed for "+strings.Join(msgs, "; ")).
		WithDetail("failed_formats", len(r.Failures))
}

// Exporter writes the domain table in every configured format
type Exporter struct {
	opts   ExporterOptions
	logger *zap.Logger
}

// NewExporter creates an Exporter
func NewExporter(opts ExporterOptions) *Exporter {
	return &Exporter{
		opts:   opts,
		logger: logger.Get().With(zap.String("component", "exporter")),
	}
}

// Export writes lf once per output format. A failing format is logged and
// recorded in the report; the remaining formats are still written. Only a
// cancelled context stops the export early.
func (e *Exporter) Export(ctx context.Context, lf *frame.LazyFrame, outputs []config.OutputFormat) (*Report, error) {
	report := &Report{Files: make(map[Format][]string), Failures: make(map[Format]error)}

	for _, out := range outputs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		format, err := ParseFormat(out.Format)
		if err != nil {
			e.logger.Error("unknown export format, skipping", zap.String("format", out.Format))
			report.Failures[Format(out.Format)] = err
			metrics.ExportsWritten.WithLabelValues(out.Format, "failure").Inc()
			continue
		}

		timer := metrics.NewTimer("export_" + string(format))
		e.logger.Info("exporting domain data",
			zap.String("format", string(format)),
			zap.Stringer("batching", out.Batching))

		files, err := e.exportFormat(ctx, lf, format, out.Batching)
		report.Files[format] = files
		if err != nil {
			err = errors.Wrap(err, errors.ErrorTypeExport, "export failed").
				WithDetail("format", string(format))
			report.Failures[format] = err
			metrics.ExportsWritten.WithLabelValues(string(format), "failure").Inc()
			e.logger.Error("export failed, continuing with next format",
				zap.String("format", string(format)), zap.Error(err))
			continue
		}
		e.logger.Info("export complete",
			zap.String("format", string(format)),
			zap.Int("files", len(files)),
			zap.Duration("duration", timer.ObservePhase()))
	}
	return report, nil
}

func (e *Exporter) exportFormat(ctx context.Context, lf *frame.LazyFrame, format Format, b config.Batching) ([]string, error) {
	dir := filepath.Join(e.opts.Dir, string(format))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	ext := format.Extension(e.opts.Writer.Compression)
	selected := lf.Select(e.opts.Columns...)

	switch b.Mode {
	case config.BatchMonolith:
		path := filepath.Join(dir, MonolithName+ext)
		if err := e.writeFile(path, format, func(w Writer) error {
			return selected.Stream(ctx, w.Write)
		}); err != nil {
			return nil, err
		}
		return []string{path}, nil

	case config.BatchMirrorInput:
		if e.opts.FileColumn == "" {
			return nil, fmt.Errorf("mirror_input batching needs the source file column")
		}
		var files []string
		for i, name := range e.opts.Files {
			path := filepath.Join(dir, strings.TrimSuffix(name, filepath.Ext(name))+ext)
			part := lf.Filter(e.opts.FileColumn, name).Select(e.opts.Columns...)
			if err := e.writeFile(path, format, func(w Writer) error {
				return part.Stream(ctx, w.Write)
			}); err != nil {
				return files, fmt.Errorf("failed to export %s: %w", name, err)
			}
			files = append(files, path)
			e.logger.Info("exported file",
				zap.String("source", name),
				zap.String("progress", fmt.Sprintf("%d/%d", i+1, len(e.opts.Files))))
		}
		return files, nil

	case config.BatchRows:
		return e.exportBatches(ctx, selected, format, dir, ext, b.Rows)

	default:
		return nil, fmt.Errorf("unknown batching %q", b.Mode)
	}
}

// exportBatches splits the stream into files of at most size rows
func (e *Exporter) exportBatches(ctx context.Context, lf *frame.LazyFrame, format Format, dir, ext string, size int) ([]string, error) {
	var (
		files []string
		cur   *openFile
	)
	closeCurrent := func() error {
		if cur == nil {
			return nil
		}
		err := cur.close()
		if err == nil {
			files = append(files, cur.path)
			e.logger.Info("exported batch", zap.String("path", cur.path), zap.Int64("rows", cur.w.Rows()))
		}
		cur = nil
		return err
	}

	err := lf.Stream(ctx, func(f *frame.Frame) error {
		for offset := 0; offset < f.NumRows(); {
			if cur == nil {
				path := filepath.Join(dir, BatchPrefix+strconv.Itoa(len(files)+1)+ext)
				var err error
				if cur, err = e.open(path, format); err != nil {
					return err
				}
			}
			n := size - int(cur.w.Rows())
			if rest := f.NumRows() - offset; rest < n {
				n = rest
			}
			if err := cur.w.Write(f.Slice(offset, n)); err != nil {
				return err
			}
			offset += n
			if int(cur.w.Rows()) >= size {
				if err := closeCurrent(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		if cur != nil {
			cur.abort()
		}
		return files, err
	}
	if err := closeCurrent(); err != nil {
		return files, err
	}
	return files, nil
}

// openFile is an export file being written
type openFile struct {
	path   string
	format Format
	fh     *os.File
	zw     io.WriteCloser
	w      Writer
}

func (e *Exporter) open(path string, format Format) (*openFile, error) {
	fh, err := os.Create(path) //nolint:gosec
	if err != nil {
		return nil, err
	}
	of := &openFile{path: path, format: format, fh: fh}

	var dst io.Writer = fh
	if format.Streamed() {
		zw, err := compression.NewWriter(fh, e.opts.Writer.Compression)
		if err != nil {
			of.abort()
			return nil, err
		}
		of.zw = zw
		dst = zw
	}
	w, err := NewWriter(format, dst, e.opts.Columns, e.opts.Writer)
	if err != nil {
		of.abort()
		return nil, err
	}
	of.w = w
	return of, nil
}

func (of *openFile) close() error {
	if err := of.w.Close(); err != nil {
		of.abort()
		return err
	}
	if of.zw != nil {
		if err := of.zw.Close(); err != nil {
			of.abort()
			return err
		}
	}
	if err := of.fh.Sync(); err != nil {
		of.abort()
		return err
	}
	metrics.ExportsWritten.WithLabelValues(string(of.format), "success").Inc()
	return of.fh.Close()
}

// abort closes and removes a partial file
func (of *openFile) abort() {
	_ = of.fh.Close()
	_ = os.Remove(of.path)
}

func (e *Exporter) writeFile(path string, format Format, fn func(Writer) error) error {
	of, err := e.open(path, format)
	if err != nil {
		return err
	}
	if err := fn(of.w); err != nil {
		of.abort()
		return err
	}
	return of.close()
}
