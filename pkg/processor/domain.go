package processor

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/cura/pkg/compression"
	"github.com/ajitpratap0/cura/pkg/config"
	"github.com/ajitpratap0/cura/pkg/errors"
	"github.com/ajitpratap0/cura/pkg/export"
	"github.com/ajitpratap0/cura/pkg/frame"
	"github.com/ajitpratap0/cura/pkg/ingest"
	"github.com/ajitpratap0/cura/pkg/inspection"
	"github.com/ajitpratap0/cura/pkg/ledger"
	"github.com/ajitpratap0/cura/pkg/logger"
	"github.com/ajitpratap0/cura/pkg/project"
	"github.com/ajitpratap0/cura/pkg/prompt"
	"github.com/ajitpratap0/cura/pkg/router"
	"github.com/ajitpratap0/cura/pkg/transform"
	"github.com/ajitpratap0/cura/pkg/whitelist"
)

// DomainOptions configures a DomainDataProcessor
type DomainOptions struct {
	Project *project.Project
	// Whitelist grows when an append_column edit adds a column
	Whitelist   *whitelist.Whitelist
	Inspections []string
	AddRowID    bool
	RowIDKey    string
	Checksum    ledger.Algorithm
	Delimiter   rune
	Compression compression.Algorithm
	Outputs     []config.OutputFormat
}

// DomainDataProcessor owns the domain table of a run
type DomainDataProcessor struct {
	opts     DomainOptions
	prompter prompt.Prompter
	ingestor *ingest.Ingestor
	result   *ingest.Result
	table    *frame.LazyFrame
	logger   *zap.Logger
}

var _ router.DomainDispatcher = (*DomainDataProcessor)(nil)

// NewDomainDataProcessor creates a DomainDataProcessor
func NewDomainDataProcessor(opts DomainOptions, p prompt.Prompter) *DomainDataProcessor {
	if opts.RowIDKey == "" {
		opts.RowIDKey = ingest.DefaultRowIDKey
	}
	return &DomainDataProcessor{
		opts:     opts,
		prompter: p,
		ingestor: ingest.New(ingest.Options{
			Project:   opts.Project.Name,
			InputDir:  opts.Project.DomainInput,
			BufferDir: opts.Project.DomainBuffer,
			AddRowID:  opts.AddRowID,
			RowIDKey:  opts.RowIDKey,
			Checksum:  opts.Checksum,
		}, p),
		logger: logger.Get().With(
			zap.String("component", "domain_processor"),
			zap.String("project", opts.Project.Name)),
	}
}

// Table returns the current plan over the domain table, nil before Preprocess
func (p *DomainDataProcessor) Table() *frame.LazyFrame {
	return p.table
}

// Close releases the store. Calling it again is a no-op.
func (p *DomainDataProcessor) Close() error {
	if p.result == nil {
		return nil
	}
	err := p.result.Close()
	p.result = nil
	return err
}

// Preprocess ingests new input files into the store. On failure the
// operator may remove the domain buffer before the error is returned.
func (p *DomainDataProcessor) Preprocess(ctx context.Context) error {
	res, err := p.ingestor.IngestAll(ctx, p.opts.Whitelist)
	if err != nil {
		p.logger.Error("domain preprocessing failed", zap.Error(err))
		p.offerBufferCleanup()
		return err
	}
	p.result = res
	p.table = res.Lazy()

	cols, err := p.table.Schema(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIngestion, "failed to read store schema")
	}
	rows, err := p.table.Count(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIngestion, "failed to count store rows")
	}
	p.logger.Info("domain data ready",
		zap.Strings("columns", cols),
		zap.Int("rows", rows),
		zap.Strings("ingested", res.Ingested),
		zap.Strings("skipped", res.Skipped))
	return nil
}

func (p *DomainDataProcessor) offerBufferCleanup() {
	if _, err := os.Stat(p.opts.Project.DomainBuffer); err != nil {
		return
	}
	remove, err := p.prompter.Confirm(prompt.Question{
		ID:   prompt.RemoveDomainBuffer,
		Text: "Error while parsing. Remove the domain buffer folder?",
	})
	if err != nil || !remove {
		p.logger.Warn("domain buffer may need cleanup", zap.String("path", p.opts.Project.DomainBuffer))
		return
	}
	if err := os.RemoveAll(p.opts.Project.DomainBuffer); err != nil {
		p.logger.Error("failed to remove domain buffer", zap.Error(err))
		return
	}
	p.logger.Info("removed domain buffer", zap.String("path", p.opts.Project.DomainBuffer))
}

// Inspect runs every active inspection on the whitelisted columns and
// returns accs with the results merged in. Inspections of values do not
// apply to domain data and are skipped, as are unknown inspections.
func (p *DomainDataProcessor) Inspect(ctx context.Context, accs inspection.Accumulators, processed bool) (inspection.Accumulators, error) {
	if p.table == nil {
		return accs, errors.New(errors.ErrorTypeInternal, "domain inspection before preprocessing")
	}
	ps := pass{dir: p.opts.Project.InspectionDir, processed: processed, logger: p.logger}
	if err := os.MkdirAll(ps.dir, 0o755); err != nil {
		return accs, errors.Wrap(err, errors.ErrorTypeFile, "failed to create inspection directory")
	}

	for _, name := range p.opts.Inspections {
		if err := ctx.Err(); err != nil {
			return accs, err
		}
		if strings.HasSuffix(name, router.ValuesSuffix) {
			p.logger.Warn("value inspections are not supported for domain data, skipping", zap.String("inspection", name))
			continue
		}
		in, err := transform.GetInspection(name)
		if err != nil {
			p.logger.Error("unknown domain inspection, skipping", zap.String("inspection", name))
			continue
		}

		columns := p.opts.Whitelist.Keys()
		p.logger.Info("running inspection", zap.String("inspection", name), zap.Int("columns", len(columns)))
		result, err := in.InspectDomain(ctx, p.table, columns)
		if err != nil {
			return accs, errors.Wrap(err, errors.ErrorTypeData, "domain inspection failed").
				WithDetail("inspection", name)
		}
		countInspection("domain", name, processed)

		if accs, err = ps.merge(accs, inspection.Tag(inspection.EntityDomain, name), name, columns, result); err != nil {
			return accs, err
		}
	}
	return accs, nil
}

// EditDomain implements router.DomainDispatcher. The edit is added to the
// table plan; a column added by append_column joins the whitelist.
func (p *DomainDataProcessor) EditDomain(key, name string, params transform.Params) error {
	if p.table == nil {
		return errors.New(errors.ErrorTypeInternal, "domain edit before preprocessing")
	}
	edit, err := transform.GetEdit(name)
	if err != nil {
		return err
	}
	p.logger.Info("running edit", zap.String("key", key), zap.String("transform", name), zap.Any("params", params))

	next, err := edit.ApplyDomain(p.table, key, params)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "domain edit failed").
			WithDetail("key", key).
			WithDetail("transform", name)
	}
	p.table = next

	if name == transform.AppendColumn && !p.opts.Whitelist.Contains(key) {
		if err := p.opts.Whitelist.Append(key); err != nil {
			return err
		}
		p.logger.Info("added new field to whitelist", zap.String("key", key))
	}
	return nil
}

// ExportColumns returns the exported columns: the row id when enabled,
// then the whitelist
func (p *DomainDataProcessor) ExportColumns() []string {
	var cols []string
	if p.opts.AddRowID {
		cols = append(cols, p.opts.RowIDKey)
	}
	return append(cols, p.opts.Whitelist.Keys()...)
}

// Export writes the table in every configured format. Failing formats
// are logged and listed in the report without stopping the others.
func (p *DomainDataProcessor) Export(ctx context.Context) (*export.Report, error) {
	if p.table == nil {
		return nil, errors.New(errors.ErrorTypeInternal, "domain export before preprocessing")
	}
	e := export.NewExporter(export.ExporterOptions{
		Dir:        p.opts.Project.DomainExportDir,
		Columns:    p.ExportColumns(),
		FileColumn: ingest.FileNameColumn,
		Files:      p.result.Ledger.Files(),
		Writer: export.Options{
			Delimiter:   p.opts.Delimiter,
			Compression: p.opts.Compression,
		},
	})
	return e.Export(ctx, p.table, p.opts.Outputs)
}
