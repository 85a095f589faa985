// Package pipeline runs a cura project: it preprocesses the codebook and
// the domain data, runs the inspection passes around the configured edits,
// exports both entities and publishes the output.
//
// # Phases
//
// A run is a strict sequence of phases:
//
//	setup → preprocess → inspect → edits → inspect (processed) →
//	export codebook → export domain → publish
//
// Each phase is traced, timed and followed by a checkpoint. When the
// operator pressed Ctrl-C during a phase, the checkpoint offers to reset
// the project state and the run stops with errors.ErrInterrupted.
//
// # Basic Usage
//
//	p, err := pipeline.New(pipeline.Options{
//	    Config:   cfg,
//	    Root:     settings.Root,
//	    Mode:     router.ModeBoth,
//	    Prompter: prompt.NewTerminal(os.Stdin, os.Stdout),
//	})
//	defer p.Close()
//	result, err := p.Run(ctx)
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/cura/pkg/config"
	"github.com/ajitpratap0/cura/pkg/errors"
	"github.com/ajitpratap0/cura/pkg/export"
	"github.com/ajitpratap0/cura/pkg/ingest"
	"github.com/ajitpratap0/cura/pkg/inspection"
	"github.com/ajitpratap0/cura/pkg/logger"
	"github.com/ajitpratap0/cura/pkg/metrics"
	"github.com/ajitpratap0/cura/pkg/observability"
	"github.com/ajitpratap0/cura/pkg/processor"
	"github.com/ajitpratap0/cura/pkg/project"
	"github.com/ajitpratap0/cura/pkg/prompt"
	"github.com/ajitpratap0/cura/pkg/publish"
	"github.com/ajitpratap0/cura/pkg/router"
	"github.com/ajitpratap0/cura/pkg/whitelist"
)

// Options configures a Pipeline
type Options struct {
	Config *config.Config
	// Root holds data_in, data_buffer and data_out
	Root     string
	Mode     router.Mode
	Prompter prompt.Prompter
	// Interrupts is checked after every phase; nil disables checkpoints
	Interrupts *Interrupts
	// Metrics writes the metrics textfile when the run ends
	Metrics bool
	// Publisher replaces the one built from the publish section
	Publisher *publish.Publisher
}

// Result summarizes a run
type Result struct {
	RunID       string
	Project     string
	Inspections inspection.Accumulators
	// CodebookExport holds the error of a failed codebook export
	CodebookExport error
	// Export is nil when the domain export did not run
	Export    *export.Report
	Published []string
	Duration  time.Duration
}

// Err reports every export failure of the run, codebook first
func (r *Result) Err() error {
	var domain error
	if r.Export != nil {
		domain = r.Export.Err()
	}
	switch {
	case r.CodebookExport == nil:
		return domain
	case domain == nil:
		return r.CodebookExport
	}
	return errors.Wrap(r.CodebookExport, errors.ErrorTypeExport, domain.Error())
}

// Pipeline drives one project through its phases
type Pipeline struct {
	opts    Options
	project *project.Project
	wl      *whitelist.Whitelist
	cb      *processor.CodebookProcessor
	dd      *processor.DomainDataProcessor
	accs    inspection.Accumulators
	monitor *observability.ResourceMonitor
	runID   string
	logger  *zap.Logger
}

// New resolves the project of opts.Config and creates the processors
// that opts.Mode selects
func New(opts Options) (*Pipeline, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "no configuration")
	}
	if opts.Prompter == nil {
		opts.Prompter = &prompt.Scripted{}
	}
	if opts.Mode == "" {
		opts.Mode = router.ModeBoth
	}

	wl, err := cfg.Whitelist()
	if err != nil {
		return nil, err
	}
	delimiter, err := cfg.ExportDelimiter()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid csv_export_delimiter")
	}
	algo, err := cfg.Compression()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid export_compression")
	}
	checksum, err := cfg.ChecksumAlgorithm()
	if err != nil {
		return nil, err
	}
	outputs, err := cfg.OutputFormatList()
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	proj := project.New(opts.Root, cfg.ProjectName, cfg.DomainFolderName)
	p := &Pipeline{
		opts:    opts,
		project: proj,
		wl:      wl,
		accs:    inspection.Accumulators{},
		runID:   runID,
		logger: logger.Get().With(
			zap.String("component", "pipeline"),
			zap.String("project", cfg.ProjectName),
			zap.String("run_id", runID),
			zap.String("mode", string(opts.Mode))),
	}
	if monitor, err := observability.NewResourceMonitor(); err == nil {
		p.monitor = monitor
	} else {
		p.logger.Debug("resource monitor unavailable", zap.Error(err))
	}

	if opts.Mode.Codebook() {
		p.cb = processor.NewCodebookProcessor(processor.CodebookOptions{
			Project:       proj,
			Whitelist:     wl,
			Parser:        cfg.SelectParser,
			Inspections:   config.ActiveInspections(cfg.CBInspections),
			MergeMetadata: cfg.MergeMetadata(),
			KeyExportBan:  cfg.KeyExportBan,
			RowIDKey:      ingest.DefaultRowIDKey,
		}, opts.Prompter)
	}
	if opts.Mode.Domain() {
		p.dd = processor.NewDomainDataProcessor(processor.DomainOptions{
			Project:     proj,
			Whitelist:   wl,
			Inspections: config.ActiveInspections(cfg.DDInspections),
			AddRowID:    cfg.ParsingOptions.AddID,
			RowIDKey:    ingest.DefaultRowIDKey,
			Checksum:    checksum,
			Delimiter:   delimiter,
			Compression: algo,
			Outputs:     outputs,
		}, opts.Prompter)
	}
	return p, nil
}

// Project returns the resolved project layout
func (p *Pipeline) Project() *project.Project {
	return p.project
}

// Whitelist returns the live whitelist, including appended columns
func (p *Pipeline) Whitelist() *whitelist.Whitelist {
	return p.wl
}

// Close releases the domain store
func (p *Pipeline) Close() error {
	if p.dd == nil {
		return nil
	}
	return p.dd.Close()
}

// Parse preprocesses the selected entities and stops
func (p *Pipeline) Parse(ctx context.Context) error {
	ctx = p.context(ctx)
	if err := p.phase(ctx, "setup", p.setup); err != nil {
		return err
	}
	return p.phase(ctx, "preprocess", p.preprocess)
}

// Inspect preprocesses the selected entities and runs the first
// inspection pass on them
func (p *Pipeline) Inspect(ctx context.Context) (inspection.Accumulators, error) {
	if err := p.Parse(ctx); err != nil {
		return nil, err
	}
	err := p.phase(p.context(ctx), "inspect", func(ctx context.Context) error {
		return p.inspect(ctx, false)
	})
	return p.accs, err
}

// Run executes every phase. Each optional phase is confirmed through the
// prompter first. Export failures do not fail the run: a failed codebook
// export is kept in Result.CodebookExport, failed formats in Result.Export.
// Result.Err joins both.
func (p *Pipeline) Run(ctx context.Context) (res *Result, err error) {
	start := time.Now()
	ctx = p.context(ctx)
	ctx, span := observability.StartPhase(ctx, "run",
		attribute.String("run_id", p.runID),
		attribute.String("project", p.project.Name),
		attribute.String("mode", string(p.opts.Mode)))
	defer func() { span.End(err) }()
	if p.opts.Metrics {
		defer p.writeMetrics()
	}

	res = &Result{RunID: p.runID, Project: p.project.Name}
	p.logger.Info("starting run", zap.String("root", p.opts.Root))

	if err := p.phase(ctx, "setup", p.setup); err != nil {
		return res, err
	}
	if err := p.phase(ctx, "preprocess", p.preprocess); err != nil {
		return res, err
	}

	if p.confirm(prompt.InspectBefore, "Run inspections before the edits?") {
		if err := p.phase(ctx, "inspect", func(ctx context.Context) error { return p.inspect(ctx, false) }); err != nil {
			return res, err
		}
	}
	if err := p.phase(ctx, "edits", p.edit); err != nil {
		return res, err
	}
	if p.confirm(prompt.InspectAfter, "Run inspections after the edits?") {
		if err := p.phase(ctx, "inspect_processed", func(ctx context.Context) error { return p.inspect(ctx, true) }); err != nil {
			return res, err
		}
	}
	res.Inspections = p.accs

	if p.cb != nil && p.confirm(prompt.ExportCodebook, "Export the codebook?") {
		err := p.phase(ctx, "export_codebook", func(ctx context.Context) error {
			err := p.cb.Export(ctx)
			if err == nil || ctx.Err() != nil {
				return err
			}
			res.CodebookExport = errors.Wrap(err, errors.ErrorTypeExport, "codebook export failed")
			p.logger.Error("codebook export failed", zap.Error(err))
			return nil
		})
		if err != nil {
			return res, err
		}
	}
	if p.dd != nil && p.confirm(prompt.ExportDomain, "Export the domain data?") {
		err := p.phase(ctx, "export_domain", func(ctx context.Context) error {
			report, err := p.dd.Export(ctx)
			res.Export = report
			if err != nil {
				return err
			}
			if ferr := report.Err(); ferr != nil {
				p.logger.Error("some export formats failed", zap.Error(ferr))
			}
			return nil
		})
		if err != nil {
			return res, err
		}
	}

	if p.opts.Publisher != nil || p.opts.Config.PublishTarget() != "" {
		err := p.phase(ctx, "publish", func(ctx context.Context) error {
			locs, err := p.publish(ctx)
			res.Published = locs
			return err
		})
		if err != nil {
			return res, err
		}
	}

	res.Duration = time.Since(start)
	p.logger.Info("run completed",
		zap.Duration("duration", res.Duration),
		zap.Strings("whitelist", p.wl.Keys()),
		zap.Int("published", len(res.Published)))
	return res, nil
}

func (p *Pipeline) context(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, logger.RunIDKey, p.runID)
	return context.WithValue(ctx, logger.ProjectKey, p.project.Name)
}

// phase runs fn inside a span and a timer, then checks for interruptions
func (p *Pipeline) phase(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx = context.WithValue(ctx, logger.PhaseKey, name)
	ctx, span := observability.StartPhase(ctx, name)
	timer := metrics.NewTimer(name)
	logger.WithContext(ctx).Info("phase started")

	err := fn(ctx)
	d := timer.ObservePhase()
	span.End(err)
	if p.monitor != nil {
		p.monitor.Log(p.logger, name)
	}
	if err != nil {
		logger.WithContext(ctx).Error("phase failed", zap.Error(err), zap.Duration("duration", d))
		return err
	}
	logger.WithContext(ctx).Info("phase completed", zap.Duration("duration", d))
	return p.checkpoint(name)
}

// checkpoint handles an interruption that arrived during phase
func (p *Pipeline) checkpoint(phase string) error {
	if !p.opts.Interrupts.Pending() {
		return nil
	}
	p.opts.Interrupts.Clear()
	p.logger.Warn("run interrupted", zap.String("phase", phase))

	choice, err := p.opts.Prompter.Choose(prompt.Question{
		ID:   prompt.ResetOnInterrupt,
		Text: "Run interrupted. Delete project state before exiting?",
	}, scopeNames())
	if err != nil || choice < 0 || choice >= len(ResetScopes) {
		p.logger.Error("failed to read reset choice", zap.Error(err))
		choice = 0
	}
	scope := ResetScopes[choice]
	if scope != ResetNothing {
		if err := p.Close(); err != nil {
			p.logger.Warn("failed to close store before reset", zap.Error(err))
		}
	}
	if err := Reset(p.project, scope); err != nil {
		p.logger.Error("reset failed", zap.String("scope", string(scope)), zap.Error(err))
	}
	return errors.Sentinel(errors.ErrInterrupted, errors.ErrorTypeInterrupted, "run interrupted").
		WithDetail("phase", phase).
		WithDetail("reset", string(scope))
}

func (p *Pipeline) confirm(id, text string) bool {
	ok, err := p.opts.Prompter.Confirm(prompt.Question{ID: id, Text: text, Default: true})
	if err != nil {
		p.logger.Warn("failed to read answer, skipping", zap.String("question", id), zap.Error(err))
		return false
	}
	if !ok {
		p.logger.Info("skipped by operator", zap.String("question", id))
	}
	return ok
}

func (p *Pipeline) setup(context.Context) error {
	if err := p.project.CheckInputs(); err != nil {
		return err
	}
	return p.project.Setup()
}

func (p *Pipeline) preprocess(ctx context.Context) error {
	if p.cb != nil {
		if err := p.cb.Preprocess(ctx); err != nil {
			return err
		}
	}
	if p.dd != nil {
		if err := p.dd.Preprocess(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) inspect(ctx context.Context, processed bool) error {
	var err error
	if p.cb != nil {
		if p.accs, err = p.cb.Inspect(ctx, p.accs, processed); err != nil {
			return err
		}
	}
	if p.dd != nil {
		if p.accs, err = p.dd.Inspect(ctx, p.accs, processed); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) edit(context.Context) error {
	opts := router.Options{
		Mode:      p.opts.Mode,
		Whitelist: p.wl,
		RowIDKey:  ingest.DefaultRowIDKey,
		RowIDs:    p.opts.Config.ParsingOptions.AddID,
	}
	// A nil pointer stored in the interface would pass the router's nil check
	if p.cb != nil {
		opts.Codebook = p.cb
	}
	if p.dd != nil {
		opts.Domain = p.dd
	}
	edits := p.opts.Config.EditList()
	p.logger.Info("running edits", zap.Int("edits", len(edits)))
	return router.New(opts).Run(edits)
}

func (p *Pipeline) publish(ctx context.Context) ([]string, error) {
	pub := p.opts.Publisher
	if pub == nil {
		var err error
		if pub, err = publish.New(ctx, p.opts.Config.Publish); err != nil {
			return nil, err
		}
		defer pub.Close()
	}
	return pub.PublishDir(ctx, p.project.OutDir)
}

func (p *Pipeline) writeMetrics() {
	if err := metrics.WriteTextfile(p.project.MetricsFile); err != nil {
		p.logger.Warn("failed to write metrics", zap.Error(err))
		return
	}
	p.logger.Info("metrics written", zap.String("path", p.project.MetricsFile))
}
