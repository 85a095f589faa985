package processor

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/cura/pkg/codebook"
	"github.com/ajitpratap0/cura/pkg/errors"
	"github.com/ajitpratap0/cura/pkg/inspection"
	"github.com/ajitpratap0/cura/pkg/logger"
	"github.com/ajitpratap0/cura/pkg/metrics"
	"github.com/ajitpratap0/cura/pkg/project"
	"github.com/ajitpratap0/cura/pkg/prompt"
	"github.com/ajitpratap0/cura/pkg/router"
	"github.com/ajitpratap0/cura/pkg/transform"
	"github.com/ajitpratap0/cura/pkg/whitelist"
)

// NoValuesSuffix names the marker file of a key without exported values
const NoValuesSuffix = "_no_values.txt"

// CodebookOptions configures a CodebookProcessor
type CodebookOptions struct {
	Project   *project.Project
	Whitelist *whitelist.Whitelist
	// Parser reads the input codebook file
	Parser string
	// Inspections are the active inspection names; a -values suffix
	// inspects labels instead of codes
	Inspections []string
	// MergeMetadata files processed inspection results into the metadata
	MergeMetadata bool
	KeyExportBan  []string
	// RowIDKey is never edited in the codebook
	RowIDKey string
}

// CodebookProcessor owns the codebook of a run
type CodebookProcessor struct {
	opts     CodebookOptions
	prompter prompt.Prompter
	cb       *codebook.Codebook
	logger   *zap.Logger
}

var _ router.CodebookDispatcher = (*CodebookProcessor)(nil)

// NewCodebookProcessor creates a CodebookProcessor
func NewCodebookProcessor(opts CodebookOptions, p prompt.Prompter) *CodebookProcessor {
	return &CodebookProcessor{
		opts:     opts,
		prompter: p,
		logger: logger.Get().With(
			zap.String("component", "codebook_processor"),
			zap.String("project", opts.Project.Name)),
	}
}

// Codebook returns the codebook, nil before Preprocess
func (p *CodebookProcessor) Codebook() *codebook.Codebook {
	return p.cb
}

// Preprocess loads the codebook. A buffered filtered mirror is reused
// when the operator agrees; otherwise the single input file is parsed with
// the configured parser. The unfiltered mirror is written once and the
// filtered mirror on every run. Both mirrors are removed if anything fails.
func (p *CodebookProcessor) Preprocess(ctx context.Context) (err error) {
	timer := metrics.NewTimer("codebook_preprocess")
	defer timer.ObservePhase()

	defer func() {
		if err != nil {
			_ = os.Remove(p.opts.Project.OriginalMirror)
			_ = os.Remove(p.opts.Project.FilteredMirror)
			p.logger.Warn("codebook preprocessing failed, removed codebook mirrors", zap.Error(err))
		}
	}()

	if err := os.MkdirAll(p.opts.Project.BufferDir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create buffer directory")
	}

	cb, err := p.load(ctx)
	if err != nil {
		return err
	}

	if _, statErr := os.Stat(p.opts.Project.OriginalMirror); os.IsNotExist(statErr) {
		if err := cb.Save(p.opts.Project.OriginalMirror); err != nil {
			return err
		}
	}

	filtered, err := cb.FilterByWhitelist(p.opts.Whitelist)
	if err != nil {
		return err
	}
	if err := filtered.Save(p.opts.Project.FilteredMirror); err != nil {
		return err
	}
	p.cb = filtered
	p.logger.Info("codebook mirrors written to buffer",
		zap.Int("keys", filtered.Data.Len()),
		zap.String("filtered", p.opts.Project.FilteredMirror))
	return nil
}

func (p *CodebookProcessor) load(ctx context.Context) (*codebook.Codebook, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(p.opts.Project.FilteredMirror); err == nil {
		reuse, err := p.prompter.Confirm(prompt.Question{
			ID:      prompt.ReplaceCodebookIn,
			Text:    "Found an already parsed codebook mirror. Use it instead of parsing the input again?",
			Default: true,
		})
		if err != nil {
			return nil, err
		}
		if reuse {
			p.logger.Info("using buffered codebook mirror", zap.String("path", p.opts.Project.FilteredMirror))
			return codebook.Load(p.opts.Project.FilteredMirror)
		}
	}

	path, err := p.inputFile()
	if err != nil {
		return nil, err
	}
	parser, err := codebook.GetParser(p.opts.Parser)
	if err != nil {
		return nil, err
	}
	p.logger.Info("parsing codebook", zap.String("path", path), zap.String("parser", p.opts.Parser))
	return parser.Parse(path)
}

// inputFile returns the only regular file of the codebook input directory
func (p *CodebookProcessor) inputFile() (string, error) {
	dir := p.opts.Project.CodebookInput
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to read codebook input directory").
			WithDetail("path", dir)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	switch len(files) {
	case 0:
		return "", errors.Sentinel(errors.ErrEmptyInput, errors.ErrorTypeFile, "no codebook file found").
			WithDetail("path", dir)
	case 1:
		return files[0], nil
	default:
		return "", errors.New(errors.ErrorTypeConfig, "more than one codebook file in the codebook input directory").
			WithDetail("files", files)
	}
}

// Inspect runs every active inspection on the codebook and returns accs
// with the results merged in. The first pass seeds fresh accumulators.
// On the processed pass results also go into the metadata when enabled.
func (p *CodebookProcessor) Inspect(ctx context.Context, accs inspection.Accumulators, processed bool) (inspection.Accumulators, error) {
	if p.cb == nil {
		return accs, errors.New(errors.ErrorTypeInternal, "codebook inspection before preprocessing")
	}
	ps := pass{dir: p.opts.Project.InspectionDir, processed: processed, logger: p.logger}
	if err := os.MkdirAll(ps.dir, 0o755); err != nil {
		return accs, errors.Wrap(err, errors.ErrorTypeFile, "failed to create inspection directory")
	}

	for _, configured := range p.opts.Inspections {
		if err := ctx.Err(); err != nil {
			return accs, err
		}
		name, targetValues := strings.CutSuffix(configured, router.ValuesSuffix)
		entity := inspection.EntityCodebook
		if targetValues {
			entity = inspection.EntityCodebookValues
		}
		tag := inspection.Tag(entity, name)

		in, err := transform.GetInspection(name)
		if err != nil {
			return accs, errors.Wrap(err, errors.ErrorTypeConfig, "unknown codebook inspection").
				WithDetail("inspection", configured)
		}
		result, err := in.InspectCodebook(p.cb, targetValues)
		if err != nil {
			return accs, errors.Wrap(err, errors.ErrorTypeData, "codebook inspection failed").
				WithDetail("inspection", configured)
		}
		countInspection("codebook", configured, processed)

		if accs, err = ps.merge(accs, tag, name, p.cb.Keys(), result); err != nil {
			return accs, err
		}
		if processed && p.opts.MergeMetadata {
			if err := inspection.MergeMetadata(p.cb, result, inspection.SubkeyTag(name, processed)); err != nil {
				return accs, err
			}
		}
	}
	return accs, nil
}

// EditCodebook implements router.CodebookDispatcher. Column appends, the
// row id key and keys without a value table leave the codebook unchanged.
func (p *CodebookProcessor) EditCodebook(key, name string, params transform.Params, targetValues bool) error {
	if p.cb == nil {
		return errors.New(errors.ErrorTypeInternal, "codebook edit before preprocessing")
	}
	if name == transform.AppendColumn || (p.opts.RowIDKey != "" && key == p.opts.RowIDKey) {
		p.logger.Debug("edit does not apply to the codebook", zap.String("key", key), zap.String("transform", name))
		return nil
	}
	values, ok := p.cb.Values(key)
	if !ok {
		p.logger.Warn("key not in codebook, skipping edit", zap.String("key", key), zap.String("transform", name))
		return nil
	}

	edit, err := transform.GetEdit(name)
	if err != nil {
		return err
	}
	out, err := edit.ApplyCodebook(values, targetValues, params)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "codebook edit failed").
			WithDetail("key", key).
			WithDetail("transform", name)
	}
	p.cb.SetValues(key, out)
	p.logger.Info("edited codebook key",
		zap.String("key", key),
		zap.String("transform", name),
		zap.Bool("values", targetValues))
	return nil
}

// Export writes final_codebook.json with sorted codes and one code,label
// CSV per key. Banned keys and keys without values get an empty
// <key>_no_values.txt marker instead.
func (p *CodebookProcessor) Export(ctx context.Context) error {
	if p.cb == nil {
		return errors.New(errors.ErrorTypeInternal, "codebook export before preprocessing")
	}
	timer := metrics.NewTimer("codebook_export")
	defer timer.ObservePhase()

	p.cb.SortValues()
	if err := p.cb.Save(p.opts.Project.FinalCodebook); err != nil {
		return err
	}
	p.logger.Info("exported final codebook", zap.String("path", p.opts.Project.FinalCodebook))

	dir := p.opts.Project.KeyExportDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create key export directory")
	}
	banned := make(map[string]bool, len(p.opts.KeyExportBan))
	for _, k := range p.opts.KeyExportBan {
		banned[k] = true
	}

	for _, key := range p.cb.Keys() {
		if err := ctx.Err(); err != nil {
			return err
		}
		values, _ := p.cb.Values(key)
		if banned[key] || values.Len() == 0 {
			path := filepath.Join(dir, key+NoValuesSuffix)
			if err := os.WriteFile(path, nil, 0o644); err != nil { //nolint:gosec
				return errors.Wrap(err, errors.ErrorTypeExport, "failed to write key marker").WithDetail("key", key)
			}
			p.logger.Info("excluded key from export", zap.String("key", key), zap.Bool("banned", banned[key]))
			continue
		}
		if err := writeKeyCSV(filepath.Join(dir, key+".csv"), values); err != nil {
			return errors.Wrap(err, errors.ErrorTypeExport, "failed to export key").WithDetail("key", key)
		}
		metrics.ExportsWritten.WithLabelValues("key_csv", "success").Inc()
	}
	p.logger.Info("exported codebook keys", zap.String("dir", dir), zap.Int("keys", p.cb.Data.Len()))
	return nil
}

func writeKeyCSV(path string, values *codebook.Values) error {
	fh, err := os.Create(path) //nolint:gosec
	if err != nil {
		return err
	}
	w := csv.NewWriter(fh)
	values.Range(func(code, label string) bool {
		err = w.Write([]string{code, label})
		return err == nil
	})
	if err != nil {
		fh.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}
