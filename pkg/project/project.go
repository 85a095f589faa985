// Package project lays out the input, buffer and output directories of a
// cura project and resets them.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ajitpratap0/cura/pkg/errors"
	"github.com/ajitpratap0/cura/pkg/logger"
)

// Top-level directories under the data root
const (
	DataIn     = "data_in"
	DataBuffer = "data_buffer"
	DataOut    = "data_out"
)

// Project holds every path a run reads from or writes to
type Project struct {
	Name string
	Root string

	DomainInput   string
	CodebookInput string

	BufferDir       string
	OriginalMirror  string
	FilteredMirror  string
	DomainBuffer    string
	OutDir          string
	InspectionDir   string
	KeyExportDir    string
	DomainExportDir string
	FinalCodebook   string
	MetricsFile     string

	logger *zap.Logger
}

// New resolves the layout of project name reading data_in/<domainFolder>
func New(root, name, domainFolder string) *Project {
	buffer := filepath.Join(root, DataBuffer, name)
	out := filepath.Join(root, DataOut, name)
	in := filepath.Join(root, DataIn, domainFolder)
	return &Project{
		Name:            name,
		Root:            root,
		DomainInput:     filepath.Join(in, "domain"),
		CodebookInput:   filepath.Join(in, "codebook"),
		BufferDir:       buffer,
		OriginalMirror:  filepath.Join(buffer, "original_cb_mirror.json"),
		FilteredMirror:  filepath.Join(buffer, "filtered_cb_mirror.json"),
		DomainBuffer:    filepath.Join(buffer, "buffer_dd"),
		OutDir:          out,
		InspectionDir:   filepath.Join(out, "inspection"),
		KeyExportDir:    filepath.Join(out, "key_exports"),
		DomainExportDir: filepath.Join(out, "domain_exports"),
		FinalCodebook:   filepath.Join(out, "final_codebook.json"),
		MetricsFile:     filepath.Join(out, "metrics.prom"),
		logger:          logger.Get().With(zap.String("component", "project"), zap.String("project", name)),
	}
}

// CheckInputs verifies both input directories exist and are not empty
func (p *Project) CheckInputs() error {
	for _, dir := range []string{p.DomainInput, p.CodebookInput} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "input directory is not readable").
				WithDetail("path", dir)
		}
		if len(entries) == 0 {
			return errors.Sentinel(errors.ErrEmptyInput, errors.ErrorTypeFile, "input directory is empty").
				WithDetail("path", dir)
		}
	}
	return nil
}

// Setup creates the buffer and output directories
func (p *Project) Setup() error {
	for _, dir := range []string{p.DomainBuffer, p.InspectionDir, p.KeyExportDir, p.DomainExportDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to create project directory").
				WithDetail("path", dir)
		}
	}
	p.logger.Info("project directories ready",
		zap.String("buffer", p.BufferDir),
		zap.String("output", p.OutDir))
	return nil
}

// ResetDataOut deletes data_out/<project>
func (p *Project) ResetDataOut() error {
	return p.remove(p.OutDir)
}

// ResetDataBuffer deletes data_buffer/<project>, including the store and
// the ingestion ledger
func (p *Project) ResetDataBuffer() error {
	return p.remove(p.BufferDir)
}

// ResetProject deletes both the output and the buffer of the project
func (p *Project) ResetProject() error {
	if err := p.ResetDataOut(); err != nil {
		return err
	}
	return p.ResetDataBuffer()
}

func (p *Project) remove(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to delete project directory").
			WithDetail("path", dir)
	}
	p.logger.Info("deleted folder", zap.String("path", dir))
	return nil
}

// ResetLog deletes the run log file
func ResetLog(path string) error {
	if err := logger.RemoveLogFile(path); err != nil {
		return fmt.Errorf("failed to delete log file %s: %w", path, err)
	}
	return nil
}
