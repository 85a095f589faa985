// Package structure reconciles the layout of a directory of delimited files:
// per-file delimiters, the columns every file shares, and whether the
// whitelist is covered by them.
package structure

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/cura/pkg/errors"
	"github.com/ajitpratap0/cura/pkg/frame"
	"github.com/ajitpratap0/cura/pkg/json"
	"github.com/ajitpratap0/cura/pkg/logger"
	"github.com/ajitpratap0/cura/pkg/whitelist"
)

// ReportFileName is the audit file written into the domain buffer directory
const ReportFileName = "structure_analysis.json"

// SampleLines is how many leading lines delimiter detection looks at
const SampleLines = 5

// Candidates are the delimiters detection chooses from, in tie-break order
var Candidates = []rune{',', ';', '\t', '|'}

// Report describes the structure of an input directory
type Report struct {
	FileSeparators          map[string]string   `json:"file_separators"`
	CommonColumns           []string            `json:"common_columns"`
	FileSpecialColumns      map[string][]string `json:"file_special_columns"`
	WhitelistColumns        []string            `json:"whitelist_columns"`
	MissingWhitelistColumns []string            `json:"missing_whitelist_columns"`
	IsValid                 bool                `json:"is_valid"`

	// Files lists the analyzed files in directory order
	Files []string `json:"files"`
}

// Delimiter returns the detected delimiter for file
func (r *Report) Delimiter(file string) rune {
	if s, ok := r.FileSeparators[file]; ok && s != "" {
		return []rune(s)[0]
	}
	return ','
}

// Analyzer inspects input directories
type Analyzer struct {
	logger *zap.Logger
}

// NewAnalyzer creates an analyzer
func NewAnalyzer() *Analyzer {
	return &Analyzer{logger: logger.Get().With(zap.String("component", "structure_analyzer"))}
}

// ListFiles returns the regular files of dir in directory order
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read input directory").
			WithDetail("directory", dir)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, e.Name())
		}
	}
	return files, nil
}

// Analyze inspects every file in dir against wl. Some missing whitelist
// columns yield an invalid report; none found at all is a fatal error.
func (a *Analyzer) Analyze(dir string, wl *whitelist.Whitelist) (*Report, error) {
	files, err := ListFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.Sentinel(errors.ErrEmptyInput, errors.ErrorTypeStructural, "no files to analyze").
			WithDetail("directory", dir)
	}

	report := &Report{
		FileSeparators:     make(map[string]string, len(files)),
		FileSpecialColumns: make(map[string][]string),
		WhitelistColumns:   wl.Keys(),
		Files:              files,
	}

	headers := make(map[string][]string, len(files))
	var common map[string]struct{}
	for _, name := range files {
		path := filepath.Join(dir, name)

		sep, err := DetectDelimiter(path)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeStructural, "failed to detect delimiter").
				WithDetail("file", name)
		}
		report.FileSeparators[name] = string(sep)

		header, err := readHeader(path, sep)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeStructural, "failed to read header").
				WithDetail("file", name)
		}
		headers[name] = header

		if common == nil {
			common = toSet(header)
			continue
		}
		next := toSet(header)
		for c := range common {
			if _, ok := next[c]; !ok {
				delete(common, c)
			}
		}
	}

	report.CommonColumns = make([]string, 0, len(common))
	for c := range common {
		report.CommonColumns = append(report.CommonColumns, c)
	}
	sort.Strings(report.CommonColumns)

	for _, name := range files {
		var special []string
		for _, c := range headers[name] {
			if _, ok := common[c]; !ok {
				special = append(special, c)
			}
		}
		if len(special) > 0 {
			report.FileSpecialColumns[name] = special
		}
	}

	report.MissingWhitelistColumns = wl.Missing(report.CommonColumns)
	if report.MissingWhitelistColumns == nil {
		report.MissingWhitelistColumns = []string{}
	}
	report.IsValid = len(report.MissingWhitelistColumns) == 0

	if wl.Len() > 0 && len(report.MissingWhitelistColumns) == wl.Len() {
		return report, errors.Sentinel(errors.ErrInvalidStructure, errors.ErrorTypeStructural,
			"none of the whitelist columns are common to all input files").
			WithDetail("directory", dir).
			WithDetail("missing", report.MissingWhitelistColumns)
	}

	if !report.IsValid {
		a.logger.Warn("whitelist columns missing from common columns",
			zap.Strings("missing", report.MissingWhitelistColumns))
	}
	a.logger.Info("structure analyzed",
		zap.Int("files", len(files)),
		zap.Int("common_columns", len(report.CommonColumns)),
		zap.Bool("valid", report.IsValid))
	return report, nil
}

// WriteReport persists report for audit
func WriteReport(path string, report *Report) error {
	if err := json.WriteFile(path, report); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write structure report")
	}
	return nil
}

// DetectDelimiter samples the first lines of path. A candidate scores a
// point for every sampled line on which it occurs as often as on the first
// line, and at least once. The best score wins; ties keep candidate order;
// comma is the fallback.
func DetectDelimiter(path string) (rune, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for len(lines) < SampleLines && scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return detect(lines), nil
}

func detect(lines []string) rune {
	if len(lines) == 0 {
		return ','
	}
	best, bestScore := ',', 0
	for _, sep := range Candidates {
		first := strings.Count(lines[0], string(sep))
		score := 0
		for _, line := range lines {
			n := strings.Count(line, string(sep))
			if n > 0 && n == first {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = sep, score
		}
	}
	return best
}

func readHeader(path string, sep rune) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return frame.ReadCSVHeader(f, sep)
}

func toSet(cols []string) map[string]struct{} {
	set := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		set[c] = struct{}{}
	}
	return set
}
