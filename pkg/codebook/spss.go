package codebook

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/ajitpratap0/cura/pkg/errors"
	"github.com/ajitpratap0/cura/pkg/ordered"
)

// An SPSS codebook report lists one section per variable. A section starts
// with the variable name alone on a line between two table borders, followed
// by a metadata table and a value label table:
//
//	|
//
//	Q1
//	|-----------------|--------------|---------|
//	|                 |              | Wert    |
//	| Standardattribute | Position   | 1       |
//	|                 | Beschriftung | Frage 1 |
//	| Beschriftete Werte | 1         | ja      |
//	|                 | 2            | nein    |
var sectionStart = regexp.MustCompile(`(?m)\|\n\n^[A-Za-z0-9_ÜÄÖ+ß]+$\n\|`)

// minSectionLength rejects fragments that cannot hold both tables
const minSectionLength = 100

var spssHeaders = []string{"Codebuch\nHinweise", "Codebook\nNotes"}

// ParseSPSSFile parses an SPSS codebook text report
func ParseSPSSFile(path string) (*Codebook, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read SPSS codebook").
			WithDetail("path", path)
	}
	cb, err := ParseSPSS(string(raw))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to parse SPSS codebook").
			WithDetail("path", path)
	}
	return cb, nil
}

// ParseSPSS parses the text of an SPSS codebook report
func ParseSPSS(text string) (*Codebook, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("codebook is empty")
	}
	if !hasSPSSHeader(text) {
		return nil, fmt.Errorf("file is not an SPSS codebook (missing header)")
	}

	cb := New()
	sections, err := splitSections(text)
	if err != nil {
		return nil, err
	}
	for _, s := range sections {
		values, meta, err := parseSection(s.body)
		if err != nil {
			return nil, fmt.Errorf("section %s: %w", s.key, err)
		}
		cb.Data.Set(s.key, values)
		cb.Metadata.Set(s.key, meta)
	}
	return cb, nil
}

func hasSPSSHeader(text string) bool {
	for _, h := range spssHeaders {
		if strings.Contains(text, h) {
			return true
		}
	}
	return false
}

type section struct {
	key  string
	body string
}

func splitSections(text string) ([]section, error) {
	matches := sectionStart.FindAllStringIndex(text, -1)
	sections := make([]section, 0, len(matches))
	for i, m := range matches {
		key := strings.TrimSpace(strings.ReplaceAll(text[m[0]:m[1]], "|", ""))
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		body := strings.TrimSpace(text[m[0]:end])
		if len(body) < minSectionLength {
			return nil, fmt.Errorf("section %s is too short (length %d), minimum is %d", key, len(body), minSectionLength)
		}
		sections = append(sections, section{key: key, body: body})
	}
	return sections, nil
}

// parseLine extracts the populated cells of a table row. Border rows,
// empty rows and non-table lines yield nil.
func parseLine(line string) ([]string, error) {
	if strings.Count(line, "-") > 10 && strings.Contains(line, "|") {
		return nil, nil
	}
	if !strings.HasPrefix(line, "|") || !strings.Contains(line[1:], "|") {
		return nil, nil
	}

	parts := strings.Split(line, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) != 4 && len(parts) != 5 {
		return nil, fmt.Errorf("table row must have 3 or 4 cells: %q", line)
	}

	filled := 0
	for _, p := range parts {
		if p != "" {
			filled++
		}
	}
	switch filled {
	case 0, 1:
		return nil, nil
	case 2:
		if len(parts) == 5 && parts[2] == "" {
			return []string{parts[1], parts[2], parts[3]}, nil
		}
		return []string{parts[2], parts[3]}, nil
	case 3:
		return []string{parts[1], parts[2], parts[3]}, nil
	default:
		return nil, fmt.Errorf("table row has too many cells: %q", line)
	}
}

// parseSection walks the rows of one variable. The first three-cell row
// opens the metadata table, the second opens the value table; two-cell rows
// continue whichever table is open.
func parseSection(body string) (*Values, Metadata, error) {
	var rows [][]string
	for _, line := range strings.Split(body, "\n") {
		row, err := parseLine(strings.TrimSpace(line))
		if err != nil {
			return nil, nil, err
		}
		if row != nil {
			rows = append(rows, row)
		}
	}
	if len(rows) < 3 {
		return nil, nil, fmt.Errorf("section too short for valid processing")
	}

	values := ordered.New[string]()
	meta := Metadata{}
	stage := 0
	for _, row := range rows {
		switch {
		case stage == 0 && len(row) == 3:
			stage++
			meta["meta_tag"] = row[0]
			meta[row[1]] = row[2]
		case stage == 1 && len(row) == 3:
			stage++
			meta["value_tag"] = row[0]
			values.Set(row[1], row[2])
		case stage == 2 && len(row) == 3:
			// A third tagged table, kept as a list under its tag
			list, _ := meta[row[0]].([]interface{})
			meta[row[0]] = append(list, map[string]interface{}{row[1]: row[2]})
		case stage == 1 && len(row) == 2:
			meta[row[0]] = row[1]
		case stage == 2 && len(row) == 2:
			values.Set(row[0], row[1])
		default:
			return nil, nil, fmt.Errorf("unexpected row %v before the metadata table", row)
		}
	}
	return values, meta, nil
}
