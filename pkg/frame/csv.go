package frame

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

const utf8BOM = "\ufeff"

// CSVOptions controls CSV decoding
type CSVOptions struct {
	Delimiter rune
	// Columns restricts decoding to these header columns, in this order.
	// Nil keeps every column.
	Columns []string
}

// ReadCSVHeader returns the header row of r split on delimiter
func ReadCSVHeader(r io.Reader, delimiter rune) ([]string, error) {
	reader := newCSVReader(r, delimiter)
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("file has no header row")
		}
		return nil, err
	}
	return cleanHeader(header), nil
}

// ReadCSV decodes a delimited file with a header row into a frame
func ReadCSV(r io.Reader, opts CSVOptions) (*Frame, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	reader := newCSVReader(r, opts.Delimiter)

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("file has no header row")
		}
		return nil, err
	}
	header = cleanHeader(header)

	columns := header
	pick := make([]int, len(header))
	for i := range pick {
		pick[i] = i
	}
	if opts.Columns != nil {
		pos := make(map[string]int, len(header))
		for i, h := range header {
			if _, dup := pos[h]; !dup {
				pos[h] = i
			}
		}
		columns = opts.Columns
		pick = make([]int, len(columns))
		for i, c := range columns {
			p, ok := pos[c]
			if !ok {
				return nil, fmt.Errorf("column %q not in header", c)
			}
			pick[i] = p
		}
	}

	data := make([][]string, len(columns))
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		for i, p := range pick {
			data[i] = append(data[i], rec[p])
		}
	}
	for i := range data {
		if data[i] == nil {
			data[i] = []string{}
		}
	}
	return New(columns, data)
}

// WriteCSV writes f with a header row
func WriteCSV(w io.Writer, f *Frame, delimiter rune) error {
	cw := csv.NewWriter(w)
	if delimiter != 0 {
		cw.Comma = delimiter
	}
	if err := cw.Write(f.columns); err != nil {
		return err
	}
	for r := 0; r < f.rows; r++ {
		if err := cw.Write(f.Row(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ParseDelimiter turns a configured delimiter string into a rune. Escaped
// tabs ("\t" written literally in a config file) are accepted.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return ',', nil
	case `\t`, "\t", "tab":
		return '\t', nil
	}
	runes := []rune(s)
	if len(runes) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	if runes[0] == '"' || runes[0] == '\n' || runes[0] == '\r' {
		return 0, fmt.Errorf("invalid delimiter %q", s)
	}
	return runes[0], nil
}

func newCSVReader(r io.Reader, delimiter rune) *csv.Reader {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	return reader
}

func cleanHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		out[i] = h
	}
	return out
}
