package codebook

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ajitpratap0/cura/pkg/errors"
)

// Parser turns a codebook source file into a Codebook
type Parser interface {
	Parse(path string) (*Codebook, error)
}

// ParserFunc adapts a function to Parser
type ParserFunc func(path string) (*Codebook, error)

// Parse implements Parser
func (f ParserFunc) Parse(path string) (*Codebook, error) { return f(path) }

var (
	parsersMu sync.RWMutex
	parsers   = map[string]Parser{}
)

// ZeroParser loads a codebook that is already in cura's JSON layout
const ZeroParser = "zero_parser"

// SPSSBasic parses SPSS codebook text reports
const SPSSBasic = "spss_basic"

func init() {
	MustRegisterParser(ZeroParser, ParserFunc(parseZero))
	MustRegisterParser(SPSSBasic, ParserFunc(ParseSPSSFile))
}

// RegisterParser makes a parser selectable by name
func RegisterParser(name string, p Parser) error {
	parsersMu.Lock()
	defer parsersMu.Unlock()
	if _, exists := parsers[name]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("codebook parser %s already registered", name))
	}
	parsers[name] = p
	return nil
}

// MustRegisterParser registers p and panics on duplicates
func MustRegisterParser(name string, p Parser) {
	if err := RegisterParser(name, p); err != nil {
		panic(err)
	}
}

// GetParser looks up a parser by name
func GetParser(name string) (Parser, error) {
	parsersMu.RLock()
	defer parsersMu.RUnlock()
	p, ok := parsers[name]
	if !ok {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("codebook parser %s not found", name)).
			WithDetail("available", parserNames())
	}
	return p, nil
}

// ParserNames lists the registered parsers
func ParserNames() []string {
	parsersMu.RLock()
	defer parsersMu.RUnlock()
	return parserNames()
}

func parserNames() []string {
	names := make([]string, 0, len(parsers))
	for n := range parsers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func parseZero(path string) (*Codebook, error) {
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		return nil, errors.New(errors.ErrorTypeConfig, "zero_parser needs a .json codebook").
			WithDetail("path", path)
	}
	return Load(path)
}
