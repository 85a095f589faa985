package testutil

import (
	"context"
	"path/filepath"
	"time"

	"github.com/stretchr/testify/suite"
)

// Codebook is a zero_parser codebook for whitelists drawn from Q1 and Q2
const Codebook = `{
    "data": {
        "Q1": {"2": "no", "1": "yes"},
        "Q2": {"a": " Alpha  one ", "b": "beta"},
        "Q9": {"x": "unused"}
    },
    "metadata": {
        "Q1": {"label": "Consent"},
        "Q2": {"label": "Group"},
        "Q9": {"label": "Unused"}
    }
}`

// ProjectSuite lays out a data root with one project input folder for
// pipeline tests. Tests add domain files with AddDomainFile.
type ProjectSuite struct {
	suite.Suite
	ctx    context.Context
	cancel context.CancelFunc

	// Root is the data root, DomainFolder the folder under data_in
	Root         string
	DomainFolder string
}

// SetupTest creates a fresh data root holding the default codebook
func (s *ProjectSuite) SetupTest() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), time.Minute)
	s.Root = s.T().TempDir()
	s.DomainFolder = "survey"
	TestLogger(s.T())
	WriteFile(s.T(), s.CodebookDir(), "codebook.json", Codebook)
}

// TearDownTest cancels the test context
func (s *ProjectSuite) TearDownTest() {
	s.cancel()
}

// Context returns the test context
func (s *ProjectSuite) Context() context.Context {
	return s.ctx
}

// DomainDir is data_in/<folder>/domain
func (s *ProjectSuite) DomainDir() string {
	return filepath.Join(s.Root, "data_in", s.DomainFolder, "domain")
}

// CodebookDir is data_in/<folder>/codebook
func (s *ProjectSuite) CodebookDir() string {
	return filepath.Join(s.Root, "data_in", s.DomainFolder, "codebook")
}

// AddDomainFile writes a delimited domain file into the input folder
func (s *ProjectSuite) AddDomainFile(name, delimiter string, header []string, rows ...[]string) string {
	return WriteCSV(s.T(), s.DomainDir(), name, delimiter, header, rows...)
}
