package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ajitpratap0/cura/pkg/codebook"
	"github.com/ajitpratap0/cura/pkg/compression"
	"github.com/ajitpratap0/cura/pkg/errors"
	"github.com/ajitpratap0/cura/pkg/frame"
	"github.com/ajitpratap0/cura/pkg/ledger"
	"github.com/ajitpratap0/cura/pkg/ordered"
	"github.com/ajitpratap0/cura/pkg/prompt"
	"github.com/ajitpratap0/cura/pkg/router"
	"github.com/ajitpratap0/cura/pkg/whitelist"
)

// Config is one project configuration
type Config struct {
	ProjectName       string   `yaml:"project_name" json:"project_name"`
	DomainFolderName  string   `yaml:"domain_foldername" json:"domain_foldername"`
	WhiteList         []string `yaml:"white_list" json:"white_list"`
	AppendNewMetadata *bool    `yaml:"append_new_metadata" json:"append_new_metadata"`
	SelectParser      string   `yaml:"select_parser" json:"select_parser"`

	CBInspections *ordered.Map[InspectionFlag] `yaml:"cb_inspections" json:"cb_inspections"`
	DDInspections *ordered.Map[InspectionFlag] `yaml:"dd_inspections" json:"dd_inspections"`

	// Edits run in list order. Each item maps a transform to its targets,
	// each target to its parameters.
	Edits []*ordered.Map[*ordered.Map[[]interface{}]] `yaml:"edits" json:"edits"`

	CSVExportDelimiter string `yaml:"csv_export_delimiter" json:"csv_export_delimiter"`
	// OutputFormats maps an export format to monolith, mirror_input or a
	// positive row count
	OutputFormats  *ordered.Map[interface{}] `yaml:"output_formats_and_batching" json:"output_formats_and_batching"`
	ParsingOptions ParsingOptions            `yaml:"parsing_options" json:"parsing_options"`

	ExportCompression string         `yaml:"export_compression,omitempty" json:"export_compression,omitempty"`
	KeyExportBan      []string       `yaml:"key_export_ban,omitempty" json:"key_export_ban,omitempty"`
	Publish           *PublishConfig `yaml:"publish,omitempty" json:"publish,omitempty"`

	SubConfigs bool                    `yaml:"sub_configs,omitempty" json:"sub_configs,omitempty"`
	Configs    *ordered.Map[SubConfig] `yaml:"configs,omitempty" json:"configs,omitempty"`
}

// InspectionFlag switches one inspection on or off
type InspectionFlag struct {
	Active bool `yaml:"active" json:"active"`
}

// ParsingOptions controls domain ingestion
type ParsingOptions struct {
	AddID bool `yaml:"add_id" json:"add_id"`
	// Checksum is sha256 (default) or blake3
	Checksum string `yaml:"checksum,omitempty" json:"checksum,omitempty"`
}

// PublishConfig names where exports are uploaded after a run
type PublishConfig struct {
	// Target is an s3://bucket/prefix or gs://bucket/prefix URL
	Target string `yaml:"target" json:"target"`
	// Region overrides the AWS region of s3 targets
	Region string `yaml:"region,omitempty" json:"region,omitempty"`
	// CredentialsFile is a service account key for gs targets; application
	// default credentials are used when empty
	CredentialsFile string `yaml:"credentials_file,omitempty" json:"credentials_file,omitempty"`
}

// SubConfig is one named variant of a configuration
type SubConfig struct {
	ProjectName      string   `yaml:"project_name" json:"project_name"`
	DomainFolderName string   `yaml:"domain_foldername" json:"domain_foldername"`
	WhiteListAppend  []string `yaml:"white_list_append" json:"white_list_append"`
}

// BatchMode selects how domain exports are split into files
type BatchMode string

const (
	BatchMonolith    BatchMode = "monolith"
	BatchMirrorInput BatchMode = "mirror_input"
	BatchRows        BatchMode = "rows"
)

// Batching is a parsed output_formats_and_batching value
type Batching struct {
	Mode BatchMode
	// Rows is the batch size in BatchRows mode
	Rows int
}

func (b Batching) String() string {
	if b.Mode == BatchRows {
		return strconv.Itoa(b.Rows)
	}
	return string(b.Mode)
}

// OutputFormat is one export format with its batching
type OutputFormat struct {
	Format   string
	Batching Batching
}

// ParseBatching reads monolith, mirror_input, or a positive row count given
// as a number or a numeric string
func ParseBatching(v interface{}) (Batching, error) {
	switch b := v.(type) {
	case string:
		switch BatchMode(b) {
		case BatchMonolith, BatchMirrorInput:
			return Batching{Mode: BatchMode(b)}, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(b))
		if err != nil {
			return Batching{}, fmt.Errorf("batching must be monolith, mirror_input or a row count, got %q", b)
		}
		return rowBatching(n)
	case int:
		return rowBatching(b)
	case int64:
		return rowBatching(int(b))
	case uint64:
		return rowBatching(int(b))
	case float64:
		if b != float64(int(b)) {
			return Batching{}, fmt.Errorf("batch row count must be a whole number, got %v", b)
		}
		return rowBatching(int(b))
	default:
		return Batching{}, fmt.Errorf("batching must be monolith, mirror_input or a row count, got %T", v)
	}
}

func rowBatching(n int) (Batching, error) {
	if n <= 0 {
		return Batching{}, fmt.Errorf("batch row count must be positive, got %d", n)
	}
	return Batching{Mode: BatchRows, Rows: n}, nil
}

// Load reads, resolves and validates a project configuration. When the
// document has sub-configurations the prompter selects one.
func Load(path string, p prompt.Prompter) (*Config, error) {
	cfg := &Config{}
	if err := Decode(path, cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load configuration").
			WithDetail("path", path)
	}
	if cfg.SubConfigs {
		if err := cfg.selectSubConfig(p); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid configuration").
			WithDetail("path", path)
	}
	return cfg, nil
}

func (c *Config) selectSubConfig(p prompt.Prompter) error {
	if c.Configs.Len() == 0 {
		return errors.New(errors.ErrorTypeConfig, "sub_configs is set but configs is empty")
	}
	names := c.Configs.Keys()
	i, err := p.Choose(prompt.Question{
		ID:   prompt.SelectSubConfig,
		Text: "The configuration has sub-configs. Select one:",
	}, names)
	if err != nil {
		return err
	}
	if i < 0 || i >= len(names) {
		return errors.Newf(errors.ErrorTypeConfig, "sub-config choice %d out of range", i)
	}
	return c.ApplySubConfig(names[i])
}

// ApplySubConfig merges the named variant into c
func (c *Config) ApplySubConfig(name string) error {
	sub, ok := c.Configs.Get(name)
	if !ok {
		return errors.Newf(errors.ErrorTypeConfig, "sub-config %q not found", name)
	}
	c.ProjectName = sub.ProjectName
	c.DomainFolderName = sub.DomainFolderName
	c.WhiteList = whitelist.NaturalSort(append(append([]string(nil), c.WhiteList...), sub.WhiteListAppend...))
	return nil
}

// Validate checks that every required key is present and not empty
func (c *Config) Validate() error {
	var problems []string
	required := func(ok bool, key, msg string) {
		if !ok {
			problems = append(problems, key+" "+msg)
		}
	}

	required(c.ProjectName != "", "project_name", "must not be empty")
	required(c.DomainFolderName != "", "domain_foldername", "must not be empty")
	required(len(c.WhiteList) > 0, "white_list", "must not be empty")
	required(c.AppendNewMetadata != nil, "append_new_metadata", "is required")
	required(c.SelectParser != "", "select_parser", "must not be empty")
	required(c.CBInspections.Len() > 0, "cb_inspections", "must not be empty")
	required(c.DDInspections.Len() > 0, "dd_inspections", "must not be empty")
	required(len(c.Edits) > 0, "edits", "must not be empty")
	required(c.CSVExportDelimiter != "", "csv_export_delimiter", "must not be empty")
	required(c.OutputFormats.Len() > 0, "output_formats_and_batching", "must not be empty")

	if len(problems) > 0 {
		return errors.New(errors.ErrorTypeConfig, "missing required configuration: "+strings.Join(problems, "; ")).
			WithDetail("problems", problems)
	}

	if _, err := whitelist.New(c.WhiteList); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid white_list")
	}
	if _, err := codebook.GetParser(c.SelectParser); err != nil {
		return err
	}
	if _, err := frame.ParseDelimiter(c.CSVExportDelimiter); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid csv_export_delimiter")
	}
	if _, err := c.OutputFormatList(); err != nil {
		return err
	}
	if _, err := compression.ParseAlgorithm(c.ExportCompression); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid export_compression")
	}
	if _, err := c.ChecksumAlgorithm(); err != nil {
		return err
	}
	for i, item := range c.Edits {
		if item.Len() == 0 {
			return errors.Newf(errors.ErrorTypeConfig, "edits[%d] is empty", i)
		}
	}
	if c.Publish != nil && c.Publish.Target != "" &&
		!strings.HasPrefix(c.Publish.Target, "s3://") && !strings.HasPrefix(c.Publish.Target, "gs://") {
		return errors.Newf(errors.ErrorTypeConfig, "publish target must start with s3:// or gs://, got %q", c.Publish.Target)
	}
	return nil
}

// Whitelist builds the whitelist of the configuration
func (c *Config) Whitelist() (*whitelist.Whitelist, error) {
	return whitelist.New(c.WhiteList)
}

// MergeMetadata reports whether inspection results go into codebook metadata
func (c *Config) MergeMetadata() bool {
	return c.AppendNewMetadata != nil && *c.AppendNewMetadata
}

// ActiveInspections returns the names of active inspections in order
func ActiveInspections(m *ordered.Map[InspectionFlag]) []string {
	var names []string
	m.Range(func(name string, f InspectionFlag) bool {
		if f.Active {
			names = append(names, name)
		}
		return true
	})
	return names
}

// EditList flattens the edits section into router edits, in order
func (c *Config) EditList() []router.Edit {
	var edits []router.Edit
	for _, item := range c.Edits {
		item.Range(func(name string, targets *ordered.Map[[]interface{}]) bool {
			if targets == nil {
				targets = ordered.New[[]interface{}]()
			}
			edits = append(edits, router.Edit{Transform: name, Targets: targets})
			return true
		})
	}
	return edits
}

// OutputFormatList parses output_formats_and_batching in order
func (c *Config) OutputFormatList() ([]OutputFormat, error) {
	var out []OutputFormat
	var err error
	c.OutputFormats.Range(func(format string, v interface{}) bool {
		var b Batching
		b, err = ParseBatching(v)
		if err != nil {
			err = errors.Wrap(err, errors.ErrorTypeConfig, "invalid batching").WithDetail("format", format)
			return false
		}
		out = append(out, OutputFormat{Format: strings.ToLower(format), Batching: b})
		return true
	})
	return out, err
}

// ExportDelimiter returns csv_export_delimiter as a rune
func (c *Config) ExportDelimiter() (rune, error) {
	return frame.ParseDelimiter(c.CSVExportDelimiter)
}

// Compression returns the export compression algorithm
func (c *Config) Compression() (compression.Algorithm, error) {
	return compression.ParseAlgorithm(c.ExportCompression)
}

// ChecksumAlgorithm returns the ingestion checksum algorithm
func (c *Config) ChecksumAlgorithm() (ledger.Algorithm, error) {
	switch strings.ToLower(c.ParsingOptions.Checksum) {
	case "", string(ledger.SHA256):
		return ledger.SHA256, nil
	case string(ledger.BLAKE3):
		return ledger.BLAKE3, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unknown checksum %q, expected sha256 or blake3", c.ParsingOptions.Checksum)
	}
}

// PublishTarget returns the configured upload target, or ""
func (c *Config) PublishTarget() string {
	if c.Publish == nil {
		return ""
	}
	return c.Publish.Target
}
