package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/cura/pkg/compression"
	"github.com/ajitpratap0/cura/pkg/errors"
	"github.com/ajitpratap0/cura/pkg/ledger"
	"github.com/ajitpratap0/cura/pkg/prompt"
	"github.com/ajitpratap0/cura/pkg/router"
)

const yamlConfig = `
project_name: ${CURA_TEST_PROJECT}
domain_foldername: survey
white_list: [Q1, Q2]
append_new_metadata: true
select_parser: zero_parser
cb_inspections:
  length_map: {active: true}
  char_map-values: {active: false}
  occurrence_map: {active: true}
dd_inspections:
  char_map: {active: true}
edits:
  - apply_trim:
      all_keys: []
  - apply_padding:
      Q1: [3, "0"]
    apply_case:
      Q2-values: [upper]
csv_export_delimiter: ";"
output_formats_and_batching:
  parquet: 1000
  csv: monolith
  json: mirror_input
parsing_options:
  add_id: true
  checksum: blake3
export_compression: zstd
publish:
  target: s3://bucket/exports
`

const jsonConfig = `{
  "project_name": "p",
  "domain_foldername": "d",
  "white_list": ["Q10", "Q2"],
  "append_new_metadata": false,
  "select_parser": "spss_basic",
  "cb_inspections": {"length_map": {"active": true}},
  "dd_inspections": {"length_map": {"active": true}},
  "edits": [{"apply_padding": {"Q2": [2, "0"]}}],
  "csv_export_delimiter": "\\t",
  "output_formats_and_batching": {"csv": "500"},
  "parsing_options": {"add_id": false},
  "sub_configs": true,
  "configs": {
    "wave1": {"project_name": "p_w1", "domain_foldername": "d_w1", "white_list_append": ["Q1"]},
    "wave2": {"project_name": "p_w2", "domain_foldername": "d_w2", "white_list_append": ["Q3", "Q1a"]}
  }
}`

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("CURA_TEST_PROJECT", "survey_2024")
	cfg, err := Load(write(t, "c.yaml", yamlConfig), &prompt.Scripted{})
	require.NoError(t, err)

	assert.Equal(t, "survey_2024", cfg.ProjectName)
	assert.True(t, cfg.MergeMetadata())
	assert.Equal(t, []string{"length_map", "occurrence_map"}, ActiveInspections(cfg.CBInspections))

	edits := cfg.EditList()
	require.Len(t, edits, 3)
	assert.Equal(t, "apply_trim", edits[0].Transform)
	assert.Equal(t, "apply_padding", edits[1].Transform)
	assert.Equal(t, "apply_case", edits[2].Transform)
	params, ok := edits[1].Targets.Get("Q1")
	require.True(t, ok)
	assert.Equal(t, []interface{}{3, "0"}, params)

	entries := router.Expand(edits[0], cfg.WhiteList)
	assert.Len(t, entries, 2)

	formats, err := cfg.OutputFormatList()
	require.NoError(t, err)
	assert.Equal(t, []OutputFormat{
		{Format: "parquet", Batching: Batching{Mode: BatchRows, Rows: 1000}},
		{Format: "csv", Batching: Batching{Mode: BatchMonolith}},
		{Format: "json", Batching: Batching{Mode: BatchMirrorInput}},
	}, formats)

	sep, err := cfg.ExportDelimiter()
	require.NoError(t, err)
	assert.Equal(t, ';', sep)

	algo, err := cfg.Compression()
	require.NoError(t, err)
	assert.Equal(t, compression.Zstd, algo)

	sum, err := cfg.ChecksumAlgorithm()
	require.NoError(t, err)
	assert.Equal(t, ledger.BLAKE3, sum)
	assert.Equal(t, "s3://bucket/exports", cfg.PublishTarget())
}

func TestLoadJSONWithSubConfig(t *testing.T) {
	p := &prompt.Scripted{Choices: map[string]int{prompt.SelectSubConfig: 1}}
	cfg, err := Load(write(t, "c.json", jsonConfig), p)
	require.NoError(t, err)

	assert.Equal(t, "p_w2", cfg.ProjectName)
	assert.Equal(t, "d_w2", cfg.DomainFolderName)
	assert.Equal(t, []string{"Q1a", "Q2", "Q3", "Q10"}, cfg.WhiteList)
	assert.False(t, cfg.MergeMetadata())
	assert.Contains(t, p.Asked(), prompt.SelectSubConfig)

	edits := cfg.EditList()
	require.Len(t, edits, 1)
	params, _ := edits[0].Targets.Get("Q2")
	assert.Equal(t, []interface{}{float64(2), "0"}, params)

	sep, err := cfg.ExportDelimiter()
	require.NoError(t, err)
	assert.Equal(t, '\t', sep)

	formats, err := cfg.OutputFormatList()
	require.NoError(t, err)
	assert.Equal(t, Batching{Mode: BatchRows, Rows: 500}, formats[0].Batching)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{name: "missing project", mutate: func(c *Config) { c.ProjectName = "" }, want: "project_name"},
		{name: "missing metadata flag", mutate: func(c *Config) { c.AppendNewMetadata = nil }, want: "append_new_metadata"},
		{name: "no edits", mutate: func(c *Config) { c.Edits = nil }, want: "edits"},
		{name: "no outputs", mutate: func(c *Config) { c.OutputFormats = nil }, want: "output_formats_and_batching"},
		{name: "unknown parser", mutate: func(c *Config) { c.SelectParser = "pdf" }, want: "pdf"},
		{name: "duplicate key", mutate: func(c *Config) { c.WhiteList = []string{"Q1", "Q1"} }, want: "white_list"},
		{name: "bad delimiter", mutate: func(c *Config) { c.CSVExportDelimiter = "ab" }, want: "csv_export_delimiter"},
		{name: "bad batching", mutate: func(c *Config) { c.OutputFormats.Set("avro", -1) }, want: "batching"},
		{name: "bad compression", mutate: func(c *Config) { c.ExportCompression = "rar" }, want: "export_compression"},
		{name: "bad checksum", mutate: func(c *Config) { c.ParsingOptions.Checksum = "md5" }, want: "checksum"},
		{name: "bad publish", mutate: func(c *Config) { c.Publish.Target = "ftp://x" }, want: "publish"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CURA_TEST_PROJECT", "p")
			cfg := &Config{}
			require.NoError(t, Decode(write(t, "c.yml", yamlConfig), cfg))
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseBatching(t *testing.T) {
	tests := []struct {
		in      interface{}
		want    Batching
		wantErr bool
	}{
		{in: "monolith", want: Batching{Mode: BatchMonolith}},
		{in: "mirror_input", want: Batching{Mode: BatchMirrorInput}},
		{in: "250", want: Batching{Mode: BatchRows, Rows: 250}},
		{in: 10, want: Batching{Mode: BatchRows, Rows: 10}},
		{in: float64(20), want: Batching{Mode: BatchRows, Rows: 20}},
		{in: 0, wantErr: true},
		{in: 1.5, wantErr: true},
		{in: "daily", wantErr: true},
		{in: true, wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseBatching(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "%v", tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestUnsupportedExtension(t *testing.T) {
	err := Decode(write(t, "c.toml", "x = 1"), &Config{})
	assert.Error(t, err)
}

func TestSettings(t *testing.T) {
	t.Setenv("CURA_LOG_LEVEL", "debug")
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("root", ".", "")
	flags.Bool("yes", false, "")
	require.NoError(t, flags.Parse([]string{"--root", "/data", "--yes"}))

	s, err := LoadSettings(viper.New(), flags)
	require.NoError(t, err)
	assert.Equal(t, "/data", s.Root)
	assert.True(t, s.AssumeYes)
	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, "config_files", s.ConfigDir)

	assert.Equal(t, filepath.Join("/data", "config_files", "c.json"), s.ConfigPath("c.json"))
	assert.Equal(t, "./c.json", s.ConfigPath("./c.json"))
}
