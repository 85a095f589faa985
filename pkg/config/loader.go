package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/cura/pkg/json"
)

// Decode reads a YAML or JSON document into v, chosen by file extension,
// after substituting ${VAR} environment references.
func Decode(filePath string, v interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path comes from the command line
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	content := []byte(substituteEnvVars(string(data)))

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".json":
		if err := json.Unmarshal(content, v); err != nil {
			return fmt.Errorf("failed to parse JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, v); err != nil {
			return fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file type %q, expected .json, .yaml or .yml", filepath.Ext(filePath))
	}
	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
