package config

import (
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables read into Settings
const EnvPrefix = "CURA"

// Settings are the per-machine runtime options
type Settings struct {
	// Root holds data_in, data_buffer, data_out and config_files
	Root string `mapstructure:"root"`
	// ConfigDir is where bare config names are resolved
	ConfigDir   string `mapstructure:"config-dir"`
	LogLevel    string `mapstructure:"log-level"`
	LogEncoding string `mapstructure:"log-encoding"`
	LogFile     string `mapstructure:"log-file"`
	Metrics     bool   `mapstructure:"metrics"`
	Tracing     bool   `mapstructure:"tracing"`
	// AssumeYes answers every yes/no question with yes
	AssumeYes bool `mapstructure:"yes"`
}

// SetDefaults registers the defaults of every setting
func SetDefaults(v *viper.Viper) {
	v.SetDefault("root", ".")
	v.SetDefault("config-dir", "config_files")
	v.SetDefault("log-level", "info")
	v.SetDefault("log-encoding", "console")
	v.SetDefault("log-file", "cura_logs.txt")
	v.SetDefault("metrics", true)
	v.SetDefault("tracing", false)
	v.SetDefault("yes", false)
}

// LoadSettings resolves settings from flags, CURA_* environment variables
// and defaults, in that order of precedence
func LoadSettings(v *viper.Viper, flags *pflag.FlagSet) (*Settings, error) {
	SetDefaults(v)
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, err
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, err
	}
	return s, nil
}

// ConfigPath resolves a config argument: paths are used as given, bare
// names are looked up in ConfigDir under Root
func (s *Settings) ConfigPath(name string) string {
	if strings.ContainsRune(name, filepath.Separator) || filepath.IsAbs(name) {
		return name
	}
	dir := s.ConfigDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(s.Root, dir)
	}
	return filepath.Join(dir, name)
}
