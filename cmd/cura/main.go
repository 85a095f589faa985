package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/cura/pkg/config"
	"github.com/ajitpratap0/cura/pkg/logger"
	"github.com/ajitpratap0/cura/pkg/observability"
	"github.com/ajitpratap0/cura/pkg/prompt"
	"github.com/ajitpratap0/cura/pkg/router"
)

var version = "0.1.0"

// app carries what every command needs once the root flags are resolved
type app struct {
	v        *viper.Viper
	settings *config.Settings
	shutdown func(context.Context) error
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:   "cura",
		Short: "cura - codebook-driven cleaning of tabular survey data",
		Long: `cura ingests heterogeneous domain data files, checks them against a
codebook, applies the edits of a project configuration to both, inspects
the results and exports them.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.init,
		PersistentPostRun: a.close,
	}

	flags := root.PersistentFlags()
	flags.String("root", ".", "Directory holding data_in, data_buffer, data_out and config_files")
	flags.String("config-dir", "config_files", "Directory where bare configuration names are resolved")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-encoding", "console", "Log encoding (console, json)")
	flags.String("log-file", logger.DefaultLogFile, "Run log file, relative to --root")
	flags.Bool("metrics", true, "Write data_out/<project>/metrics.prom after a run")
	flags.Bool("tracing", false, "Print OpenTelemetry spans of every phase to stderr")
	flags.BoolP("yes", "y", false, "Answer yes to every confirmation")

	root.AddCommand(
		versionCmd(),
		listCmd(),
		configCmd(a),
		parseCmd(a, "parsecb", "Parse the codebook into the data buffer", router.ModeCodebook),
		parseCmd(a, "parsedd", "Ingest new domain data files into the store", router.ModeDomain),
		inspectCmd(a, "cbinspection", "Run the codebook inspections", router.ModeCodebook),
		inspectCmd(a, "ddinspection", "Run the domain data inspections", router.ModeDomain),
		runCmd(a),
		resetCmd(a),
		resetLogCmd(a),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) init(cmd *cobra.Command, _ []string) error {
	s, err := config.LoadSettings(a.v, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	a.settings = s

	if err := logger.Init(logger.Config{
		Level:    s.LogLevel,
		Encoding: s.LogEncoding,
		LogFile:  a.logFile(),
	}); err != nil {
		return err
	}

	shutdown, err := observability.InitTracing(observability.TracingConfig{
		Enabled:        s.Tracing,
		ServiceName:    "cura",
		ServiceVersion: version,
	})
	if err != nil {
		return err
	}
	a.shutdown = shutdown
	return nil
}

func (a *app) close(*cobra.Command, []string) {
	if a.shutdown != nil {
		if err := a.shutdown(context.Background()); err != nil {
			logger.Get().Warn("failed to flush traces", zap.Error(err))
		}
	}
	_ = logger.Sync()
}

func (a *app) logFile() string {
	if a.settings.LogFile == "" || filepath.IsAbs(a.settings.LogFile) {
		return a.settings.LogFile
	}
	return filepath.Join(a.settings.Root, a.settings.LogFile)
}

func (a *app) prompter() prompt.Prompter {
	if a.settings.AssumeYes {
		return &prompt.Scripted{AssumeYes: true}
	}
	return prompt.NewTerminal(os.Stdin, os.Stdout)
}

func (a *app) loadConfig(name string) (*config.Config, error) {
	return config.Load(a.settings.ConfigPath(name), a.prompter())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("cura v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
