package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/ajitpratap0/cura/internal/pipeline"
	"github.com/ajitpratap0/cura/pkg/codebook"
	"github.com/ajitpratap0/cura/pkg/compression"
	"github.com/ajitpratap0/cura/pkg/export"
	"github.com/ajitpratap0/cura/pkg/logger"
	"github.com/ajitpratap0/cura/pkg/project"
	"github.com/ajitpratap0/cura/pkg/prompt"
	"github.com/ajitpratap0/cura/pkg/router"
	"github.com/ajitpratap0/cura/pkg/transform"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available edits, inspections, parsers, formats and compressions",
		Run: func(cmd *cobra.Command, args []string) {
			reg := transform.GetRegistry()
			section := func(title string, names []string) {
				fmt.Println(title + ":")
				for _, n := range names {
					fmt.Printf("  - %s\n", n)
				}
			}
			section("Edits", reg.ListEdits())
			section("Inspections", reg.ListInspections())
			section("Codebook parsers", codebook.ParserNames())

			var formats []string
			for _, f := range export.Formats() {
				formats = append(formats, string(f))
			}
			section("Export formats", formats)

			var algos []string
			for _, a := range compression.Algorithms() {
				algos = append(algos, string(a))
			}
			sort.Strings(algos)
			section("Export compressions", algos)
		},
	}
}

func configCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect project configurations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <config>",
		Short: "Print the resolved configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(args[0])
			if err != nil {
				return err
			}
			cs := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}
			cs.Fdump(cmd.OutOrStdout(), a.settings)
			cs.Fdump(cmd.OutOrStdout(), cfg)
			return nil
		},
	})
	return cmd
}

func (a *app) pipeline(name string, mode router.Mode, interrupts *pipeline.Interrupts) (*pipeline.Pipeline, error) {
	cfg, err := a.loadConfig(name)
	if err != nil {
		return nil, err
	}
	return pipeline.New(pipeline.Options{
		Config:     cfg,
		Root:       a.settings.Root,
		Mode:       mode,
		Prompter:   a.prompter(),
		Interrupts: interrupts,
		Metrics:    a.settings.Metrics,
	})
}

func parseCmd(a *app, use, short string, mode router.Mode) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <config>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline(args[0], mode, nil)
			if err != nil {
				return err
			}
			defer p.Close()
			return p.Parse(cmd.Context())
		},
	}
}

func inspectCmd(a *app, use, short string, mode router.Mode) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <config>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline(args[0], mode, nil)
			if err != nil {
				return err
			}
			defer p.Close()
			accs, err := p.Inspect(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d inspections to %s\n", len(accs), p.Project().InspectionDir)
			return nil
		},
	}
}

func runCmd(a *app) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "run <config>",
		Short: "Run the full pipeline",
		Long: `Run preprocessing, inspections, edits and exports of a project.

Example:
  cura run survey.yaml --target both`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := router.ParseMode(target)
			if err != nil {
				return err
			}
			interrupts := pipeline.WatchInterrupts()
			defer interrupts.Stop()

			p, err := a.pipeline(args[0], mode, interrupts)
			if err != nil {
				return err
			}
			defer p.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			res, err := p.Run(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s of %s completed in %s\n", res.RunID, res.Project, res.Duration)
			if res.Export != nil {
				for f, files := range res.Export.Files {
					fmt.Fprintf(out, "  %s: %d files\n", f, len(files))
				}
			}
			if len(res.Published) > 0 {
				fmt.Fprintf(out, "  published %d files\n", len(res.Published))
			}
			return res.Err()
		},
	}
	cmd.Flags().StringVarP(&target, "target", "t", string(router.ModeBoth), "Entities to process: cb, dd or both")
	return cmd
}

func resetCmd(a *app) *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "reset <config>",
		Short: "Delete the buffered and/or exported state of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := pipeline.ParseResetScope(scope)
			if err != nil {
				return err
			}
			cfg, err := a.loadConfig(args[0])
			if err != nil {
				return err
			}
			ok, err := a.prompter().Confirm(prompt.Question{
				ID:   prompt.ConfirmReset,
				Text: fmt.Sprintf("Delete %s of project %s?", s, cfg.ProjectName),
			})
			if err != nil {
				return err
			}
			if !ok {
				logger.Get().Info("reset cancelled")
				return nil
			}
			return pipeline.Reset(project.New(a.settings.Root, cfg.ProjectName, cfg.DomainFolderName), s)
		},
	}
	cmd.Flags().StringVar(&scope, "scope", string(pipeline.ResetBoth), "What to delete: data_buffer, data_out or both")
	return cmd
}

func resetLogCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resetlog",
		Short: "Delete the run log file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.logFile()
			_ = logger.Sync()
			if err := project.ResetLog(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", path)
			return nil
		},
	}
}
