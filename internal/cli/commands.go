package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/danmuck/bio2bel/internal/config"
	"github.com/danmuck/bio2bel/internal/manager"
	"github.com/danmuck/bio2bel/internal/observability"
	"github.com/danmuck/bio2bel/internal/plugins"
	gotoml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

func populateCommand(app *App) *cobra.Command {
	var (
		opts        manager.PopulateOptions
		metricsFile string
	)
	cmd := &cobra.Command{
		Use:   "populate",
		Short: "Populate every plugin that supports it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requirePlugins(app); err != nil {
				return err
			}
			results := app.Dispatcher.PopulateAll(cmd.Context(), opts)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			failed := 0
			for _, r := range results {
				status := string(r.Outcome)
				if r.Skipped {
					status += " (already populated)"
				}
				detail := ""
				if r.Err != nil {
					failed++
					detail = r.Err.Error()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, status, r.Duration.Round(time.Millisecond), detail)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if metricsFile != "" {
				if err := observability.WriteTextfile(metricsFile); err != nil {
					app.Env.Logger.Error().Err(err).Str("path", metricsFile).Msg("cli.populate metrics dump failed")
				}
			}
			if failed > 0 {
				return exitf(plugins.ExitFailure, "%d of %d plugins failed to populate", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.Reset, "reset", false, "drop and recreate each database first")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "repopulate databases that are already populated")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus textfile metrics to this path")
	return cmd
}

func summarizeCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "summarize",
		Short: "Summarize every plugin that supports it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requirePlugins(app); err != nil {
				return err
			}
			failed := 0
			for _, r := range app.Dispatcher.SummarizeAll(cmd.Context()) {
				fmt.Fprintf(cmd.OutOrStdout(), "== %s ==\n", r.Name)
				if r.Err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "error: %v\n", r.Err)
					continue
				}
				manager.WriteSummary(cmd.OutOrStdout(), r.Summary)
			}
			if failed > 0 {
				return exitf(plugins.ExitFailure, "%d plugins failed to summarize", failed)
			}
			return nil
		},
	}
}

func exportCommand(app *App) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write BEL Script for every plugin that supports it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requirePlugins(app); err != nil {
				return err
			}
			failed := 0
			for _, r := range app.Dispatcher.ExportAll(cmd.Context(), dir) {
				if r.Err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tfailed\t%v\n", r.Name, r.Err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", r.Name, r.Path)
			}
			if failed > 0 {
				return exitf(plugins.ExitFailure, "%d plugins failed to export", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "directory", "d", ".", "output directory")
	return cmd
}

func lsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List registered plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requirePlugins(app); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, d := range app.Dispatcher.Registry().Entries() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, d.Capabilities, d.Description)
			}
			return w.Flush()
		},
	}
}

func configCommand(app *App) *cobra.Command {
	group := &cobra.Command{
		Use:   "config",
		Short: "Inspect or initialize configuration",
	}

	group.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := app.Env.Config
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# directory: %s\n# file: %s\n", cfg.Directory, cfg.Path)
			for _, name := range app.Dispatcher.Registry().Names() {
				conn, source := cfg.ResolveConnection(name, "")
				fmt.Fprintf(out, "# %s connection: %s (%s)\n", name, conn, source)
			}
			data, err := gotoml.Marshal(cfg.Effective())
			if err != nil {
				return err
			}
			_, err = out.Write(data)
			return err
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented config.toml into the bio2bel directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.WriteTemplate(app.Env.Config.Directory, force)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	group.AddCommand(initCmd)
	return group
}

func versionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), app.Version)
			return nil
		},
	}
}
