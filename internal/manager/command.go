package manager

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// Opener constructs a Manager bound to connection.
type Opener func(ctx context.Context, connection string) (Manager, error)

// CommandSpec describes one plugin command group.
type CommandSpec struct {
	Module       string
	Short        string
	Capabilities Capabilities
	// Connection is the default for --connection, usually the resolved one.
	Connection string
	// DataDir backs the cache subcommands.
	DataDir string
	Open    Opener
}

// cacheKeep lists files that cache clear never removes.
var cacheKeep = map[string]struct{}{
	"config.toml": {},
	"cache.db":    {},
}

// NewCommand builds the command group for one plugin. Subcommands are added
// per capability; actions needs an Opener.
func NewCommand(spec CommandSpec) *cobra.Command {
	short := spec.Short
	if short == "" {
		short = fmt.Sprintf("%s command line interface", spec.Module)
	}
	root := &cobra.Command{
		Use:           spec.Module,
		Short:         short,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("connection", "c", spec.Connection, "database connection string")

	caps := spec.Capabilities
	if caps.Has(CapPopulate) {
		root.AddCommand(populateCommand(spec))
	}
	if caps.Has(CapDrop) {
		root.AddCommand(dropCommand(spec))
	}
	if caps.Has(CapSummarize) {
		root.AddCommand(summarizeCommand(spec))
	}
	if caps.Has(CapCache) {
		root.AddCommand(cacheCommand(spec))
	}
	if caps.Has(CapBEL) {
		root.AddCommand(toBELCommand(spec))
	}
	if caps.Has(CapNamespace) {
		root.AddCommand(namespaceCommand(spec))
	}
	if spec.Open != nil {
		root.AddCommand(actionsCommand(spec))
	}
	return root
}

// withManager opens a manager from the --connection flag and closes it after fn.
func withManager(cmd *cobra.Command, spec CommandSpec, fn func(Manager) error) error {
	if spec.Open == nil {
		return fmt.Errorf("%s: no manager constructor", spec.Module)
	}
	connection, err := cmd.Flags().GetString("connection")
	if err != nil {
		return err
	}
	m, err := spec.Open(cmd.Context(), connection)
	if err != nil {
		return fmt.Errorf("%s: open manager: %w", spec.Module, err)
	}
	defer m.Close()
	return fn(m)
}

func populateCommand(spec CommandSpec) *cobra.Command {
	var opts PopulateOptions
	cmd := &cobra.Command{
		Use:   "populate",
		Short: "Populate the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(cmd, spec, func(m Manager) error {
				err := RunPopulate(cmd.Context(), m, opts)
				if errors.Is(err, ErrAlreadyPopulated) {
					fmt.Fprintln(cmd.OutOrStdout(), "Database already populated. Use --force to overwrite")
					return nil
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&opts.Reset, "reset", false, "nuke the database first")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an already populated database")
	return cmd
}

func dropCommand(spec CommandSpec) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Drop the %s database?", spec.Module)) {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
				return nil
			}
			return withManager(cmd, spec, func(m Manager) error {
				return m.DropAll(cmd.Context())
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}

func summarizeCommand(spec CommandSpec) *cobra.Command {
	return &cobra.Command{
		Use:   "summarize",
		Short: "Summarize the contents of the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(cmd, spec, func(m Manager) error {
				summary, err := m.Summarize(cmd.Context())
				if err != nil {
					return err
				}
				WriteSummary(cmd.OutOrStdout(), summary)
				return nil
			})
		},
	}
}

// WriteSummary prints one "Key: count" line per entry, sorted by key.
func WriteSummary(w io.Writer, summary map[string]int) {
	keys := make([]string, 0, len(summary))
	for k := range summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s: %d\n", titleCase(k), summary[k])
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func cacheCommand(spec CommandSpec) *cobra.Command {
	group := &cobra.Command{
		Use:   "cache",
		Short: "Manage the data directory cache",
	}
	group.AddCommand(&cobra.Command{
		Use:   "locate",
		Short: "Print the data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), spec.DataDir)
			return nil
		},
	})
	group.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List cached files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := CacheFiles(spec.DataDir)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(spec.DataDir, name))
			}
			return nil
		},
	})
	group.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove cached files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			removed, err := ClearCache(spec.DataDir)
			for _, name := range removed {
				fmt.Fprintln(cmd.OutOrStdout(), "removed", name)
			}
			return err
		},
	})
	return group
}

// CacheFiles lists regular files in dir except the kept ones. A missing dir
// is empty.
func CacheFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, keep := cacheKeep[entry.Name()]; keep {
			continue
		}
		out = append(out, entry.Name())
	}
	sort.Strings(out)
	return out, nil
}

// ClearCache removes every file CacheFiles reports and returns their names.
func ClearCache(dir string) ([]string, error) {
	names, err := CacheFiles(dir)
	if err != nil {
		return nil, err
	}
	removed := make([]string, 0, len(names))
	for _, name := range names {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return removed, err
		}
		removed = append(removed, name)
	}
	return removed, nil
}

func actionsCommand(spec CommandSpec) *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "List populate and drop actions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(cmd, spec, func(m Manager) error {
				actions, err := m.Store().ListActions(cmd.Context(), spec.Module)
				if err != nil {
					return err
				}
				for _, a := range actions {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", a.ID, a.Created.UTC().Format(time.RFC3339), a.Action)
				}
				return nil
			})
		},
	}
}

func toBELCommand(spec CommandSpec) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "to-bel",
		Short: "Export the database as BEL Script",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(cmd, spec, func(m Manager) error {
				return writeOutput(cmd.OutOrStdout(), output, func(w io.Writer) error {
					return ExportBEL(cmd.Context(), m, w)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func namespaceCommand(spec CommandSpec) *cobra.Command {
	group := &cobra.Command{
		Use:   "belns",
		Short: "Manage the BEL namespace",
	}
	var output string
	write := &cobra.Command{
		Use:   "write",
		Short: "Write the BEL namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(cmd, spec, func(m Manager) error {
				return writeOutput(cmd.OutOrStdout(), output, func(w io.Writer) error {
					return ExportNamespace(cmd.Context(), m, w)
				})
			})
		},
	}
	write.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	group.AddCommand(write)
	return group
}

// writeOutput runs fn against stdout, or against the file at path when one
// is given. A failed write removes the partial file.
func writeOutput(stdout io.Writer, path string, fn func(io.Writer) error) error {
	if path == "" || path == "-" {
		return fn(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = fn(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}

// ExportBEL writes m as BEL Script. Managers that do not implement
// BELExporter yield ErrCapabilityMissing.
func ExportBEL(ctx context.Context, m Manager, w io.Writer) error {
	exporter, ok := m.(BELExporter)
	if !ok {
		return fmt.Errorf("%w: %s cannot export BEL", ErrCapabilityMissing, m.Module())
	}
	graph, err := exporter.ToBEL(ctx)
	if err != nil {
		return err
	}
	return graph.WriteScript(w)
}

// ExportNamespace writes m as a BEL namespace. Managers that do not
// implement NamespaceExporter yield ErrCapabilityMissing.
func ExportNamespace(ctx context.Context, m Manager, w io.Writer) error {
	exporter, ok := m.(NamespaceExporter)
	if !ok {
		return fmt.Errorf("%w: %s cannot export a BEL namespace", ErrCapabilityMissing, m.Module())
	}
	ns, err := exporter.ToBELNamespace(ctx)
	if err != nil {
		return err
	}
	return ns.Write(w)
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
