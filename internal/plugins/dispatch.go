package plugins

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/danmuck/bio2bel/internal/manager"
	"github.com/danmuck/bio2bel/internal/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Exit codes returned by Dispatch.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// Outcome of one aggregate run.
type Outcome string

const (
	Succeeded Outcome = "succeeded"
	Failed    Outcome = "failed"
)

// PopulateResult is the per-plugin result of PopulateAll.
type PopulateResult struct {
	Name     string
	Outcome  Outcome
	Err      error
	Duration time.Duration
	// Skipped is set when the database was already populated.
	Skipped bool
}

// SummaryResult is the per-plugin result of SummarizeAll.
type SummaryResult struct {
	Name    string
	Summary map[string]int
	Err     error
}

// ExportResult is the per-plugin result of ExportAll.
type ExportResult struct {
	Name string
	Path string
	Err  error
}

// Dispatcher routes commands to registered plugins.
type Dispatcher struct {
	env      *Env
	registry *Registry
}

func NewDispatcher(env *Env, registry *Registry) *Dispatcher {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Dispatcher{env: env, registry: registry}
}

func (d *Dispatcher) Registry() *Registry { return d.registry }

// Run executes the command group of plugin name with args passed through.
// A panic inside the plugin command is returned as an error.
func (d *Dispatcher) Run(ctx context.Context, name string, args []string) (err error) {
	if d.registry.Len() == 0 {
		return ErrEmptyRegistry
	}
	desc, ok := d.registry.Lookup(name)
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownCommand, name)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", name, r)
		}
	}()
	cmd := desc.Command(d.env)
	cmd.SetArgs(args)
	cmd.SetOut(d.env.Out)
	cmd.SetErr(d.env.Err)
	if err := cmd.ExecuteContext(ctx); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Dispatch is Run reduced to an exit code. Errors are written to env.Err.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args []string) int {
	err := d.Run(ctx, name, args)
	if err == nil {
		return ExitOK
	}
	fmt.Fprintln(d.env.Err, err.Error())
	code := ExitCode(err)
	if code == ExitFailure {
		d.env.Logger.Error().Err(err).Str("plugin", name).Msg("plugins.Dispatch command failed")
	}
	return code
}

// ExitCode maps dispatch errors to process exit codes.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrUnknownCommand), errors.Is(err, ErrEmptyRegistry):
		return ExitUsage
	default:
		return ExitFailure
	}
}

// PopulateAll populates every plugin with the populate capability in
// registry order. Failures, including panics, are recorded and the loop
// moves on.
func (d *Dispatcher) PopulateAll(ctx context.Context, opts manager.PopulateOptions) []PopulateResult {
	logger := d.env.Logger.With().Str("run", uuid.NewString()).Logger()
	logger.Info().Bool("reset", opts.Reset).Bool("force", opts.Force).Msg("plugins.PopulateAll start")
	results := make([]PopulateResult, 0, d.registry.Len())
	for _, desc := range d.registry.Entries() {
		if !desc.Has(manager.CapPopulate) {
			continue
		}
		res := d.populateOne(ctx, logger, desc, opts)
		observability.RecordPopulate(res.Name, res.Outcome == Succeeded, res.Duration)
		event := logger.Info()
		if res.Err != nil {
			event = logger.Error().Err(res.Err)
		}
		event.Str("plugin", res.Name).
			Str("outcome", string(res.Outcome)).
			Bool("skipped", res.Skipped).
			Dur("duration", res.Duration).
			Msg("plugins.PopulateAll plugin done")
		results = append(results, res)
	}
	return results
}

func (d *Dispatcher) populateOne(ctx context.Context, logger zerolog.Logger, desc Descriptor, opts manager.PopulateOptions) (res PopulateResult) {
	res.Name = desc.Name
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Err = &PopulateError{Name: desc.Name, Err: fmt.Errorf("panic: %v", r)}
		}
		res.Duration = time.Since(start)
		res.Outcome = Succeeded
		if res.Err != nil {
			res.Outcome = Failed
		}
	}()

	logger.Info().Str("plugin", desc.Name).Msg("plugins.PopulateAll populating")
	m, err := OpenManager(ctx, d.env, desc)
	if err != nil {
		res.Err = &PopulateError{Name: desc.Name, Err: err}
		return res
	}
	defer m.Close()

	err = manager.RunPopulate(ctx, m, opts)
	switch {
	case errors.Is(err, manager.ErrAlreadyPopulated):
		res.Skipped = true
	case err != nil:
		res.Err = &PopulateError{Name: desc.Name, Err: err}
	}
	return res
}

// SummarizeAll summarizes every plugin with the summarize capability.
func (d *Dispatcher) SummarizeAll(ctx context.Context) []SummaryResult {
	results := make([]SummaryResult, 0, d.registry.Len())
	for _, desc := range d.registry.Entries() {
		if !desc.Has(manager.CapSummarize) {
			continue
		}
		res := SummaryResult{Name: desc.Name}
		res.Summary, res.Err = d.summarizeOne(ctx, desc)
		if res.Err != nil {
			d.env.Logger.Error().Err(res.Err).Str("plugin", desc.Name).Msg("plugins.SummarizeAll failed")
		}
		results = append(results, res)
	}
	return results
}

func (d *Dispatcher) summarizeOne(ctx context.Context, desc Descriptor) (summary map[string]int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("summarize %s: panic: %v", desc.Name, r)
		}
	}()
	m, err := OpenManager(ctx, d.env, desc)
	if err != nil {
		return nil, err
	}
	defer m.Close()
	return m.Summarize(ctx)
}

// ExportAll writes <dir>/<name>.bel for every plugin with the bel capability.
func (d *Dispatcher) ExportAll(ctx context.Context, dir string) []ExportResult {
	results := make([]ExportResult, 0, d.registry.Len())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		for _, desc := range d.registry.Entries() {
			if desc.Has(manager.CapBEL) {
				results = append(results, ExportResult{Name: desc.Name, Err: err})
			}
		}
		return results
	}
	for _, desc := range d.registry.Entries() {
		if !desc.Has(manager.CapBEL) {
			continue
		}
		res := ExportResult{Name: desc.Name, Path: filepath.Join(dir, desc.Name+".bel")}
		res.Err = d.exportOne(ctx, desc, res.Path)
		observability.RecordExport(desc.Name, res.Err == nil)
		if res.Err != nil {
			d.env.Logger.Error().Err(res.Err).Str("plugin", desc.Name).Msg("plugins.ExportAll failed")
		} else {
			d.env.Logger.Info().Str("plugin", desc.Name).Str("path", res.Path).Msg("plugins.ExportAll wrote")
		}
		results = append(results, res)
	}
	return results
}

func (d *Dispatcher) exportOne(ctx context.Context, desc Descriptor, path string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("export %s: panic: %v", desc.Name, r)
		}
	}()
	m, err := OpenManager(ctx, d.env, desc)
	if err != nil {
		return err
	}
	defer m.Close()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := manager.ExportBEL(ctx, m, f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}
