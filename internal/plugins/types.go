package plugins

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/danmuck/bio2bel/internal/config"
	"github.com/danmuck/bio2bel/internal/manager"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	ErrPluginImport      = errors.New("plugin import failed")
	ErrPluginExists      = errors.New("plugin already registered")
	ErrInvalidDescriptor = errors.New("invalid plugin descriptor")
	ErrUnknownCommand    = errors.New("unknown sub-command")
	ErrEmptyRegistry     = errors.New("no plugins registered")
	ErrPluginPopulate    = errors.New("plugin populate failed")
	ErrCapabilityMissing = manager.ErrCapabilityMissing
)

// Env is the process context shared by discovery, factories and dispatch.
type Env struct {
	Config config.Config
	Logger zerolog.Logger
	Out    io.Writer
	Err    io.Writer
	// HTTPClient is used for source downloads; nil means the download
	// package default.
	HTTPClient *http.Client
}

// NewEnv wires stdout and stderr.
func NewEnv(cfg config.Config, logger zerolog.Logger) *Env {
	return &Env{
		Config: cfg,
		Logger: logger,
		Out:    os.Stdout,
		Err:    os.Stderr,
	}
}

// Descriptor is what a plugin exposes to the framework.
type Descriptor struct {
	Name         string
	Description  string
	Capabilities manager.Capabilities
	// Command builds the plugin command group.
	Command func(env *Env) *cobra.Command
	// NewManager opens a manager bound to connection.
	NewManager func(ctx context.Context, env *Env, connection string) (manager.Manager, error)
}

// Has reports whether the descriptor advertises capability.
func (d Descriptor) Has(capability manager.Capability) bool {
	return d.Capabilities.Has(capability)
}

// Factory constructs a descriptor. A returned error means the plugin could
// not be loaded.
type Factory func(env *Env) (Descriptor, error)

// CatalogEntry binds a plugin id to its factory.
type CatalogEntry struct {
	ID      string
	Factory Factory
}

// Catalog is the ordered table of compiled-in plugins.
type Catalog []CatalogEntry

// IDs returns catalog ids in order.
func (c Catalog) IDs() []string {
	out := make([]string, 0, len(c))
	for _, e := range c {
		out = append(out, e.ID)
	}
	return out
}

// Find returns the first factory registered under id. Ids compare
// case-insensitively with surrounding space ignored.
func (c Catalog) Find(id string) (Factory, bool) {
	id = normalizeID(id)
	for _, e := range c {
		if normalizeID(e.ID) == id {
			return e.Factory, e.Factory != nil
		}
	}
	return nil, false
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// ImportError reports a plugin skipped during discovery.
type ImportError struct {
	ID  string
	Err error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import plugin %q: %v", e.ID, e.Err)
}

func (e *ImportError) Unwrap() []error { return []error{ErrPluginImport, e.Err} }

// PopulateError reports a failed populate of one plugin.
type PopulateError struct {
	Name string
	Err  error
}

func (e *PopulateError) Error() string {
	return fmt.Sprintf("populate %s: %v", e.Name, e.Err)
}

func (e *PopulateError) Unwrap() []error { return []error{ErrPluginPopulate, e.Err} }

// ValidateDescriptor checks name format, command and manager constructor.
func ValidateDescriptor(d Descriptor) error {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDescriptor)
	}
	if err := manager.ValidateModuleName(name); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	if d.Command == nil {
		return fmt.Errorf("%w: %s has no command", ErrInvalidDescriptor, name)
	}
	if d.NewManager == nil {
		for _, c := range managerCapabilities {
			if d.Has(c) {
				return fmt.Errorf("%w: %s has capability %s but no manager", ErrInvalidDescriptor, name, c)
			}
		}
	}
	return nil
}

// managerCapabilities need a Manager to run; cache works on the data
// directory alone.
var managerCapabilities = []manager.Capability{
	manager.CapPopulate,
	manager.CapDrop,
	manager.CapSummarize,
	manager.CapBEL,
	manager.CapNamespace,
}

// StandardCommand builds d's command group with the connection resolved from
// env and the module data directory for cache commands.
func StandardCommand(env *Env, d Descriptor) *cobra.Command {
	connection, _ := env.Config.ResolveConnection(d.Name, "")
	dataDir, err := env.Config.DataDir(d.Name)
	if err != nil {
		env.Logger.Warn().Err(err).Str("plugin", d.Name).Msg("plugins.StandardCommand data dir unavailable")
	}
	spec := manager.CommandSpec{
		Module:       d.Name,
		Short:        d.Description,
		Capabilities: d.Capabilities,
		Connection:   connection,
		DataDir:      dataDir,
	}
	if d.NewManager != nil {
		spec.Open = func(ctx context.Context, connection string) (manager.Manager, error) {
			return d.NewManager(ctx, env, connection)
		}
	}
	return manager.NewCommand(spec)
}

// OpenManager opens d's manager on its resolved connection.
func OpenManager(ctx context.Context, env *Env, d Descriptor) (manager.Manager, error) {
	if d.NewManager == nil {
		return nil, fmt.Errorf("%w: %s has no manager", ErrCapabilityMissing, d.Name)
	}
	connection, source := env.Config.ResolveConnection(d.Name, "")
	env.Logger.Debug().Str("plugin", d.Name).Str("source", string(source)).Msg("plugins.OpenManager connection resolved")
	return d.NewManager(ctx, env, connection)
}
