package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	gotoml "github.com/pelletier/go-toml/v2"
)

const (
	EnvDirectory  = "BIO2BEL_DIRECTORY"
	EnvConnection = "BIO2BEL_CONNECTION"
	EnvPlugins    = "BIO2BEL_PLUGINS"

	FileName        = "config.toml"
	DefaultDBName   = "bio2bel.db"
	defaultDirName  = ".bio2bel"
	sqliteURLPrefix = "sqlite:///"
)

var ErrInvalidModule = errors.New("config: invalid module name")

// Source names where a resolved connection string came from.
type Source string

const (
	SourceExplicit     Source = "explicit"
	SourceModuleEnv    Source = "module_env"
	SourceGlobalModule Source = "global_module"
	SourceLocalModule  Source = "local_module"
	SourceGlobalEnv    Source = "global_env"
	SourceGlobalFile   Source = "global_file"
	SourceDefault      Source = "default"
)

// environment is decoded from process env vars.
type environment struct {
	Directory  string   `env:"BIO2BEL_DIRECTORY"`
	Connection string   `env:"BIO2BEL_CONNECTION"`
	Plugins    []string `env:"BIO2BEL_PLUGINS" envSeparator:","`
}

// ModuleConfig is the per-module section of the global file, also the shape
// of <dir>/<module>/config.toml.
type ModuleConfig struct {
	Connection string `toml:"connection,omitempty"`
	URL        string `toml:"url,omitempty"`
}

// FileConfig is the on-disk shape of <dir>/config.toml.
type FileConfig struct {
	Connection string                  `toml:"connection,omitempty"`
	Plugins    []string                `toml:"plugins,omitempty"`
	Modules    map[string]ModuleConfig `toml:"modules,omitempty"`
}

// Config is the effective configuration after env and file are merged.
type Config struct {
	Directory     string
	Path          string
	Connection    string
	EnvConnection string
	Plugins       []string
	Modules       map[string]ModuleConfig
}

// Load resolves the bio2bel directory, writes a default config file when none
// exists, and merges file settings with the environment.
func Load() (Config, error) {
	var envCfg environment
	if err := env.Parse(&envCfg); err != nil {
		return Config{}, fmt.Errorf("config parse env: %w", err)
	}

	dir := strings.TrimSpace(envCfg.Directory)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("config home dir: %w", err)
		}
		dir = filepath.Join(home, defaultDirName)
	}
	return loadDir(dir, envCfg)
}

// LoadDir loads the config rooted at dir, still honouring the environment
// for everything except the directory itself.
func LoadDir(dir string) (Config, error) {
	var envCfg environment
	if err := env.Parse(&envCfg); err != nil {
		return Config{}, fmt.Errorf("config parse env: %w", err)
	}
	return loadDir(dir, envCfg)
}

func loadDir(dir string, envCfg environment) (Config, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return Config{}, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Config{}, fmt.Errorf("config create dir (%s): %w", dir, err)
	}

	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := WriteDefault(path, DefaultConnection(dir)); err != nil {
			return Config{}, err
		}
	} else if err != nil {
		return Config{}, err
	}

	var raw FileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}

	cfg := Config{
		Directory:     dir,
		Path:          path,
		EnvConnection: strings.TrimSpace(envCfg.Connection),
		Modules:       make(map[string]ModuleConfig),
	}
	if meta.IsDefined("connection") {
		cfg.Connection = strings.TrimSpace(raw.Connection)
	}
	if meta.IsDefined("plugins") {
		cfg.Plugins = normalizeList(raw.Plugins)
	}
	for name, mod := range raw.Modules {
		cfg.Modules[strings.ToLower(strings.TrimSpace(name))] = mod
	}
	if len(envCfg.Plugins) > 0 {
		cfg.Plugins = normalizeList(envCfg.Plugins)
	}
	return cfg, nil
}

// DefaultConnection is the fallback SQLite connection inside dir.
func DefaultConnection(dir string) string {
	return sqliteURLPrefix + filepath.Join(dir, DefaultDBName)
}

// WriteDefault writes a minimal global config containing connection.
func WriteDefault(path, connection string) error {
	data, err := gotoml.Marshal(FileConfig{Connection: connection})
	if err != nil {
		return fmt.Errorf("config encode default: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config write default (%s): %w", path, err)
	}
	return nil
}

// DataDir returns <dir>/<module>, creating it when missing.
func (c Config) DataDir(module string) (string, error) {
	name := strings.TrimSpace(module)
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidModule, module)
	}
	dir := filepath.Join(c.Directory, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Module returns the [modules.<name>] section, zero value when absent.
func (c Config) Module(name string) ModuleConfig {
	return c.Modules[strings.ToLower(strings.TrimSpace(name))]
}

// ModuleEnvKey is the per-module connection override variable name.
func ModuleEnvKey(module string) string {
	upper := strings.ToUpper(strings.TrimSpace(module))
	var b strings.Builder
	for _, r := range upper {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return "BIO2BEL_" + b.String() + "_CONNECTION"
}

// ResolveConnection picks the connection string for module, first match wins:
// explicit, module env, global [modules.<m>], local <m>/config.toml, global
// env, global file, default.
func (c Config) ResolveConnection(module, explicit string) (string, Source) {
	if v := strings.TrimSpace(explicit); v != "" {
		return v, SourceExplicit
	}
	if v := strings.TrimSpace(os.Getenv(ModuleEnvKey(module))); v != "" {
		return v, SourceModuleEnv
	}
	if v := strings.TrimSpace(c.Module(module).Connection); v != "" {
		return v, SourceGlobalModule
	}
	if v := c.localModuleConnection(module); v != "" {
		return v, SourceLocalModule
	}
	if c.EnvConnection != "" {
		return c.EnvConnection, SourceGlobalEnv
	}
	if c.Connection != "" {
		return c.Connection, SourceGlobalFile
	}
	return DefaultConnection(c.Directory), SourceDefault
}

func (c Config) localModuleConnection(module string) string {
	path := filepath.Join(c.Directory, strings.TrimSpace(module), FileName)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	var local ModuleConfig
	meta, err := toml.DecodeFile(path, &local)
	if err != nil || !meta.IsDefined("connection") {
		return ""
	}
	return strings.TrimSpace(local.Connection)
}

// Effective renders the merged configuration as a FileConfig.
func (c Config) Effective() FileConfig {
	out := FileConfig{
		Connection: c.Connection,
		Plugins:    append([]string(nil), c.Plugins...),
	}
	if c.EnvConnection != "" {
		out.Connection = c.EnvConnection
	}
	if len(c.Modules) > 0 {
		out.Modules = make(map[string]ModuleConfig, len(c.Modules))
		for name, mod := range c.Modules {
			out.Modules[name] = mod
		}
	}
	return out
}

// ModuleNames lists modules with an explicit section, sorted.
func (c Config) ModuleNames() []string {
	names := make([]string, 0, len(c.Modules))
	for name := range c.Modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, raw := range in {
		v := strings.ToLower(strings.TrimSpace(raw))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
