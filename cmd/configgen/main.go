package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/danmuck/bio2bel/internal/config"
	"github.com/danmuck/bio2bel/internal/sources"
)

func main() {
	dir := flag.String("dir", "", "bio2bel directory (defaults to $BIO2BEL_DIRECTORY or ~/.bio2bel)")
	validate := flag.Bool("validate", false, "validate the config file in -dir")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	target, err := resolveDir(*dir)
	if err != nil {
		log.Fatal(err)
	}

	if *validate {
		if err := validateDir(target); err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated config at %s", filepath.Join(target, config.FileName))
		return
	}

	path, err := config.WriteTemplate(target, *force)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote config template to %s", path)
}

// resolveDir picks -dir, then $BIO2BEL_DIRECTORY, then ~/.bio2bel. The
// result is absolute so the generated connection does not depend on the
// working directory.
func resolveDir(dir string) (string, error) {
	if dir != "" {
		return filepath.Abs(dir)
	}
	if env := os.Getenv(config.EnvDirectory); env != "" {
		return filepath.Abs(env)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".bio2bel"), nil
}

// validateDir loads the config and checks every listed plugin and module
// section names a compiled-in plugin.
func validateDir(dir string) error {
	if _, err := os.Stat(filepath.Join(dir, config.FileName)); err != nil {
		return fmt.Errorf("config not found: %w", err)
	}
	cfg, err := config.LoadDir(dir)
	if err != nil {
		return err
	}
	catalog := sources.Builtin()
	for _, id := range cfg.Plugins {
		if _, ok := catalog.Find(id); !ok {
			return fmt.Errorf("unknown plugin %q in %s", id, cfg.Path)
		}
	}
	for _, name := range cfg.ModuleNames() {
		if _, ok := catalog.Find(name); !ok {
			return fmt.Errorf("unknown module section [modules.%s] in %s", name, cfg.Path)
		}
	}
	for _, name := range catalog.IDs() {
		conn, source := cfg.ResolveConnection(name, "")
		log.Printf("%s connection %s (%s)", name, conn, source)
	}
	return nil
}
