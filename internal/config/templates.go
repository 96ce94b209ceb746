package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Template returns the commented starter config for dir.
func Template(dir string) string {
	return strings.ReplaceAll(globalTemplate, "{{default_connection}}", DefaultConnection(dir))
}

// WriteTemplate writes the starter config to <dir>/config.toml.
func WriteTemplate(dir string, overwrite bool) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName)
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists: %s (use --force to overwrite)", path)
		}
	}
	return path, os.WriteFile(path, []byte(Template(dir)), 0o600)
}

const globalTemplate = `# Default connection for every module without its own override.
connection = "{{default_connection}}"

# Plugins to load, in order. Remove to load every built-in plugin.
plugins = ["hmdd", "circrnadisease"]

[modules.hmdd]
# connection = "sqlite:///tmp/hmdd.db"
# url = "http://www.cuilab.cn/static/hmdd3/data/alldata.txt"

[modules.circrnadisease]
# connection = "sqlite:///tmp/circrnadisease.db"
`
