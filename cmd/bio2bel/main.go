package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/bio2bel/internal/cli"
	"github.com/danmuck/bio2bel/internal/config"
	"github.com/danmuck/bio2bel/internal/logging"
	"github.com/danmuck/bio2bel/internal/plugins"
	"github.com/danmuck/bio2bel/internal/sources"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Stdout, os.Stderr, os.Args[1:])
	stop()
	os.Exit(code)
}

func run(ctx context.Context, stdout, stderr io.Writer, args []string) int {
	logger := logging.ConfigureRuntime()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "bio2bel: %v\n", err)
		return plugins.ExitFailure
	}

	env := plugins.NewEnv(cfg, logger)
	env.Out = stdout
	env.Err = stderr
	registry := plugins.Discover(env, sources.Builtin(), cfg.Plugins)
	logger.Debug().Strs("plugins", registry.Names()).Str("config", cfg.Path).Msg("bio2bel.run registry ready")

	return cli.Execute(ctx, cli.New(env, registry, version), args)
}
