package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/bio2bel/internal/logging"
	"github.com/danmuck/bio2bel/internal/plugins"
	"github.com/spf13/cobra"
)

const logLevelFlag = "log-level"

// App is everything the command tree needs.
type App struct {
	Env        *plugins.Env
	Dispatcher *plugins.Dispatcher
	Version    string
}

func New(env *plugins.Env, registry *plugins.Registry, version string) *App {
	return &App{
		Env:        env,
		Dispatcher: plugins.NewDispatcher(env, registry),
		Version:    version,
	}
}

// Execute runs args against the command tree and returns the exit code.
func Execute(ctx context.Context, app *App, args []string) int {
	root := NewRootCommand(app)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return plugins.ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Message != "" {
			fmt.Fprintln(app.Env.Err, exitErr.Message)
		}
		return exitErr.Code
	}
	fmt.Fprintf(app.Env.Err, "Error: %v\n", err)
	return plugins.ExitFailure
}

// NewRootCommand assembles aggregate commands and one alias per plugin.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "bio2bel",
		Short:         "Run bio2bel data-source plugins",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return exitf(plugins.ExitUsage, "unknown sub-command %q", args[0])
			}
			return nil
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := cmd.Flags().GetString(logLevelFlag)
			if err != nil || raw == "" {
				return nil
			}
			return applyLogLevel(raw)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(app.Env.Out)
	root.SetErr(app.Env.Err)
	root.PersistentFlags().String(logLevelFlag, "", "log level (trace, debug, info, warn, error)")

	builtin := []*cobra.Command{
		populateCommand(app),
		summarizeCommand(app),
		exportCommand(app),
		lsCommand(app),
		configCommand(app),
		versionCommand(app),
	}
	reserved := map[string]struct{}{"help": {}, "completion": {}}
	for _, cmd := range builtin {
		root.AddCommand(cmd)
		reserved[cmd.Name()] = struct{}{}
	}

	for _, desc := range app.Dispatcher.Registry().Entries() {
		if _, taken := reserved[desc.Name]; taken {
			app.Env.Logger.Warn().Str("plugin", desc.Name).Msg("cli.NewRootCommand plugin name shadows a built-in command")
			continue
		}
		root.AddCommand(aliasCommand(app, desc))
	}
	return root
}

// aliasCommand forwards everything after the plugin name to Dispatch.
// Flag parsing is disabled, so root flags given before the alias arrive in
// args and are peeled off here.
func aliasCommand(app *App, desc plugins.Descriptor) *cobra.Command {
	short := desc.Description
	if short == "" {
		short = desc.Name + " plugin"
	}
	return &cobra.Command{
		Use:                desc.Name,
		Short:              short,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level, rest := splitLogLevel(args)
			if level != "" {
				if err := applyLogLevel(level); err != nil {
					return err
				}
			}
			if code := app.Dispatcher.Dispatch(cmd.Context(), desc.Name, rest); code != plugins.ExitOK {
				return &ExitError{Code: code}
			}
			return nil
		},
	}
}

func applyLogLevel(raw string) error {
	if !logging.SetLevel(raw) {
		return exitf(plugins.ExitUsage, "invalid --%s %q", logLevelFlag, raw)
	}
	return nil
}

// splitLogLevel removes --log-level flags that precede the first positional
// argument.
func splitLogLevel(args []string) (string, []string) {
	var level string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--"+logLevelFlag && i+1 < len(args):
			level = args[i+1]
			i++
		case strings.HasPrefix(arg, "--"+logLevelFlag+"="):
			level = strings.TrimPrefix(arg, "--"+logLevelFlag+"=")
		default:
			return level, args[i:]
		}
	}
	return level, nil
}

func requirePlugins(app *App) error {
	if app.Dispatcher.Registry().Len() == 0 {
		return &ExitError{Code: plugins.ExitUsage, Message: plugins.ErrEmptyRegistry.Error()}
	}
	return nil
}
