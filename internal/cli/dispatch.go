// Package cli turns a command line into a configured App and a command run.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"ynote/internal/app"
	"ynote/internal/commands"
	"ynote/internal/config"
	"ynote/internal/exitcode"
)

// defaultCommand runs when ynote is invoked without arguments.
const defaultCommand = "list"

// Dispatcher resolves commands from a registry and prepares what each one
// requires before running it.
type Dispatcher struct {
	registry *commands.Registry
	factory  app.BackendFactory
	stdin    io.Reader
}

// NewDispatcher creates a dispatcher. factory builds the backend for
// commands that need one.
func NewDispatcher(registry *commands.Registry, factory app.BackendFactory) *Dispatcher {
	return &Dispatcher{registry: registry, factory: factory}
}

// SetStdin overrides where prompts and the shell read from.
func (d *Dispatcher) SetStdin(r io.Reader) {
	d.stdin = r
}

// Run executes the command line args and returns the exit code.
func (d *Dispatcher) Run(ctx context.Context, args []string, out, errOut io.Writer) int {
	name := defaultCommand
	if len(args) > 0 {
		name, args = args[0], args[1:]
	}

	// Common flags go after the command name.
	cmd, ok := d.registry.Find(name)
	if !ok || strings.HasPrefix(name, "-") {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", name)
		return exitcode.UserError
	}

	opts, positional, err := parseFlags(cmd, args)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}

	cfg, err := config.New(opts.configDir)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}
	cfg.Quiet = opts.quiet
	cfg.Debug = opts.debug
	if d.stdin != nil {
		cfg.Stdin = d.stdin
	}

	if cmd.Requires() == commands.NeedsNothing {
		return cmd.Run(ctx, app.Bare(cfg), positional, out, errOut)
	}
	return d.runWithApp(ctx, cmd, cfg, positional, out, errOut)
}

func (d *Dispatcher) runWithApp(ctx context.Context, cmd commands.Command, cfg *config.Config, args []string, out, errOut io.Writer) int {
	a, err := app.Open(cfg, d.factory, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.BackendError
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.Log.Debug("failed to close local storage", "err", err)
		}
	}()

	if cmd.Requires() == commands.NeedsSession {
		if err := a.Hydrate(ctx); err != nil {
			return commands.ReportError(errOut, err)
		}
		if a.Store.User() == nil {
			fmt.Fprintln(errOut, "error: not logged in (run: ynote login)")
			return exitcode.AuthError
		}
	}

	a.Log.Debug("running command", "cmd", cmd.Name(), "args", len(args))
	return cmd.Run(ctx, a, args, out, errOut)
}

type commonFlags struct {
	configDir string
	quiet     bool
	debug     bool
}

// parseFlags parses the common flags and cmd's own flags. Errors are
// already phrased for the "error: " prefix.
func parseFlags(cmd commands.Command, args []string) (commonFlags, []string, error) {
	var opts commonFlags

	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.configDir, "config", "", "")
	fs.BoolVar(&opts.quiet, "quiet", false, "")
	fs.BoolVar(&opts.debug, "debug", false, "")
	cmd.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		return opts, nil, flagError(err)
	}

	// A lone "-x" after "--" is still not a note reference.
	positional := fs.Args()
	if len(positional) > 0 && strings.HasPrefix(positional[0], "-") {
		return opts, nil, fmt.Errorf("unknown flag: %s", positional[0])
	}
	return opts, positional, nil
}

// flagError rewrites the flag package's messages into the CLI's wording.
func flagError(err error) error {
	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, "flag needs an argument"):
		name := strings.TrimSpace(msg[strings.LastIndex(msg, ":")+1:])
		return fmt.Errorf("flag needs an argument: %s", name)
	case strings.HasPrefix(msg, "flag provided but not defined: "):
		return fmt.Errorf("unknown flag: %s", strings.TrimPrefix(msg, "flag provided but not defined: "))
	default:
		return err
	}
}
