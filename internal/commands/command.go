// Package commands implements the ynote subcommands and the interactive
// shell on top of app.App.
package commands

import (
	"context"
	"flag"
	"io"

	"ynote/internal/app"
)

// Requirement is what a command needs before it runs.
type Requirement int

const (
	// NeedsNothing commands run without storage or backend (help, version).
	NeedsNothing Requirement = iota

	// NeedsBackend commands get a backend and local storage but no session
	// (login, logout, register).
	NeedsBackend

	// NeedsSession commands run only with a restored, signed-in session.
	NeedsSession
)

// Command is one ynote subcommand. Implementations register themselves
// with DefaultRegistry from an init function.
type Command interface {
	Name() string
	Aliases() []string

	// Synopsis and Usage feed the help listing.
	Synopsis() string
	Usage() string

	Requires() Requirement

	// RegisterFlags adds the command's own flags next to the common ones.
	RegisterFlags(fs *flag.FlagSet)

	// Run receives the positional arguments left after flag parsing and
	// returns the process exit code. a.Config is always set; the service,
	// store and controller are set unless Requires is NeedsNothing.
	Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int
}
