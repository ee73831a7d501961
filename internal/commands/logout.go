package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"ynote/internal/app"
	"ynote/internal/exitcode"
	"ynote/internal/service"
)

func init() {
	Register(&LogoutCmd{})
}

// LogoutCmd implements the logout command.
type LogoutCmd struct{}

func (c *LogoutCmd) Name() string          { return "logout" }
func (c *LogoutCmd) Aliases() []string     { return nil }
func (c *LogoutCmd) Synopsis() string      { return "Sign out and remove the stored session" }
func (c *LogoutCmd) Usage() string         { return "ynote logout" }
func (c *LogoutCmd) Requires() Requirement { return NeedsBackend }

func (c *LogoutCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *LogoutCmd) Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int {
	stored, err := a.Store.Persisted()
	if err != nil {
		fmt.Fprintf(errOut, "error: failed to read stored session: %v\n", err)
		return exitcode.BackendError
	}
	if !stored {
		if !a.Config.Quiet {
			fmt.Fprintln(out, "not logged in")
		}
		return exitcode.Success
	}

	// The stored record goes first so a failed server call still leaves
	// the next run signed out.
	if err := a.Store.Forget(); err != nil {
		fmt.Fprintf(errOut, "error: failed to remove stored session: %v\n", err)
		return exitcode.BackendError
	}
	logoutErr := a.Service.Logout(ctx)
	if err := a.Store.SetUser(ctx, nil); err != nil {
		fmt.Fprintf(errOut, "error: failed to clear local session: %v\n", err)
		return exitcode.BackendError
	}
	if logoutErr != nil && !service.IsUnauthorized(logoutErr) {
		fmt.Fprintf(errOut, "error: backend error: server logout failed: %v\n", logoutErr)
		return exitcode.BackendError
	}

	if !a.Config.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
