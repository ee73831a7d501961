package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"ynote/internal/app"
	"ynote/internal/exitcode"
	"ynote/internal/output"
	"ynote/internal/service"
	"ynote/internal/state"
)

func init() {
	Register(&WhoamiCmd{})
}

var errNoEmail = errors.New("user email is missing (run: ynote login)")

// inputError marks failures caused by what the user typed.
type inputError struct {
	err error
}

func (e *inputError) Error() string { return e.err.Error() }
func (e *inputError) Unwrap() error { return e.err }

// WhoamiCmd implements the whoami command.
type WhoamiCmd struct{}

func (c *WhoamiCmd) Name() string          { return "whoami" }
func (c *WhoamiCmd) Aliases() []string     { return nil }
func (c *WhoamiCmd) Synopsis() string      { return "Show the signed-in user" }
func (c *WhoamiCmd) Usage() string         { return "ynote whoami" }
func (c *WhoamiCmd) Requires() Requirement { return NeedsSession }

func (c *WhoamiCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *WhoamiCmd) Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int {
	u, err := currentUser(ctx, a)
	if err != nil {
		return ReportError(errOut, err)
	}
	output.FormatUser(out, u)
	return exitcode.Success
}

// currentUser fetches the signed-in user from the server. A rejected
// session logs out locally.
func currentUser(ctx context.Context, a *app.App) (service.User, error) {
	u, err := a.Service.CurrentUser(ctx)
	if err != nil {
		return service.User{}, expireOnUnauthorized(a, err)
	}
	return u, nil
}

func expireOnUnauthorized(a *app.App, err error) error {
	if !service.IsUnauthorized(err) {
		return err
	}
	if clearErr := a.Store.Expire(a.Store.Generation()); clearErr != nil {
		return errors.Join(fmt.Errorf("%w: %v", state.ErrSessionExpired, err), clearErr)
	}
	return fmt.Errorf("%w: %v", state.ErrSessionExpired, err)
}
