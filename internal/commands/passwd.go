package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"ynote/internal/app"
	"ynote/internal/exitcode"
)

func init() {
	Register(&PasswdCmd{})
}

// PasswdCmd implements the passwd command.
type PasswdCmd struct{}

func (c *PasswdCmd) Name() string          { return "passwd" }
func (c *PasswdCmd) Aliases() []string     { return nil }
func (c *PasswdCmd) Synopsis() string      { return "Change your password" }
func (c *PasswdCmd) Usage() string         { return "ynote passwd" }
func (c *PasswdCmd) Requires() Requirement { return NeedsSession }

func (c *PasswdCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *PasswdCmd) Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int {
	if err := changePassword(ctx, a, newPrompter(a.Config.Stdin, errOut)); err != nil {
		return ReportError(errOut, err)
	}
	if !a.Config.Quiet {
		fmt.Fprintln(out, "password changed")
	}
	return exitcode.Success
}

func changePassword(ctx context.Context, a *app.App, p *prompter) error {
	u := a.Store.User()
	if u == nil || u.Email == "" {
		return errNoEmail
	}
	password, err := p.NewPassword("New password")
	if err != nil {
		return &inputError{err: err}
	}
	if _, err := a.Service.ChangePassword(ctx, password); err != nil {
		return expireOnUnauthorized(a, err)
	}
	return nil
}
