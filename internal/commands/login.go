package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"ynote/internal/app"
	"ynote/internal/exitcode"
	"ynote/internal/service"
	"ynote/internal/state"
)

func init() {
	Register(&LoginCmd{})
}

// LoginCmd implements the login command.
type LoginCmd struct {
	email string
}

// SetEmail sets the email (for testing).
func (c *LoginCmd) SetEmail(email string) {
	c.email = email
}

func (c *LoginCmd) Name() string          { return "login" }
func (c *LoginCmd) Aliases() []string     { return nil }
func (c *LoginCmd) Synopsis() string      { return "Sign in" }
func (c *LoginCmd) Usage() string         { return "ynote login --email <email>" }
func (c *LoginCmd) Requires() Requirement { return NeedsBackend }

func (c *LoginCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.email, "email", "", "")
	fs.StringVar(&c.email, "e", "", "")
}

func (c *LoginCmd) Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int {
	email := strings.TrimSpace(c.email)
	if email == "" && len(args) > 0 {
		email = strings.TrimSpace(args[0])
	}
	if email == "" {
		fmt.Fprintln(errOut, "error: --email required")
		return exitcode.UserError
	}

	p := newPrompter(a.Config.Stdin, errOut)
	password, err := p.Password("Password: ")
	if err != nil {
		fmt.Fprintf(errOut, "error: failed to read password: %v\n", err)
		return exitcode.UserError
	}
	if password == "" {
		fmt.Fprintln(errOut, "error: password required")
		return exitcode.UserError
	}

	u, err := a.Service.Login(ctx, service.Credentials{Email: email, Password: password})
	if err != nil {
		if service.IsUnauthorized(err) {
			fmt.Fprintln(errOut, "error: auth error: wrong email or password")
			return exitcode.AuthError
		}
		return ReportError(errOut, err)
	}

	err = a.Store.SetUser(ctx, &u)
	if errors.Is(err, state.ErrSessionExpired) {
		return ReportError(errOut, err)
	}
	if !a.Config.Quiet {
		fmt.Fprintf(out, "logged in as %s <%s>\n", u.Name, u.Email)
	}
	if err != nil {
		// Signed in, but the note list could not be loaded.
		return ReportError(errOut, err)
	}
	return exitcode.Success
}
