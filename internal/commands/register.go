package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"ynote/internal/app"
	"ynote/internal/exitcode"
	"ynote/internal/service"
)

func init() {
	Register(&RegisterCmd{})
}

// RegisterCmd implements the register command.
type RegisterCmd struct {
	email string
	name  string
}

// SetAccount sets the email and name (for testing).
func (c *RegisterCmd) SetAccount(email, name string) {
	c.email = email
	c.name = name
}

func (c *RegisterCmd) Name() string          { return "register" }
func (c *RegisterCmd) Aliases() []string     { return []string{"signup"} }
func (c *RegisterCmd) Synopsis() string      { return "Create an account" }
func (c *RegisterCmd) Usage() string         { return "ynote register --email <email> --name <name>" }
func (c *RegisterCmd) Requires() Requirement { return NeedsBackend }

func (c *RegisterCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.email, "email", "", "")
	fs.StringVar(&c.name, "name", "", "")
}

func (c *RegisterCmd) Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int {
	email := strings.TrimSpace(c.email)
	name := strings.TrimSpace(c.name)
	if email == "" {
		fmt.Fprintln(errOut, "error: --email required")
		return exitcode.UserError
	}
	if name == "" {
		fmt.Fprintln(errOut, "error: --name required")
		return exitcode.UserError
	}

	p := newPrompter(a.Config.Stdin, errOut)
	password, err := p.NewPassword("Password")
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	u, err := a.Service.Register(ctx, service.NewUser{Email: email, Name: name, Password: password})
	if err != nil {
		return ReportError(errOut, err)
	}

	if !a.Config.Quiet {
		fmt.Fprintf(out, "registered %s <%s>\n", u.Name, u.Email)
		fmt.Fprintf(out, "check your inbox to verify your email, then run: ynote login --email %s\n", u.Email)
	}
	return exitcode.Success
}
