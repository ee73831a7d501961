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
	Register(&VerifyCmd{})
}

// VerifyCmd implements the verify command.
type VerifyCmd struct {
	resend bool
}

// SetResend sets the resend flag (for testing).
func (c *VerifyCmd) SetResend(resend bool) {
	c.resend = resend
}

func (c *VerifyCmd) Name() string          { return "verify" }
func (c *VerifyCmd) Aliases() []string     { return nil }
func (c *VerifyCmd) Synopsis() string      { return "Check or resend email verification" }
func (c *VerifyCmd) Usage() string         { return "ynote verify [--resend]" }
func (c *VerifyCmd) Requires() Requirement { return NeedsSession }

func (c *VerifyCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.resend, "resend", false, "")
}

func (c *VerifyCmd) Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int {
	u, err := currentUser(ctx, a)
	if err != nil {
		return ReportError(errOut, err)
	}
	if u.Verified {
		fmt.Fprintln(out, "email verified")
		return exitcode.Success
	}

	if !c.resend {
		fmt.Fprintln(out, "email not verified (run: ynote verify --resend)")
		return exitcode.Success
	}

	if err := a.Service.SendVerificationEmail(ctx); err != nil {
		return ReportError(errOut, expireOnUnauthorized(a, err))
	}
	if !a.Config.Quiet {
		fmt.Fprintf(out, "verification email sent to %s\n", u.Email)
	}
	return exitcode.Success
}
