package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"ynote/internal/app"
	"ynote/internal/exitcode"
	"ynote/internal/output"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd implements the list command.
// Handles both `ynote` (no args) and `ynote list`.
type ListCmd struct{}

func (c *ListCmd) Name() string          { return "list" }
func (c *ListCmd) Aliases() []string     { return []string{"ls"} }
func (c *ListCmd) Synopsis() string      { return "List notes" }
func (c *ListCmd) Usage() string         { return "ynote list" }
func (c *ListCmd) Requires() Requirement { return NeedsSession }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ListCmd) Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	notes := a.Store.Notes()
	if len(notes) == 0 {
		if !a.Config.Quiet {
			fmt.Fprintln(out, output.EmptyHint)
		}
		return exitcode.Success
	}
	output.FormatNotes(out, notes)
	return exitcode.Success
}
