package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"ynote/internal/app"
	"ynote/internal/exitcode"
	"ynote/internal/reconcile"
)

func init() {
	Register(&RmCmd{})
}

// RmCmd implements the rm command.
type RmCmd struct{}

func (c *RmCmd) Name() string          { return "rm" }
func (c *RmCmd) Aliases() []string     { return []string{"delete"} }
func (c *RmCmd) Synopsis() string      { return "Delete a note" }
func (c *RmCmd) Usage() string         { return "ynote rm <n>" }
func (c *RmCmd) Requires() Requirement { return NeedsSession }

func (c *RmCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *RmCmd) Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int {
	num, err := ParseNoteRef(args)
	if err != nil {
		return reportRefError(errOut, err)
	}
	note, err := findNoteByNumber(a.Store.Notes(), num)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	aff, err := a.Notes.Delete(ctx, note.ID)
	if err != nil {
		return ReportError(errOut, err)
	}

	// A one-shot run has nobody left to undo; wait for the server.
	a.Notes.Wait()

	switch a.Notes.State(aff) {
	case reconcile.ConfirmationFailed:
		// The failure notice was already printed.
		if a.Store.User() == nil {
			return exitcode.AuthError
		}
		return exitcode.BackendError
	default:
		if !a.Config.Quiet {
			fmt.Fprintln(out, aff.Message)
		}
		return exitcode.Success
	}
}
