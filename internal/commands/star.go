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
	Register(&StarCmd{important: true})
	Register(&StarCmd{important: false})
}

// StarCmd implements the star and unstar commands.
type StarCmd struct {
	important bool
}

// NewStarCmd returns the star command, or unstar when important is false.
func NewStarCmd(important bool) *StarCmd {
	return &StarCmd{important: important}
}

func (c *StarCmd) Name() string {
	if c.important {
		return "star"
	}
	return "unstar"
}

func (c *StarCmd) Aliases() []string { return nil }

func (c *StarCmd) Synopsis() string {
	if c.important {
		return "Mark a note important"
	}
	return "Mark a note normal"
}

func (c *StarCmd) Usage() string         { return "ynote " + c.Name() + " <n>" }
func (c *StarCmd) Requires() Requirement { return NeedsSession }

func (c *StarCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *StarCmd) Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int {
	num, err := ParseNoteRef(args)
	if err != nil {
		return reportRefError(errOut, err)
	}
	note, err := findNoteByNumber(a.Store.Notes(), num)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	if note.Important != c.important {
		draft := note.Draft()
		draft.Important = c.important
		if _, err := a.Notes.Update(ctx, note.ID, draft); err != nil {
			return ReportError(errOut, err)
		}
	}

	if !a.Config.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
