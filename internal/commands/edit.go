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
)

func init() {
	Register(&EditCmd{})
}

// EditCmd implements the edit command.
type EditCmd struct {
	important bool
	normal    bool
}

// SetImportance sets the importance flags (for testing).
func (c *EditCmd) SetImportance(important, normal bool) {
	c.important = important
	c.normal = normal
}

func (c *EditCmd) Name() string          { return "edit" }
func (c *EditCmd) Aliases() []string     { return nil }
func (c *EditCmd) Synopsis() string      { return "Change a note" }
func (c *EditCmd) Usage() string         { return "ynote edit [--important|--normal] <n> [content...]" }
func (c *EditCmd) Requires() Requirement { return NeedsSession }

func (c *EditCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.important, "important", false, "")
	fs.BoolVar(&c.normal, "normal", false, "")
}

func (c *EditCmd) Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int {
	if c.important && c.normal {
		fmt.Fprintln(errOut, "error: cannot use both --important and --normal")
		return exitcode.UserError
	}

	num, err := ParseNoteRef(args)
	if err != nil {
		return reportRefError(errOut, err)
	}
	note, err := findNoteByNumber(a.Store.Notes(), num)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	draft := note.Draft()
	content := strings.Join(args[1:], " ")
	changed := false
	if strings.TrimSpace(content) != "" {
		draft.Content = content
		changed = true
	}
	if c.important || c.normal {
		draft.Important = c.important
		changed = true
	}
	if !changed {
		fmt.Fprintln(errOut, "error: nothing to change")
		return exitcode.UserError
	}

	if _, err := a.Notes.Update(ctx, note.ID, draft); err != nil {
		return ReportError(errOut, err)
	}

	if !a.Config.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}

func reportRefError(errOut io.Writer, err error) int {
	if errors.Is(err, ErrNoteRefRequired) {
		fmt.Fprintln(errOut, "error: note reference required")
	} else {
		fmt.Fprintf(errOut, "error: %v\n", err)
	}
	return exitcode.UserError
}
