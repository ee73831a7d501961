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
	Register(&AddCmd{})
}

// AddCmd implements the add command.
type AddCmd struct {
	important bool
}

// SetImportant sets the importance flag (for testing).
func (c *AddCmd) SetImportant(important bool) {
	c.important = important
}

func (c *AddCmd) Name() string          { return "add" }
func (c *AddCmd) Aliases() []string     { return []string{"create"} }
func (c *AddCmd) Synopsis() string      { return "Create a note" }
func (c *AddCmd) Usage() string         { return "ynote add [--important] <content...>" }
func (c *AddCmd) Requires() Requirement { return NeedsSession }

func (c *AddCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.important, "important", false, "")
	fs.BoolVar(&c.important, "i", false, "")
}

func (c *AddCmd) Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int {
	content := strings.Join(args, " ")
	if strings.TrimSpace(content) == "" {
		fmt.Fprintln(errOut, "error: content required")
		return exitcode.UserError
	}

	if _, err := a.Notes.Create(ctx, service.NoteDraft{Content: content, Important: c.important}); err != nil {
		return ReportError(errOut, err)
	}

	if !a.Config.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
