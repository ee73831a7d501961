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
	"ynote/internal/output"
	"ynote/internal/reconcile"
	"ynote/internal/service"
)

func init() {
	Register(&ShellCmd{})
}

// ShellCmd implements the interactive shell. It keeps one session open so
// deletions can be undone while their affordance is armed.
type ShellCmd struct{}

func (c *ShellCmd) Name() string          { return "shell" }
func (c *ShellCmd) Aliases() []string     { return []string{"sh"} }
func (c *ShellCmd) Synopsis() string      { return "Interactive note shell with undo" }
func (c *ShellCmd) Usage() string         { return "ynote shell" }
func (c *ShellCmd) Requires() Requirement { return NeedsSession }

func (c *ShellCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ShellCmd) Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int {
	sh := &shell{
		a:      a,
		in:     newPrompter(a.Config.Stdin, errOut),
		out:    out,
		errOut: errOut,
	}
	return sh.loop(ctx)
}

type shell struct {
	a      *app.App
	in     *prompter
	out    io.Writer
	errOut io.Writer
}

func (s *shell) loop(ctx context.Context) int {
	s.prompt()
	for {
		line, ok := s.in.Line()
		if !ok {
			break
		}
		if quit := s.exec(ctx, strings.TrimSpace(line)); quit {
			break
		}
		if s.a.Store.User() == nil {
			fmt.Fprintln(s.errOut, "error: session ended (run: ynote login)")
			return exitcode.AuthError
		}
		if ctx.Err() != nil {
			break
		}
		s.prompt()
	}
	if err := s.in.Err(); err != nil {
		fmt.Fprintf(s.errOut, "error: failed to read input: %v\n", err)
		return exitcode.UserError
	}
	return exitcode.Success
}

func (s *shell) prompt() {
	if !s.a.Config.Quiet {
		fmt.Fprint(s.out, "> ")
	}
}

// exec runs one shell line and reports whether the shell should exit.
func (s *shell) exec(ctx context.Context, line string) bool {
	if line == "" {
		return false
	}
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case "ls", "list":
		s.list()
	case "add", "add!":
		s.add(ctx, rest, name == "add!")
	case "edit":
		s.edit(ctx, rest)
	case "star", "unstar":
		s.star(ctx, rest, name == "star")
	case "rm", "delete":
		s.remove(ctx, rest)
	case "undo":
		s.undo(ctx)
	case "dismiss":
		s.a.Notes.Dismiss()
	case "refresh":
		if err := s.a.Notes.Refresh(ctx); err != nil {
			s.report(err)
			return false
		}
		s.list()
	case "whoami":
		u, err := currentUser(ctx, s.a)
		if err != nil {
			s.report(err)
			return false
		}
		output.FormatUser(s.out, u)
	case "passwd":
		if err := changePassword(ctx, s.a, s.in); err != nil {
			s.report(err)
			return false
		}
		s.a.Notes.Announce("Password changed")
	case "help", "?":
		fmt.Fprint(s.out, shellHelp)
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(s.errOut, "error: unknown command: %s (type help)\n", name)
	}
	return false
}

func (s *shell) list() {
	output.FormatNotes(s.out, s.a.Store.Notes())
	if s.a.Notes.Diverged() {
		fmt.Fprintln(s.errOut, "warning: the list may be out of date (run: refresh)")
	}
}

func (s *shell) add(ctx context.Context, content string, important bool) {
	if content == "" {
		fmt.Fprintln(s.errOut, "error: content required")
		return
	}
	if _, err := s.a.Notes.Create(ctx, service.NoteDraft{Content: content, Important: important}); err != nil {
		s.report(err)
		return
	}
	fmt.Fprintf(s.out, "added %d\n", len(s.a.Store.Notes()))
}

func (s *shell) edit(ctx context.Context, rest string) {
	ref, content, _ := strings.Cut(rest, " ")
	content = strings.TrimSpace(content)
	note, ok := s.lookup(ref)
	if !ok {
		return
	}
	if content == "" {
		fmt.Fprintln(s.errOut, "error: content required")
		return
	}
	draft := note.Draft()
	draft.Content = content
	if _, err := s.a.Notes.Update(ctx, note.ID, draft); err != nil {
		s.report(err)
		return
	}
	fmt.Fprintln(s.out, "ok")
}

func (s *shell) star(ctx context.Context, ref string, important bool) {
	note, ok := s.lookup(ref)
	if !ok {
		return
	}
	if note.Important != important {
		draft := note.Draft()
		draft.Important = important
		if _, err := s.a.Notes.Update(ctx, note.ID, draft); err != nil {
			s.report(err)
			return
		}
	}
	fmt.Fprintln(s.out, "ok")
}

func (s *shell) remove(ctx context.Context, ref string) {
	note, ok := s.lookup(ref)
	if !ok {
		return
	}
	aff, err := s.a.Notes.Delete(ctx, note.ID)
	if err != nil {
		s.report(err)
		return
	}
	hint := fmt.Sprintf("type undo within %s", s.a.Config.UndoTimeout)
	s.a.Notices.Snackbar(aff.Message, hint)
}

func (s *shell) undo(ctx context.Context) {
	aff := s.a.Notes.Armed()
	if aff == nil {
		fmt.Fprintln(s.errOut, "nothing to undo")
		return
	}
	restored, err := s.a.Notes.Undo(ctx, aff)
	switch {
	case errors.Is(err, reconcile.ErrAffordanceRetired):
		fmt.Fprintln(s.errOut, "nothing to undo")
	case err != nil:
		// Reported as a notice.
	default:
		fmt.Fprintf(s.out, "restored %q\n", restored.Content)
	}
}

// lookup resolves a note number typed in the shell.
func (s *shell) lookup(ref string) (service.Note, bool) {
	num, err := ParseNoteRef(strings.Fields(ref))
	if err != nil {
		reportRefError(s.errOut, err)
		return service.Note{}, false
	}
	note, err := findNoteByNumber(s.a.Store.Notes(), num)
	if err != nil {
		fmt.Fprintf(s.errOut, "error: %v\n", err)
		return service.Note{}, false
	}
	return note, true
}

func (s *shell) report(err error) {
	ReportError(s.errOut, err)
}

const shellHelp = `Commands:
  ls                 List notes
  add <content>      Create a note
  add! <content>     Create an important note
  edit <n> <content> Change a note's content
  star <n>           Mark a note important
  unstar <n>         Mark a note normal
  rm <n>             Delete a note (undo stays available for a few seconds)
  undo               Restore the note deleted last
  dismiss            Drop the pending undo
  refresh            Reload notes from the server
  whoami             Show the signed-in user
  passwd             Change your password
  help               Show this help
  quit               Leave the shell
`
