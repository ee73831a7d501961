package commands_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"ynote/internal/app"
	"ynote/internal/commands"
	"ynote/internal/config"
	"ynote/internal/exitcode"
	"ynote/internal/reconcile"
	"ynote/internal/service"
	"ynote/internal/state"
	"ynote/internal/storage"
	"ynote/internal/testutil"
)

// env is a signed-in App backed by a FakeService.
type env struct {
	a      *app.App
	svc    *testutil.FakeService
	stderr *bytes.Buffer
}

func newEnv(t *testing.T, svc *testutil.FakeService, quiet bool, stdin string) *env {
	t.Helper()
	cfg := &config.Config{
		Dir:         t.TempDir(),
		Quiet:       quiet,
		APITimeout:  config.DefaultAPITimeout,
		UndoTimeout: config.DefaultUndoTimeout,
		Stdin:       strings.NewReader(stdin),
	}
	var stderr bytes.Buffer
	factory := func(*config.Config, *storage.DB, *slog.Logger) (service.Service, error) {
		return svc, nil
	}
	a, err := app.Open(cfg, factory, &stderr)
	if err != nil {
		t.Fatalf("app.Open: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	u := svc.AddAccount("u1", "alice@example.com", "Alice", "secret")
	svc.SignIn(u)
	if err := a.Store.SetUser(context.Background(), &u); err != nil {
		t.Fatalf("SetUser: %v", err)
	}
	return &env{a: a, svc: svc, stderr: &stderr}
}

// runCommand runs cmd and returns its output; stderr includes notices.
func (e *env) runCommand(cmd commands.Command, args ...string) (stdout, stderr string, code int) {
	var outBuf bytes.Buffer
	e.stderr.Reset()
	code = cmd.Run(context.Background(), e.a, args, &outBuf, e.stderr)
	e.a.Notes.Wait()
	return outBuf.String(), e.stderr.String(), code
}

// Tests for version command
func TestVersionCommand(t *testing.T) {
	cmd := &commands.VersionCmd{}

	var out, errOut bytes.Buffer
	code := cmd.Run(context.Background(), app.Bare(&config.Config{}), nil, &out, &errOut)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if errOut.String() != "" {
		t.Errorf("expected no stderr, got %q", errOut.String())
	}
	if out.String() != "ynote 0.1.0\n" {
		t.Errorf("expected version output, got %q", out.String())
	}
}

// Tests for help command
func TestHelpCommand(t *testing.T) {
	cmd := &commands.HelpCmd{}

	var out, errOut bytes.Buffer
	code := cmd.Run(context.Background(), app.Bare(&config.Config{}), nil, &out, &errOut)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if !strings.Contains(out.String(), "Usage:") {
		t.Error("help output should contain 'Usage:'")
	}
	for _, cmd := range commands.DefaultRegistry.All() {
		if !strings.Contains(out.String(), "ynote "+cmd.Name()) {
			t.Errorf("help output does not mention %q", cmd.Name())
		}
	}
}

func TestRegistryAliases(t *testing.T) {
	for alias, name := range map[string]string{"ls": "list", "create": "add", "delete": "rm", "sh": "shell"} {
		cmd, ok := commands.DefaultRegistry.Find(alias)
		if !ok || cmd.Name() != name {
			t.Errorf("Find(%q) = %v, want %s", alias, cmd, name)
		}
	}
}

func TestRegistryDuplicate(t *testing.T) {
	r := commands.NewRegistry()
	if err := r.Register(&commands.ListCmd{}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&commands.ListCmd{}); err == nil {
		t.Error("expected duplicate registration error")
	}
}

// Tests for list command
func TestListCommand_WithNotes(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddNote("n1", "Buy milk")
	svc.AddNote("n2", "Buy eggs")
	e := newEnv(t, svc, false, "")

	stdout, stderr, code := e.runCommand(&commands.ListCmd{})

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if !strings.Contains(stdout, "   1  Buy milk") || !strings.Contains(stdout, "   2  Buy eggs") {
		t.Errorf("unexpected list output: %q", stdout)
	}
}

func TestListCommand_EmptyQuiet(t *testing.T) {
	e := newEnv(t, testutil.NewFakeService(), true, "")

	stdout, _, code := e.runCommand(&commands.ListCmd{})
	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "" {
		t.Errorf("expected no output in quiet mode, got %q", stdout)
	}
}

// Tests for add command
func TestAddCommand_Success(t *testing.T) {
	svc := testutil.NewFakeService()
	e := newEnv(t, svc, false, "")

	cmd := &commands.AddCmd{}
	cmd.SetImportant(true)
	stdout, stderr, code := e.runCommand(cmd, "call", "the", "plumber")

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("expected 'ok\\n', got %q", stdout)
	}
	notes := e.a.Store.Notes()
	if len(notes) != 1 || notes[0].Content != "call the plumber" || !notes[0].Important {
		t.Errorf("local notes = %+v", notes)
	}
}

func TestAddCommand_NoContent(t *testing.T) {
	svc := testutil.NewFakeService()
	e := newEnv(t, svc, false, "")

	_, stderr, code := e.runCommand(&commands.AddCmd{}, "   ")
	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: content required\n" {
		t.Errorf("got %q", stderr)
	}
	if n := svc.CallCount("CreateNote"); n != 0 {
		t.Errorf("CreateNote calls = %d, want 0", n)
	}
}

func TestAddCommand_BackendError(t *testing.T) {
	svc := testutil.NewFakeService()
	e := newEnv(t, svc, false, "")
	svc.CreateNoteErr = errors.New("HTTP 502: bad gateway")

	_, stderr, code := e.runCommand(&commands.AddCmd{}, "x")
	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	if stderr != "error: backend error: HTTP 502: bad gateway\n" {
		t.Errorf("got %q", stderr)
	}
}

func TestAddCommand_SessionExpired(t *testing.T) {
	svc := testutil.NewFakeService()
	e := newEnv(t, svc, false, "")
	svc.CreateNoteErr = fmt.Errorf("%w: expired", service.ErrUnauthorized)

	_, stderr, code := e.runCommand(&commands.AddCmd{}, "x")
	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if stderr != "error: session expired (run: ynote login)\n" {
		t.Errorf("got %q", stderr)
	}
	if e.a.Store.User() != nil {
		t.Error("still signed in after rejected session")
	}
}

// Tests for edit command
func TestEditCommand_ContentAndImportance(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddNote("n1", "old")
	e := newEnv(t, svc, false, "")

	cmd := &commands.EditCmd{}
	cmd.SetImportance(true, false)
	if _, stderr, code := e.runCommand(cmd, "1", "new", "text"); code != exitcode.Success {
		t.Fatalf("code %d, stderr %q", code, stderr)
	}
	got := e.a.Store.Notes()[0]
	if got.Content != "new text" || !got.Important {
		t.Errorf("note = %+v", got)
	}

	cmd.SetImportance(false, true)
	if _, _, code := e.runCommand(cmd, "1"); code != exitcode.Success {
		t.Fatalf("code %d", code)
	}
	got = e.a.Store.Notes()[0]
	if got.Content != "new text" || got.Important {
		t.Errorf("note after --normal = %+v", got)
	}
}

func TestEditCommand_NothingToChange(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddNote("n1", "old")
	e := newEnv(t, svc, false, "")

	_, stderr, code := e.runCommand(&commands.EditCmd{}, "1")
	if code != exitcode.UserError || stderr != "error: nothing to change\n" {
		t.Errorf("code %d, stderr %q", code, stderr)
	}
}

func TestEditCommand_ConflictingFlags(t *testing.T) {
	e := newEnv(t, testutil.NewFakeService(), false, "")

	cmd := &commands.EditCmd{}
	cmd.SetImportance(true, true)
	_, stderr, code := e.runCommand(cmd, "1")
	if code != exitcode.UserError || stderr != "error: cannot use both --important and --normal\n" {
		t.Errorf("code %d, stderr %q", code, stderr)
	}
}

// Tests for star and unstar commands
func TestStarCommand(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddNote("n1", "x")
	e := newEnv(t, svc, false, "")

	if _, _, code := e.runCommand(commands.NewStarCmd(true), "1"); code != exitcode.Success {
		t.Fatalf("star code %d", code)
	}
	if !e.a.Store.Notes()[0].Important {
		t.Error("note not important after star")
	}

	// Starring again makes no request.
	before := svc.CallCount("UpdateNote")
	e.runCommand(commands.NewStarCmd(true), "1")
	if svc.CallCount("UpdateNote") != before {
		t.Error("star on an important note sent an update")
	}

	if _, _, code := e.runCommand(commands.NewStarCmd(false), "1"); code != exitcode.Success {
		t.Fatalf("unstar code %d", code)
	}
	if e.a.Store.Notes()[0].Important {
		t.Error("note still important after unstar")
	}
}

// Tests for rm command
func TestRmCommand_Success(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddNote("n1", "Buy milk")
	svc.AddNote("n2", "Buy eggs")
	e := newEnv(t, svc, false, "")

	stdout, stderr, code := e.runCommand(&commands.RmCmd{}, "1")

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "Note «Buy milk» deleted\n" {
		t.Errorf("got %q", stdout)
	}
	if notes := e.a.Store.Notes(); len(notes) != 1 || notes[0].ID != "n2" {
		t.Errorf("local notes = %+v", notes)
	}
}

func TestRmCommand_AlreadyGoneOnServer(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddNote("n1", "Buy milk")
	e := newEnv(t, svc, true, "")
	svc.DeleteNoteErr = service.ErrNotFound

	_, stderr, code := e.runCommand(&commands.RmCmd{}, "1")
	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if !strings.Contains(stderr, "The note you deleted no longer exists") {
		t.Errorf("stderr = %q", stderr)
	}
	if len(e.a.Store.Notes()) != 0 {
		t.Errorf("note came back: %+v", e.a.Store.Notes())
	}
}

func TestRmCommand_NoRef(t *testing.T) {
	e := newEnv(t, testutil.NewFakeService(), false, "")

	stdout, stderr, code := e.runCommand(&commands.RmCmd{})

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
	if stderr != "error: note reference required\n" {
		t.Errorf("expected note reference required error, got %q", stderr)
	}
}

func TestRmCommand_InvalidRef(t *testing.T) {
	e := newEnv(t, testutil.NewFakeService(), false, "")

	_, stderr, code := e.runCommand(&commands.RmCmd{}, "abc")
	if code != exitcode.UserError || stderr != "error: invalid note reference: abc\n" {
		t.Errorf("code %d, stderr %q", code, stderr)
	}
}

// Tests for passwd command
func TestPasswdCommand(t *testing.T) {
	svc := testutil.NewFakeService()
	e := newEnv(t, svc, false, "hunter2\nhunter2\n")

	stdout, stderr, code := e.runCommand(&commands.PasswdCmd{})
	if code != exitcode.Success || stdout != "password changed\n" {
		t.Fatalf("code %d, stdout %q, stderr %q", code, stdout, stderr)
	}
	if got := svc.Password("alice@example.com"); got != "hunter2" {
		t.Errorf("password = %q", got)
	}
}

func TestPasswdCommand_EmptyInput(t *testing.T) {
	svc := testutil.NewFakeService()
	e := newEnv(t, svc, false, "")

	_, stderr, code := e.runCommand(&commands.PasswdCmd{})
	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d (stderr %q)", exitcode.UserError, code, stderr)
	}
	if n := svc.CallCount("ChangePassword"); n != 0 {
		t.Errorf("ChangePassword calls = %d, want 0", n)
	}
}

// Tests for the shell
func TestShellCommand_Session(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddNote("n1", "alpha")
	script := strings.Join([]string{
		"add! urgent thing",
		"star 1",
		"edit 1 alpha two",
		"rm 2",
		"undo",
		"undo",
		"ls",
		"help",
		"quit",
		"ls",
	}, "\n") + "\n"
	e := newEnv(t, svc, true, script)

	stdout, stderr, code := e.runCommand(&commands.ShellCmd{})
	if code != exitcode.Success {
		t.Fatalf("code %d, stderr %q", code, stderr)
	}

	for _, want := range []string{"added 2\n", `restored "urgent thing"`, "Commands:"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
	if !strings.Contains(stderr, "nothing to undo") {
		t.Errorf("second undo should report nothing to undo: %q", stderr)
	}
	// quit stops before the trailing ls.
	if n := strings.Count(stdout, "alpha two"); n != 1 {
		t.Errorf("list printed %d times, want 1:\n%s", n, stdout)
	}

	notes := e.a.Store.Notes()
	if len(notes) != 2 || notes[0].Content != "alpha two" || !notes[0].Important || notes[1].Content != "urgent thing" {
		t.Errorf("notes = %+v", notes)
	}
}

func TestShellCommand_EndsWhenSessionRejected(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddNote("n1", "alpha")
	e := newEnv(t, svc, true, "add x\nls\n")
	svc.CreateNoteErr = service.ErrUnauthorized

	_, stderr, code := e.runCommand(&commands.ShellCmd{})
	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if !strings.Contains(stderr, "session ended") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestShellCommand_PasswdAnnounces(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddNote("n1", "alpha")
	e := newEnv(t, svc, true, "rm 1\npasswd\npw\npw\nundo\nquit\n")

	_, stderr, code := e.runCommand(&commands.ShellCmd{})
	if code != exitcode.Success {
		t.Fatalf("code %d, stderr %q", code, stderr)
	}
	if !strings.Contains(stderr, "Password changed") {
		t.Errorf("stderr = %q", stderr)
	}
	// The announcement retired the pending undo.
	if !strings.Contains(stderr, "nothing to undo") {
		t.Errorf("undo after announcement should be retired: %q", stderr)
	}
	if svc.Password("alice@example.com") != "pw" {
		t.Error("password not changed")
	}
}

// Tests for ReportError
func TestReportError(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantOut  string
	}{
		{state.ErrSignedOut, exitcode.AuthError, "error: not logged in (run: ynote login)\n"},
		{fmt.Errorf("%w: x", state.ErrSessionExpired), exitcode.AuthError, "error: session expired (run: ynote login)\n"},
		{service.ErrUnauthorized, exitcode.AuthError, "error: auth error: unauthorized\n"},
		{reconcile.ErrAffordanceRetired, exitcode.UserError, "error: nothing to undo\n"},
		{fmt.Errorf("%w: n1", reconcile.ErrNotFoundLocally), exitcode.UserError, ""},
		{service.ErrNotFound, exitcode.UserError, "error: note not found\n"},
		{context.Canceled, exitcode.BackendError, "error: cancelled\n"},
		{service.ErrTimeout, exitcode.BackendError, "error: backend error: request timed out\n"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		if code := commands.ReportError(&buf, tt.err); code != tt.wantCode {
			t.Errorf("ReportError(%v) = %d, want %d", tt.err, code, tt.wantCode)
		}
		if buf.String() != tt.wantOut {
			t.Errorf("ReportError(%v) wrote %q, want %q", tt.err, buf.String(), tt.wantOut)
		}
	}
}
