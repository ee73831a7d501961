package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"ynote/internal/exitcode"
	"ynote/internal/parse"
	"ynote/internal/reconcile"
	"ynote/internal/service"
	"ynote/internal/state"
)

// ReportError prints err to errOut in the CLI's error format and returns
// the matching exit code.
func ReportError(errOut io.Writer, err error) int {
	var inErr *inputError
	switch {
	case err == nil:
		return exitcode.Success
	case errors.Is(err, state.ErrSignedOut):
		fmt.Fprintln(errOut, "error: not logged in (run: ynote login)")
		return exitcode.AuthError
	case errors.Is(err, state.ErrSessionExpired):
		fmt.Fprintln(errOut, "error: session expired (run: ynote login)")
		return exitcode.AuthError
	case errors.As(err, &inErr):
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	case errors.Is(err, errNoEmail):
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.AuthError
	case errors.Is(err, parse.ErrMalformed):
		fmt.Fprintf(errOut, "error: %v (run: ynote login)\n", err)
		return exitcode.AuthError
	case service.IsUnauthorized(err):
		fmt.Fprintf(errOut, "error: auth error: %v\n", err)
		return exitcode.AuthError
	case errors.Is(err, reconcile.ErrNotFoundLocally):
		// The controller already raised a notice.
		return exitcode.UserError
	case errors.Is(err, reconcile.ErrAffordanceRetired):
		fmt.Fprintln(errOut, "error: nothing to undo")
		return exitcode.UserError
	case service.IsNotFound(err):
		fmt.Fprintln(errOut, "error: note not found")
		return exitcode.UserError
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(errOut, "error: cancelled")
		return exitcode.BackendError
	default:
		fmt.Fprintf(errOut, "error: backend error: %v\n", err)
		return exitcode.BackendError
	}
}
