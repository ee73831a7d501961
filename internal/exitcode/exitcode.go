// Package exitcode lists the process exit statuses of ynote.
package exitcode

const (
	// Success means the command did what was asked.
	Success = 0

	// UserError covers bad arguments, unknown note numbers and empty input.
	UserError = 1

	// AuthError means there is no usable session: not logged in, the
	// server rejected the session, or the stored session is corrupted.
	AuthError = 2

	// BackendError covers failed or timed out API calls.
	BackendError = 3
)
