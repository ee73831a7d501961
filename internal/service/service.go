// Package service defines the backend-agnostic interface for session, user and note operations.
package service

import "context"

// Service defines the interface for the notes backend.
// All API calls go through this interface.
// Commands and the state layer never build HTTP requests directly.
type Service interface {
	// Login opens a session for the given credentials and returns the signed-in user.
	Login(ctx context.Context, creds Credentials) (User, error)

	// Logout closes the current session.
	Logout(ctx context.Context) error

	// Register creates a new account. The server sends a verification email.
	Register(ctx context.Context, u NewUser) (User, error)

	// ChangePassword replaces the current user's password.
	ChangePassword(ctx context.Context, newPassword string) (User, error)

	// CurrentUser fetches the user bound to the current session.
	CurrentUser(ctx context.Context) (User, error)

	// SendVerificationEmail asks the server to resend the verification email.
	SendVerificationEmail(ctx context.Context) error

	// ListNotes returns every note owned by the signed-in user, in server order.
	ListNotes(ctx context.Context) ([]Note, error)

	// CreateNote creates a note and returns the canonical record.
	CreateNote(ctx context.Context, draft NoteDraft) (Note, error)

	// UpdateNote replaces a note by ID and returns the canonical record.
	UpdateNote(ctx context.Context, id string, draft NoteDraft) (Note, error)

	// DeleteNote soft-deletes a note. It stays recoverable through UndoDeleteNote.
	DeleteNote(ctx context.Context, id string) error

	// UndoDeleteNote restores a soft-deleted note and returns it.
	UndoDeleteNote(ctx context.Context, id string) (Note, error)
}

// TokenAware is implemented by backends that attach the user's opaque
// session token to outgoing requests.
type TokenAware interface {
	UseToken(token string)
}
