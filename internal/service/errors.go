package service

import "errors"

var (
	// ErrNotFound is returned when the resource no longer exists on the server.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when the session is missing, expired or rejected.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTimeout is returned when a call exceeds its deadline.
	ErrTimeout = errors.New("request timed out")
)

// IsNotFound reports whether err means the resource is already gone.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnauthorized reports whether err means the session was rejected.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
