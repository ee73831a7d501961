// Package notice carries user-visible notices from the state layer to the
// presentation layer.
package notice

import (
	"context"
	"errors"
	"fmt"

	"ynote/internal/service"
)

// Kind classifies a notice.
type Kind int

const (
	// Info is a benign, informational notice.
	Info Kind = iota

	// Error reports a failure with diagnostic detail.
	Error

	// Inconsistent reports local state that no longer matches the intent;
	// the user should refresh.
	Inconsistent
)

func (k Kind) String() string {
	switch k {
	case Info:
		return "info"
	case Error:
		return "error"
	case Inconsistent:
		return "inconsistent"
	default:
		return "unknown"
	}
}

// Notice is a displayable (title, body) pair. Either part may be empty.
type Notice struct {
	Kind  Kind
	Title string
	Body  string
}

// Sink receives notices. Implementations must be safe for concurrent use
// because asynchronous completions deliver notices from other goroutines.
type Sink interface {
	Notify(n Notice)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(n Notice)

// Notify implements Sink.
func (f SinkFunc) Notify(n Notice) { f(n) }

// Discard drops every notice.
var Discard Sink = SinkFunc(func(Notice) {})

// FromError builds an error notice carrying the error classification and
// message.
func FromError(title string, err error) Notice {
	return Notice{
		Kind:  Error,
		Title: title,
		Body:  fmt.Sprintf("kind: %s\nmessage: %v", Classify(err), err),
	}
}

// Classify names the failure class of err.
func Classify(err error) string {
	switch {
	case err == nil:
		return "none"
	case service.IsUnauthorized(err):
		return "unauthorized"
	case service.IsNotFound(err):
		return "not found"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, service.ErrTimeout):
		return "timeout"
	default:
		return "backend"
	}
}
