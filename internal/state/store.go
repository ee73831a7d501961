// Package state holds the signed-in user and the in-memory note list.
//
// The Store is created at process start, mutated only through its methods,
// and torn down by SetUser(nil) on logout. Identity changes persist the user
// to local storage and reload the full note collection from the backend.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"ynote/internal/notice"
	"ynote/internal/parse"
	"ynote/internal/service"
)

var (
	// ErrSignedOut is returned by operations that need a signed-in user.
	ErrSignedOut = errors.New("not logged in")

	// ErrSessionExpired is returned after the server rejected the session
	// and the store logged out locally.
	ErrSessionExpired = errors.New("session expired")
)

// Local is the durable local storage backing the session.
type Local interface {
	SaveUser(raw []byte) error
	LoadUser() (raw []byte, ok bool, err error)
	RemoveUser() error
	ClearCookies() error
}

// Store holds the session identity and the authoritative note list.
type Store struct {
	svc     service.Service
	local   Local
	notices notice.Sink
	log     *slog.Logger

	mu    sync.RWMutex
	user  *service.User
	notes []service.Note
	gen   uint64
}

// New creates an empty Store.
func New(svc service.Service, local Local, notices notice.Sink, logger *slog.Logger) *Store {
	if notices == nil {
		notices = notice.Discard
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{svc: svc, local: local, notices: notices, log: logger}
}

// User returns a copy of the signed-in user, or nil.
func (s *Store) User() *service.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Notes returns a read snapshot of the note list.
func (s *Store) Notes() []service.Note {
	notes, _ := s.Snapshot()
	return notes
}

// Snapshot returns a copy of the note list and the identity generation it
// belongs to. The generation changes whenever the user changes.
func (s *Store) Snapshot() ([]service.Note, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneNotes(s.notes), s.gen
}

// Generation returns the current identity generation.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// CommitNotes replaces the note list if the identity is still gen.
// It reports whether the list was replaced.
func (s *Store) CommitNotes(gen uint64, notes []service.Note) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.user == nil {
		s.log.Debug("dropping stale note list", "gen", gen, "current", s.gen)
		return false
	}
	s.notes = cloneNotes(notes)
	return true
}

// ApplyNotes atomically rewrites the note list with fn if the identity is
// still gen. fn receives a private copy it may modify.
func (s *Store) ApplyNotes(gen uint64, fn func(notes []service.Note) []service.Note) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.user == nil {
		s.log.Debug("dropping stale note update", "gen", gen, "current", s.gen)
		return false
	}
	s.notes = cloneNotes(fn(cloneNotes(s.notes)))
	return true
}

// SetUser replaces the current identity. A non-nil user is persisted and
// its notes are loaded; nil removes the persisted entry, the session
// cookies and the note list.
func (s *Store) SetUser(ctx context.Context, u *service.User) error {
	if u == nil {
		return s.clear()
	}

	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	if err := s.local.SaveUser(raw); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	copied := *u
	s.mu.Lock()
	s.user = &copied
	s.notes = nil
	s.gen++
	s.mu.Unlock()
	s.useToken(copied.Token)
	s.log.Debug("identity set", "user", copied.ID)

	return s.LoadNotes(ctx)
}

// Expire performs the defensive logout used when the server rejects the
// session. It is a no-op if the identity already changed since gen.
func (s *Store) Expire(gen uint64) error {
	s.mu.RLock()
	current := s.gen
	s.mu.RUnlock()
	if gen != current {
		return nil
	}
	s.log.Debug("session rejected by server, logging out", "gen", gen)
	return s.clear()
}

// Persisted reports whether a user record is stored locally.
func (s *Store) Persisted() (bool, error) {
	_, ok, err := s.local.LoadUser()
	return ok, err
}

// Forget removes the persisted user record but keeps the in-memory
// identity, so the next process starts signed out.
func (s *Store) Forget() error {
	return s.local.RemoveUser()
}

func (s *Store) clear() error {
	s.mu.Lock()
	wasSet := s.user != nil
	s.user = nil
	s.notes = nil
	s.gen++
	s.mu.Unlock()
	s.useToken("")
	if wasSet {
		s.log.Debug("identity cleared")
	}

	return errors.Join(s.local.RemoveUser(), s.local.ClearCookies())
}

// LoadNotes fetches the whole note collection and replaces local state.
// An unauthorized response logs out locally and returns ErrSessionExpired;
// any other failure is surfaced as an error notice and returned.
func (s *Store) LoadNotes(ctx context.Context) error {
	s.mu.RLock()
	signedIn := s.user != nil
	gen := s.gen
	s.mu.RUnlock()
	if !signedIn {
		return ErrSignedOut
	}

	notes, err := s.svc.ListNotes(ctx)
	if err != nil {
		if service.IsUnauthorized(err) {
			if clearErr := s.Expire(gen); clearErr != nil {
				return errors.Join(fmt.Errorf("%w: %v", ErrSessionExpired, err), clearErr)
			}
			return fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}
		s.notices.Notify(notice.FromError("Could not load notes", err))
		return err
	}

	s.CommitNotes(gen, notes)
	s.log.Debug("notes loaded", "count", len(notes))
	return nil
}

// Hydrate restores the identity from local storage when none is in memory.
// A corrupted record yields a *parse.FieldError (errors.Is parse.ErrMalformed)
// and leaves the store signed out.
func (s *Store) Hydrate(ctx context.Context) error {
	if s.User() != nil {
		return nil
	}

	raw, ok, err := s.local.LoadUser()
	if err != nil {
		return fmt.Errorf("failed to read stored session: %w", err)
	}
	if !ok {
		s.mu.Lock()
		s.notes = nil
		s.mu.Unlock()
		return nil
	}

	u, err := parse.ParseUser(raw)
	if err != nil {
		return fmt.Errorf("stored session is corrupted: %w", err)
	}
	return s.SetUser(ctx, &u)
}

func (s *Store) useToken(token string) {
	if ta, ok := s.svc.(service.TokenAware); ok {
		ta.UseToken(token)
	}
}

func cloneNotes(notes []service.Note) []service.Note {
	if notes == nil {
		return []service.Note{}
	}
	out := make([]service.Note, len(notes))
	copy(out, notes)
	return out
}
