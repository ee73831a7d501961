// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ynote/internal/service"
)

// FakeService is an in-memory implementation of service.Service for testing.
type FakeService struct {
	mu       sync.RWMutex
	accounts map[string]*fakeAccount
	current  *service.User
	notes    []service.Note
	deleted  map[string]service.Note
	calls    []string
	nextID   int
	token    string

	// Error injection for testing
	LoginErr          error
	LogoutErr         error
	RegisterErr       error
	ChangePasswordErr error
	CurrentUserErr    error
	SendVerifyErr     error
	ListNotesErr      error
	CreateNoteErr     error
	UpdateNoteErr     error
	DeleteNoteErr     error
	UndoDeleteErr     error

	// DeleteGate, when set, holds DeleteNote until it receives a value or
	// is closed. Used to observe state while a delete is in flight.
	DeleteGate chan struct{}
}

// NewFakeService creates a new FakeService with no accounts.
func NewFakeService() *FakeService {
	return &FakeService{
		accounts: make(map[string]*fakeAccount),
		deleted:  make(map[string]service.Note),
	}
}

// AddAccount adds an account.
func (f *FakeService) AddAccount(id, email, name, password string) service.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := service.User{
		ID:                    id,
		Email:                 email,
		Name:                  name,
		LastVerificationEmail: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	f.accounts[email] = &fakeAccount{user: u, password: password}
	return u
}

// SignIn makes u the session user without a Login call.
func (f *FakeService) SignIn(u service.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = &u
}

// AddNote adds a note with the given ID and content.
func (f *FakeService) AddNote(id, content string) service.Note {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := service.Note{
		ID:      id,
		Content: content,
		Date:    time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.notes = append(f.notes, n)
	return n
}

// Purge permanently removes a soft-deleted note.
func (f *FakeService) Purge(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.deleted, id)
}

// ServerNotes returns the server-side live notes.
func (f *FakeService) ServerNotes() []service.Note {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]service.Note, len(f.notes))
	copy(out, f.notes)
	return out
}

// Calls returns the names of the methods called so far, in order.
func (f *FakeService) Calls() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many times method was called.
func (f *FakeService) CallCount(method string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}

// Token returns the token last passed to UseToken.
func (f *FakeService) Token() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.token
}

func (f *FakeService) record(method string) {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	f.mu.Unlock()
}

// UseToken implements service.TokenAware.
func (f *FakeService) UseToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

// Login implements service.Service.
func (f *FakeService) Login(ctx context.Context, creds service.Credentials) (service.User, error) {
	f.record("Login")
	if f.LoginErr != nil {
		return service.User{}, f.LoginErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[creds.Email]
	if !ok || acc.password != creds.Password {
		return service.User{}, fmt.Errorf("%w: wrong email or password", service.ErrUnauthorized)
	}
	u := acc.user
	f.current = &u
	return u, nil
}

// Logout implements service.Service.
func (f *FakeService) Logout(ctx context.Context) error {
	f.record("Logout")
	if f.LogoutErr != nil {
		return f.LogoutErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = nil
	return nil
}

// Register implements service.Service.
func (f *FakeService) Register(ctx context.Context, nu service.NewUser) (service.User, error) {
	f.record("Register")
	if f.RegisterErr != nil {
		return service.User{}, f.RegisterErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.accounts[nu.Email]; exists {
		return service.User{}, fmt.Errorf("HTTP 409: email already registered")
	}
	f.nextID++
	u := service.User{
		ID:                    fmt.Sprintf("user-%d", f.nextID),
		Email:                 nu.Email,
		Name:                  nu.Name,
		LastVerificationEmail: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	f.accounts[nu.Email] = &fakeAccount{user: u, password: nu.Password}
	return u, nil
}

// ChangePassword implements service.Service.
func (f *FakeService) ChangePassword(ctx context.Context, newPassword string) (service.User, error) {
	f.record("ChangePassword")
	if f.ChangePasswordErr != nil {
		return service.User{}, f.ChangePasswordErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return service.User{}, service.ErrUnauthorized
	}
	if acc, ok := f.accounts[f.current.Email]; ok {
		acc.password = newPassword
	}
	return *f.current, nil
}

// Password returns the stored password for email.
func (f *FakeService) Password(email string) string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if acc, ok := f.accounts[email]; ok {
		return acc.password
	}
	return ""
}

// SetVerified marks the account verified.
func (f *FakeService) SetVerified(email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if acc, ok := f.accounts[email]; ok {
		acc.user.Verified = true
	}
	if f.current != nil && f.current.Email == email {
		f.current.Verified = true
	}
}

// CurrentUser implements service.Service.
func (f *FakeService) CurrentUser(ctx context.Context) (service.User, error) {
	f.record("CurrentUser")
	if f.CurrentUserErr != nil {
		return service.User{}, f.CurrentUserErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.current == nil {
		return service.User{}, service.ErrUnauthorized
	}
	return *f.current, nil
}

// SendVerificationEmail implements service.Service.
func (f *FakeService) SendVerificationEmail(ctx context.Context) error {
	f.record("SendVerificationEmail")
	return f.SendVerifyErr
}

// ListNotes implements service.Service.
func (f *FakeService) ListNotes(ctx context.Context) ([]service.Note, error) {
	f.record("ListNotes")
	if f.ListNotesErr != nil {
		return nil, f.ListNotesErr
	}
	return f.ServerNotes(), nil
}

// CreateNote implements service.Service.
func (f *FakeService) CreateNote(ctx context.Context, draft service.NoteDraft) (service.Note, error) {
	f.record("CreateNote")
	if f.CreateNoteErr != nil {
		return service.Note{}, f.CreateNoteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	n := service.Note{
		ID:        fmt.Sprintf("note-%d", f.nextID),
		Content:   draft.Content,
		Important: draft.Important,
		Date:      time.Date(2023, 3, 2, 12, 0, 0, 0, time.UTC),
	}
	f.notes = append(f.notes, n)
	return n, nil
}

// UpdateNote implements service.Service.
func (f *FakeService) UpdateNote(ctx context.Context, id string, draft service.NoteDraft) (service.Note, error) {
	f.record("UpdateNote")
	if f.UpdateNoteErr != nil {
		return service.Note{}, f.UpdateNoteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.notes {
		if n.ID == id {
			f.notes[i].Content = draft.Content
			f.notes[i].Important = draft.Important
			return f.notes[i], nil
		}
	}
	return service.Note{}, service.ErrNotFound
}

// DeleteNote implements service.Service.
func (f *FakeService) DeleteNote(ctx context.Context, id string) error {
	f.record("DeleteNote")
	if f.DeleteGate != nil {
		select {
		case <-f.DeleteGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.DeleteNoteErr != nil {
		return f.DeleteNoteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.notes {
		if n.ID == id {
			f.notes = append(f.notes[:i], f.notes[i+1:]...)
			f.deleted[id] = n
			return nil
		}
	}
	return service.ErrNotFound
}

// UndoDeleteNote implements service.Service.
func (f *FakeService) UndoDeleteNote(ctx context.Context, id string) (service.Note, error) {
	f.record("UndoDeleteNote")
	if f.UndoDeleteErr != nil {
		return service.Note{}, f.UndoDeleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.deleted[id]
	if !ok {
		return service.Note{}, service.ErrNotFound
	}
	delete(f.deleted, id)
	f.notes = append(f.notes, n)
	return n, nil
}
