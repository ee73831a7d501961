package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"ynote/internal/service"
)

// SessionCookie is the cookie name FakeAPI uses for sessions.
const SessionCookie = "sid"

// RecordedRequest is a request observed by FakeAPI.
type RecordedRequest struct {
	Method        string
	Path          string
	Query         string
	ContentType   string
	Authorization string
	Cookie        string
	Body          string
}

type fakeAccount struct {
	user     service.User
	password string
}

type fakeNote struct {
	note    service.Note
	deleted bool
}

// FakeAPI is an in-memory HTTP server speaking the notes REST API.
type FakeAPI struct {
	*httptest.Server

	mu       sync.Mutex
	accounts map[string]*fakeAccount // email -> account
	sessions map[string]string       // session id -> email
	notes    []*fakeNote
	requests []RecordedRequest
	failNext int
}

// NewFakeAPI starts a FakeAPI. Close it when done.
func NewFakeAPI() *FakeAPI {
	f := &FakeAPI{
		accounts: make(map[string]*fakeAccount),
		sessions: make(map[string]string),
	}

	r := mux.NewRouter()
	r.Use(f.record)
	r.HandleFunc("/api/sessions/{email}", f.login).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/", f.logout).Methods(http.MethodDelete)
	r.HandleFunc("/api/users/", f.register).Methods(http.MethodPost)
	r.HandleFunc("/api/users/", f.authed(f.patchUser)).Methods(http.MethodPatch)
	r.HandleFunc("/api/users/", f.authed(f.currentUser)).Methods(http.MethodGet)
	r.HandleFunc("/api/users/verification-email", f.authed(f.verificationEmail)).Methods(http.MethodGet)
	r.HandleFunc("/api/notes/", f.authed(f.listNotes)).Methods(http.MethodGet)
	r.HandleFunc("/api/notes/", f.authed(f.createNote)).Methods(http.MethodPost)
	r.HandleFunc("/api/notes/undo-delete/{id}", f.authed(f.undoDelete)).Methods(http.MethodPatch)
	r.HandleFunc("/api/notes/{id}", f.authed(f.updateNote)).Methods(http.MethodPut)
	r.HandleFunc("/api/notes/{id}", f.authed(f.deleteNote)).Methods(http.MethodDelete)

	f.Server = httptest.NewServer(r)
	return f
}

// AddAccount registers an account directly.
func (f *FakeAPI) AddAccount(email, name, password string) service.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := service.User{
		ID:                    uuid.NewString(),
		Email:                 email,
		Name:                  name,
		LastVerificationEmail: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	f.accounts[email] = &fakeAccount{user: u, password: password}
	return u
}

// AddNote stores a note for the account with the given email and returns it.
func (f *FakeAPI) AddNote(email, content string, important bool) service.Note {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc := f.accounts[email]
	n := service.Note{
		ID:        uuid.NewString(),
		Content:   content,
		Important: important,
		Date:      time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC),
		User:      service.NoteOwner{ID: acc.user.ID},
	}
	f.notes = append(f.notes, &fakeNote{note: n})
	return n
}

// Purge permanently removes a note, so undo-delete reports not found.
func (f *FakeAPI) Purge(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.notes {
		if n.note.ID == id {
			f.notes = append(f.notes[:i], f.notes[i+1:]...)
			return
		}
	}
}

// ExpireSessions invalidates every open session.
func (f *FakeAPI) ExpireSessions() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = make(map[string]string)
}

// FailNext makes the next request fail with status.
func (f *FakeAPI) FailNext(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = status
}

// Password returns the stored password of an account.
func (f *FakeAPI) Password(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if acc, ok := f.accounts[email]; ok {
		return acc.password
	}
	return ""
}

// Requests returns the requests observed so far.
func (f *FakeAPI) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RecordedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// LastRequest returns the most recent request.
func (f *FakeAPI) LastRequest() RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return RecordedRequest{}
	}
	return f.requests[len(f.requests)-1]
}

func (f *FakeAPI) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		f.mu.Lock()
		f.requests = append(f.requests, RecordedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			ContentType:   r.Header.Get("Content-Type"),
			Authorization: r.Header.Get("Authorization"),
			Cookie:        r.Header.Get("Cookie"),
			Body:          string(body),
		})
		status := f.failNext
		f.failNext = 0
		f.mu.Unlock()

		if status != 0 {
			writeError(w, status, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authed resolves the session from the cookie or a bearer token.
func (f *FakeAPI) authed(h func(w http.ResponseWriter, r *http.Request, acc *fakeAccount)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := ""
		if c, err := r.Cookie(SessionCookie); err == nil {
			sid = c.Value
		}
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			sid = strings.TrimPrefix(auth, "Bearer ")
		}

		f.mu.Lock()
		email, ok := f.sessions[sid]
		acc := f.accounts[email]
		f.mu.Unlock()

		if !ok || acc == nil {
			writeError(w, http.StatusUnauthorized, "session expired")
			return
		}
		h(w, r, acc)
	}
}

func (f *FakeAPI) login(w http.ResponseWriter, r *http.Request) {
	email := mux.Vars(r)["email"]
	password := r.URL.Query().Get("password")

	f.mu.Lock()
	acc, ok := f.accounts[email]
	if !ok || acc.password != password {
		f.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "wrong email or password")
		return
	}
	sid := uuid.NewString()
	f.sessions[sid] = email
	u := acc.user
	f.mu.Unlock()

	u.Token = sid
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: sid, Path: "/api/"})
	writeJSON(w, http.StatusOK, u)
}

func (f *FakeAPI) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		f.mu.Lock()
		delete(f.sessions, c.Value)
		f.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/api/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeAPI) register(w http.ResponseWriter, r *http.Request) {
	var nu service.NewUser
	if err := json.NewDecoder(r.Body).Decode(&nu); err != nil || nu.Email == "" || nu.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid user")
		return
	}
	f.mu.Lock()
	if _, exists := f.accounts[nu.Email]; exists {
		f.mu.Unlock()
		writeError(w, http.StatusConflict, "email already registered")
		return
	}
	u := service.User{
		ID:                    uuid.NewString(),
		Email:                 nu.Email,
		Name:                  nu.Name,
		LastVerificationEmail: time.Now().UTC(),
	}
	f.accounts[nu.Email] = &fakeAccount{user: u, password: nu.Password}
	f.mu.Unlock()
	writeJSON(w, http.StatusCreated, u)
}

func (f *FakeAPI) patchUser(w http.ResponseWriter, r *http.Request, acc *fakeAccount) {
	if r.Header.Get("Content-Type") != "application/json-patch+json" {
		writeError(w, http.StatusUnsupportedMediaType, "expected json patch")
		return
	}
	var ops []struct {
		Op    string `json:"op"`
		Path  string `json:"path"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&ops); err != nil {
		writeError(w, http.StatusBadRequest, "invalid patch")
		return
	}
	f.mu.Lock()
	for _, op := range ops {
		if op.Op == "replace" && op.Path == "/password" {
			acc.password = op.Value
		}
	}
	u := acc.user
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, u)
}

func (f *FakeAPI) currentUser(w http.ResponseWriter, r *http.Request, acc *fakeAccount) {
	f.mu.Lock()
	u := acc.user
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, u)
}

func (f *FakeAPI) verificationEmail(w http.ResponseWriter, r *http.Request, acc *fakeAccount) {
	f.mu.Lock()
	acc.user.LastVerificationEmail = time.Now().UTC()
	f.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeAPI) listNotes(w http.ResponseWriter, r *http.Request, acc *fakeAccount) {
	f.mu.Lock()
	out := []service.Note{}
	for _, n := range f.notes {
		if !n.deleted && n.note.User.ID == acc.user.ID {
			out = append(out, n.note)
		}
	}
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (f *FakeAPI) createNote(w http.ResponseWriter, r *http.Request, acc *fakeAccount) {
	var d service.NoteDraft
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeError(w, http.StatusBadRequest, "invalid note")
		return
	}
	n := service.Note{
		ID:        uuid.NewString(),
		Content:   d.Content,
		Important: d.Important,
		Date:      time.Now().UTC().Truncate(time.Second),
		User:      service.NoteOwner{ID: acc.user.ID},
	}
	f.mu.Lock()
	f.notes = append(f.notes, &fakeNote{note: n})
	f.mu.Unlock()
	writeJSON(w, http.StatusCreated, n)
}

func (f *FakeAPI) findNote(id, owner string) *fakeNote {
	for _, n := range f.notes {
		if n.note.ID == id && n.note.User.ID == owner {
			return n
		}
	}
	return nil
}

func (f *FakeAPI) updateNote(w http.ResponseWriter, r *http.Request, acc *fakeAccount) {
	var d service.NoteDraft
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeError(w, http.StatusBadRequest, "invalid note")
		return
	}
	f.mu.Lock()
	n := f.findNote(mux.Vars(r)["id"], acc.user.ID)
	if n == nil || n.deleted {
		f.mu.Unlock()
		writeError(w, http.StatusNotFound, "note not found")
		return
	}
	n.note.Content = d.Content
	n.note.Important = d.Important
	out := n.note
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (f *FakeAPI) deleteNote(w http.ResponseWriter, r *http.Request, acc *fakeAccount) {
	f.mu.Lock()
	n := f.findNote(mux.Vars(r)["id"], acc.user.ID)
	if n == nil || n.deleted {
		f.mu.Unlock()
		writeError(w, http.StatusNotFound, "note not found")
		return
	}
	n.deleted = true
	f.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeAPI) undoDelete(w http.ResponseWriter, r *http.Request, acc *fakeAccount) {
	f.mu.Lock()
	n := f.findNote(mux.Vars(r)["id"], acc.user.ID)
	if n == nil || !n.deleted {
		f.mu.Unlock()
		writeError(w, http.StatusNotFound, "note not found")
		return
	}
	n.deleted = false
	out := n.note
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

