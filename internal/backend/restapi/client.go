// Package restapi implements the service.Service interface over the notes REST API.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"ynote/internal/service"
)

const (
	// APITimeout is the default timeout for API calls.
	APITimeout = 5 * time.Second

	sessionsPath = "/api/sessions/"
	usersPath    = "/api/users/"
	notesPath    = "/api/notes/"

	jsonPatchContentType = "application/json-patch+json"
)

// Options configure a Client.
type Options struct {
	// BaseURL is the API origin, e.g. http://localhost:9080.
	BaseURL string

	// Timeout bounds each call. Zero means APITimeout.
	Timeout time.Duration

	// Cookies persists the session cookies between runs. Optional.
	Cookies CookieStore

	// HTTPClient overrides the transport (tests). Its Jar is replaced.
	HTTPClient *http.Client

	// Logger receives debug request logs. Optional.
	Logger *slog.Logger
}

// Client implements service.Service over HTTP.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	log     *slog.Logger

	mu    sync.RWMutex
	token string
}

// New creates a REST client. Every request carries the session cookies.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("api base URL is required")
	}
	origin, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid api base URL: %w", err)
	}
	if origin.Scheme != "http" && origin.Scheme != "https" {
		return nil, fmt.Errorf("invalid api base URL: unsupported scheme %q", origin.Scheme)
	}

	jar, err := newPersistentJar(origin, opts.Cookies)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{}
	if opts.HTTPClient != nil {
		copied := *opts.HTTPClient
		httpClient = &copied
	}
	httpClient.Jar = jar

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = APITimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &Client{
		baseURL: base,
		timeout: timeout,
		http:    httpClient,
		log:     logger,
	}
	httpClient.Transport = &bearerTransport{client: c, base: httpClient.Transport}
	return c, nil
}

// bearerTransport attaches the session token, when there is one, through
// an oauth2.Transport.
type bearerTransport struct {
	client *Client
	base   http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	token := t.client.currentToken()
	if token == "" {
		return base.RoundTrip(req)
	}
	auth := &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
		Base:   base,
	}
	return auth.RoundTrip(req)
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// UseToken implements service.TokenAware. An empty token disables the
// Authorization header.
func (c *Client) UseToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Login opens a session. The credentials travel in the URL because that is
// what the server accepts.
func (c *Client) Login(ctx context.Context, creds service.Credentials) (service.User, error) {
	path := sessionsPath + url.PathEscape(creds.Email) + "?password=" + url.QueryEscape(creds.Password)
	var u service.User
	if err := c.doJSON(ctx, http.MethodGet, path, nil, "", &u); err != nil {
		return service.User{}, err
	}
	return u, nil
}

// Logout closes the session.
func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodDelete, sessionsPath, nil, "", nil)
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, u service.NewUser) (service.User, error) {
	var created service.User
	if err := c.doJSON(ctx, http.MethodPost, usersPath, u, "", &created); err != nil {
		return service.User{}, err
	}
	return created, nil
}

type patchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value string `json:"value"`
}

// ChangePassword sends a JSON Patch replacing /password.
func (c *Client) ChangePassword(ctx context.Context, newPassword string) (service.User, error) {
	body := []patchOp{{Op: "replace", Path: "/password", Value: newPassword}}
	var u service.User
	if err := c.doJSON(ctx, http.MethodPatch, usersPath, body, jsonPatchContentType, &u); err != nil {
		return service.User{}, err
	}
	return u, nil
}

// CurrentUser fetches the user bound to the session.
func (c *Client) CurrentUser(ctx context.Context) (service.User, error) {
	var u service.User
	if err := c.doJSON(ctx, http.MethodGet, usersPath, nil, "", &u); err != nil {
		return service.User{}, err
	}
	return u, nil
}

// SendVerificationEmail asks for a new verification email.
func (c *Client) SendVerificationEmail(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, usersPath+"verification-email", nil, "", nil)
}

// ListNotes returns all notes of the signed-in user.
func (c *Client) ListNotes(ctx context.Context) ([]service.Note, error) {
	var notes []service.Note
	if err := c.doJSON(ctx, http.MethodGet, notesPath, nil, "", &notes); err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []service.Note{}
	}
	return notes, nil
}

// CreateNote creates a note.
func (c *Client) CreateNote(ctx context.Context, draft service.NoteDraft) (service.Note, error) {
	var n service.Note
	if err := c.doJSON(ctx, http.MethodPost, notesPath, draft, "", &n); err != nil {
		return service.Note{}, err
	}
	return n, nil
}

// UpdateNote replaces a note.
func (c *Client) UpdateNote(ctx context.Context, id string, draft service.NoteDraft) (service.Note, error) {
	var n service.Note
	if err := c.doJSON(ctx, http.MethodPut, notesPath+url.PathEscape(id), draft, "", &n); err != nil {
		return service.Note{}, err
	}
	return n, nil
}

// DeleteNote soft-deletes a note.
func (c *Client) DeleteNote(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, notesPath+url.PathEscape(id), nil, "", nil)
}

// UndoDeleteNote restores a soft-deleted note.
func (c *Client) UndoDeleteNote(ctx context.Context, id string) (service.Note, error) {
	var n service.Note
	if err := c.doJSON(ctx, http.MethodPatch, notesPath+"undo-delete/"+url.PathEscape(id), nil, "", &n); err != nil {
		return service.Note{}, err
	}
	return n, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, contentType string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
		if contentType == "" {
			contentType = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("api request failed", "method", method, "path", req.URL.Path, "err", err)
		return wrapError(err)
	}
	defer resp.Body.Close()
	c.log.Debug("api request", "method", method, "path", req.URL.Path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if err := googleapi.CheckResponse(resp); err != nil {
		return wrapError(err)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid response for %s %s: %w", method, req.URL.Path, err)
	}
	return nil
}

// wrapError maps transport and HTTP errors onto the service error taxonomy.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return service.ErrTimeout
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		msg := errorMessage(apiErr)
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", service.ErrUnauthorized, msg)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", service.ErrNotFound, msg)
		}
		return fmt.Errorf("HTTP %d: %s", apiErr.Code, msg)
	}

	return err
}

func errorMessage(apiErr *googleapi.Error) string {
	if apiErr.Message != "" {
		return apiErr.Message
	}
	body := strings.TrimSpace(apiErr.Body)
	if body != "" {
		var payload struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal([]byte(body), &payload) == nil {
			if payload.Error != "" {
				return payload.Error
			}
			if payload.Message != "" {
				return payload.Message
			}
		}
		if len(body) <= 200 && !strings.ContainsAny(body, "<{") {
			return body
		}
	}
	return strings.ToLower(http.StatusText(apiErr.Code))
}
