// Package app wires storage, backend, state and presentation together for
// one process run.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"ynote/internal/backend/restapi"
	"ynote/internal/config"
	"ynote/internal/output"
	"ynote/internal/reconcile"
	"ynote/internal/service"
	"ynote/internal/state"
	"ynote/internal/storage"
)

// BackendFactory creates the backend for cfg. db is the open local store,
// which also keeps the session cookies.
type BackendFactory func(cfg *config.Config, db *storage.DB, logger *slog.Logger) (service.Service, error)

// RESTBackend is the production BackendFactory.
func RESTBackend(cfg *config.Config, db *storage.DB, logger *slog.Logger) (service.Service, error) {
	client, err := restapi.New(restapi.Options{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.APITimeout,
		Cookies: db,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// App holds everything a command needs.
type App struct {
	Config  *config.Config
	Service service.Service
	Store   *state.Store
	Notes   *reconcile.Controller
	Notices *output.NoticePrinter
	Log     *slog.Logger

	db *storage.DB
}

// Bare returns an App carrying only cfg, for commands that need no backend.
func Bare(cfg *config.Config) *App {
	return &App{Config: cfg, Log: cfg.Logger(nil)}
}

// Open opens local storage and builds the backend, the state store and
// the note controller. Notices are printed to errOut.
func Open(cfg *config.Config, factory BackendFactory, errOut io.Writer) (*App, error) {
	if factory == nil {
		factory = RESTBackend
	}
	logger := cfg.Logger(errOut)

	if err := cfg.EnsureDir(); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	db, err := storage.Open(cfg.StatePath())
	if err != nil {
		return nil, err
	}

	svc, err := factory(cfg, db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	printer := output.NewNoticePrinter(errOut)
	store := state.New(svc, db, printer, logger)
	ctrl := reconcile.New(svc, store, printer, reconcile.Options{
		UndoTimeout: cfg.UndoTimeout,
		Logger:      logger,
	})

	return &App{
		Config:  cfg,
		Service: svc,
		Store:   store,
		Notes:   ctrl,
		Notices: printer,
		Log:     logger,
		db:      db,
	}, nil
}

// Hydrate restores the persisted session, if any.
func (a *App) Hydrate(ctx context.Context) error {
	return a.Store.Hydrate(ctx)
}

// Close waits for background confirmations and closes local storage.
func (a *App) Close() error {
	if a.Notes != nil {
		a.Notes.Wait()
	}
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
