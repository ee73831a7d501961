// Package reconcile applies note intents to the local list and the backend.
//
// Deletes are optimistic: the note leaves the local list before the server
// answers and an undo affordance is armed at once. Creates and updates only
// touch the list after the server returns the canonical record.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"

	"ynote/internal/notice"
	"ynote/internal/service"
	"ynote/internal/state"
)

// DefaultUndoTimeout is how long an undo affordance stays armed.
const DefaultUndoTimeout = 5 * time.Second

// summaryWidth bounds the note excerpt in the deletion message.
const summaryWidth = 40

var (
	// ErrNotFoundLocally is returned for intents naming a note that is not
	// in the local list. No request is made.
	ErrNotFoundLocally = errors.New("note not found locally")

	// ErrAffordanceRetired is returned when undo is invoked with an
	// affordance that expired, was used, or was replaced.
	ErrAffordanceRetired = errors.New("undo is no longer available")
)

// Options configures a Controller.
type Options struct {
	UndoTimeout time.Duration
	Now         func() time.Time
	Logger      *slog.Logger
}

// Controller owns every mutation of the note list held by a state.Store.
type Controller struct {
	svc         service.Service
	store       *state.Store
	notices     notice.Sink
	log         *slog.Logger
	undoTimeout time.Duration
	now         func() time.Time

	mu       sync.Mutex
	armed    *Affordance
	seq      uint64
	diverged bool

	wg sync.WaitGroup
}

// New creates a Controller.
func New(svc service.Service, store *state.Store, notices notice.Sink, opts Options) *Controller {
	if notices == nil {
		notices = notice.Discard
	}
	if opts.UndoTimeout <= 0 {
		opts.UndoTimeout = DefaultUndoTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{
		svc:         svc,
		store:       store,
		notices:     notices,
		log:         opts.Logger,
		undoTimeout: opts.UndoTimeout,
		now:         opts.Now,
	}
}

// Delete removes the note from the local list, arms an undo affordance for
// it and confirms the removal with the backend in the background.
func (c *Controller) Delete(ctx context.Context, id string) (*Affordance, error) {
	gen, err := c.signedIn()
	if err != nil {
		return nil, err
	}

	var (
		snapshot []service.Note
		removed  service.Note
		found    bool
	)
	applied := c.store.ApplyNotes(gen, func(notes []service.Note) []service.Note {
		snapshot = append([]service.Note(nil), notes...)
		for i, n := range notes {
			if n.ID == id {
				removed, found = n, true
				return append(notes[:i:i], notes[i+1:]...)
			}
		}
		return notes
	})
	if !applied {
		return nil, state.ErrSignedOut
	}
	if !found {
		c.notices.Notify(notice.Notice{
			Kind:  notice.Inconsistent,
			Title: "Could not find the note to delete",
			Body:  "Refresh and try again.",
		})
		return nil, fmt.Errorf("%w: %s", ErrNotFoundLocally, id)
	}

	now := c.now()
	aff := &Affordance{
		NoteID:   id,
		Snapshot: snapshot,
		ArmedAt:  now,
		Expires:  now.Add(c.undoTimeout),
		Message:  DeletedMessage(removed.Content),
		gen:      gen,
		done:     make(chan struct{}),
		state:    OptimisticallyRemoved,
	}
	c.mu.Lock()
	c.seq++
	aff.seq = c.seq
	c.armed = aff
	c.mu.Unlock()
	c.log.Debug("note removed locally", "id", id, "seq", aff.seq, "state", OptimisticallyRemoved)

	c.wg.Add(1)
	go c.confirmDelete(context.WithoutCancel(ctx), aff)

	return aff, nil
}

func (c *Controller) confirmDelete(ctx context.Context, aff *Affordance) {
	defer c.wg.Done()
	defer close(aff.done)

	err := c.svc.DeleteNote(ctx, aff.NoteID)

	c.mu.Lock()
	if aff.state == OptimisticallyRemoved {
		if err == nil || service.IsNotFound(err) {
			aff.state = ConfirmedRemoved
		} else {
			aff.state = ConfirmationFailed
		}
	}
	next := aff.state
	c.mu.Unlock()
	c.log.Debug("delete settled", "id", aff.NoteID, "seq", aff.seq, "state", next, "err", err)

	c.settle(opDelete, aff.gen, err)
}

// Undo restores the note behind aff. Only the currently armed, unexpired
// affordance is accepted, and it is retired on use whatever the outcome.
// The restore request is sent only after the delete request settled.
// Backend failures are reported through the notice sink and returned.
func (c *Controller) Undo(ctx context.Context, aff *Affordance) (service.Note, error) {
	if aff == nil {
		return service.Note{}, ErrAffordanceRetired
	}

	c.mu.Lock()
	if c.armed != aff {
		c.mu.Unlock()
		return service.Note{}, ErrAffordanceRetired
	}
	c.armed = nil
	expired := aff.Expired(c.now())
	c.mu.Unlock()
	if expired || aff.gen != c.store.Generation() {
		return service.Note{}, ErrAffordanceRetired
	}

	select {
	case <-aff.done:
	case <-ctx.Done():
		return service.Note{}, ctx.Err()
	}

	restored, err := c.svc.UndoDeleteNote(ctx, aff.NoteID)
	if err != nil {
		c.settle(opUndo, aff.gen, err)
		return service.Note{}, err
	}

	applied := c.store.ApplyNotes(aff.gen, func(live []service.Note) []service.Note {
		return restoreInto(aff.Snapshot, aff.NoteID, live, restored)
	})
	c.mu.Lock()
	aff.state = RestoredViaUndo
	c.mu.Unlock()
	if !applied {
		return restored, state.ErrSignedOut
	}
	c.log.Debug("note restored", "id", restored.ID, "seq", aff.seq, "state", RestoredViaUndo)
	return restored, nil
}

// Create adds a note once the backend has confirmed it.
func (c *Controller) Create(ctx context.Context, draft service.NoteDraft) (service.Note, error) {
	gen, err := c.signedIn()
	if err != nil {
		return service.Note{}, err
	}

	note, err := c.svc.CreateNote(ctx, draft)
	if err != nil {
		return service.Note{}, c.expireOn(gen, err)
	}
	c.store.ApplyNotes(gen, func(notes []service.Note) []service.Note {
		return append(notes, note)
	})
	return note, nil
}

// Update replaces a note by id once the backend has confirmed the change.
func (c *Controller) Update(ctx context.Context, id string, draft service.NoteDraft) (service.Note, error) {
	gen, err := c.signedIn()
	if err != nil {
		return service.Note{}, err
	}
	if _, ok := c.find(id); !ok {
		c.notices.Notify(notice.Notice{
			Kind:  notice.Inconsistent,
			Title: "Could not find the note to edit",
			Body:  "Refresh and try again.",
		})
		return service.Note{}, fmt.Errorf("%w: %s", ErrNotFoundLocally, id)
	}

	note, err := c.svc.UpdateNote(ctx, id, draft)
	if err != nil {
		return service.Note{}, c.expireOn(gen, err)
	}
	c.store.ApplyNotes(gen, func(notes []service.Note) []service.Note {
		for i := range notes {
			if notes[i].ID == id {
				notes[i] = note
			}
		}
		return notes
	})
	return note, nil
}

// Refresh reloads the whole list from the backend and clears any recorded
// divergence. In-flight deletions settle first so the reload cannot bring
// back a note the server has not removed yet.
func (c *Controller) Refresh(ctx context.Context) error {
	c.wg.Wait()
	if err := c.store.LoadNotes(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.diverged = false
	c.mu.Unlock()
	return nil
}

// Announce shows a transient message. Like a new deletion, it retires the
// armed affordance.
func (c *Controller) Announce(msg string) {
	c.Dismiss()
	c.notices.Notify(notice.Notice{Kind: notice.Info, Title: msg})
}

// Dismiss retires the armed affordance, if any.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armed = nil
}

// Armed returns the live affordance, or nil if none is armed or it expired.
func (c *Controller) Armed() *Affordance {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.armed != nil && c.armed.Expired(c.now()) {
		c.armed = nil
	}
	return c.armed
}

// Diverged reports whether a delete failed in a way that may leave the
// local list out of step with the server until the next Refresh.
func (c *Controller) Diverged() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.diverged
}

// State returns the deletion state of aff.
func (c *Controller) State(aff *Affordance) DeletionState {
	if aff == nil {
		return Idle
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return aff.state
}

// Wait blocks until background delete confirmations have been delivered.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Find returns the local note with id.
func (c *Controller) Find(id string) (service.Note, bool) {
	return c.find(id)
}

func (c *Controller) find(id string) (service.Note, bool) {
	for _, n := range c.store.Notes() {
		if n.ID == id {
			return n, true
		}
	}
	return service.Note{}, false
}

func (c *Controller) signedIn() (uint64, error) {
	if c.store.User() == nil {
		return 0, state.ErrSignedOut
	}
	return c.store.Generation(), nil
}

// expireOn logs out locally when the backend rejected the session.
func (c *Controller) expireOn(gen uint64, err error) error {
	if !service.IsUnauthorized(err) {
		return err
	}
	if clearErr := c.store.Expire(gen); clearErr != nil {
		return errors.Join(fmt.Errorf("%w: %v", state.ErrSessionExpired, err), clearErr)
	}
	return fmt.Errorf("%w: %v", state.ErrSessionExpired, err)
}

type operation struct {
	name          string
	goneTitle     string
	failTitle     string
	marksDiverged bool
}

var (
	opDelete = operation{
		name:          "delete",
		goneTitle:     "The note you deleted no longer exists",
		failTitle:     "Could not delete note",
		marksDiverged: true,
	}
	opUndo = operation{
		name:      "undo",
		goneTitle: "The note you restored no longer exists",
		failTitle: "Could not restore note",
	}
)

// settle reports the outcome of a delete or undo request. Delete and undo
// share the same branching: not-found is benign, unauthorized logs out,
// anything else is an error notice.
func (c *Controller) settle(op operation, gen uint64, err error) {
	if err == nil {
		return
	}
	if gen != c.store.Generation() {
		c.log.Debug("ignoring completion for previous session", "op", op.name, "err", err)
		return
	}

	switch {
	case service.IsNotFound(err):
		c.notices.Notify(notice.Notice{Kind: notice.Info, Title: op.goneTitle})
	case service.IsUnauthorized(err):
		if clearErr := c.store.Expire(gen); clearErr != nil {
			c.log.Debug("local logout incomplete", "err", clearErr)
		}
		c.notices.Notify(notice.Notice{
			Kind:  notice.Info,
			Title: "Session expired",
			Body:  "Log in again to continue.",
		})
	default:
		if op.marksDiverged {
			c.mu.Lock()
			c.diverged = true
			c.mu.Unlock()
		}
		c.notices.Notify(notice.FromError(op.failTitle, err))
	}
}

// DeletedMessage is the snackbar text for a deleted note.
func DeletedMessage(content string) string {
	return fmt.Sprintf("Note «%s» deleted", runewidth.Truncate(content, summaryWidth, "…"))
}
