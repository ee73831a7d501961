package reconcile

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"ynote/internal/notice"
	"ynote/internal/service"
	"ynote/internal/state"
	"ynote/internal/testutil"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type collector struct {
	mu      sync.Mutex
	notices []notice.Notice
}

func (c *collector) Notify(n notice.Notice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notices = append(c.notices, n)
}

func (c *collector) all() []notice.Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notice.Notice(nil), c.notices...)
}

type fixture struct {
	svc   *testutil.FakeService
	store *state.Store
	ctrl  *Controller
	clock *fakeClock
	sink  *collector
}

// newFixture signs in a user whose server-side list is [a, b, c].
func newFixture(t *testing.T) *fixture {
	t.Helper()
	svc := testutil.NewFakeService()
	svc.AddNote("a", "alpha")
	svc.AddNote("b", "bravo")
	svc.AddNote("c", "charlie")

	sink := &collector{}
	store := state.New(svc, &testutil.MemLocal{}, sink, nil)
	u := service.User{ID: "u1", Email: "alice@example.com", Name: "Alice", Token: "t"}
	if err := store.SetUser(context.Background(), &u); err != nil {
		t.Fatalf("SetUser: %v", err)
	}

	clock := &fakeClock{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	ctrl := New(svc, store, sink, Options{UndoTimeout: 5 * time.Second, Now: clock.Now})
	return &fixture{svc: svc, store: store, ctrl: ctrl, clock: clock, sink: sink}
}

func ids(notes []service.Note) string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.ID
	}
	return strings.Join(out, ",")
}

func TestDeleteRemovesBeforeResponse(t *testing.T) {
	f := newFixture(t)
	gate := make(chan struct{})
	f.svc.DeleteGate = gate

	aff, err := f.ctrl.Delete(context.Background(), "b")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if got := ids(f.store.Notes()); got != "a,c" {
		t.Errorf("notes while in flight = %s, want a,c", got)
	}
	if got := f.ctrl.State(aff); got != OptimisticallyRemoved {
		t.Errorf("state while in flight = %v, want %v", got, OptimisticallyRemoved)
	}
	if f.ctrl.Armed() != aff {
		t.Error("affordance not armed while request in flight")
	}

	close(gate)
	f.ctrl.Wait()

	if got := f.ctrl.State(aff); got != ConfirmedRemoved {
		t.Errorf("state after confirm = %v, want %v", got, ConfirmedRemoved)
	}
	if got := ids(f.svc.ServerNotes()); got != "a,c" {
		t.Errorf("server notes = %s, want a,c", got)
	}
	if n := len(f.sink.all()); n != 0 {
		t.Errorf("got %d notices on success, want 0", n)
	}
}

func TestDeleteAffordanceContents(t *testing.T) {
	f := newFixture(t)

	aff, err := f.ctrl.Delete(context.Background(), "b")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	f.ctrl.Wait()

	if aff.NoteID != "b" {
		t.Errorf("NoteID = %q, want b", aff.NoteID)
	}
	if got := ids(aff.Snapshot); got != "a,b,c" {
		t.Errorf("Snapshot = %s, want a,b,c", got)
	}
	if !aff.ArmedAt.Equal(f.clock.Now()) {
		t.Errorf("ArmedAt = %v, want %v", aff.ArmedAt, f.clock.Now())
	}
	if want := f.clock.Now().Add(5 * time.Second); !aff.Expires.Equal(want) {
		t.Errorf("Expires = %v, want %v", aff.Expires, want)
	}
	if aff.Message != "Note «bravo» deleted" {
		t.Errorf("Message = %q", aff.Message)
	}
}

func TestDeleteNotFoundKeepsOptimisticList(t *testing.T) {
	f := newFixture(t)
	f.svc.DeleteNoteErr = service.ErrNotFound

	aff, err := f.ctrl.Delete(context.Background(), "b")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	f.ctrl.Wait()

	if got := ids(f.store.Notes()); got != "a,c" {
		t.Errorf("notes = %s, want a,c", got)
	}
	if f.ctrl.Diverged() {
		t.Error("not-found must not mark divergence")
	}
	notices := f.sink.all()
	if len(notices) != 1 || notices[0].Kind != notice.Info {
		t.Fatalf("notices = %+v, want one info notice", notices)
	}
	if notices[0].Title != "The note you deleted no longer exists" {
		t.Errorf("title = %q", notices[0].Title)
	}

	// Undo stays armed, but the server cannot restore the note either.
	if f.ctrl.Armed() != aff {
		t.Fatal("affordance retired by a failed delete")
	}
	if _, err := f.ctrl.Undo(context.Background(), aff); !service.IsNotFound(err) {
		t.Fatalf("Undo error = %v, want not found", err)
	}
	if f.ctrl.Armed() != nil {
		t.Error("affordance still armed after undo")
	}
	notices = f.sink.all()
	if last := notices[len(notices)-1]; last.Kind != notice.Info || last.Title != "The note you restored no longer exists" {
		t.Errorf("last notice = %+v", last)
	}
	if got := ids(f.store.Notes()); got != "a,c" {
		t.Errorf("notes after failed undo = %s, want a,c", got)
	}
}

func TestDeleteGenericFailureDivergesUntilRefresh(t *testing.T) {
	f := newFixture(t)
	f.svc.DeleteNoteErr = errors.New("HTTP 500: database is down")

	aff, err := f.ctrl.Delete(context.Background(), "b")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	f.ctrl.Wait()

	if got := ids(f.store.Notes()); got != "a,c" {
		t.Errorf("notes = %s, want a,c (no rollback)", got)
	}
	if got := f.ctrl.State(aff); got != ConfirmationFailed {
		t.Errorf("state = %v, want %v", got, ConfirmationFailed)
	}
	if !f.ctrl.Diverged() {
		t.Error("Diverged() = false after failed delete")
	}
	notices := f.sink.all()
	if len(notices) != 1 || notices[0].Kind != notice.Error {
		t.Fatalf("notices = %+v, want one error notice", notices)
	}
	if !strings.Contains(notices[0].Body, "database is down") {
		t.Errorf("body = %q, want error message", notices[0].Body)
	}

	if err := f.ctrl.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if f.ctrl.Diverged() {
		t.Error("Diverged() still true after refresh")
	}
	if got := ids(f.store.Notes()); got != "a,b,c" {
		t.Errorf("notes after refresh = %s, want a,b,c", got)
	}
}

func TestDeleteMissingLocallyMakesNoRequest(t *testing.T) {
	f := newFixture(t)

	aff, err := f.ctrl.Delete(context.Background(), "zzz")
	if !errors.Is(err, ErrNotFoundLocally) {
		t.Fatalf("Delete error = %v, want ErrNotFoundLocally", err)
	}
	if aff != nil {
		t.Error("affordance returned for missing note")
	}
	f.ctrl.Wait()

	if n := f.svc.CallCount("DeleteNote"); n != 0 {
		t.Errorf("DeleteNote calls = %d, want 0", n)
	}
	notices := f.sink.all()
	if len(notices) != 1 || notices[0].Kind != notice.Inconsistent {
		t.Fatalf("notices = %+v, want one inconsistency notice", notices)
	}
	if got := ids(f.store.Notes()); got != "a,b,c" {
		t.Errorf("notes = %s, want a,b,c", got)
	}
}

func TestDeleteSignedOut(t *testing.T) {
	f := newFixture(t)
	if err := f.store.SetUser(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ctrl.Delete(context.Background(), "a"); !errors.Is(err, state.ErrSignedOut) {
		t.Fatalf("Delete error = %v, want ErrSignedOut", err)
	}
}

func TestUndoRestoresAtEnd(t *testing.T) {
	f := newFixture(t)

	aff, err := f.ctrl.Delete(context.Background(), "b")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	f.ctrl.Wait()

	restored, err := f.ctrl.Undo(context.Background(), aff)
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if restored.ID != "b" {
		t.Errorf("restored ID = %q, want b", restored.ID)
	}
	if got := ids(f.store.Notes()); got != "a,c,b" {
		t.Errorf("notes = %s, want a,c,b", got)
	}
	if got := f.ctrl.State(aff); got != RestoredViaUndo {
		t.Errorf("state = %v, want %v", got, RestoredViaUndo)
	}
}

func TestUndoPreservesChangesSinceDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	aff, err := f.ctrl.Delete(ctx, "b")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	f.ctrl.Wait()

	created, err := f.ctrl.Create(ctx, service.NoteDraft{Content: "delta"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.ctrl.Update(ctx, "a", service.NoteDraft{Content: "alpha v2", Important: true}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := f.ctrl.Undo(ctx, aff); err != nil {
		t.Fatalf("Undo: %v", err)
	}

	notes := f.store.Notes()
	if got, want := ids(notes), "a,c,"+created.ID+",b"; got != want {
		t.Fatalf("notes = %s, want %s", got, want)
	}
	if notes[0].Content != "alpha v2" || !notes[0].Important {
		t.Errorf("update lost after undo: %+v", notes[0])
	}
}

func TestNewDeleteRetiresPreviousAffordance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.ctrl.Delete(ctx, "b")
	if err != nil {
		t.Fatalf("Delete b: %v", err)
	}
	second, err := f.ctrl.Delete(ctx, "c")
	if err != nil {
		t.Fatalf("Delete c: %v", err)
	}
	f.ctrl.Wait()

	if f.ctrl.Armed() != second {
		t.Fatal("second affordance not armed")
	}
	if _, err := f.ctrl.Undo(ctx, first); !errors.Is(err, ErrAffordanceRetired) {
		t.Fatalf("Undo(first) error = %v, want ErrAffordanceRetired", err)
	}
	if n := f.svc.CallCount("UndoDeleteNote"); n != 0 {
		t.Errorf("UndoDeleteNote calls = %d, want 0", n)
	}
	if f.ctrl.Armed() != second {
		t.Error("stale undo disturbed the armed affordance")
	}

	if _, err := f.ctrl.Undo(ctx, second); err != nil {
		t.Fatalf("Undo(second): %v", err)
	}
	if got := ids(f.store.Notes()); got != "a,c" {
		t.Errorf("notes = %s, want a,c", got)
	}
}

func TestUndoIsSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	aff, err := f.ctrl.Delete(ctx, "b")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	f.ctrl.Wait()

	if _, err := f.ctrl.Undo(ctx, aff); err != nil {
		t.Fatalf("first Undo: %v", err)
	}
	if _, err := f.ctrl.Undo(ctx, aff); !errors.Is(err, ErrAffordanceRetired) {
		t.Fatalf("second Undo error = %v, want ErrAffordanceRetired", err)
	}
	if n := f.svc.CallCount("UndoDeleteNote"); n != 1 {
		t.Errorf("UndoDeleteNote calls = %d, want 1", n)
	}
}

func TestUndoExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	aff, err := f.ctrl.Delete(ctx, "b")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	f.ctrl.Wait()

	f.clock.Advance(4 * time.Second)
	if f.ctrl.Armed() != aff {
		t.Fatal("affordance expired early")
	}
	if got := aff.Remaining(f.clock.Now()); got != time.Second {
		t.Errorf("Remaining = %v, want 1s", got)
	}

	f.clock.Advance(time.Second)
	if f.ctrl.Armed() != nil {
		t.Error("affordance still armed after timeout")
	}
	if _, err := f.ctrl.Undo(ctx, aff); !errors.Is(err, ErrAffordanceRetired) {
		t.Fatalf("Undo error = %v, want ErrAffordanceRetired", err)
	}
	if n := f.svc.CallCount("UndoDeleteNote"); n != 0 {
		t.Errorf("UndoDeleteNote calls = %d, want 0", n)
	}
}

func TestUndoExpiredWithoutPolling(t *testing.T) {
	f := newFixture(t)
	aff, err := f.ctrl.Delete(context.Background(), "b")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	f.ctrl.Wait()

	f.clock.Advance(10 * time.Second)
	if _, err := f.ctrl.Undo(context.Background(), aff); !errors.Is(err, ErrAffordanceRetired) {
		t.Fatalf("Undo error = %v, want ErrAffordanceRetired", err)
	}
	if f.ctrl.Armed() != nil {
		t.Error("expired affordance left armed")
	}
}

func TestAnnounceAndDismissRetire(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	aff, err := f.ctrl.Delete(ctx, "b")
	if err != nil {
		t.Fatal(err)
	}
	f.ctrl.Announce("Password changed")
	if f.ctrl.Armed() != nil {
		t.Error("Announce did not retire the affordance")
	}
	if _, err := f.ctrl.Undo(ctx, aff); !errors.Is(err, ErrAffordanceRetired) {
		t.Errorf("Undo after Announce = %v", err)
	}
	notices := f.sink.all()
	if len(notices) == 0 || notices[len(notices)-1].Title != "Password changed" {
		t.Errorf("notices = %+v", notices)
	}

	aff, err = f.ctrl.Delete(ctx, "c")
	if err != nil {
		t.Fatal(err)
	}
	f.ctrl.Dismiss()
	if _, err := f.ctrl.Undo(ctx, aff); !errors.Is(err, ErrAffordanceRetired) {
		t.Errorf("Undo after Dismiss = %v", err)
	}
	f.ctrl.Wait()
}

func TestCreateIsNotOptimistic(t *testing.T) {
	f := newFixture(t)
	f.svc.CreateNoteErr = errors.New("HTTP 500: nope")

	if _, err := f.ctrl.Create(context.Background(), service.NoteDraft{Content: "delta"}); err == nil {
		t.Fatal("expected error")
	}
	if got := ids(f.store.Notes()); got != "a,b,c" {
		t.Errorf("notes = %s, want a,b,c", got)
	}

	f.svc.CreateNoteErr = nil
	n, err := f.ctrl.Create(context.Background(), service.NoteDraft{Content: "delta", Important: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	notes := f.store.Notes()
	if last := notes[len(notes)-1]; last.ID != n.ID || !last.Important {
		t.Errorf("last note = %+v, want server record %+v", last, n)
	}
}

func TestUpdateIsNotOptimistic(t *testing.T) {
	f := newFixture(t)
	f.svc.UpdateNoteErr = errors.New("HTTP 500: nope")

	if _, err := f.ctrl.Update(context.Background(), "a", service.NoteDraft{Content: "changed"}); err == nil {
		t.Fatal("expected error")
	}
	if f.store.Notes()[0].Content != "alpha" {
		t.Errorf("note changed before confirmation: %+v", f.store.Notes()[0])
	}

	f.svc.UpdateNoteErr = nil
	if _, err := f.ctrl.Update(context.Background(), "a", service.NoteDraft{Content: "changed"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	notes := f.store.Notes()
	if ids(notes) != "a,b,c" || notes[0].Content != "changed" {
		t.Errorf("notes = %+v", notes)
	}
}

func TestUpdateMissingLocallyMakesNoRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.ctrl.Update(context.Background(), "zzz", service.NoteDraft{Content: "x"})
	if !errors.Is(err, ErrNotFoundLocally) {
		t.Fatalf("Update error = %v, want ErrNotFoundLocally", err)
	}
	if n := f.svc.CallCount("UpdateNote"); n != 0 {
		t.Errorf("UpdateNote calls = %d, want 0", n)
	}
}

func TestUnauthorizedDeleteForcesLogout(t *testing.T) {
	f := newFixture(t)
	f.svc.DeleteNoteErr = service.ErrUnauthorized

	if _, err := f.ctrl.Delete(context.Background(), "b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	f.ctrl.Wait()

	if f.store.User() != nil {
		t.Error("user still signed in after unauthorized delete")
	}
	if len(f.store.Notes()) != 0 {
		t.Errorf("notes = %v, want empty", f.store.Notes())
	}
	notices := f.sink.all()
	if len(notices) != 1 || notices[0].Title != "Session expired" {
		t.Errorf("notices = %+v", notices)
	}
}

func TestUnauthorizedCreateForcesLogout(t *testing.T) {
	f := newFixture(t)
	f.svc.CreateNoteErr = service.ErrUnauthorized

	_, err := f.ctrl.Create(context.Background(), service.NoteDraft{Content: "x"})
	if !errors.Is(err, state.ErrSessionExpired) {
		t.Fatalf("Create error = %v, want ErrSessionExpired", err)
	}
	if f.store.User() != nil {
		t.Error("user still signed in")
	}
}

func TestStaleCompletionAfterLogoutIsIgnored(t *testing.T) {
	f := newFixture(t)
	gate := make(chan struct{})
	f.svc.DeleteGate = gate
	f.svc.DeleteNoteErr = errors.New("HTTP 500: late failure")

	if _, err := f.ctrl.Delete(context.Background(), "b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := f.store.SetUser(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	close(gate)
	f.ctrl.Wait()

	if n := len(f.sink.all()); n != 0 {
		t.Errorf("got %d notices for a previous session", n)
	}
	if f.ctrl.Diverged() {
		t.Error("stale completion marked divergence")
	}
}

func TestDeletedMessageTruncates(t *testing.T) {
	long := strings.Repeat("x", 60)
	got := DeletedMessage(long)
	if !strings.HasSuffix(got, "…» deleted") {
		t.Errorf("DeletedMessage = %q, want truncated excerpt", got)
	}
	if got := DeletedMessage("short"); got != "Note «short» deleted" {
		t.Errorf("DeletedMessage = %q", got)
	}
}

func TestDeletionStateString(t *testing.T) {
	tests := map[DeletionState]string{
		Idle:                  "idle",
		OptimisticallyRemoved: "optimistically-removed",
		ConfirmedRemoved:      "confirmed-removed",
		RestoredViaUndo:       "restored-via-undo",
		ConfirmationFailed:    "confirmation-failed",
		DeletionState(99):     "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(s), got, want)
		}
	}
}

func TestUndoWaitsForDeleteConfirmation(t *testing.T) {
	f := newFixture(t)
	gate := make(chan struct{})
	f.svc.DeleteGate = gate

	aff, err := f.ctrl.Delete(context.Background(), "b")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}

	type result struct {
		note service.Note
		err  error
	}
	done := make(chan result, 1)
	go func() {
		n, err := f.ctrl.Undo(context.Background(), aff)
		done <- result{n, err}
	}()

	close(gate)
	res := <-done
	if res.err != nil {
		t.Fatalf("Undo: %v", res.err)
	}

	var order []string
	for _, c := range f.svc.Calls() {
		if c == "DeleteNote" || c == "UndoDeleteNote" {
			order = append(order, c)
		}
	}
	if strings.Join(order, ",") != "DeleteNote,UndoDeleteNote" {
		t.Errorf("call order = %v, want delete before undo", order)
	}
	if got := ids(f.store.Notes()); got != "a,c,b" {
		t.Errorf("notes = %s, want a,c,b", got)
	}
}

func TestRefreshWaitsForInFlightDelete(t *testing.T) {
	f := newFixture(t)
	gate := make(chan struct{})
	f.svc.DeleteGate = gate

	if _, err := f.ctrl.Delete(context.Background(), "b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- f.ctrl.Refresh(context.Background()) }()

	select {
	case err := <-done:
		t.Fatalf("Refresh returned before the delete settled: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := ids(f.store.Notes()); got != "a,c" {
		t.Errorf("notes after refresh = %s, want a,c", got)
	}
}
