package reconcile

import (
	"time"

	"ynote/internal/service"
)

// DeletionState tracks one deletion event.
type DeletionState int

const (
	Idle DeletionState = iota
	OptimisticallyRemoved
	ConfirmedRemoved
	RestoredViaUndo
	ConfirmationFailed
)

func (s DeletionState) String() string {
	switch s {
	case Idle:
		return "idle"
	case OptimisticallyRemoved:
		return "optimistically-removed"
	case ConfirmedRemoved:
		return "confirmed-removed"
	case RestoredViaUndo:
		return "restored-via-undo"
	case ConfirmationFailed:
		return "confirmation-failed"
	default:
		return "unknown"
	}
}

// Affordance is the undo handle for one deleted note. It is bound to the
// list as it was before the removal and is valid until it expires, is
// used, or another affordance replaces it.
type Affordance struct {
	NoteID   string
	Snapshot []service.Note
	ArmedAt  time.Time
	Expires  time.Time
	Message  string

	seq   uint64
	gen   uint64
	done  chan struct{} // closed once the delete request settled
	state DeletionState // guarded by Controller.mu
}

// Expired reports whether the undo window has closed at now.
func (a *Affordance) Expired(now time.Time) bool {
	return !now.Before(a.Expires)
}

// Remaining returns how long the undo window stays open after now.
func (a *Affordance) Remaining(now time.Time) time.Duration {
	if a.Expired(now) {
		return 0
	}
	return a.Expires.Sub(now)
}

// restoreInto rebuilds the list after a confirmed undo. It starts from the
// pre-removal snapshot without the restored note, takes the live version of
// every note that still exists, drops notes deleted since, appends notes
// created since, and finally appends the restored note.
func restoreInto(snapshot []service.Note, id string, live []service.Note, restored service.Note) []service.Note {
	liveByID := make(map[string]service.Note, len(live))
	for _, n := range live {
		liveByID[n.ID] = n
	}

	out := make([]service.Note, 0, len(live)+1)
	seen := make(map[string]bool, len(live))
	for _, n := range snapshot {
		if n.ID == id {
			continue
		}
		if current, ok := liveByID[n.ID]; ok {
			out = append(out, current)
			seen[n.ID] = true
		}
	}
	for _, n := range live {
		if n.ID == id || seen[n.ID] {
			continue
		}
		out = append(out, n)
	}
	return append(out, restored)
}
