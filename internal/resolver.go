package internal

import (
	"time"
)

// BoundaryResolver reconciles the two directions of forward reference
// between compacting actions and the boundary messages they name: an
// action may arrive before its message (watchlist registration) or a
// message may arrive for an action already waiting (watchlist hit).
// Closure behaves identically in both orders.
type BoundaryResolver struct {
	store Store
	stats *RunStats
}

// NewBoundaryResolver creates a resolver over the given store.
func NewBoundaryResolver(store Store, stats *RunStats) *BoundaryResolver {
	return &BoundaryResolver{store: store, stats: stats}
}

// OnAction resolves a freshly materialized compacting action. If the
// message it waits on is already known and placed, the action binds and
// the heap closes now; otherwise the boundary identity goes on the
// watchlist.
func (r *BoundaryResolver) OnAction(st *StreamState, action *CompactingAction) error {
	target := action.ResolutionTarget()
	if target == "" {
		// Nothing to wait on; permanently orphaned and visible via the
		// orphans report.
		LogWarn("compacting action %s names no boundary message", action.ID)
		return nil
	}

	msg, err := r.store.GetMessage(target)
	if err != nil {
		return err
	}
	if msg == nil || msg.HeapID == "" {
		// First watcher wins: a later action naming the same boundary is a
		// conflict and stays orphaned, just as it would if the message had
		// arrived first.
		prior, err := r.store.GetWatch(target)
		if err != nil {
			return err
		}
		switch prior {
		case "":
			if err := r.store.PutWatch(target, action.ID); err != nil {
				return err
			}
			r.stats.OrphansRegistered++
			LogDebug("action %s orphaned, watching for message %s", action.ID, target)
		case action.ID:
			// Re-import of the same action; the watch already stands.
		default:
			r.stats.Conflicts++
			LogWarn("action %s conflicts with action %s already watching message %s",
				action.ID, prior, target)
		}
		return nil
	}
	return r.bind(st, action, msg)
}

// OnMessage checks an applied message against the watchlist and, on a
// hit, binds the waiting action exactly as OnAction would have.
func (r *BoundaryResolver) OnMessage(st *StreamState, msg *Message) error {
	actionID, err := r.store.GetWatch(msg.ID)
	if err != nil {
		return err
	}
	if actionID == "" {
		return nil
	}
	if msg.HeapID == "" {
		// Placement happens before resolution; an unplaced message here
		// means the caller sequenced the steps wrong.
		return nil
	}

	action, err := r.store.GetAction(actionID)
	if err != nil {
		return err
	}
	if err := r.store.DeleteWatch(msg.ID); err != nil {
		return err
	}
	if action == nil {
		return nil
	}
	r.stats.OrphansResolved++
	return r.bind(st, action, msg)
}

// Reconcile re-scans the watchlist after a bulk run: entries whose
// message appeared in a file processed earlier resolve now; the rest are
// genuine orphans, reported but kept.
func (r *BoundaryResolver) Reconcile(st *StreamState) error {
	watches, err := r.store.Watchlist()
	if err != nil {
		return err
	}
	for boundaryID, actionID := range watches {
		msg, err := r.store.GetMessage(boundaryID)
		if err != nil {
			return err
		}
		if msg == nil || msg.HeapID == "" {
			continue
		}
		action, err := r.store.GetAction(actionID)
		if err != nil {
			return err
		}
		if err := r.store.DeleteWatch(boundaryID); err != nil {
			return err
		}
		if action == nil {
			continue
		}
		r.stats.OrphansResolved++
		if err := r.bind(st, action, msg); err != nil {
			return err
		}
	}

	remaining, err := r.store.OrphanedActions()
	if err != nil {
		return err
	}
	r.stats.OrphansRemaining = len(remaining)
	for _, action := range remaining {
		LogWarn("orphaned compacting action %s (waiting on %s)", action.ID, action.ResolutionTarget())
	}
	return nil
}

// bind closes the boundary message's heap with the action. A heap that
// already has a different action is a conflict: the second action stays
// orphaned and is surfaced, never merged.
func (r *BoundaryResolver) bind(st *StreamState, action *CompactingAction, boundary *Message) error {
	heapID := boundary.HeapID

	existing, err := r.store.ActionForHeap(heapID)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != action.ID {
		r.stats.Conflicts++
		LogWarn("%v", &ConflictError{
			HeapID:   heapID,
			ActionID: action.ID,
			Reason:   "heap already closed by action " + existing.ID,
		})
		return nil
	}

	// Messages past the boundary mean the boundary event lagged the live
	// stream; split the heap so membership matches the fully ordered view.
	later, err := r.store.MessagesAfter(heapID, boundary.MessageNumber)
	if err != nil {
		return err
	}
	if len(later) > 0 {
		return r.split(st, action, boundary, later)
	}

	action.HeapID = heapID
	if action.EndingMessageID == "" {
		action.EndingMessageID = boundary.ID
	}
	if err := r.store.PutAction(action); err != nil {
		return err
	}
	r.stats.HeapsClosed++
	LogDebug("action %s closed heap %s at message %s", action.ID, heapID, boundary.ID)

	if st != nil && st.CurrentHeapID == heapID {
		st.ClosePending = true
		st.PendingActionID = action.ID
	}
	return nil
}

// split moves every message past the boundary into a new heap, renumbered
// from zero, and binds the action to the original heap. Applied as one
// transactional batch so readers never observe a half-moved heap.
func (r *BoundaryResolver) split(st *StreamState, action *CompactingAction, boundary *Message, later []*Message) error {
	parentHeap, err := r.store.GetHeap(boundary.HeapID)
	if err != nil {
		return err
	}
	if parentHeap == nil {
		return &ConflictError{HeapID: boundary.HeapID, ActionID: action.ID, Reason: "heap record missing"}
	}

	newHeap := &ContextHeap{
		ID:             NewID(),
		EraID:          parentHeap.EraID,
		FirstMessageID: later[0].ID,
		Type:           HeapPostCompacting,
		CreatedAt:      time.Now().UTC(),
	}

	for i, msg := range later {
		msg.HeapID = newHeap.ID
		msg.MessageNumber = i
	}
	later[0].IsContinuation = true

	action.HeapID = boundary.HeapID
	if action.EndingMessageID == "" {
		action.EndingMessageID = boundary.ID
	}
	action.ContinuationMessageID = later[0].ID

	if err := r.store.SplitHeap(newHeap, later, action); err != nil {
		return err
	}

	r.stats.HeapsClosed++
	r.stats.HeapsPostCompacting++
	r.stats.Splits++
	LogInfo("split heap %s at message %s: %d message(s) moved to heap %s",
		boundary.HeapID, boundary.ID, len(later), newHeap.ID)

	if st != nil && st.CurrentHeapID == boundary.HeapID {
		st.CurrentHeapID = newHeap.ID
	}
	return nil
}
