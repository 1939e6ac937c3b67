package internal

import (
	"time"
)

// HeapAssigner decides which context heap a newly materialized message
// belongs to: reuse the current one via its parent, inherit from a prior
// import pass, or open a new one.
type HeapAssigner struct {
	store Store
	stats *RunStats
}

// NewHeapAssigner creates a HeapAssigner over the given store.
func NewHeapAssigner(store Store, stats *RunStats) *HeapAssigner {
	return &HeapAssigner{store: store, stats: stats}
}

// Assign places one applied message, updating the stream state. Rules are
// evaluated in arrival order per message:
//
//  1. no parent and no pending closure -> open a fresh heap
//  2. pending closure -> open a post-compacting heap and clear the flag
//  3. already assigned by a prior pass -> adopt that heap as current
//  4. parent's heap known -> inherit it
//  5. otherwise -> defensive fallback heap, counted separately for audit
func (h *HeapAssigner) Assign(st *StreamState, eraID string, app Applied) error {
	msg := app.Message

	if !app.Created {
		// Resume-on-reimport: an existing placement wins.
		if msg.HeapID != "" {
			st.CurrentHeapID = msg.HeapID
		}
		return nil
	}

	switch {
	case msg.ParentID == "" && !st.ClosePending:
		return h.openHeap(st, eraID, msg, HeapFresh)

	case st.ClosePending:
		if err := h.openHeap(st, eraID, msg, HeapPostCompacting); err != nil {
			return err
		}
		st.ClosePending = false
		msg.IsContinuation = true
		if err := h.store.PutMessage(msg); err != nil {
			return err
		}
		if st.PendingActionID != "" {
			action, err := h.store.GetAction(st.PendingActionID)
			if err != nil {
				return err
			}
			if action != nil {
				action.ContinuationMessageID = msg.ID
				if err := h.store.PutAction(action); err != nil {
					return err
				}
			}
			st.PendingActionID = ""
		}
		return nil

	case msg.HeapID != "":
		st.CurrentHeapID = msg.HeapID
		return nil

	default:
		parent, err := h.store.GetMessage(msg.ParentID)
		if err != nil {
			return err
		}
		if parent != nil && parent.HeapID != "" {
			return h.place(st, msg, parent.HeapID)
		}
		// Parent unknown or unplaced; should not happen in well-formed
		// streams, so audit it.
		h.stats.HeapsNoParent++
		return h.openHeap(st, eraID, msg, HeapFresh)
	}
}

// openHeap creates a heap with msg as its first message and makes it the
// stream's current heap.
func (h *HeapAssigner) openHeap(st *StreamState, eraID string, msg *Message, typ HeapType) error {
	heap := &ContextHeap{
		ID:             NewID(),
		EraID:          eraID,
		FirstMessageID: msg.ID,
		Type:           typ,
		CreatedAt:      time.Unix(msg.Timestamp, 0).UTC(),
	}
	if msg.Timestamp == 0 {
		heap.CreatedAt = time.Now().UTC()
	}
	if err := h.store.PutHeap(heap); err != nil {
		return err
	}

	msg.HeapID = heap.ID
	msg.MessageNumber = 0
	if err := h.store.PutMessage(msg); err != nil {
		return err
	}

	st.CurrentHeapID = heap.ID
	switch typ {
	case HeapFresh:
		h.stats.HeapsFresh++
	case HeapPostCompacting:
		h.stats.HeapsPostCompacting++
	case HeapSplitPoint:
		h.stats.HeapsSplit++
	}
	LogDebug("opened %s heap %s at message %s", typ, heap.ID, msg.ID)
	return nil
}

// place appends msg to an existing heap with the next sequence number.
func (h *HeapAssigner) place(st *StreamState, msg *Message, heapID string) error {
	size, err := h.store.HeapSize(heapID)
	if err != nil {
		return err
	}
	msg.HeapID = heapID
	msg.MessageNumber = size
	if err := h.store.PutMessage(msg); err != nil {
		return err
	}
	st.CurrentHeapID = heapID
	return nil
}
