package internal

// Store is the persistence boundary for the reconstruction engine. The
// engine needs only keyed upsert, point lookup, and scans by heap
// membership or watchlist key; any backend offering those suffices.
//
// The import driver is the single writer. SplitHeap must apply
// atomically so readers never observe a half-moved heap.
type Store interface {
	// Eras
	PutEra(era *Era) error
	GetEra(id string) (*Era, error)
	GetEraByName(name string) (*Era, error)
	RenameEra(id, newName string) error
	Eras() ([]*Era, error)

	// Heaps
	PutHeap(heap *ContextHeap) error
	GetHeap(id string) (*ContextHeap, error)
	HeapsByEra(eraID string) ([]*ContextHeap, error)

	// Messages. PutMessage upserts by identity.
	PutMessage(msg *Message) error
	GetMessage(id string) (*Message, error)
	HeapMessages(heapID string) ([]*Message, error)
	HeapSize(heapID string) (int, error)
	MessagesAfter(heapID string, afterNumber int) ([]*Message, error)

	// Compacting actions
	PutAction(action *CompactingAction) error
	GetAction(id string) (*CompactingAction, error)
	ActionForHeap(heapID string) (*CompactingAction, error)
	OrphanedActions() ([]*CompactingAction, error)

	// Watchlist: boundary message identity -> orphaned action identity.
	PutWatch(boundaryID, actionID string) error
	GetWatch(boundaryID string) (string, error)
	DeleteWatch(boundaryID string) error
	Watchlist() (map[string]string, error)

	// SplitHeap atomically records a split: the new heap, the moved
	// (renumbered) messages, and the updated action binding. A nil
	// action records an operator-driven split with no compaction.
	SplitHeap(newHeap *ContextHeap, moved []*Message, action *CompactingAction) error

	// Supporting records
	PutSourceFile(sf *SourceFile) error
	GetSourceFileByPath(path string) (*SourceFile, error)
	PutAttachment(att *Attachment) error
	AttachmentsFor(entityKind, entityID string) ([]*Attachment, error)

	// Driver state persistence, keyed by import run name.
	SaveDriverState(key string, state []byte) error
	LoadDriverState(key string) ([]byte, error)

	Close() error
}
