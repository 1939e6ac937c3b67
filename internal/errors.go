package internal

import "fmt"

// DecodeError represents a line that could not be decoded into an event
type DecodeError struct {
	Source string // source file name
	Line   int    // 1-based line number, 0 when unknown
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("decode error %s:%d: %v", e.Source, e.Line, e.Err)
	}
	return fmt.Sprintf("decode error %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ConflictError represents a structural conflict: a heap targeted by two
// compacting actions, or a resolution that would move messages out of a
// heap that was already compacted differently. Conflicts are reported and
// left unresolved, never silently merged.
type ConflictError struct {
	HeapID   string
	ActionID string
	Reason   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("compaction conflict on heap %s (action %s): %s", e.HeapID, e.ActionID, e.Reason)
}

// StorageError represents errors accessing the archive store
type StorageError struct {
	Op  string // "open", "query", "exec"
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
