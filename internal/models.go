package internal

import (
	"strings"
	"time"
)

// HeapType records why a context heap was created.
type HeapType string

const (
	HeapFresh          HeapType = "fresh"
	HeapPostCompacting HeapType = "post_compacting"
	HeapSplitPoint     HeapType = "split_point"
)

// MessageKind discriminates the polymorphic message family.
type MessageKind string

const (
	KindMessage    MessageKind = "message"
	KindThought    MessageKind = "thought"
	KindToolUse    MessageKind = "tool_use"
	KindToolResult MessageKind = "tool_result"
)

// Participant names used for sender/recipient fields.
const (
	ParticipantHuman  = "human"
	ParticipantAgent  = "agent"
	ParticipantSystem = "system"
)

// Era is a named, operator-defined grouping of context heaps.
// Eras are created explicitly and never deleted by the importer.
type Era struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ContextHeap is a bounded, ordered run of messages sharing one
// working-memory scope between compaction events.
//
// For split_point heaps FirstMessageID refers to a message whose own heap
// is the (earlier) heap the split diverged from.
type ContextHeap struct {
	ID             string    `json:"id"`
	EraID          string    `json:"era_id"`
	FirstMessageID string    `json:"first_message_id,omitempty"`
	Type           HeapType  `json:"type"`
	CreatedAt      time.Time `json:"created_at"`
}

// Message is the concrete base record for the whole message family.
// Kind-specific payloads (thought signature, tool identifiers) live in
// optional fields rather than subtypes, so "is this a thought" checks are
// a Kind comparison.
type Message struct {
	ID            string      `json:"id"`
	Kind          MessageKind `json:"kind"`
	MessageNumber int         `json:"message_number"`
	Content       string      `json:"content"`

	HeapID   string `json:"heap_id,omitempty"`
	ParentID string `json:"parent_id,omitempty"`

	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`

	SessionID  string `json:"session_id,omitempty"`
	Timestamp  int64  `json:"timestamp,omitempty"`
	SourceFile string `json:"source_file,omitempty"`
	Label      string `json:"label,omitempty"`

	Model      string `json:"model,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`

	InputTokens         int `json:"input_tokens,omitempty"`
	OutputTokens        int `json:"output_tokens,omitempty"`
	CacheCreationTokens int `json:"cache_creation_tokens,omitempty"`
	CacheReadTokens     int `json:"cache_read_tokens,omitempty"`

	// Thought payload
	Signature string `json:"signature,omitempty"`

	// ToolUse payload
	ToolName string `json:"tool_name,omitempty"`
	ToolID   string `json:"tool_id,omitempty"`

	// ToolResult payload
	ToolUseID string `json:"tool_use_id,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`

	IsRetry             bool `json:"is_retry,omitempty"`
	IsSyntheticError    bool `json:"is_synthetic_error,omitempty"`
	IsContinuation      bool `json:"is_continuation,omitempty"`
	IsApparentDuplicate bool `json:"is_apparent_duplicate,omitempty"`
	IsSidechain         bool `json:"is_sidechain,omitempty"`

	CWD           string `json:"cwd,omitempty"`
	GitBranch     string `json:"git_branch,omitempty"`
	ClientVersion string `json:"client_version,omitempty"`
}

// ContentKey returns the message content normalized for dedup comparison.
// Client logs occasionally embed null bytes that round-trip differently
// between import passes.
func (m *Message) ContentKey() string {
	return strings.ReplaceAll(m.Content, "\x00", "")
}

// CompactingAction records the closing of one heap and, usually, the
// opening of the next. HeapID is empty while the action is orphaned
// (its boundary message has not been materialized yet).
type CompactingAction struct {
	ID                    string    `json:"id"`
	HeapID                string    `json:"heap_id,omitempty"`
	EndingMessageID       string    `json:"ending_message_id,omitempty"`
	BoundaryMessageID     string    `json:"boundary_message_id,omitempty"`
	ContinuationMessageID string    `json:"continuation_message_id,omitempty"`
	Summary               string    `json:"summary,omitempty"`
	Trigger               string    `json:"trigger,omitempty"`
	PreCompactTokens      int       `json:"pre_compact_tokens,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
}

// ResolutionTarget is the message identity this action waits on: the
// ending message when the driver observed one in-stream, otherwise the
// boundary the source event names.
func (ca *CompactingAction) ResolutionTarget() string {
	if ca.EndingMessageID != "" {
		return ca.EndingMessageID
	}
	return ca.BoundaryMessageID
}

// SourceFile tracks which lines came from which conversation file.
type SourceFile struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	Path         string    `json:"path"`
	Checksum     string    `json:"checksum,omitempty"`
	LineCount    int       `json:"line_count"`
	MessageCount int       `json:"message_count"`
	ImportedAt   time.Time `json:"imported_at"`
}

// Attachment kinds.
const (
	AttachmentRaw  = "raw"
	AttachmentNote = "note"
)

// Entity kinds for attachments.
const (
	EntityMessage          = "message"
	EntityCompactingAction = "compacting_action"
	EntityHeap             = "context_heap"
)

// Attachment stores auxiliary content (raw imported payloads, operator
// notes) against any entity via an explicit (entity_kind, entity_id) key.
// An empty entity kind means the attachment is unanchored, e.g. a line
// that could not be decoded at all.
type Attachment struct {
	ID         string    `json:"id"`
	EntityKind string    `json:"entity_kind,omitempty"`
	EntityID   string    `json:"entity_id,omitempty"`
	Kind       string    `json:"kind"`
	Body       string    `json:"body"`
	SourceFile string    `json:"source_file,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
