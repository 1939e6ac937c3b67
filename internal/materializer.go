package internal

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PlaceholderContent is stored as the base message payload when a turn
// carries no directly displayable text. The base message still exists so
// the source identity (and the parent chain through it) is preserved.
const PlaceholderContent = "[no displayable text]"

// Applied is one materialized message and whether this pass created it.
type Applied struct {
	Message *Message
	Created bool
}

// Materializer turns decoded events into persisted entities, enforcing
// the dedup discipline that makes re-imports idempotent.
type Materializer struct {
	store Store
	stats *RunStats
}

// NewMaterializer creates a Materializer over the given store.
func NewMaterializer(store Store, stats *RunStats) *Materializer {
	return &Materializer{store: store, stats: stats}
}

// MaterializeTurn maps a user/assistant turn event to its message family:
// the base message first (always), then derived entities in encounter
// order (thinking, tool uses, tool results) since that is the causal
// order within one source turn.
func (m *Materializer) MaterializeTurn(ev *Event, sourceFile string) ([]Applied, error) {
	if ev.UUID == "" {
		return nil, fmt.Errorf("turn event has no uuid")
	}

	base := m.newMessage(ev, sourceFile)
	base.ID = ev.UUID
	base.Kind = KindMessage
	base.ParentID = ev.ParentUUID
	base.Label = ev.Label
	base.Content = ev.Text
	if base.Content == "" {
		base.Content = PlaceholderContent
	}
	switch ev.Role {
	case "user":
		base.Sender = ParticipantHuman
		base.Recipient = ParticipantAgent
	default:
		base.Sender = ParticipantAgent
		base.Recipient = ParticipantHuman
	}
	if ev.Label == LabelContinuation {
		base.IsContinuation = true
	}
	if strings.HasPrefix(ev.Text, "[Request interrupted") {
		base.IsRetry = true
	}
	if ev.Role == "assistant" && strings.HasPrefix(ev.Text, "API Error") {
		base.IsSyntheticError = true
	}

	applied := make([]Applied, 0, 1+len(ev.Content))
	a, err := m.upsert(base)
	if err != nil {
		return nil, err
	}
	applied = append(applied, a)

	// Derived entities chain off the base message so a turn's internal
	// causality survives as a parent walk.
	parentID := base.ID
	sawThinking := false
	useIdx, resultIdx := 0, 0

	for _, item := range ev.Content {
		var msg *Message
		switch item.Type {
		case "thinking":
			if sawThinking {
				continue
			}
			sawThinking = true
			msg = m.newMessage(ev, sourceFile)
			msg.ID = ThoughtID(base.ID)
			msg.Kind = KindThought
			msg.Content = item.Thinking
			msg.Signature = item.Signature
			msg.Sender = ParticipantAgent
			msg.Recipient = ParticipantAgent

		case "tool_use":
			msg = m.newMessage(ev, sourceFile)
			msg.ID = ToolUseID(base.ID, useIdx)
			useIdx++
			msg.Kind = KindToolUse
			msg.ToolName = item.Name
			msg.ToolID = item.ID
			msg.Content = string(item.Input)
			msg.Sender = ParticipantAgent
			msg.Recipient = ParticipantSystem

		case "tool_result":
			msg = m.newMessage(ev, sourceFile)
			msg.ID = ToolResultID(base.ID, resultIdx)
			resultIdx++
			msg.Kind = KindToolResult
			msg.ToolUseID = item.ToolUseID
			msg.Content = string(item.Content)
			msg.IsError = item.IsError
			msg.Sender = ParticipantSystem
			msg.Recipient = ParticipantAgent

		default:
			continue
		}

		msg.ParentID = parentID
		a, err := m.upsert(msg)
		if err != nil {
			return nil, err
		}
		applied = append(applied, a)
		parentID = msg.ID
	}

	return applied, nil
}

// newMessage seeds a message with the ambient fields shared by the whole
// family of a turn.
func (m *Materializer) newMessage(ev *Event, sourceFile string) *Message {
	return &Message{
		SessionID:           ev.SessionID,
		Timestamp:           ev.Timestamp,
		SourceFile:          sourceFile,
		Model:               ev.Model,
		StopReason:          ev.StopReason,
		InputTokens:         ev.InputTokens,
		OutputTokens:        ev.OutputTokens,
		CacheCreationTokens: ev.CacheCreationTokens,
		CacheReadTokens:     ev.CacheReadTokens,
		IsSidechain:         ev.IsSidechain,
		CWD:                 ev.CWD,
		GitBranch:           ev.GitBranch,
		ClientVersion:       ev.ClientVersion,
	}
}

// upsert applies the dedup discipline: create when absent, no-op when the
// payload matches, flag as apparent duplicate when it differs. The stored
// entity is never overwritten, since content divergence under one
// identity signals a data problem worth surfacing.
func (m *Materializer) upsert(msg *Message) (Applied, error) {
	existing, err := m.store.GetMessage(msg.ID)
	if err != nil {
		return Applied{}, err
	}
	if existing == nil {
		if err := m.store.PutMessage(msg); err != nil {
			return Applied{}, err
		}
		return Applied{Message: msg, Created: true}, nil
	}
	if existing.ContentKey() != msg.ContentKey() && !existing.IsApparentDuplicate {
		LogWarn("apparent duplicate: message %s re-imported with different content", msg.ID)
		m.stats.ApparentDuplicates++
		existing.IsApparentDuplicate = true
		if err := m.store.PutMessage(existing); err != nil {
			return Applied{}, err
		}
	}
	return Applied{Message: existing, Created: false}, nil
}

// MaterializeCompaction maps a compaction summary or boundary marker
// event to a CompactingAction. The identity is a hash over the
// canonicalized payload so byte-identical re-imports collapse to one
// entity.
func (m *Materializer) MaterializeCompaction(ev *Event, sourceFile string) (*CompactingAction, bool, error) {
	var id string
	switch ev.Kind {
	case EventCompactionSummary:
		id = ContentHashID("summary", ev.Summary, ev.BoundaryUUID)
	case EventBoundaryMarker:
		id = ContentHashID("compact_boundary", ev.UUID, ev.BoundaryUUID,
			ev.Trigger, strconv.Itoa(ev.PreCompactTokens))
	default:
		return nil, false, fmt.Errorf("event kind %s is not a compaction event", ev.Kind)
	}

	existing, err := m.store.GetAction(id)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	action := &CompactingAction{
		ID:                id,
		BoundaryMessageID: ev.BoundaryUUID,
		Summary:           ev.Summary,
		Trigger:           ev.Trigger,
		PreCompactTokens:  ev.PreCompactTokens,
		CreatedAt:         time.Now().UTC(),
	}
	if err := m.store.PutAction(action); err != nil {
		return nil, false, err
	}

	// Keep the raw payload for operator review; orphan diagnosis needs it.
	att := &Attachment{
		ID:         ContentHashID("raw", id),
		EntityKind: EntityCompactingAction,
		EntityID:   id,
		Kind:       AttachmentRaw,
		Body:       string(ev.Raw),
		SourceFile: sourceFile,
		CreatedAt:  time.Now().UTC(),
	}
	if err := m.store.PutAttachment(att); err != nil {
		return nil, false, err
	}

	return action, true, nil
}
