package internal

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventKind discriminates the decoded event variants.
type EventKind string

const (
	EventTextTurn          EventKind = "text_turn"
	EventThinkingBlock     EventKind = "thinking_block"
	EventToolInvocation    EventKind = "tool_invocation"
	EventToolOutcome       EventKind = "tool_outcome"
	EventCompactionSummary EventKind = "compaction_summary"
	EventBoundaryMarker    EventKind = "boundary_marker"
	EventUnrecognized      EventKind = "unrecognized"
)

// Text labels for sentinel-prefixed text turns. Labels are carried for
// downstream display only; they never drive heap assignment.
const (
	LabelContinuation  = "session-continuation"
	LabelCommand       = "command"
	LabelCommandOutput = "command-output"
	LabelCaveat        = "caveat"
)

// ContentItem is one normalized entry of a turn's content array.
type ContentItem struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	Signature string          `json:"signature,omitempty"`
	Name      string          `json:"name,omitempty"`
	ID        string          `json:"id,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// Event is one decoded log line.
type Event struct {
	Kind  EventKind
	Label string

	UUID       string
	ParentUUID string
	SessionID  string
	Timestamp  int64
	Role       string

	Model      string
	StopReason string

	InputTokens         int
	OutputTokens        int
	CacheCreationTokens int
	CacheReadTokens     int

	IsSidechain   bool
	CWD           string
	GitBranch     string
	ClientVersion string

	Content []ContentItem
	Text    string // concatenated text items

	// Compaction fields (summary and boundary_marker events)
	Summary          string
	BoundaryUUID     string
	Trigger          string
	PreCompactTokens int

	Raw json.RawMessage
}

// rawLine is the JSONL envelope written by the client.
type rawLine struct {
	Type        string          `json:"type"`
	Subtype     string          `json:"subtype"`
	UUID        string          `json:"uuid"`
	ParentUUID  string          `json:"parentUuid"`
	SessionID   string          `json:"sessionId"`
	Timestamp   string          `json:"timestamp"`
	IsSidechain bool            `json:"isSidechain"`
	CWD         string          `json:"cwd"`
	GitBranch   string          `json:"gitBranch"`
	Version     string          `json:"version"`
	Message     json.RawMessage `json:"message"`

	// Summary lines
	Summary  string `json:"summary"`
	LeafUUID string `json:"leafUuid"`

	// Compact boundary lines
	CompactMetadata *compactMetadata `json:"compactMetadata"`
}

type compactMetadata struct {
	Trigger   string `json:"trigger"`
	PreTokens int    `json:"preTokens"`
}

// rawMessage is the nested message payload of a user/assistant line.
type rawMessage struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content"`
	Model      string          `json:"model"`
	StopReason string          `json:"stop_reason"`
	Usage      *rawUsage       `json:"usage"`
}

type rawUsage struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	CacheCreationTokens int `json:"cache_creation_input_tokens"`
	CacheReadTokens     int `json:"cache_read_input_tokens"`
}

// sentinelLabel classifies text that the client injects around commands
// and session continuations.
func sentinelLabel(text string) string {
	switch {
	case strings.HasPrefix(text, "This session is being continued from a previous conversation"):
		return LabelContinuation
	case strings.HasPrefix(text, "<command-name>"), strings.HasPrefix(text, "<command-message>"):
		return LabelCommand
	case strings.HasPrefix(text, "<local-command-stdout>"):
		return LabelCommandOutput
	case strings.HasPrefix(text, "Caveat: the messages below were generated by the user"):
		return LabelCaveat
	}
	return ""
}

// DecodeLine parses one raw JSONL line into a typed Event. Decoding is a
// pure function: it never consults or mutates import state.
func DecodeLine(line []byte) (*Event, error) {
	var raw rawLine
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	ev := &Event{
		UUID:          raw.UUID,
		ParentUUID:    raw.ParentUUID,
		SessionID:     raw.SessionID,
		IsSidechain:   raw.IsSidechain,
		CWD:           raw.CWD,
		GitBranch:     raw.GitBranch,
		ClientVersion: raw.Version,
		Raw:           append(json.RawMessage(nil), line...),
	}
	if raw.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, raw.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q: %w", raw.Timestamp, err)
		}
		ev.Timestamp = ts.Unix()
	}

	switch raw.Type {
	case "summary":
		ev.Kind = EventCompactionSummary
		ev.Summary = raw.Summary
		ev.BoundaryUUID = raw.LeafUUID
		if ev.Summary == "" {
			return nil, fmt.Errorf("summary line missing summary text")
		}
		return ev, nil

	case "system":
		if raw.Subtype == "compact_boundary" {
			ev.Kind = EventBoundaryMarker
			// The boundary marker is system-injected at the start of the
			// successor heap; the cut point is the message it chains from.
			ev.BoundaryUUID = raw.ParentUUID
			if raw.CompactMetadata != nil {
				ev.Trigger = raw.CompactMetadata.Trigger
				ev.PreCompactTokens = raw.CompactMetadata.PreTokens
			}
			return ev, nil
		}
		ev.Kind = EventUnrecognized
		return ev, nil

	case "user", "assistant":
		if raw.UUID == "" {
			return nil, fmt.Errorf("%s line missing uuid", raw.Type)
		}
		return decodeTurn(ev, raw)

	default:
		ev.Kind = EventUnrecognized
		return ev, nil
	}
}

func decodeTurn(ev *Event, raw rawLine) (*Event, error) {
	var msg rawMessage
	if len(raw.Message) > 0 {
		if err := json.Unmarshal(raw.Message, &msg); err != nil {
			return nil, fmt.Errorf("invalid message envelope: %w", err)
		}
	}
	ev.Role = msg.Role
	if ev.Role == "" {
		ev.Role = raw.Type
	}
	ev.Model = msg.Model
	ev.StopReason = msg.StopReason
	if msg.Usage != nil {
		ev.InputTokens = msg.Usage.InputTokens
		ev.OutputTokens = msg.Usage.OutputTokens
		ev.CacheCreationTokens = msg.Usage.CacheCreationTokens
		ev.CacheReadTokens = msg.Usage.CacheReadTokens
	}

	items, text, err := normalizeContent(msg.Content)
	if err != nil {
		return nil, err
	}
	ev.Content = items
	ev.Text = text

	// Classify by the first content item.
	ev.Kind = EventTextTurn
	if len(items) > 0 {
		switch items[0].Type {
		case "thinking":
			ev.Kind = EventThinkingBlock
		case "tool_use":
			ev.Kind = EventToolInvocation
		case "tool_result":
			ev.Kind = EventToolOutcome
		case "text":
			ev.Label = sentinelLabel(items[0].Text)
		}
	}
	return ev, nil
}

// normalizeContent accepts the two shapes the client writes: a bare string
// or an array of typed items. Anything else is a decode anomaly.
func normalizeContent(content json.RawMessage) ([]ContentItem, string, error) {
	if len(content) == 0 {
		return nil, "", nil
	}

	var s string
	if err := json.Unmarshal(content, &s); err == nil {
		return []ContentItem{{Type: "text", Text: s}}, s, nil
	}

	var items []ContentItem
	if err := json.Unmarshal(content, &items); err != nil {
		return nil, "", fmt.Errorf("content is neither string nor item array: %w", err)
	}

	var parts []string
	for _, item := range items {
		if item.Type == "text" && item.Text != "" {
			parts = append(parts, item.Text)
		}
	}
	return items, strings.Join(parts, "\n"), nil
}
