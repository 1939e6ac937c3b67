package testutil

import (
	"encoding/json"
	"fmt"
	"time"
)

// LineOpt mutates the raw envelope of a built line.
type LineOpt func(map[string]interface{})

// WithTimestamp sets the line's timestamp.
func WithTimestamp(ts time.Time) LineOpt {
	return func(m map[string]interface{}) {
		m["timestamp"] = ts.UTC().Format(time.RFC3339)
	}
}

// WithSession sets the line's sessionId.
func WithSession(id string) LineOpt {
	return func(m map[string]interface{}) {
		m["sessionId"] = id
	}
}

// WithField sets an arbitrary top-level envelope field.
func WithField(key string, value interface{}) LineOpt {
	return func(m map[string]interface{}) {
		m[key] = value
	}
}

func marshalLine(m map[string]interface{}, opts ...LineOpt) string {
	for _, opt := range opts {
		opt(m)
	}
	data, err := json.Marshal(m)
	if err != nil {
		panic(fmt.Sprintf("marshal test line: %v", err))
	}
	return string(data)
}

func baseEnvelope(typ, uuid, parent string) map[string]interface{} {
	m := map[string]interface{}{
		"type":      typ,
		"uuid":      uuid,
		"sessionId": "session-0001",
		"timestamp": "2026-08-01T10:00:00Z",
		"cwd":       "/home/dev/project",
		"gitBranch": "main",
		"version":   "1.0.64",
	}
	if parent != "" {
		m["parentUuid"] = parent
	}
	return m
}

// UserLine builds a user turn whose content is a bare string.
func UserLine(uuid, parent, text string, opts ...LineOpt) string {
	m := baseEnvelope("user", uuid, parent)
	m["message"] = map[string]interface{}{
		"role":    "user",
		"content": text,
	}
	return marshalLine(m, opts...)
}

// AssistantTextLine builds an assistant turn with a single text item.
func AssistantTextLine(uuid, parent, text string, opts ...LineOpt) string {
	m := baseEnvelope("assistant", uuid, parent)
	m["message"] = map[string]interface{}{
		"role":  "assistant",
		"model": "claude-test-1",
		"content": []map[string]interface{}{
			{"type": "text", "text": text},
		},
		"usage": map[string]interface{}{
			"input_tokens":  120,
			"output_tokens": 40,
		},
	}
	return marshalLine(m, opts...)
}

// ThinkingLine builds an assistant turn whose first item is a thinking block.
func ThinkingLine(uuid, parent, thought string, opts ...LineOpt) string {
	m := baseEnvelope("assistant", uuid, parent)
	m["message"] = map[string]interface{}{
		"role":  "assistant",
		"model": "claude-test-1",
		"content": []map[string]interface{}{
			{"type": "thinking", "thinking": thought, "signature": "sig-abc"},
		},
	}
	return marshalLine(m, opts...)
}

// ToolUseLine builds an assistant turn invoking a tool.
func ToolUseLine(uuid, parent, toolName string, input map[string]interface{}, opts ...LineOpt) string {
	m := baseEnvelope("assistant", uuid, parent)
	m["message"] = map[string]interface{}{
		"role":  "assistant",
		"model": "claude-test-1",
		"content": []map[string]interface{}{
			{"type": "tool_use", "id": "toolu_" + uuid[:8], "name": toolName, "input": input},
		},
	}
	return marshalLine(m, opts...)
}

// ToolResultLine builds a user turn carrying a tool result.
func ToolResultLine(uuid, parent, result string, isError bool, opts ...LineOpt) string {
	m := baseEnvelope("user", uuid, parent)
	m["message"] = map[string]interface{}{
		"role": "user",
		"content": []map[string]interface{}{
			{"type": "tool_result", "tool_use_id": "toolu_" + parent[:8], "content": result, "is_error": isError},
		},
	}
	return marshalLine(m, opts...)
}

// SummaryLine builds a compaction summary pointing at a boundary message.
func SummaryLine(summary, leafUUID string, opts ...LineOpt) string {
	m := map[string]interface{}{
		"type":     "summary",
		"summary":  summary,
		"leafUuid": leafUUID,
	}
	return marshalLine(m, opts...)
}

// BoundaryLine builds a system compact_boundary marker chained from the
// last message of the closed heap.
func BoundaryLine(uuid, parent, trigger string, preTokens int, opts ...LineOpt) string {
	m := baseEnvelope("system", uuid, parent)
	m["subtype"] = "compact_boundary"
	m["compactMetadata"] = map[string]interface{}{
		"trigger":   trigger,
		"preTokens": preTokens,
	}
	return marshalLine(m, opts...)
}
