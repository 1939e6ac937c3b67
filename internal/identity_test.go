package internal

import (
	"testing"

	"github.com/google/uuid"
)

func TestDerivedIDs_Deterministic(t *testing.T) {
	base := "3f1c9a52-7702-4b54-9a1c-111111111111"

	if ThoughtID(base) != ThoughtID(base) {
		t.Error("ThoughtID not deterministic")
	}
	if ToolUseID(base, 0) != ToolUseID(base, 0) {
		t.Error("ToolUseID not deterministic")
	}
	if ToolUseID(base, 0) == ToolUseID(base, 1) {
		t.Error("ToolUseID does not distinguish indices")
	}
	if ToolUseID(base, 0) == ToolResultID(base, 0) {
		t.Error("tool use and tool result identities collide")
	}
	if ThoughtID(base) == base {
		t.Error("derived identity equals its base")
	}
}

func TestDerivedIDs_NonUUIDBase(t *testing.T) {
	// Some clients write non-UUID identifiers; derivation must still
	// produce stable valid UUIDs.
	id := ThoughtID("not-a-uuid")
	if id != ThoughtID("not-a-uuid") {
		t.Error("derivation from non-UUID base not deterministic")
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("derived id %q is not a valid UUID: %v", id, err)
	}
}

func TestContentHashID(t *testing.T) {
	a := ContentHashID("summary", "text", "m1")
	if a != ContentHashID("summary", "text", "m1") {
		t.Error("ContentHashID not deterministic")
	}
	if a == ContentHashID("summary", "m1", "text") {
		t.Error("ContentHashID insensitive to part order")
	}
	if a == ContentHashID("summary", "te", "xtm1") {
		t.Error("ContentHashID collides across part boundaries")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("hash id %q is not a valid UUID: %v", a, err)
	}
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	if a == b {
		t.Error("NewID returned duplicate values")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("NewID() = %q is not a valid UUID: %v", a, err)
	}
}
