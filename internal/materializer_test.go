package internal

import (
	"testing"
)

func decodeTestLine(t *testing.T, line string) *Event {
	t.Helper()
	ev, err := DecodeLine([]byte(line))
	if err != nil {
		t.Fatalf("DecodeLine() error = %v", err)
	}
	return ev
}

func TestMaterializeTurn_BaseFirst(t *testing.T) {
	store := NewMemStore()
	stats := &RunStats{}
	m := NewMaterializer(store, stats)

	line := `{"type":"assistant","uuid":"a0000000-0000-0000-0000-000000000001","parentUuid":"u0000000-0000-0000-0000-000000000001","sessionId":"s1","message":{"role":"assistant","model":"claude-test-1","content":[{"type":"thinking","thinking":"let me check","signature":"sig1"},{"type":"text","text":"checking now"},{"type":"tool_use","id":"toolu_01","name":"Bash","input":{"command":"ls"}}]}}`
	applied, err := m.MaterializeTurn(decodeTestLine(t, line), "s1.jsonl")
	if err != nil {
		t.Fatalf("MaterializeTurn() error = %v", err)
	}
	if len(applied) != 3 {
		t.Fatalf("got %d applied messages, want 3 (base, thought, tool use)", len(applied))
	}

	base := applied[0].Message
	if base.ID != "a0000000-0000-0000-0000-000000000001" {
		t.Errorf("base ID = %s, want the source uuid", base.ID)
	}
	if base.Kind != KindMessage {
		t.Errorf("base Kind = %s, want %s", base.Kind, KindMessage)
	}
	if base.Content != "checking now" {
		t.Errorf("base Content = %q", base.Content)
	}
	if base.Sender != ParticipantAgent || base.Recipient != ParticipantHuman {
		t.Errorf("base participants = %s -> %s", base.Sender, base.Recipient)
	}

	thought := applied[1].Message
	if thought.ID != ThoughtID(base.ID) {
		t.Error("thought does not use its derived identity")
	}
	if thought.Kind != KindThought || thought.Content != "let me check" || thought.Signature != "sig1" {
		t.Errorf("thought = %s %q %q", thought.Kind, thought.Content, thought.Signature)
	}
	if thought.ParentID != base.ID {
		t.Error("thought does not chain off the base message")
	}

	use := applied[2].Message
	if use.ID != ToolUseID(base.ID, 0) {
		t.Error("tool use does not use its derived identity")
	}
	if use.ToolName != "Bash" || use.ToolID != "toolu_01" {
		t.Errorf("tool use = %q %q", use.ToolName, use.ToolID)
	}
	if use.ParentID != thought.ID {
		t.Error("derived chain broken: tool use should follow the thought")
	}
}

func TestMaterializeTurn_PlaceholderWhenNoText(t *testing.T) {
	store := NewMemStore()
	m := NewMaterializer(store, &RunStats{})

	line := `{"type":"assistant","uuid":"a0000000-0000-0000-0000-000000000002","message":{"role":"assistant","content":[{"type":"tool_use","id":"toolu_02","name":"Read","input":{}}]}}`
	applied, err := m.MaterializeTurn(decodeTestLine(t, line), "s1.jsonl")
	if err != nil {
		t.Fatalf("MaterializeTurn() error = %v", err)
	}
	if applied[0].Message.Content != PlaceholderContent {
		t.Errorf("base Content = %q, want placeholder", applied[0].Message.Content)
	}
}

func TestMaterializeTurn_Flags(t *testing.T) {
	store := NewMemStore()
	m := NewMaterializer(store, &RunStats{})

	tests := []struct {
		name  string
		line  string
		check func(t *testing.T, msg *Message)
	}{
		{
			name: "continuation",
			line: `{"type":"user","uuid":"f0000000-0000-0000-0000-000000000001","message":{"role":"user","content":"This session is being continued from a previous conversation that ran out of context."}}`,
			check: func(t *testing.T, msg *Message) {
				if !msg.IsContinuation || msg.Label != LabelContinuation {
					t.Errorf("continuation not flagged: %v %q", msg.IsContinuation, msg.Label)
				}
			},
		},
		{
			name: "interrupted request",
			line: `{"type":"user","uuid":"f0000000-0000-0000-0000-000000000002","message":{"role":"user","content":"[Request interrupted by user]"}}`,
			check: func(t *testing.T, msg *Message) {
				if !msg.IsRetry {
					t.Error("interrupted request not flagged as retry")
				}
			},
		},
		{
			name: "synthetic API error",
			line: `{"type":"assistant","uuid":"f0000000-0000-0000-0000-000000000003","message":{"role":"assistant","content":[{"type":"text","text":"API Error: overloaded"}]}}`,
			check: func(t *testing.T, msg *Message) {
				if !msg.IsSyntheticError {
					t.Error("API error turn not flagged as synthetic")
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applied, err := m.MaterializeTurn(decodeTestLine(t, tt.line), "s1.jsonl")
			if err != nil {
				t.Fatalf("MaterializeTurn() error = %v", err)
			}
			tt.check(t, applied[0].Message)
		})
	}
}

func TestMaterializeTurn_Dedup(t *testing.T) {
	store := NewMemStore()
	stats := &RunStats{}
	m := NewMaterializer(store, stats)

	line := `{"type":"user","uuid":"d0000000-0000-0000-0000-000000000001","message":{"role":"user","content":"same content"}}`
	first, err := m.MaterializeTurn(decodeTestLine(t, line), "s1.jsonl")
	if err != nil {
		t.Fatalf("first MaterializeTurn() error = %v", err)
	}
	if !first[0].Created {
		t.Fatal("first application should create the message")
	}

	second, err := m.MaterializeTurn(decodeTestLine(t, line), "s1.jsonl")
	if err != nil {
		t.Fatalf("second MaterializeTurn() error = %v", err)
	}
	if second[0].Created {
		t.Error("identical re-application should be a no-op")
	}
	if stats.ApparentDuplicates != 0 {
		t.Errorf("ApparentDuplicates = %d after identical re-import", stats.ApparentDuplicates)
	}
}

func TestMaterializeTurn_ApparentDuplicate(t *testing.T) {
	store := NewMemStore()
	stats := &RunStats{}
	m := NewMaterializer(store, stats)

	lineA := `{"type":"user","uuid":"d0000000-0000-0000-0000-000000000002","message":{"role":"user","content":"original"}}`
	lineB := `{"type":"user","uuid":"d0000000-0000-0000-0000-000000000002","message":{"role":"user","content":"rewritten"}}`

	if _, err := m.MaterializeTurn(decodeTestLine(t, lineA), "s1.jsonl"); err != nil {
		t.Fatalf("first MaterializeTurn() error = %v", err)
	}
	applied, err := m.MaterializeTurn(decodeTestLine(t, lineB), "s1.jsonl")
	if err != nil {
		t.Fatalf("second MaterializeTurn() error = %v", err)
	}
	if applied[0].Created {
		t.Error("conflicting re-application must not create a new message")
	}

	stored, err := store.GetMessage("d0000000-0000-0000-0000-000000000002")
	if err != nil {
		t.Fatalf("GetMessage() error = %v", err)
	}
	if stored.Content != "original" {
		t.Errorf("stored content = %q, original must never be overwritten", stored.Content)
	}
	if !stored.IsApparentDuplicate {
		t.Error("conflicting identity not flagged as apparent duplicate")
	}
	if stats.ApparentDuplicates != 1 {
		t.Errorf("ApparentDuplicates = %d, want 1", stats.ApparentDuplicates)
	}
}

func TestMaterializeTurn_NullBytesIgnoredInComparison(t *testing.T) {
	store := NewMemStore()
	stats := &RunStats{}
	m := NewMaterializer(store, stats)

	lineA := `{"type":"user","uuid":"d0000000-0000-0000-0000-000000000003","message":{"role":"user","content":"pad\u0000ded"}}`
	lineB := `{"type":"user","uuid":"d0000000-0000-0000-0000-000000000003","message":{"role":"user","content":"padded"}}`

	if _, err := m.MaterializeTurn(decodeTestLine(t, lineA), "s1.jsonl"); err != nil {
		t.Fatalf("first MaterializeTurn() error = %v", err)
	}
	if _, err := m.MaterializeTurn(decodeTestLine(t, lineB), "s1.jsonl"); err != nil {
		t.Fatalf("second MaterializeTurn() error = %v", err)
	}
	if stats.ApparentDuplicates != 0 {
		t.Errorf("null-byte-only difference flagged as duplicate (count %d)", stats.ApparentDuplicates)
	}
}

func TestMaterializeCompaction(t *testing.T) {
	store := NewMemStore()
	m := NewMaterializer(store, &RunStats{})

	line := `{"type":"summary","summary":"We replaced the scanner.","leafUuid":"m0000000-0000-0000-0000-000000000009"}`
	action, created, err := m.MaterializeCompaction(decodeTestLine(t, line), "s1.jsonl")
	if err != nil {
		t.Fatalf("MaterializeCompaction() error = %v", err)
	}
	if !created {
		t.Fatal("first application should create the action")
	}
	if action.Summary != "We replaced the scanner." {
		t.Errorf("Summary = %q", action.Summary)
	}
	if action.BoundaryMessageID != "m0000000-0000-0000-0000-000000000009" {
		t.Errorf("BoundaryMessageID = %q", action.BoundaryMessageID)
	}

	// Raw payload is attached for orphan diagnosis.
	atts, err := store.AttachmentsFor(EntityCompactingAction, action.ID)
	if err != nil {
		t.Fatalf("AttachmentsFor() error = %v", err)
	}
	if len(atts) != 1 || atts[0].Kind != AttachmentRaw {
		t.Fatalf("got %d attachments, want 1 raw attachment", len(atts))
	}

	again, created, err := m.MaterializeCompaction(decodeTestLine(t, line), "s1.jsonl")
	if err != nil {
		t.Fatalf("second MaterializeCompaction() error = %v", err)
	}
	if created {
		t.Error("identical summary re-applied should collapse to the existing action")
	}
	if again.ID != action.ID {
		t.Error("re-applied summary resolved to a different identity")
	}
}

func TestMaterializeCompaction_BoundaryMarkerIdentity(t *testing.T) {
	store := NewMemStore()
	m := NewMaterializer(store, &RunStats{})

	lineA := `{"type":"system","subtype":"compact_boundary","uuid":"b1","parentUuid":"m1","compactMetadata":{"trigger":"auto","preTokens":100}}`
	lineB := `{"type":"system","subtype":"compact_boundary","uuid":"b2","parentUuid":"m1","compactMetadata":{"trigger":"auto","preTokens":100}}`

	a, _, err := m.MaterializeCompaction(decodeTestLine(t, lineA), "s1.jsonl")
	if err != nil {
		t.Fatalf("MaterializeCompaction() error = %v", err)
	}
	b, _, err := m.MaterializeCompaction(decodeTestLine(t, lineB), "s1.jsonl")
	if err != nil {
		t.Fatalf("MaterializeCompaction() error = %v", err)
	}
	if a.ID == b.ID {
		t.Error("markers with different uuids collapsed to one action")
	}
}
