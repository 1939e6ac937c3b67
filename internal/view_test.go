package internal

import (
	"testing"

	"github.com/magent-cryptograss/magenta/testutil"
)

func TestBuildHeapView(t *testing.T) {
	d, store, era := newTestDriver(t)

	applyAll(t, d, "s1.jsonl", []string{
		testutil.UserLine(idU1, "", "view me"),
		testutil.AssistantTextLine(idA1, idU1, "rendered"),
		testutil.SummaryLine("Closed for viewing.", idA1),
	})

	heaps, err := store.HeapsByEra(era.ID)
	if err != nil {
		t.Fatalf("HeapsByEra() error = %v", err)
	}
	if len(heaps) != 1 {
		t.Fatalf("got %d heaps, want 1", len(heaps))
	}

	view, err := BuildHeapView(store, heaps[0].ID)
	if err != nil {
		t.Fatalf("BuildHeapView() error = %v", err)
	}
	if view.Era != era.Name {
		t.Errorf("view Era = %q, want the era name %q", view.Era, era.Name)
	}
	if view.Type != string(HeapFresh) {
		t.Errorf("view Type = %q", view.Type)
	}
	if len(view.Messages) != 2 {
		t.Fatalf("view has %d messages, want 2", len(view.Messages))
	}
	if view.Messages[0].Sender != ParticipantHuman || view.Messages[0].Content != "view me" {
		t.Errorf("first message = %+v", view.Messages[0])
	}
	if view.Messages[1].Number != 1 {
		t.Errorf("second message numbered %d", view.Messages[1].Number)
	}
	if view.Closed == nil {
		t.Fatal("closed heap rendered without its compacting action")
	}
	if view.Closed.Summary != "Closed for viewing." {
		t.Errorf("Closed.Summary = %q", view.Closed.Summary)
	}

	if _, err := BuildHeapView(store, "no-such-heap"); err == nil {
		t.Error("BuildHeapView of an unknown heap should fail")
	}
}
