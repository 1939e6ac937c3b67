package export

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/magent-cryptograss/magenta/internal"
)

func TestJSONExporter_Export(t *testing.T) {
	tests := []struct {
		name string
		heap *internal.HeapView
	}{
		{name: "open heap", heap: sampleHeapView()},
		{name: "closed heap", heap: closedHeapView()},
		{name: "empty heap", heap: &internal.HeapView{ID: "empty", Era: "e", Type: "fresh"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter := &JSONExporter{}
			var buf bytes.Buffer
			if err := exporter.Export(tt.heap, &buf); err != nil {
				t.Fatalf("Export() error = %v", err)
			}

			var decoded internal.HeapView
			if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
				t.Fatalf("output is not valid JSON: %v", err)
			}
			if decoded.ID != tt.heap.ID {
				t.Errorf("round-tripped ID = %q, want %q", decoded.ID, tt.heap.ID)
			}
			if len(decoded.Messages) != len(tt.heap.Messages) {
				t.Errorf("round-tripped %d messages, want %d", len(decoded.Messages), len(tt.heap.Messages))
			}
			if (decoded.Closed != nil) != (tt.heap.Closed != nil) {
				t.Errorf("round-tripped Closed presence = %v, want %v", decoded.Closed != nil, tt.heap.Closed != nil)
			}
		})
	}
}
