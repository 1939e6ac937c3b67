package export

import (
	"encoding/json"
	"io"

	"github.com/magent-cryptograss/magenta/internal"
)

// JSONLExporter exports heaps as newline-delimited JSON, one message per
// line with a leading heap header line
type JSONLExporter struct{}

// Export writes a header line for the heap followed by one line per message
func (e *JSONLExporter) Export(heap *internal.HeapView, w io.Writer) error {
	enc := json.NewEncoder(w)

	header := struct {
		Record    string                     `json:"record"`
		ID        string                     `json:"id"`
		Era       string                     `json:"era"`
		Type      string                     `json:"type"`
		CreatedAt string                     `json:"created_at"`
		Closed    *internal.CompactionDetail `json:"compacting_action,omitempty"`
	}{
		Record:    "heap",
		ID:        heap.ID,
		Era:       heap.Era,
		Type:      heap.Type,
		CreatedAt: heap.CreatedAt,
		Closed:    heap.Closed,
	}
	if err := enc.Encode(header); err != nil {
		return err
	}

	for _, msg := range heap.Messages {
		row := struct {
			Record string `json:"record"`
			internal.MessageView
		}{Record: "message", MessageView: msg}
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return nil
}

// Extension returns the file extension for JSONL
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
