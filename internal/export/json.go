package export

import (
	"encoding/json"
	"io"

	"github.com/magent-cryptograss/magenta/internal"
)

// JSONExporter exports heaps as one indented JSON document
type JSONExporter struct{}

// Export writes the heap as indented JSON
func (e *JSONExporter) Export(heap *internal.HeapView, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(heap)
}

// Extension returns the file extension for JSON
func (e *JSONExporter) Extension() string {
	return "json"
}
