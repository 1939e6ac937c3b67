package export

import (
	"io"

	"github.com/magent-cryptograss/magenta/internal"
	"gopkg.in/yaml.v3"
)

// YAMLExporter exports heaps in YAML format
type YAMLExporter struct{}

// Export writes the heap as a YAML document
func (e *YAMLExporter) Export(heap *internal.HeapView, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(heap)
}

// Extension returns the file extension for YAML
func (e *YAMLExporter) Extension() string {
	return "yaml"
}
