package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/magent-cryptograss/magenta/internal"
)

// MarkdownExporter exports heaps in Markdown format
type MarkdownExporter struct{}

// Export writes the heap as a readable Markdown transcript
func (e *MarkdownExporter) Export(heap *internal.HeapView, w io.Writer) error {
	_, _ = fmt.Fprintf(w, "# Context Heap %s\n\n", heap.ID)
	_, _ = fmt.Fprintf(w, "**Era:** %s  \n", heap.Era)
	_, _ = fmt.Fprintf(w, "**Type:** %s  \n", heap.Type)
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(heap.Messages))

	_, _ = fmt.Fprintf(w, "---\n\n")
	_, _ = fmt.Fprintf(w, "## Messages\n\n")

	for i, msg := range heap.Messages {
		header := fmt.Sprintf("%s → %s", msg.Sender, msg.Recipient)
		if msg.Kind != "message" {
			header = fmt.Sprintf("%s [%s]", header, msg.Kind)
		}
		if msg.ToolName != "" {
			header = fmt.Sprintf("%s %s", header, msg.ToolName)
		}
		timestamp := ""
		if msg.Timestamp != "" {
			timestamp = fmt.Sprintf(" (%s)", msg.Timestamp)
		}

		_, _ = fmt.Fprintf(w, "**%d. %s:**%s\n\n%s\n\n", msg.Number, header, timestamp, fenceContent(msg))

		if i < len(heap.Messages)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}

	if heap.Closed != nil {
		_, _ = fmt.Fprintf(w, "---\n\n")
		_, _ = fmt.Fprintf(w, "## Compacted\n\n")
		if heap.Closed.Trigger != "" {
			_, _ = fmt.Fprintf(w, "**Trigger:** %s  \n", heap.Closed.Trigger)
		}
		if heap.Closed.PreCompactTokens > 0 {
			_, _ = fmt.Fprintf(w, "**Pre-compact tokens:** %d  \n", heap.Closed.PreCompactTokens)
		}
		if heap.Closed.Summary != "" {
			_, _ = fmt.Fprintf(w, "\n%s\n", heap.Closed.Summary)
		}
	}

	return nil
}

// fenceContent wraps tool payloads in code fences so raw JSON does not
// bleed into the document structure.
func fenceContent(msg internal.MessageView) string {
	switch msg.Kind {
	case "tool_use", "tool_result":
		fence := "```"
		if strings.Contains(msg.Content, "```") {
			fence = "````"
		}
		return fence + "\n" + msg.Content + "\n" + fence
	default:
		return msg.Content
	}
}

// Extension returns the file extension for Markdown
func (e *MarkdownExporter) Extension() string {
	return "md"
}
