package export

import (
	"testing"

	"github.com/magent-cryptograss/magenta/internal"
)

func sampleHeapView() *internal.HeapView {
	return &internal.HeapView{
		ID:        "11111111-1111-1111-1111-111111111111",
		Era:       "workbench",
		Type:      "fresh",
		CreatedAt: "2026-08-01T10:00:00Z",
		Messages: []internal.MessageView{
			{
				ID:        "aaaa1111-0000-0000-0000-000000000001",
				Number:    0,
				Kind:      "message",
				Sender:    "human",
				Recipient: "agent",
				Content:   "rename the config loader",
				Timestamp: "2026-08-01T10:00:01Z",
			},
			{
				ID:        "aaaa1111-0000-0000-0000-000000000002",
				Number:    1,
				Kind:      "tool_use",
				Sender:    "agent",
				Recipient: "agent",
				Content:   `{"file_path":"config.go"}`,
				ToolName:  "Read",
			},
			{
				ID:        "aaaa1111-0000-0000-0000-000000000003",
				Number:    2,
				Kind:      "tool_result",
				Sender:    "agent",
				Recipient: "agent",
				Content:   "package config",
				ToolName:  "Read",
			},
		},
	}
}

func closedHeapView() *internal.HeapView {
	view := sampleHeapView()
	view.Closed = &internal.CompactionDetail{
		ID:               "cccc1111-0000-0000-0000-000000000001",
		Summary:          "Renamed the config loader and verified callers.",
		Trigger:          "auto",
		PreCompactTokens: 154000,
		EndingMessageID:  "aaaa1111-0000-0000-0000-000000000003",
	}
	return view
}

func TestNewExporter(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		wantExt string
		wantErr bool
	}{
		{name: "jsonl format", format: "jsonl", wantExt: "jsonl"},
		{name: "markdown format", format: "md", wantExt: "md"},
		{name: "markdown format long", format: "markdown", wantExt: "md"},
		{name: "yaml format", format: "yaml", wantExt: "yaml"},
		{name: "json format", format: "json", wantExt: "json"},
		{name: "unsupported format", format: "xml", wantErr: true},
		{name: "empty format", format: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter, err := NewExporter(tt.format)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewExporter() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if exporter == nil {
				t.Fatal("NewExporter() returned nil exporter")
			}
			if got := exporter.Extension(); got != tt.wantExt {
				t.Errorf("Extension() = %q, want %q", got, tt.wantExt)
			}
		})
	}
}
