package internal

import (
	"fmt"
	"time"
)

// HeapView is a fully loaded heap prepared for display and export: the
// heap record, its ordered messages, and its compacting action if bound.
type HeapView struct {
	ID        string            `json:"id" yaml:"id"`
	Era       string            `json:"era" yaml:"era"`
	Type      string            `json:"type" yaml:"type"`
	CreatedAt string            `json:"created_at" yaml:"created_at"`
	Messages  []MessageView     `json:"messages" yaml:"messages"`
	Closed    *CompactionDetail `json:"compacting_action,omitempty" yaml:"compacting_action,omitempty"`
}

// MessageView is one message flattened for display.
type MessageView struct {
	ID        string `json:"id" yaml:"id"`
	Number    int    `json:"number" yaml:"number"`
	Kind      string `json:"kind" yaml:"kind"`
	Sender    string `json:"sender" yaml:"sender"`
	Recipient string `json:"recipient" yaml:"recipient"`
	Content   string `json:"content" yaml:"content"`
	Timestamp string `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	ToolName  string `json:"tool_name,omitempty" yaml:"tool_name,omitempty"`
	IsError   bool   `json:"is_error,omitempty" yaml:"is_error,omitempty"`
	Label     string `json:"label,omitempty" yaml:"label,omitempty"`
}

// CompactionDetail describes the action that closed a heap.
type CompactionDetail struct {
	ID                string `json:"id" yaml:"id"`
	Summary           string `json:"summary,omitempty" yaml:"summary,omitempty"`
	Trigger           string `json:"trigger,omitempty" yaml:"trigger,omitempty"`
	PreCompactTokens  int    `json:"pre_compact_tokens,omitempty" yaml:"pre_compact_tokens,omitempty"`
	EndingMessageID   string `json:"ending_message_id,omitempty" yaml:"ending_message_id,omitempty"`
	BoundaryMessageID string `json:"boundary_message_id,omitempty" yaml:"boundary_message_id,omitempty"`
}

// BuildHeapView loads one heap with its messages and closure.
func BuildHeapView(store Store, heapID string) (*HeapView, error) {
	heap, err := store.GetHeap(heapID)
	if err != nil {
		return nil, err
	}
	if heap == nil {
		return nil, fmt.Errorf("heap %s not found", heapID)
	}

	eraName := heap.EraID
	if era, err := store.GetEra(heap.EraID); err == nil && era != nil {
		eraName = era.Name
	}

	view := &HeapView{
		ID:        heap.ID,
		Era:       eraName,
		Type:      string(heap.Type),
		CreatedAt: heap.CreatedAt.Format(time.RFC3339),
	}

	msgs, err := store.HeapMessages(heapID)
	if err != nil {
		return nil, err
	}
	for _, msg := range msgs {
		mv := MessageView{
			ID:        msg.ID,
			Number:    msg.MessageNumber,
			Kind:      string(msg.Kind),
			Sender:    msg.Sender,
			Recipient: msg.Recipient,
			Content:   msg.Content,
			ToolName:  msg.ToolName,
			IsError:   msg.IsError,
			Label:     msg.Label,
		}
		if msg.Timestamp > 0 {
			mv.Timestamp = time.Unix(msg.Timestamp, 0).UTC().Format(time.RFC3339)
		}
		view.Messages = append(view.Messages, mv)
	}

	action, err := store.ActionForHeap(heapID)
	if err != nil {
		return nil, err
	}
	if action != nil {
		view.Closed = &CompactionDetail{
			ID:                action.ID,
			Summary:           action.Summary,
			Trigger:           action.Trigger,
			PreCompactTokens:  action.PreCompactTokens,
			EndingMessageID:   action.EndingMessageID,
			BoundaryMessageID: action.BoundaryMessageID,
		}
	}

	return view, nil
}
