package models

import "time"

// EventType discriminates stream events. The set is closed: consumers can
// switch over it exhaustively. Data events carry a dynamic "data-<subtype>"
// type and are recognized with IsDataEvent.
type EventType string

const (
	EventStartStep      EventType = "start-step"
	EventFinishStep     EventType = "finish-step"
	EventTextDelta      EventType = "text-delta"
	EventReasoningStart EventType = "reasoning-start"
	EventReasoningDelta EventType = "reasoning-delta"
	EventReasoningEnd   EventType = "reasoning-end"
	EventToolCall       EventType = "tool-call"
	EventToolResult     EventType = "tool-result"
	EventToolError      EventType = "tool-error"
	EventFinish         EventType = "finish"
	EventError          EventType = "error"

	// dataEventPrefix prefixes the subtype for transient data events.
	dataEventPrefix = "data-"
)

// StreamEvent is one event on a run's stream. Exactly the fields relevant to
// Type are populated.
type StreamEvent struct {
	Type      EventType `json:"type"`
	Step      int       `json:"step"`
	Timestamp time.Time `json:"timestamp,omitempty"`

	// TextDelta holds the chunk for text-delta events.
	TextDelta string `json:"text_delta,omitempty"`

	// ReasoningDelta holds the chunk for reasoning-delta events.
	ReasoningDelta string `json:"reasoning_delta,omitempty"`

	// ToolCall is set on tool-call events.
	ToolCall *ToolCall `json:"tool_call,omitempty"`

	// ToolResult is set on tool-result and tool-error events.
	ToolResult *ToolResult `json:"tool_result,omitempty"`

	// Data is set on data-* events. Data parts are delivered to the caller
	// only; they never re-enter model context.
	Data *DataPart `json:"data,omitempty"`

	// FinishReason is set on finish-step and finish events.
	FinishReason FinishReason `json:"finish_reason,omitempty"`

	// Usage is set on finish-step (per-step) and finish (run total) events.
	Usage *Usage `json:"usage,omitempty"`

	// Cancelled marks a finish event produced by context cancellation.
	Cancelled bool `json:"cancelled,omitempty"`

	// Err carries the failure for error events. It is not serialized;
	// ErrorText holds the wire form.
	Err       error  `json:"-"`
	ErrorText string `json:"error_text,omitempty"`
}

// NewDataEvent wraps a data part as a stream event typed "data-<subtype>".
func NewDataEvent(step int, part *DataPart) StreamEvent {
	return StreamEvent{
		Type:      EventType(dataEventPrefix + string(part.Type)),
		Step:      step,
		Timestamp: time.Now(),
		Data:      part,
	}
}

// IsDataEvent reports whether the event carries a transient data part.
func (e StreamEvent) IsDataEvent() bool {
	return len(e.Type) > len(dataEventPrefix) && e.Type[:len(dataEventPrefix)] == dataEventPrefix
}

// IsTerminal reports whether the event ends the stream.
func (e StreamEvent) IsTerminal() bool {
	return e.Type == EventFinish
}
