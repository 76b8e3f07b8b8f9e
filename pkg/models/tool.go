// Package models defines the wire types shared between the agent runtime,
// tool implementations, workflow builders, and callers.
package models

import (
	"encoding/json"
	"time"
)

// ToolCall is a tool invocation request emitted by the model.
type ToolCall struct {
	// ID uniquely identifies this call within a run.
	ID string `json:"id"`

	// Name is the registered tool name.
	Name string `json:"name"`

	// Input is the raw JSON input, validated against the tool schema
	// before dispatch.
	Input json.RawMessage `json:"input,omitempty"`
}

// ToolResultState describes the lifecycle state of a tool result.
type ToolResultState string

const (
	// ToolOutputAvailable means the handler completed and Output holds its payload.
	ToolOutputAvailable ToolResultState = "output-available"

	// ToolOutputError means the handler failed or its input was invalid.
	ToolOutputError ToolResultState = "output-error"

	// ToolOutputDenied means an approval gate rejected the call.
	ToolOutputDenied ToolResultState = "output-denied"

	// ToolApprovalRequested means the call is suspended awaiting approval.
	ToolApprovalRequested ToolResultState = "approval-requested"

	// ToolApprovalResponded means an approval response was recorded.
	ToolApprovalResponded ToolResultState = "approval-responded"

	// ToolInputAvailable means the call input was accepted but not yet executed.
	ToolInputAvailable ToolResultState = "input-available"
)

// ToolResult is the runtime's response to a tool call. It is appended to
// conversation history and streamed to the caller.
type ToolResult struct {
	ToolCallID string          `json:"tool_call_id"`
	ToolName   string          `json:"tool_name"`
	State      ToolResultState `json:"state"`

	// Output is the handler payload (JSON string by convention) when
	// State is output-available.
	Output string `json:"output,omitempty"`

	// ErrorText describes the failure when State is output-error.
	ErrorText string `json:"error_text,omitempty"`

	// Approved records the approval decision for approval-responded results.
	Approved *bool `json:"approved,omitempty"`
}

// IsError reports whether the result represents a failed or denied call.
func (r *ToolResult) IsError() bool {
	return r.State == ToolOutputError || r.State == ToolOutputDenied
}

// DataPartType identifies a transient data part subtype.
type DataPartType string

const (
	DataFileContent    DataPartType = "file-content"
	DataShellOutput    DataPartType = "shell-output"
	DataSearchResult   DataPartType = "search-result"
	DataToolProgress   DataPartType = "tool-progress"
	DataReasoningStep  DataPartType = "reasoning-step"
	DataSubAgentStream DataPartType = "sub-agent-stream"
	DataMemoryResult   DataPartType = "memory-result"
)

// DataPart is a transient payload delivered to the caller alongside the run
// stream. Data parts never re-enter model context on subsequent steps.
type DataPart struct {
	Type       DataPartType    `json:"type"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Timestamp  time.Time       `json:"timestamp,omitempty"`
}

// NewDataPart builds a data part, JSON-encoding the payload. Encoding
// failures yield a null payload rather than an error; data parts are
// best-effort auxiliaries.
func NewDataPart(t DataPartType, callID string, payload any) *DataPart {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = json.RawMessage("null")
	}
	return &DataPart{
		Type:       t,
		ToolCallID: callID,
		Payload:    raw,
		Timestamp:  time.Now(),
	}
}
