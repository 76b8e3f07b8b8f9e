package agent

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// MessageRole identifies the author of a conversation message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// Message is one entry of the conversation history sent to the provider.
type Message struct {
	Role MessageRole `json:"role"`
	Text string      `json:"text,omitempty"`

	// ToolCalls holds the calls an assistant message requested.
	ToolCalls []models.ToolCall `json:"tool_calls,omitempty"`

	// ToolResult holds the result a tool message carries.
	ToolResult *models.ToolResult `json:"tool_result,omitempty"`
}

// ToolSpec is the provider-facing description of an available tool.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema"`
}

// StepRequest is one model turn: the accumulated history plus the tools the
// model may call.
type StepRequest struct {
	Messages  []Message  `json:"messages"`
	Tools     []ToolSpec `json:"tools,omitempty"`
	MaxTokens int        `json:"max_tokens,omitempty"`
}

// Delta is one streamed fragment of a model turn. Exactly one of the value
// fields is set; the final delta carries Usage and Finish.
type Delta struct {
	Text      string
	Reasoning string
	ToolCall  *models.ToolCall
	Usage     *models.Usage
	Finish    models.FinishReason
	Err       error
}

// Provider produces model turns. Implementations stream deltas on the
// returned channel and close it when the turn ends. An error delta or a
// closed channel without a finish delta both terminate the turn as failed.
type Provider interface {
	// ModelStep starts one model turn. The returned channel is closed by
	// the provider when the turn completes or fails.
	ModelStep(ctx context.Context, req *StepRequest) (<-chan Delta, error)

	// Name identifies the provider for logs.
	Name() string
}
