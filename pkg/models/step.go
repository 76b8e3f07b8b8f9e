package models

// Usage holds token accounting for a step or an aggregate over a run.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// Add accumulates another usage record into this one. A nil other
// contributes zero.
func (u *Usage) Add(other *Usage) {
	if other == nil {
		return
	}
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// FinishReason explains why a step or run ended.
type FinishReason string

const (
	// FinishStop means the model produced a final answer.
	FinishStop FinishReason = "stop"

	// FinishToolCalls means the model requested tool execution.
	FinishToolCalls FinishReason = "tool-calls"

	// FinishLength means a step, token, or usage limit was reached.
	FinishLength FinishReason = "length"

	// FinishError means the run failed or was cancelled.
	FinishError FinishReason = "error"
)

// StepResult captures one model turn: streamed text, reasoning, the tool
// calls the model emitted, and the results appended before the next turn.
type StepResult struct {
	Index        int          `json:"index"`
	Text         string       `json:"text"`
	Reasoning    string       `json:"reasoning,omitempty"`
	ToolCalls    []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults  []ToolResult `json:"tool_results,omitempty"`
	Usage        Usage        `json:"usage"`
	FinishReason FinishReason `json:"finish_reason"`
}

// RunResult aggregates a complete run.
type RunResult struct {
	// Text is the final assistant text (the last step's text).
	Text string `json:"text"`

	Steps        []StepResult `json:"steps"`
	TotalUsage   Usage        `json:"total_usage"`
	FinishReason FinishReason `json:"finish_reason"`
}

// StepCount returns the number of completed steps.
func (r *RunResult) StepCount() int {
	return len(r.Steps)
}

// ToolCallsNamed returns how many times the named tool was called across
// all steps.
func (r *RunResult) ToolCallsNamed(name string) int {
	n := 0
	for _, s := range r.Steps {
		for _, tc := range s.ToolCalls {
			if tc.Name == name {
				n++
			}
		}
	}
	return n
}
