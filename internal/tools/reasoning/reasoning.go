// Package reasoning implements the deep-reasoning tool: a sequential
// thinking scratchpad with revisions and branches.
package reasoning

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// maxHistory bounds the retained thoughts; older entries roll off.
const maxHistory = 50

// Thought is one recorded reasoning step.
type Thought struct {
	Thought           string `json:"thought"`
	ThoughtNumber     int    `json:"thought_number"`
	TotalThoughts     int    `json:"total_thoughts"`
	NextThoughtNeeded bool   `json:"next_thought_needed"`
	IsRevision        bool   `json:"is_revision,omitempty"`
	RevisesThought    int    `json:"revises_thought,omitempty"`
	BranchFromThought int    `json:"branch_from_thought,omitempty"`
	BranchID          string `json:"branch_id,omitempty"`
}

// Engine accumulates thoughts for one agent. Safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	history  []Thought
	branches map[string][]Thought
}

// NewEngine builds an empty reasoning engine.
func NewEngine() *Engine {
	return &Engine{branches: make(map[string][]Thought)}
}

// Record appends a thought, maintaining the invariants: totalThoughts is
// raised to thoughtNumber when the model under-estimated, history is capped
// to the newest maxHistory entries, and branch thoughts are also filed under
// their branch id.
func (e *Engine) Record(t Thought) Thought {
	if t.TotalThoughts < t.ThoughtNumber {
		t.TotalThoughts = t.ThoughtNumber
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, t)
	if len(e.history) > maxHistory {
		e.history = e.history[len(e.history)-maxHistory:]
	}
	if t.BranchID != "" {
		e.branches[t.BranchID] = append(e.branches[t.BranchID], t)
	}
	return t
}

// HistoryLen returns the number of retained thoughts.
func (e *Engine) HistoryLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.history)
}

// Branches returns the known branch ids.
func (e *Engine) Branches() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.branches))
	for id := range e.branches {
		ids = append(ids, id)
	}
	return ids
}

var schema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "thought": {"type": "string", "description": "The current thinking step"},
    "thought_number": {"type": "integer", "minimum": 1},
    "total_thoughts": {"type": "integer", "minimum": 1},
    "next_thought_needed": {"type": "boolean"},
    "is_revision": {"type": "boolean"},
    "revises_thought": {"type": "integer", "minimum": 1},
    "branch_from_thought": {"type": "integer", "minimum": 1},
    "branch_id": {"type": "string"}
  },
  "required": ["thought", "thought_number", "total_thoughts", "next_thought_needed"],
  "additionalProperties": false
}`)

type result struct {
	ThoughtNumber        int      `json:"thought_number"`
	TotalThoughts        int      `json:"total_thoughts"`
	NextThoughtNeeded    bool     `json:"next_thought_needed"`
	Branches             []string `json:"branches"`
	ThoughtHistoryLength int      `json:"thought_history_length"`
}

// NewTool builds the deep-reasoning tool around a fresh engine.
func NewTool() *agent.Tool {
	engine := NewEngine()
	return &agent.Tool{
		Name:        "deep_reasoning",
		Description: "Work through a problem step by step. Supports revising earlier thoughts and branching alternatives.",
		Schema:      schema,
		Durability:  agent.Durability{Enabled: true, Independent: true},
		Handler: func(ctx context.Context, raw json.RawMessage, tc *agent.ToolContext) (string, error) {
			var t Thought
			if err := json.Unmarshal(raw, &t); err != nil {
				return "", agent.NewToolError(agent.ErrCodeValidationFailed, "deep_reasoning", "invalid input").WithCause(err)
			}
			t = engine.Record(t)
			tc.Emitter.EmitData(models.NewDataPart(models.DataReasoningStep, tc.CallID, t))
			b, err := json.Marshal(result{
				ThoughtNumber:        t.ThoughtNumber,
				TotalThoughts:        t.TotalThoughts,
				NextThoughtNeeded:    t.NextThoughtNeeded,
				Branches:             engine.Branches(),
				ThoughtHistoryLength: engine.HistoryLen(),
			})
			if err != nil {
				return "", agent.NewToolError(agent.ErrCodeExecutionFailed, "deep_reasoning", "failed to encode result").WithCause(err)
			}
			return string(b), nil
		},
	}
}
