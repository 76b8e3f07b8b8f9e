package team

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/agentcore/internal/agent"
)

var messageSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "to": {"type": "string", "description": "Recipient member name"},
    "content": {"type": "string", "description": "Message text"}
  },
  "required": ["to", "content"],
  "additionalProperties": false
}`)

var broadcastSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "content": {"type": "string", "description": "Message text"}
  },
  "required": ["content"],
  "additionalProperties": false
}`)

var emptySchema = json.RawMessage(`{
  "type": "object",
  "properties": {},
  "additionalProperties": false
}`)

var taskIDSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "task_id": {"type": "string", "description": "Task id"}
  },
  "required": ["task_id"],
  "additionalProperties": false
}`)

var completeSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "task_id": {"type": "string", "description": "Task id"},
    "result": {"type": "string", "description": "Result of the task"}
  },
  "required": ["task_id", "result"],
  "additionalProperties": false
}`)

// MemberTools builds the coordination tools for one member. The sender
// identity is fixed to member; a tool call can never speak or claim for
// anyone else.
func MemberTools(t *Team, member string) []*agent.Tool {
	return []*agent.Tool{
		{
			Name:        "team_message",
			Description: "Send a direct message to a team member.",
			Schema:      messageSchema,
			Handler: func(ctx context.Context, raw json.RawMessage, tc *agent.ToolContext) (string, error) {
				var in struct {
					To      string `json:"to"`
					Content string `json:"content"`
				}
				if err := json.Unmarshal(raw, &in); err != nil {
					return "", invalid("team_message", err)
				}
				if err := t.Mailbox().Send(member, in.To, in.Content); err != nil {
					return "", agent.NewToolError(agent.ErrCodeValidationFailed, "team_message", err.Error())
				}
				return fmt.Sprintf(`{"sent_to":%q}`, in.To), nil
			},
		},
		{
			Name:        "team_broadcast",
			Description: "Send a message to every team member.",
			Schema:      broadcastSchema,
			Handler: func(ctx context.Context, raw json.RawMessage, tc *agent.ToolContext) (string, error) {
				var in struct {
					Content string `json:"content"`
				}
				if err := json.Unmarshal(raw, &in); err != nil {
					return "", invalid("team_broadcast", err)
				}
				if err := t.Mailbox().Broadcast(member, in.Content); err != nil {
					return "", agent.NewToolError(agent.ErrCodeValidationFailed, "team_broadcast", err.Error())
				}
				return `{"broadcast":true}`, nil
			},
		},
		{
			Name:        "team_tasks",
			Description: "List the team's tasks and their states.",
			Schema:      emptySchema,
			Durability:  agent.Durability{Independent: true},
			Handler: func(ctx context.Context, raw json.RawMessage, tc *agent.ToolContext) (string, error) {
				b, err := json.Marshal(t.Board().States())
				if err != nil {
					return "", agent.NewToolError(agent.ErrCodeExecutionFailed, "team_tasks", "failed to encode tasks").WithCause(err)
				}
				return string(b), nil
			},
		},
		{
			Name:        "team_claim",
			Description: "Claim an available task for yourself.",
			Schema:      taskIDSchema,
			Handler: func(ctx context.Context, raw json.RawMessage, tc *agent.ToolContext) (string, error) {
				var in struct {
					TaskID string `json:"task_id"`
				}
				if err := json.Unmarshal(raw, &in); err != nil {
					return "", invalid("team_claim", err)
				}
				if err := t.Board().Claim(in.TaskID, member); err != nil {
					return "", agent.NewToolError(agent.ErrCodeValidationFailed, "team_claim", err.Error())
				}
				return fmt.Sprintf(`{"claimed":%q}`, in.TaskID), nil
			},
		},
		{
			Name:        "team_complete",
			Description: "Mark a task you claimed as completed.",
			Schema:      completeSchema,
			Handler: func(ctx context.Context, raw json.RawMessage, tc *agent.ToolContext) (string, error) {
				var in struct {
					TaskID string `json:"task_id"`
					Result string `json:"result"`
				}
				if err := json.Unmarshal(raw, &in); err != nil {
					return "", invalid("team_complete", err)
				}
				if err := t.Board().Complete(in.TaskID, member, in.Result); err != nil {
					return "", agent.NewToolError(agent.ErrCodeValidationFailed, "team_complete", err.Error())
				}
				return fmt.Sprintf(`{"completed":%q}`, in.TaskID), nil
			},
		},
		{
			Name:        "team_status",
			Description: "Get the team phase, members, tasks, and message log.",
			Schema:      emptySchema,
			Durability:  agent.Durability{Independent: true},
			Handler: func(ctx context.Context, raw json.RawMessage, tc *agent.ToolContext) (string, error) {
				b, err := json.Marshal(t.Snapshot())
				if err != nil {
					return "", agent.NewToolError(agent.ErrCodeExecutionFailed, "team_status", "failed to encode status").WithCause(err)
				}
				return string(b), nil
			},
		},
	}
}

func invalid(tool string, err error) error {
	return agent.NewToolError(agent.ErrCodeValidationFailed, tool, "invalid input").WithCause(err)
}
