package background

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/tools/shell"
)

var schema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "action": {
      "type": "string",
      "enum": ["start", "status", "output", "stop", "list", "clear"],
      "description": "Session operation to perform"
    },
    "command": {"type": "string", "description": "Shell command (start only)"},
    "session_id": {"type": "string", "description": "Session id (status, output, stop)"}
  },
  "required": ["action"],
  "additionalProperties": false
}`)

type input struct {
	Action    string `json:"action"`
	Command   string `json:"command"`
	SessionID string `json:"session_id"`
}

// NewTool builds the background-session controller tool over store. Start
// requests go through the same command screening as the shell tool.
func NewTool(store *Store) *agent.Tool {
	return &agent.Tool{
		Name:          "background",
		Description:   "Run and manage long-lived shell commands: start, status, output, stop, list, clear.",
		Schema:        schema,
		NeedsApproval: true,
		Durability:    agent.Durability{Enabled: true},
		Handler: func(ctx context.Context, raw json.RawMessage, tc *agent.ToolContext) (string, error) {
			var in input
			if err := json.Unmarshal(raw, &in); err != nil {
				return "", agent.NewToolError(agent.ErrCodeValidationFailed, "background", "invalid input").WithCause(err)
			}
			switch in.Action {
			case "start":
				return start(store, in, tc)
			case "status":
				return status(store, in)
			case "output":
				return output(store, in)
			case "stop":
				return stop(ctx, store, in)
			case "list":
				return list(store)
			case "clear":
				return fmt.Sprintf(`{"cleared":%d}`, store.Clear()), nil
			}
			return "", agent.NewToolError(agent.ErrCodeValidationFailed, "background",
				fmt.Sprintf("unknown action %q", in.Action))
		},
	}
}

func start(store *Store, in input, tc *agent.ToolContext) (string, error) {
	if in.Command == "" {
		return "", agent.NewToolError(agent.ErrCodeValidationFailed, "background", "start needs a command")
	}
	if category, interactive := shell.CheckCommand(in.Command); category != "" {
		return "", agent.NewToolError(agent.ErrCodeCommandBlocked, "background",
			fmt.Sprintf("command blocked: %s", category))
	} else if interactive != "" {
		return "", agent.NewToolError(agent.ErrCodeInteractive, "background",
			fmt.Sprintf("%s requires an interactive terminal", interactive))
	}
	s, err := store.Start(in.Command, tc.WorkspaceRoot)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`{"session_id":%q,"status":%q}`, s.ID, s.Status()), nil
}

func status(store *Store, in input) (string, error) {
	s, ok := store.Get(in.SessionID)
	if !ok {
		return "", agent.NewToolError(agent.ErrCodeNotFound, "background", fmt.Sprintf("no session %q", in.SessionID))
	}
	b, _ := json.Marshal(map[string]any{
		"session_id": s.ID,
		"status":     s.Status(),
		"exit_code":  s.ExitCode(),
		"started_at": s.StartedAt,
	})
	return string(b), nil
}

func output(store *Store, in input) (string, error) {
	s, ok := store.Get(in.SessionID)
	if !ok {
		return "", agent.NewToolError(agent.ErrCodeNotFound, "background", fmt.Sprintf("no session %q", in.SessionID))
	}
	b, _ := json.Marshal(map[string]any{
		"session_id": s.ID,
		"status":     s.Status(),
		"stdout":     s.stdout.Tail(stdoutTail),
		"stderr":     s.stderr.Tail(stderrTail),
	})
	return string(b), nil
}

func stop(ctx context.Context, store *Store, in input) (string, error) {
	prev, err := store.Stop(ctx, in.SessionID)
	if err != nil {
		return "", err
	}
	if prev != StatusRunning {
		return fmt.Sprintf(`{"success":true,"session_id":%q,"message":"Session already %s"}`, in.SessionID, prev), nil
	}
	return fmt.Sprintf(`{"success":true,"session_id":%q,"status":"stopped"}`, in.SessionID), nil
}

func list(store *Store) (string, error) {
	b, err := json.Marshal(store.List())
	if err != nil {
		return "", agent.NewToolError(agent.ErrCodeExecutionFailed, "background", "failed to encode sessions").WithCause(err)
	}
	return string(b), nil
}
