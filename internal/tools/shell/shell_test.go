package shell

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/pkg/models"
)

type captureEmitter struct {
	parts []*models.DataPart
}

func (c *captureEmitter) EmitData(p *models.DataPart) { c.parts = append(c.parts, p) }

func execute(t *testing.T, input string) (string, error) {
	t.Helper()
	tool := New(nil)
	return tool.Handler(context.Background(), json.RawMessage(input), &agent.ToolContext{
		WorkspaceRoot: t.TempDir(),
		CallID:        "call-1",
		Emitter:       &captureEmitter{},
	})
}

func TestShellRunsCommand(t *testing.T) {
	out, err := execute(t, `{"command": "echo hello"}`)
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	var result shellOutput
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output not JSON: %v", err)
	}
	if strings.TrimSpace(result.Stdout) != "hello" {
		t.Errorf("stdout = %q, want hello", result.Stdout)
	}
	if result.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", result.ExitCode)
	}
	if result.Status != "success" {
		t.Errorf("status = %q, want success", result.Status)
	}
}

func TestShellNonZeroExit(t *testing.T) {
	out, err := execute(t, `{"command": "exit 3"}`)
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	var result shellOutput
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output not JSON: %v", err)
	}
	if result.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", result.ExitCode)
	}
	if result.Status != "failed" {
		t.Errorf("status = %q, want failed", result.Status)
	}
}

func TestShellBlocksDangerousCommand(t *testing.T) {
	_, err := execute(t, `{"command": "rm -rf /"}`)
	var te *agent.ToolError
	if !errors.As(err, &te) || te.Code != agent.ErrCodeCommandBlocked {
		t.Fatalf("err = %v, want command-blocked", err)
	}
}

func TestShellRejectsInteractiveCommand(t *testing.T) {
	_, err := execute(t, `{"command": "vim notes.txt"}`)
	var te *agent.ToolError
	if !errors.As(err, &te) || te.Code != agent.ErrCodeInteractive {
		t.Fatalf("err = %v, want interactive-not-supported", err)
	}
}

func TestShellTimeout(t *testing.T) {
	_, err := execute(t, `{"command": "sleep 5", "timeout_ms": 50}`)
	var te *agent.ToolError
	if !errors.As(err, &te) || te.Code != agent.ErrCodeTimeout {
		t.Fatalf("err = %v, want timeout", err)
	}
}

func TestShellDumbTerminal(t *testing.T) {
	out, err := execute(t, `{"command": "printf %s \"$TERM\""}`)
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	var result shellOutput
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output not JSON: %v", err)
	}
	if result.Stdout != "dumb" {
		t.Errorf("TERM = %q, want dumb", result.Stdout)
	}
}

func TestShellEmitsDataPart(t *testing.T) {
	tool := New(nil)
	emitter := &captureEmitter{}
	_, err := tool.Handler(context.Background(), json.RawMessage(`{"command": "echo hi"}`), &agent.ToolContext{
		WorkspaceRoot: t.TempDir(),
		CallID:        "call-7",
		Emitter:       emitter,
	})
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	if len(emitter.parts) != 1 {
		t.Fatalf("data parts = %d, want 1", len(emitter.parts))
	}
	part := emitter.parts[0]
	if part.Type != models.DataShellOutput || part.ToolCallID != "call-7" {
		t.Errorf("part = %+v, want shell-output for call-7", part)
	}
}

func TestCappedBuffer(t *testing.T) {
	b := NewCappedBuffer(8)
	if _, err := b.Write([]byte("12345")); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Write([]byte("67890")); err != nil {
		t.Fatal(err)
	}
	if got := b.String(); got != "12345678" {
		t.Errorf("buffer = %q, want first 8 bytes", got)
	}
	if !b.Truncated() {
		t.Error("truncation not recorded")
	}
}
