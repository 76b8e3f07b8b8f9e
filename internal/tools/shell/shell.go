// Package shell provides the safe shell tool: command screening, bounded
// execution, and capped output capture.
package shell

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/pkg/models"
)

const (
	// DefaultTimeout bounds a command when the caller sets none.
	DefaultTimeout = 30 * time.Second

	// MaxTimeout is the hard ceiling on a requested timeout.
	MaxTimeout = 300 * time.Second

	// killGrace is how long a command gets between SIGTERM and SIGKILL.
	killGrace = 5 * time.Second

	// maxCapturedBytes caps each captured output stream.
	maxCapturedBytes = 64 * 1024
)

var shellSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "command": {"type": "string", "description": "Shell command to execute"},
    "timeout_ms": {"type": "integer", "minimum": 1, "description": "Timeout in milliseconds (max 300000)"},
    "workdir": {"type": "string", "description": "Working directory relative to the workspace root"}
  },
  "required": ["command"],
  "additionalProperties": false
}`)

type shellInput struct {
	Command   string `json:"command"`
	TimeoutMS int    `json:"timeout_ms"`
	Workdir   string `json:"workdir"`
}

type shellOutput struct {
	Status     string `json:"status"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ExitCode   int    `json:"exit_code"`
	DurationMS int64  `json:"duration_ms"`
	Truncated  bool   `json:"truncated,omitempty"`
	TimedOut   bool   `json:"timed_out,omitempty"`
}

// New builds the shell tool. Commands run under /bin/sh -c with TERM=dumb in
// their own process group.
func New(logger *slog.Logger) *agent.Tool {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "shell_tool")
	return &agent.Tool{
		Name:          "shell",
		Description:   "Execute a shell command in the workspace. Interactive commands are not supported.",
		Schema:        shellSchema,
		NeedsApproval: true,
		Durability:    agent.Durability{Enabled: true, TimeoutMS: int(MaxTimeout / time.Millisecond)},
		Handler: func(ctx context.Context, raw json.RawMessage, tc *agent.ToolContext) (string, error) {
			var in shellInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return "", agent.NewToolError(agent.ErrCodeValidationFailed, "shell", "invalid input").WithCause(err)
			}
			return run(ctx, log, in, tc)
		},
	}
}

func run(ctx context.Context, log *slog.Logger, in shellInput, tc *agent.ToolContext) (string, error) {
	command := strings.TrimSpace(in.Command)
	if command == "" {
		return "", agent.NewToolError(agent.ErrCodeValidationFailed, "shell", "command is empty")
	}
	if category, interactive := CheckCommand(command); category != "" {
		log.Warn("blocked command", "category", category, "call_id", tc.CallID)
		return "", agent.NewToolError(agent.ErrCodeCommandBlocked, "shell",
			fmt.Sprintf("command blocked: %s", category))
	} else if interactive != "" {
		return "", agent.NewToolError(agent.ErrCodeInteractive, "shell",
			fmt.Sprintf("%s requires an interactive terminal", interactive))
	}

	timeout := DefaultTimeout
	if in.TimeoutMS > 0 {
		timeout = time.Duration(in.TimeoutMS) * time.Millisecond
		if timeout > MaxTimeout {
			timeout = MaxTimeout
		}
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dir := tc.WorkspaceRoot
	if in.Workdir != "" {
		dir = filepath.Join(tc.WorkspaceRoot, in.Workdir)
	}

	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "TERM=dumb")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout := NewCappedBuffer(maxCapturedBytes)
	stderr := NewCappedBuffer(maxCapturedBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return "", agent.NewToolError(agent.ErrCodeExecutionFailed, "shell", "failed to start command").WithCause(err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timedOut := false
	select {
	case <-runCtx.Done():
		timedOut = runCtx.Err() == context.DeadlineExceeded
		terminate(cmd, done)
	case err := <-done:
		_ = err
	}
	duration := time.Since(start)

	status := "success"
	if cmd.ProcessState.ExitCode() != 0 {
		status = "failed"
	}
	out := shellOutput{
		Status:     status,
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		ExitCode:   cmd.ProcessState.ExitCode(),
		DurationMS: duration.Milliseconds(),
		Truncated:  stdout.Truncated() || stderr.Truncated(),
		TimedOut:   timedOut,
	}

	tc.Emitter.EmitData(models.NewDataPart(models.DataShellOutput, tc.CallID, out))

	if timedOut {
		return "", agent.NewToolError(agent.ErrCodeTimeout, "shell",
			fmt.Sprintf("command exceeded %s", timeout))
	}
	if ctx.Err() != nil {
		return "", agent.NewToolError(agent.ErrCodeCancelled, "shell", "run cancelled").WithCause(ctx.Err())
	}

	b, err := json.Marshal(out)
	if err != nil {
		return "", agent.NewToolError(agent.ErrCodeExecutionFailed, "shell", "failed to encode output").WithCause(err)
	}
	return string(b), nil
}

// terminate signals the command's process group: SIGTERM first, SIGKILL
// after the grace period if the command has not exited.
func terminate(cmd *exec.Cmd, done <-chan error) {
	if cmd.Process == nil {
		return
	}
	pgid := -cmd.Process.Pid
	_ = syscall.Kill(pgid, syscall.SIGTERM)
	select {
	case <-done:
	case <-time.After(killGrace):
		_ = syscall.Kill(pgid, syscall.SIGKILL)
		<-done
	}
}
