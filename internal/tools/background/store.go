// Package background manages long-running shell sessions and the controller
// tool over them.
package background

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/haasonsaas/agentcore/internal/agent"
)

const (
	// maxBufferBytes is the rolling cap per output stream. When a buffer
	// grows past it, the stream is trimmed to the newest keepBytes.
	maxBufferBytes = 1 << 20
	keepBytes      = 512 << 10

	// stdoutTail and stderrTail bound what the output action returns.
	stdoutTail = 10 << 10
	stderrTail = 5 << 10

	// stopGrace is the SIGTERM to SIGKILL window.
	stopGrace = 5 * time.Second

	// listCommandWidth truncates command text in list output.
	listCommandWidth = 80
)

// SessionStatus is the lifecycle state of a background session.
type SessionStatus string

const (
	StatusRunning   SessionStatus = "running"
	StatusCompleted SessionStatus = "completed"
	StatusFailed    SessionStatus = "failed"
	StatusStopped   SessionStatus = "stopped"
)

// Session is one background command.
type Session struct {
	ID        string
	Command   string
	StartedAt time.Time

	mu       sync.Mutex
	status   SessionStatus
	exitCode int
	stdout   *rollingBuffer
	stderr   *rollingBuffer
	cmd      *exec.Cmd
	done     chan struct{}
}

// Status returns the current lifecycle state.
func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// ExitCode returns the exit code; meaningful once the session is not
// running.
func (s *Session) ExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode
}

// rollingBuffer keeps a capped byte window of a stream.
type rollingBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *rollingBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if len(b.buf) > maxBufferBytes {
		b.buf = append([]byte(nil), b.buf[len(b.buf)-keepBytes:]...)
	}
	return len(p), nil
}

// Tail returns the newest n bytes.
func (b *rollingBuffer) Tail(n int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buf) <= n {
		return string(b.buf)
	}
	return string(b.buf[len(b.buf)-n:])
}

// Store owns the background sessions of one agent.
type Store struct {
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore builds an empty session store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger:   logger.With("component", "background"),
		sessions: make(map[string]*Session),
	}
}

// newSessionID builds a "bg-<unix-ms>-<6 base36>" id.
func newSessionID() string {
	suffix := strconv.FormatInt(rand.Int63n(36*36*36*36*36*36), 36)
	for len(suffix) < 6 {
		suffix = "0" + suffix
	}
	return fmt.Sprintf("bg-%d-%s", time.Now().UnixMilli(), suffix)
}

// Start launches a command in its own process group and begins capturing
// output.
func (st *Store) Start(command, workdir string) (*Session, error) {
	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Dir = workdir
	cmd.Env = append(os.Environ(), "TERM=dumb")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	s := &Session{
		ID:        newSessionID(),
		Command:   command,
		StartedAt: time.Now(),
		status:    StatusRunning,
		exitCode:  -1,
		stdout:    &rollingBuffer{},
		stderr:    &rollingBuffer{},
		cmd:       cmd,
		done:      make(chan struct{}),
	}
	cmd.Stdout = s.stdout
	cmd.Stderr = s.stderr

	if err := cmd.Start(); err != nil {
		return nil, agent.NewToolError(agent.ErrCodeExecutionFailed, "background", "failed to start command").WithCause(err)
	}

	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()

	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		if cmd.ProcessState != nil {
			s.exitCode = cmd.ProcessState.ExitCode()
		}
		if s.status == StatusRunning {
			if s.exitCode == 0 {
				s.status = StatusCompleted
			} else {
				s.status = StatusFailed
			}
		}
		s.mu.Unlock()
		close(s.done)
		st.logger.Debug("session ended", "session_id", s.ID, "exit_code", s.ExitCode(), "error", err)
	}()

	st.logger.Debug("session started", "session_id", s.ID, "pid", cmd.Process.Pid)
	return s, nil
}

// Get looks up a session by id.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	return s, ok
}

// Stop terminates a running session: SIGTERM to the process group, SIGKILL
// after the grace window. Stopping a finished session is a no-op; the
// returned status is what the session had when Stop was called, so callers
// can report the idempotent case.
func (st *Store) Stop(ctx context.Context, id string) (SessionStatus, error) {
	s, ok := st.Get(id)
	if !ok {
		return "", agent.NewToolError(agent.ErrCodeNotFound, "background", fmt.Sprintf("no session %q", id))
	}
	s.mu.Lock()
	if s.status != StatusRunning {
		prev := s.status
		s.mu.Unlock()
		return prev, nil
	}
	s.status = StatusStopped
	pid := s.cmd.Process.Pid
	s.mu.Unlock()

	_ = syscall.Kill(-pid, syscall.SIGTERM)
	select {
	case <-s.done:
	case <-time.After(stopGrace):
		_ = syscall.Kill(-pid, syscall.SIGKILL)
		select {
		case <-s.done:
		case <-ctx.Done():
			return StatusRunning, ctx.Err()
		}
	case <-ctx.Done():
		return StatusRunning, ctx.Err()
	}
	return StatusRunning, nil
}

// List returns the sessions, newest first, with command text truncated.
func (st *Store) List() []SessionInfo {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]SessionInfo, 0, len(st.sessions))
	for _, s := range st.sessions {
		command := s.Command
		if len(command) > listCommandWidth {
			command = command[:listCommandWidth-3] + "..."
		}
		out = append(out, SessionInfo{
			ID:        s.ID,
			Command:   command,
			Status:    s.Status(),
			ExitCode:  s.ExitCode(),
			StartedAt: s.StartedAt,
		})
	}
	sortInfosNewestFirst(out)
	return out
}

// Clear removes finished sessions and returns how many were dropped.
func (st *Store) Clear() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for id, s := range st.sessions {
		if s.Status() != StatusRunning {
			delete(st.sessions, id)
			n++
		}
	}
	return n
}

// StopAll terminates every running session. Used on agent shutdown.
func (st *Store) StopAll(ctx context.Context) {
	for _, info := range st.List() {
		if info.Status == StatusRunning {
			_, _ = st.Stop(ctx, info.ID)
		}
	}
}

// SessionInfo is the list view of a session.
type SessionInfo struct {
	ID        string        `json:"id"`
	Command   string        `json:"command"`
	Status    SessionStatus `json:"status"`
	ExitCode  int           `json:"exit_code"`
	StartedAt time.Time     `json:"started_at"`
}

func sortInfosNewestFirst(infos []SessionInfo) {
	for i := 1; i < len(infos); i++ {
		for j := i; j > 0 && infos[j].StartedAt.After(infos[j-1].StartedAt); j-- {
			infos[j], infos[j-1] = infos[j-1], infos[j]
		}
	}
}
