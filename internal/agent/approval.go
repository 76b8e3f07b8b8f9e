package agent

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// TimeoutAction decides a pending approval when the wait expires.
type TimeoutAction string

const (
	TimeoutApprove TimeoutAction = "approve"
	TimeoutDeny    TimeoutAction = "deny"
)

// ApprovalRequest is what an approval handler sees for a pending call.
type ApprovalRequest struct {
	CallID   string          `json:"call_id"`
	ToolName string          `json:"tool_name"`
	Input    json.RawMessage `json:"input,omitempty"`
	AgentID  string          `json:"agent_id,omitempty"`
}

// ApprovalHandler decides a pending call. Returning an error counts as a
// denial.
type ApprovalHandler func(ctx context.Context, req ApprovalRequest) (bool, error)

// ApprovalConfig controls the approval gate.
type ApprovalConfig struct {
	// Enabled turns gating on. When off, no call waits for approval.
	Enabled bool

	// Handler, when set, is asked to decide each pending call. It races
	// the timeout and any external response; the first resolution wins.
	Handler ApprovalHandler

	// Timeout bounds the wait for a decision. Zero means wait forever
	// (or until cancellation).
	Timeout time.Duration

	// TimeoutAction resolves the call when the timeout fires. Defaults
	// to deny.
	TimeoutAction TimeoutAction

	// DangerousTools lists tool name patterns that require approval in
	// addition to tools marked NeedsApproval. Patterns support exact
	// names, "prefix*", "*suffix", and "*". Empty means the default set.
	DangerousTools []string
}

// defaultDangerousTools require approval when gating is enabled and no
// explicit list is configured.
var defaultDangerousTools = []string{"shell", "browser", "write_file", "create_directory"}

func (c ApprovalConfig) dangerous() []string {
	if len(c.DangerousTools) > 0 {
		return c.DangerousTools
	}
	return defaultDangerousTools
}

// matchesPattern reports whether name matches a tool-name pattern.
func matchesPattern(pattern, name string) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") && len(pattern) > 1:
		return strings.Contains(name, pattern[1:len(pattern)-1])
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(name, pattern[:len(pattern)-1])
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(name, pattern[1:])
	}
	return pattern == name
}

// ApplyApproval derives a tool set with NeedsApproval set on every tool
// matching the config. Input tools are never mutated; matching tools are
// cloned.
func ApplyApproval(cfg ApprovalConfig, tools []*Tool) []*Tool {
	if !cfg.Enabled {
		return tools
	}
	patterns := cfg.dangerous()
	out := make([]*Tool, len(tools))
	for i, t := range tools {
		needs := t.NeedsApproval
		for _, p := range patterns {
			if matchesPattern(p, t.Name) {
				needs = true
				break
			}
		}
		if needs && !t.NeedsApproval {
			c := t.Clone()
			c.NeedsApproval = true
			out[i] = c
		} else {
			out[i] = t
		}
	}
	return out
}

// approvalState tracks pending waits and recorded responses for one agent.
// Responses are once-only per call id; later responses for the same id are
// ignored.
type approvalState struct {
	mu        sync.Mutex
	responses map[string]bool
	waiters   map[string]chan bool
}

func newApprovalState() *approvalState {
	return &approvalState{
		responses: make(map[string]bool),
		waiters:   make(map[string]chan bool),
	}
}

// respond records a decision for callID. It returns false if a decision was
// already recorded. A blocked waiter, if any, is released.
func (s *approvalState) respond(callID string, approved bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.responses[callID]; ok {
		return false
	}
	s.responses[callID] = approved
	if ch, ok := s.waiters[callID]; ok {
		ch <- approved
		delete(s.waiters, callID)
	}
	return true
}

// wait blocks until callID is decided, the handler resolves it, the timeout
// fires, or ctx is cancelled. Cancellation denies.
func (s *approvalState) wait(ctx context.Context, cfg ApprovalConfig, req ApprovalRequest) bool {
	s.mu.Lock()
	if decided, ok := s.responses[req.CallID]; ok {
		s.mu.Unlock()
		return decided
	}
	ch := make(chan bool, 1)
	s.waiters[req.CallID] = ch
	s.mu.Unlock()

	if cfg.Handler != nil {
		go func() {
			approved, err := cfg.Handler(ctx, req)
			if err != nil {
				approved = false
			}
			s.respond(req.CallID, approved)
		}()
	}

	var timeout <-chan time.Time
	if cfg.Timeout > 0 {
		timer := time.NewTimer(cfg.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case approved := <-ch:
		return approved
	case <-timeout:
		approved := cfg.TimeoutAction == TimeoutApprove
		if !s.respond(req.CallID, approved) {
			s.mu.Lock()
			approved = s.responses[req.CallID]
			s.mu.Unlock()
		}
		return approved
	case <-ctx.Done():
		s.respond(req.CallID, false)
		return false
	}
}

// resolvePendingDenied denies every call still waiting. Called on run
// cancellation so no goroutine is left blocked.
func (s *approvalState) resolvePendingDenied() {
	s.mu.Lock()
	pending := make([]string, 0, len(s.waiters))
	for id := range s.waiters {
		pending = append(pending, id)
	}
	s.mu.Unlock()
	for _, id := range pending {
		s.respond(id, false)
	}
}
