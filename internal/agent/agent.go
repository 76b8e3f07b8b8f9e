// Package agent implements the execution core: the multi-step tool loop,
// tool dispatch with approval gating and retries, the run event stream, and
// usage limits.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// Config configures one agent.
type Config struct {
	// AgentID identifies the agent. Defaults to a fresh uuid.
	AgentID string

	// Role is a free-form label used by teams and logs.
	Role string

	// WorkspaceRoot is handed to tool handlers for relative paths.
	WorkspaceRoot string

	// SystemPrompt, when set, is prepended to every run.
	SystemPrompt string

	// MaxSteps caps model turns per run. Zero is honored literally: the
	// run finishes immediately with reason "length". Negative means the
	// default of 25.
	MaxSteps int

	// MaxTokens is passed through to the provider per step.
	MaxTokens int

	Tools    []*Tool
	Limits   UsageLimits
	Approval ApprovalConfig
	Executor ExecutorConfig

	Provider Provider
	Logger   *slog.Logger
}

// DefaultMaxSteps bounds a run when the caller does not choose.
const DefaultMaxSteps = 25

// Agent runs prompts through the tool loop. One run at a time; a second
// Generate or Stream while a run is active returns ErrRunActive.
type Agent struct {
	cfg       Config
	logger    *slog.Logger
	tools     map[string]*Tool
	toolOrder []string
	executor  *Executor
	approvals *approvalState

	mu     sync.Mutex
	active bool
}

// New validates the config and builds an agent. Tools matching the approval
// config are cloned with NeedsApproval set; the caller's tools are never
// mutated.
func New(cfg Config) (*Agent, error) {
	if cfg.Provider == nil {
		return nil, ErrNoProvider
	}
	if cfg.AgentID == "" {
		cfg.AgentID = uuid.NewString()
	}
	if cfg.MaxSteps < 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.Approval.TimeoutAction == "" {
		cfg.Approval.TimeoutAction = TimeoutDeny
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "agent", "agent_id", cfg.AgentID)

	gated := ApplyApproval(cfg.Approval, cfg.Tools)
	tools := make(map[string]*Tool, len(gated))
	order := make([]string, 0, len(gated))
	for _, t := range gated {
		if t.Name == "" {
			return nil, fmt.Errorf("tool with empty name")
		}
		if _, dup := tools[t.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", t.Name)
		}
		tools[t.Name] = t
		order = append(order, t.Name)
	}

	return &Agent{
		cfg:       cfg,
		logger:    logger,
		tools:     tools,
		toolOrder: order,
		executor:  NewExecutor(cfg.Executor, logger),
		approvals: newApprovalState(),
	}, nil
}

// ID returns the agent id.
func (a *Agent) ID() string { return a.cfg.AgentID }

// Role returns the configured role label.
func (a *Agent) Role() string { return a.cfg.Role }

// SystemPrompt returns the configured system prompt.
func (a *Agent) SystemPrompt() string { return a.cfg.SystemPrompt }

// ToolNames lists the registered tools in registration order.
func (a *Agent) ToolNames() []string {
	names := make([]string, len(a.toolOrder))
	copy(names, a.toolOrder)
	return names
}

// ExecutorMetrics exposes the dispatch counters.
func (a *Agent) ExecutorMetrics() MetricsSnapshot {
	return a.executor.Metrics().Snapshot()
}

// Generate runs the prompt to completion and returns the aggregated result.
// Stream events are produced and discarded internally. When a usage limit
// ends the run, the result carries finish reason "length" and the returned
// error is the LimitExceededError.
func (a *Agent) Generate(ctx context.Context, prompt string) (*models.RunResult, error) {
	stream, err := a.Stream(ctx, prompt)
	if err != nil {
		return nil, err
	}
	go func() {
		for range stream.Events() {
		}
	}()
	return stream.Wait()
}

// Stream starts a run and returns its event stream. The run executes in a
// background goroutine; the caller drains Events and may call Wait for the
// final result.
func (a *Agent) Stream(ctx context.Context, prompt string) (*Stream, error) {
	a.mu.Lock()
	if a.active {
		a.mu.Unlock()
		return nil, ErrRunActive
	}
	a.active = true
	a.mu.Unlock()

	stream := newStream()
	go func() {
		defer func() {
			a.mu.Lock()
			a.active = false
			a.mu.Unlock()
		}()
		a.logger.Debug("run started", "max_steps", a.cfg.MaxSteps, "tools", len(a.tools))
		result, err := a.runLoop(ctx, stream, prompt)
		// Failure paths inside runLoop already emitted finish; this is
		// the backstop for anything that slipped through.
		stream.finish(models.StreamEvent{FinishReason: result.FinishReason, Usage: &result.TotalUsage})
		stream.complete(result, err)
		a.logger.Debug("run finished", "reason", result.FinishReason, "steps", len(result.Steps), "error", err)
	}()
	return stream, nil
}

// AddToolApprovalResponse records an approval decision for a pending call.
// It returns false when the call was already decided. Responses are
// once-only; the first decision wins.
func (a *Agent) AddToolApprovalResponse(callID string, approved bool) bool {
	return a.approvals.respond(callID, approved)
}
