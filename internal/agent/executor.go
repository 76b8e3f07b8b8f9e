package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// ExecutorConfig controls tool dispatch.
type ExecutorConfig struct {
	// MaxConcurrency caps parallel tool executions in one batch.
	MaxConcurrency int

	// DefaultTimeout bounds one attempt when the tool sets none.
	DefaultTimeout time.Duration

	// RetryBackoff is the initial backoff between attempts; it doubles
	// per retry up to MaxRetryBackoff.
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
}

// DefaultExecutorConfig returns the standard executor settings.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxConcurrency:  5,
		DefaultTimeout:  30 * time.Second,
		RetryBackoff:    100 * time.Millisecond,
		MaxRetryBackoff: 5 * time.Second,
	}
}

func sanitizeExecutorConfig(cfg ExecutorConfig) ExecutorConfig {
	def := DefaultExecutorConfig()
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = def.DefaultTimeout
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}
	if cfg.MaxRetryBackoff <= 0 {
		cfg.MaxRetryBackoff = def.MaxRetryBackoff
	}
	return cfg
}

// ExecutorMetrics counts dispatch outcomes.
type ExecutorMetrics struct {
	mu         sync.Mutex
	Executions int64
	Retries    int64
	Failures   int64
	Timeouts   int64
	Panics     int64
}

// MetricsSnapshot is a copy-safe view of the counters.
type MetricsSnapshot struct {
	Executions int64 `json:"executions"`
	Retries    int64 `json:"retries"`
	Failures   int64 `json:"failures"`
	Timeouts   int64 `json:"timeouts"`
	Panics     int64 `json:"panics"`
}

// Snapshot returns the current counters.
func (m *ExecutorMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		Executions: m.Executions,
		Retries:    m.Retries,
		Failures:   m.Failures,
		Timeouts:   m.Timeouts,
		Panics:     m.Panics,
	}
}

func (m *ExecutorMetrics) add(f func(*ExecutorMetrics)) {
	m.mu.Lock()
	f(m)
	m.mu.Unlock()
}

// dispatchItem is one validated, approved call ready to run.
type dispatchItem struct {
	Call models.ToolCall
	Tool *Tool
	TC   *ToolContext
}

// Executor runs tool batches with timeouts, bounded retries, and panic
// recovery.
type Executor struct {
	cfg     ExecutorConfig
	logger  *slog.Logger
	metrics ExecutorMetrics
}

// NewExecutor creates an executor. A nil logger defaults to slog.Default.
func NewExecutor(cfg ExecutorConfig, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		cfg:    sanitizeExecutorConfig(cfg),
		logger: logger.With("component", "executor"),
	}
}

// Metrics exposes the executor counters.
func (e *Executor) Metrics() *ExecutorMetrics { return &e.metrics }

// ExecuteBatch runs the items and returns results in item order. When
// parallel is true items run concurrently under the concurrency cap;
// otherwise they run sequentially in order.
func (e *Executor) ExecuteBatch(ctx context.Context, items []dispatchItem, parallel bool) []models.ToolResult {
	results := make([]models.ToolResult, len(items))
	if !parallel || len(items) <= 1 {
		for i, item := range items {
			results[i] = e.executeOne(ctx, item)
		}
		return results
	}

	sem := make(chan struct{}, e.cfg.MaxConcurrency)
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item dispatchItem) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = e.executeOne(ctx, item)
		}(i, item)
	}
	wg.Wait()
	return results
}

// executeOne runs a single call through the retry envelope.
func (e *Executor) executeOne(ctx context.Context, item dispatchItem) models.ToolResult {
	retries := 0
	if item.Tool.Durability.Enabled {
		retries = item.Tool.Durability.RetryCount
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= retries; attempt++ {
		attempts++
		if attempt > 0 {
			e.metrics.add(func(m *ExecutorMetrics) { m.Retries++ })
			backoff := e.cfg.RetryBackoff << (attempt - 1)
			if backoff > e.cfg.MaxRetryBackoff {
				backoff = e.cfg.MaxRetryBackoff
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return e.errorResult(item, NewToolError(ErrCodeCancelled, item.Call.Name, "run cancelled").WithCallID(item.Call.ID))
			}
		}

		output, err := e.executeWithTimeout(ctx, item)
		if err == nil {
			e.metrics.add(func(m *ExecutorMetrics) { m.Executions++ })
			return models.ToolResult{
				ToolCallID: item.Call.ID,
				ToolName:   item.Call.Name,
				State:      models.ToolOutputAvailable,
				Output:     output,
			}
		}
		lastErr = err
		if !CodeOf(err).IsRetryable() || ctx.Err() != nil {
			break
		}
		e.logger.Debug("retrying tool",
			"tool", item.Call.Name,
			"call_id", item.Call.ID,
			"attempt", attempt+1,
			"error", err)
	}

	e.metrics.add(func(m *ExecutorMetrics) { m.Failures++ })
	var te *ToolError
	if !errors.As(lastErr, &te) {
		te = NewToolError(CodeOf(lastErr), item.Call.Name, lastErr.Error()).WithCause(lastErr)
	}
	te.WithCallID(item.Call.ID).WithAttempts(attempts)
	return e.errorResult(item, te)
}

// executeWithTimeout bounds one attempt. The attempt timeout is the tool's
// own, or the executor default, and is further bounded by any deadline
// already on ctx (the run budget).
func (e *Executor) executeWithTimeout(ctx context.Context, item dispatchItem) (string, error) {
	timeout := e.cfg.DefaultTimeout
	if item.Tool.Durability.TimeoutMS > 0 {
		timeout = time.Duration(item.Tool.Durability.TimeoutMS) * time.Millisecond
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type attemptResult struct {
		output string
		err    error
	}
	resultCh := make(chan attemptResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.metrics.add(func(m *ExecutorMetrics) { m.Panics++ })
				e.logger.Warn("tool handler panic",
					"tool", item.Call.Name,
					"call_id", item.Call.ID,
					"panic", fmt.Sprint(r))
				resultCh <- attemptResult{err: NewToolError(ErrCodeExecutionFailed, item.Call.Name, fmt.Sprintf("handler panic: %v", r))}
			}
		}()
		out, err := item.Tool.Handler(attemptCtx, item.Call.Input, item.TC)
		resultCh <- attemptResult{output: out, err: err}
	}()

	select {
	case r := <-resultCh:
		return r.output, r.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return "", NewToolError(ErrCodeCancelled, item.Call.Name, "run cancelled").WithCause(ctx.Err())
		}
		e.metrics.add(func(m *ExecutorMetrics) { m.Timeouts++ })
		return "", NewToolError(ErrCodeTimeout, item.Call.Name, fmt.Sprintf("execution exceeded %s", timeout)).WithCause(ErrToolTimeout)
	}
}

func (e *Executor) errorResult(item dispatchItem, te *ToolError) models.ToolResult {
	return models.ToolResult{
		ToolCallID: item.Call.ID,
		ToolName:   item.Call.Name,
		State:      models.ToolOutputError,
		ErrorText:  fmt.Sprintf("%s: %s", te.Code, te.Message),
	}
}

// ResultsToJSON renders results as a JSON array, for logs and snapshots.
func ResultsToJSON(results []models.ToolResult) string {
	b, err := json.Marshal(results)
	if err != nil {
		return "[]"
	}
	return string(b)
}
