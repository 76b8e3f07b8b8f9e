package eval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/haasonsaas/agentcore/internal/workflow"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// DefaultCaseTimeout bounds a case that sets none.
const DefaultCaseTimeout = 30 * time.Second

// Case is one eval: a prompt and the assertions its result must satisfy.
type Case struct {
	Name       string
	Prompt     string
	Assertions []Assertion

	// Timeout bounds the case. Zero means DefaultCaseTimeout.
	Timeout time.Duration
}

// Runner executes a suite of cases against an agent factory.
type Runner struct {
	// Name labels the suite in reports.
	Name string

	// NewAgent builds a fresh agent per case, so cases never share
	// conversation or tool state.
	NewAgent func() (workflow.Generator, error)

	// Cases to run.
	Cases []Case

	// MaxConcurrency caps cases in flight. Zero or less means 1.
	MaxConcurrency int

	Logger *slog.Logger
}

// Run executes every case and returns the suite report. Case ordering in the
// report matches the suite regardless of completion order.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if r.NewAgent == nil {
		return nil, fmt.Errorf("eval %q: NewAgent is required", r.Name)
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "eval", "suite", r.Name)

	limit := int64(r.MaxConcurrency)
	if limit <= 0 {
		limit = 1
	}
	sem := semaphore.NewWeighted(limit)

	report := &Report{Suite: r.Name, Cases: make([]CaseResult, len(r.Cases))}
	start := time.Now()

	for i, c := range r.Cases {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		go func(i int, c Case) {
			defer sem.Release(1)
			report.Cases[i] = r.runCase(ctx, logger, c)
		}(i, c)
	}
	// Draining the full weight waits for every case.
	if err := sem.Acquire(ctx, limit); err != nil {
		return nil, err
	}
	sem.Release(limit)

	report.Duration = time.Since(start)
	for _, cr := range report.Cases {
		report.Total++
		if cr.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
	}
	logger.Debug("suite finished", "total", report.Total, "passed", report.Passed, "failed", report.Failed)
	return report, nil
}

// runCase executes one case under its timeout. The timeout is enforced with
// a goroutine and select, so a hung agent still yields a timed-out result.
func (r *Runner) runCase(ctx context.Context, logger *slog.Logger, c Case) CaseResult {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultCaseTimeout
	}
	cr := CaseResult{Name: c.Name}
	start := time.Now()

	agent, err := r.NewAgent()
	if err != nil {
		cr.Error = fmt.Sprintf("agent construction failed: %v", err)
		cr.Duration = time.Since(start)
		return cr
	}

	caseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result *models.RunResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := agent.Generate(caseCtx, c.Prompt)
		done <- outcome{result, err}
	}()

	var result *models.RunResult
	select {
	case o := <-done:
		result = o.result
		if o.err != nil && result == nil {
			cr.Error = o.err.Error()
			cr.Duration = time.Since(start)
			return cr
		}
	case <-caseCtx.Done():
		cr.Error = fmt.Sprintf("case timed out after %s", timeout)
		cr.Duration = time.Since(start)
		logger.Warn("case timeout", "case", c.Name, "timeout", timeout)
		return cr
	}

	cr.Passed = true
	for _, a := range c.Assertions {
		ok, message := a.Check(result)
		cr.Assertions = append(cr.Assertions, AssertionResult{
			Name:    a.Name,
			Passed:  ok,
			Message: message,
		})
		if !ok {
			cr.Passed = false
		}
	}
	cr.Duration = time.Since(start)
	return cr
}
