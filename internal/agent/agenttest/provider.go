// Package agenttest provides a deterministic scripted provider for tests.
package agenttest

import (
	"context"
	"sync"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// Turn scripts one model step. Finish defaults to tool-calls when ToolCalls
// is non-empty, stop otherwise.
type Turn struct {
	Text      string
	Reasoning string
	ToolCalls []models.ToolCall
	Usage     models.Usage
	Finish    models.FinishReason
	Err       error
}

// ScriptedProvider replays scripted turns in order and records every request
// it sees. Safe for concurrent use.
type ScriptedProvider struct {
	Turns []Turn

	mu       sync.Mutex
	next     int
	requests []*agent.StepRequest
}

var _ agent.Provider = (*ScriptedProvider)(nil)

func (p *ScriptedProvider) Name() string { return "scripted" }

// Requests returns a copy of the requests received so far.
func (p *ScriptedProvider) Requests() []*agent.StepRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*agent.StepRequest, len(p.requests))
	copy(out, p.requests)
	return out
}

// Calls returns how many model steps were requested.
func (p *ScriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// ModelStep replays the next scripted turn. When the script is exhausted it
// produces an empty stop turn.
func (p *ScriptedProvider) ModelStep(ctx context.Context, req *agent.StepRequest) (<-chan agent.Delta, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	var turn Turn
	if p.next < len(p.Turns) {
		turn = p.Turns[p.next]
		p.next++
	} else {
		turn = Turn{Text: "", Finish: models.FinishStop}
	}
	p.mu.Unlock()

	ch := make(chan agent.Delta, 8)
	go func() {
		defer close(ch)
		emit := func(d agent.Delta) bool {
			select {
			case ch <- d:
				return true
			case <-ctx.Done():
				return false
			}
		}
		if turn.Err != nil {
			emit(agent.Delta{Err: turn.Err})
			return
		}
		if turn.Reasoning != "" {
			if !emit(agent.Delta{Reasoning: turn.Reasoning}) {
				return
			}
		}
		if turn.Text != "" {
			if !emit(agent.Delta{Text: turn.Text}) {
				return
			}
		}
		for i := range turn.ToolCalls {
			call := turn.ToolCalls[i]
			if !emit(agent.Delta{ToolCall: &call}) {
				return
			}
		}
		finish := turn.Finish
		if finish == "" {
			if len(turn.ToolCalls) > 0 {
				finish = models.FinishToolCalls
			} else {
				finish = models.FinishStop
			}
		}
		usage := turn.Usage
		emit(agent.Delta{Finish: finish, Usage: &usage})
	}()
	return ch, nil
}
