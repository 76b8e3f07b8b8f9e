package agent

import (
	"context"
	"fmt"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// runLoop drives the multi-step tool loop for one prompt. It emits the full
// event sequence on stream and returns the aggregated result. The stream
// always receives exactly one terminal finish event, whatever path the run
// takes.
func (a *Agent) runLoop(ctx context.Context, stream *Stream, prompt string) (*models.RunResult, error) {
	result := &models.RunResult{}

	if a.cfg.MaxSteps == 0 {
		result.FinishReason = models.FinishLength
		stream.finish(models.StreamEvent{FinishReason: models.FinishLength, Usage: &models.Usage{}})
		return result, nil
	}

	messages := a.initialMessages(prompt)

	for step := 0; step < a.cfg.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return a.finishCancelled(stream, result, step, err)
		}

		stream.send(models.StreamEvent{Type: models.EventStartStep, Step: step})

		stepRes, err := a.runStep(ctx, stream, step, messages)
		if err != nil {
			if ctx.Err() != nil {
				return a.finishCancelled(stream, result, step, ctx.Err())
			}
			result.FinishReason = models.FinishError
			stream.send(models.StreamEvent{
				Type:      models.EventError,
				Step:      step,
				Err:       err,
				ErrorText: err.Error(),
			})
			stream.finish(models.StreamEvent{
				Step:         step,
				FinishReason: models.FinishError,
				Usage:        &result.TotalUsage,
			})
			return result, err
		}

		// A tool-calls finish with no calls to run cannot make progress;
		// treat it as a final answer.
		if stepRes.FinishReason == models.FinishToolCalls && len(stepRes.ToolCalls) == 0 {
			stepRes.FinishReason = models.FinishStop
		}

		if stepRes.FinishReason == models.FinishToolCalls {
			stepRes.ToolResults = a.dispatchToolCalls(ctx, stream, step, stepRes.ToolCalls)
		}

		stream.send(models.StreamEvent{
			Type:         models.EventFinishStep,
			Step:         step,
			FinishReason: stepRes.FinishReason,
			Usage:        &stepRes.Usage,
		})

		result.Steps = append(result.Steps, *stepRes)
		result.TotalUsage.Add(&stepRes.Usage)
		if stepRes.Text != "" {
			result.Text = stepRes.Text
		}

		if limitErr := a.cfg.Limits.Check(int64(step+1), result.TotalUsage); limitErr != nil {
			a.logger.Warn("usage limit exceeded",
				"limit", limitErr.LimitType,
				"value", limitErr.LimitValue,
				"current", limitErr.CurrentValue)
			result.FinishReason = models.FinishLength
			stream.finish(models.StreamEvent{
				Step:         step,
				FinishReason: models.FinishLength,
				Usage:        &result.TotalUsage,
			})
			return result, limitErr
		}

		if stepRes.FinishReason != models.FinishToolCalls {
			result.FinishReason = stepRes.FinishReason
			stream.finish(models.StreamEvent{
				Step:         step,
				FinishReason: stepRes.FinishReason,
				Usage:        &result.TotalUsage,
			})
			return result, nil
		}

		messages = appendTurn(messages, stepRes)
	}

	// The model still wants tools but the step budget is spent.
	result.FinishReason = models.FinishLength
	stream.finish(models.StreamEvent{
		Step:         a.cfg.MaxSteps - 1,
		FinishReason: models.FinishLength,
		Usage:        &result.TotalUsage,
	})
	return result, nil
}

func (a *Agent) initialMessages(prompt string) []Message {
	var messages []Message
	if a.cfg.SystemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Text: a.cfg.SystemPrompt})
	}
	return append(messages, Message{Role: RoleUser, Text: prompt})
}

// runStep performs one model turn: request, delta consumption, event
// emission. Tool dispatch happens afterwards in the caller.
func (a *Agent) runStep(ctx context.Context, stream *Stream, step int, messages []Message) (*models.StepResult, error) {
	req := &StepRequest{
		Messages:  messages,
		Tools:     a.toolSpecs(),
		MaxTokens: a.cfg.MaxTokens,
	}

	deltas, err := a.cfg.Provider.ModelStep(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("model step %d: %w", step, err)
	}

	stepRes := &models.StepResult{Index: step}
	var (
		reasoningOpen bool
		finishSeen    bool
		streamErr     error
	)

	for delta := range deltas {
		switch {
		case delta.Err != nil:
			streamErr = delta.Err

		case delta.Text != "":
			if reasoningOpen {
				stream.send(models.StreamEvent{Type: models.EventReasoningEnd, Step: step})
				reasoningOpen = false
			}
			stepRes.Text += delta.Text
			stream.send(models.StreamEvent{Type: models.EventTextDelta, Step: step, TextDelta: delta.Text})

		case delta.Reasoning != "":
			if !reasoningOpen {
				stream.send(models.StreamEvent{Type: models.EventReasoningStart, Step: step})
				reasoningOpen = true
			}
			stepRes.Reasoning += delta.Reasoning
			stream.send(models.StreamEvent{Type: models.EventReasoningDelta, Step: step, ReasoningDelta: delta.Reasoning})

		case delta.ToolCall != nil:
			if reasoningOpen {
				stream.send(models.StreamEvent{Type: models.EventReasoningEnd, Step: step})
				reasoningOpen = false
			}
			call := *delta.ToolCall
			stepRes.ToolCalls = append(stepRes.ToolCalls, call)
			stream.send(models.StreamEvent{Type: models.EventToolCall, Step: step, ToolCall: &call})

		case delta.Finish != "":
			finishSeen = true
			stepRes.FinishReason = delta.Finish
			if delta.Usage != nil {
				stepRes.Usage = *delta.Usage
			}
		}
	}

	if reasoningOpen {
		stream.send(models.StreamEvent{Type: models.EventReasoningEnd, Step: step})
	}
	if streamErr != nil {
		return nil, fmt.Errorf("model step %d: %w", step, streamErr)
	}
	if !finishSeen {
		return nil, fmt.Errorf("model step %d: provider stream ended without finish", step)
	}
	return stepRes, nil
}

// dispatchToolCalls validates, gates, and executes one batch of calls,
// emitting the tool events for each. Results come back in call order, all of
// them emitted before the step's finish-step event.
func (a *Agent) dispatchToolCalls(ctx context.Context, stream *Stream, step int, calls []models.ToolCall) []models.ToolResult {
	results := make([]models.ToolResult, len(calls))
	settled := make([]bool, len(calls))

	type pending struct {
		index int
		item  dispatchItem
	}
	var queue []pending

	for i, call := range calls {
		tool, ok := a.tools[call.Name]
		if !ok {
			results[i] = models.ToolResult{
				ToolCallID: call.ID,
				ToolName:   call.Name,
				State:      models.ToolOutputError,
				ErrorText:  fmt.Sprintf("%s: no tool named %q", ErrCodeNotFound, call.Name),
			}
			settled[i] = true
			continue
		}
		if err := tool.ValidateInput(call.Input); err != nil {
			results[i] = models.ToolResult{
				ToolCallID: call.ID,
				ToolName:   call.Name,
				State:      models.ToolOutputError,
				ErrorText:  fmt.Sprintf("%s: %v", ErrCodeValidationFailed, err),
			}
			settled[i] = true
			continue
		}
		queue = append(queue, pending{index: i, item: dispatchItem{
			Call: call,
			Tool: tool,
			TC: &ToolContext{
				WorkspaceRoot: a.cfg.WorkspaceRoot,
				CallID:        call.ID,
				AgentID:       a.cfg.AgentID,
				Emitter:       stream,
			},
		}})
	}

	// Approval gating happens sequentially, before any execution.
	anyApproval := false
	var runnable []pending
	for _, p := range queue {
		if !p.item.Tool.NeedsApproval {
			runnable = append(runnable, p)
			continue
		}
		anyApproval = true
		call := p.item.Call
		stream.send(models.StreamEvent{
			Type: models.EventToolResult,
			Step: step,
			ToolResult: &models.ToolResult{
				ToolCallID: call.ID,
				ToolName:   call.Name,
				State:      models.ToolApprovalRequested,
			},
		})
		approved := a.approvals.wait(ctx, a.cfg.Approval, ApprovalRequest{
			CallID:   call.ID,
			ToolName: call.Name,
			Input:    call.Input,
			AgentID:  a.cfg.AgentID,
		})
		stream.send(models.StreamEvent{
			Type: models.EventToolResult,
			Step: step,
			ToolResult: &models.ToolResult{
				ToolCallID: call.ID,
				ToolName:   call.Name,
				State:      models.ToolApprovalResponded,
				Approved:   &approved,
			},
		})
		if !approved {
			results[p.index] = models.ToolResult{
				ToolCallID: call.ID,
				ToolName:   call.Name,
				State:      models.ToolOutputDenied,
				ErrorText:  "execution denied",
			}
			settled[p.index] = true
			continue
		}
		runnable = append(runnable, p)
	}

	parallel := !anyApproval && len(runnable) > 1
	for _, p := range runnable {
		if !p.item.Tool.Durability.Independent {
			parallel = false
			break
		}
	}

	items := make([]dispatchItem, len(runnable))
	for i, p := range runnable {
		items[i] = p.item
	}
	executed := a.executor.ExecuteBatch(ctx, items, parallel)
	for i, p := range runnable {
		results[p.index] = executed[i]
		settled[p.index] = true
	}

	for i := range results {
		if !settled[i] {
			// Unreachable; every call lands in one of the buckets above.
			results[i] = models.ToolResult{
				ToolCallID: calls[i].ID,
				ToolName:   calls[i].Name,
				State:      models.ToolOutputError,
				ErrorText:  string(ErrCodeExecutionFailed),
			}
		}
		evType := models.EventToolResult
		if results[i].IsError() {
			evType = models.EventToolError
		}
		r := results[i]
		stream.send(models.StreamEvent{Type: evType, Step: step, ToolResult: &r})
	}
	return results
}

// appendTurn extends the conversation with the assistant turn and its tool
// results so the next step sees them.
func appendTurn(messages []Message, stepRes *models.StepResult) []Message {
	messages = append(messages, Message{
		Role:      RoleAssistant,
		Text:      stepRes.Text,
		ToolCalls: stepRes.ToolCalls,
	})
	for i := range stepRes.ToolResults {
		messages = append(messages, Message{
			Role:       RoleTool,
			ToolResult: &stepRes.ToolResults[i],
		})
	}
	return messages
}

func (a *Agent) finishCancelled(stream *Stream, result *models.RunResult, step int, err error) (*models.RunResult, error) {
	a.approvals.resolvePendingDenied()
	result.FinishReason = models.FinishError
	stream.finish(models.StreamEvent{
		Step:         step,
		FinishReason: models.FinishError,
		Cancelled:    true,
		Usage:        &result.TotalUsage,
	})
	return result, err
}

func (a *Agent) toolSpecs() []ToolSpec {
	specs := make([]ToolSpec, 0, len(a.tools))
	for _, name := range a.toolOrder {
		specs = append(specs, a.tools[name].Spec())
	}
	return specs
}
