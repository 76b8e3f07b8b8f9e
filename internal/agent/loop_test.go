package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/agent/agenttest"
	"github.com/haasonsaas/agentcore/pkg/models"
)

func echoTool() *agent.Tool {
	return &agent.Tool{
		Name:        "echo",
		Description: "Echo the message back.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {"msg": {"type": "string"}},
			"required": ["msg"],
			"additionalProperties": false
		}`),
		Durability: agent.Durability{Enabled: true, Independent: true},
		Handler: func(ctx context.Context, raw json.RawMessage, tc *agent.ToolContext) (string, error) {
			var in struct {
				Msg string `json:"msg"`
			}
			if err := json.Unmarshal(raw, &in); err != nil {
				return "", err
			}
			return in.Msg, nil
		},
	}
}

func call(id, name, input string) models.ToolCall {
	return models.ToolCall{ID: id, Name: name, Input: json.RawMessage(input)}
}

func newAgent(t *testing.T, cfg agent.Config) *agent.Agent {
	t.Helper()
	a, err := agent.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestGenerateSingleTurn(t *testing.T) {
	provider := &agenttest.ScriptedProvider{Turns: []agenttest.Turn{
		{Text: "hello", Usage: models.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}},
	}}
	a := newAgent(t, agent.Config{Provider: provider, MaxSteps: -1})

	result, err := a.Generate(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Text != "hello" {
		t.Errorf("text = %q, want %q", result.Text, "hello")
	}
	if result.FinishReason != models.FinishStop {
		t.Errorf("finish reason = %q, want stop", result.FinishReason)
	}
	if len(result.Steps) != 1 {
		t.Fatalf("steps = %d, want 1", len(result.Steps))
	}
	if result.TotalUsage.TotalTokens != 15 {
		t.Errorf("total tokens = %d, want 15", result.TotalUsage.TotalTokens)
	}
}

func TestGenerateToolLoop(t *testing.T) {
	provider := &agenttest.ScriptedProvider{Turns: []agenttest.Turn{
		{ToolCalls: []models.ToolCall{call("c1", "echo", `{"msg":"ping"}`)}},
		{Text: "done"},
	}}
	a := newAgent(t, agent.Config{
		Provider: provider,
		MaxSteps: -1,
		Tools:    []*agent.Tool{echoTool()},
	})

	result, err := a.Generate(context.Background(), "use echo")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(result.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(result.Steps))
	}
	first := result.Steps[0]
	if first.FinishReason != models.FinishToolCalls {
		t.Errorf("step 0 finish = %q, want tool-calls", first.FinishReason)
	}
	if len(first.ToolResults) != 1 {
		t.Fatalf("step 0 tool results = %d, want 1", len(first.ToolResults))
	}
	if got := first.ToolResults[0]; got.State != models.ToolOutputAvailable || got.Output != "ping" {
		t.Errorf("tool result = %+v, want output-available %q", got, "ping")
	}
	if result.Text != "done" {
		t.Errorf("text = %q, want %q", result.Text, "done")
	}

	// The second request must carry the assistant turn and the tool result.
	reqs := provider.Requests()
	if len(reqs) != 2 {
		t.Fatalf("provider requests = %d, want 2", len(reqs))
	}
	last := reqs[1].Messages[len(reqs[1].Messages)-1]
	if last.Role != agent.RoleTool || last.ToolResult == nil || last.ToolResult.Output != "ping" {
		t.Errorf("last message = %+v, want tool result %q", last, "ping")
	}
}

func TestMaxStepsZeroFinishesImmediately(t *testing.T) {
	provider := &agenttest.ScriptedProvider{}
	a := newAgent(t, agent.Config{Provider: provider, MaxSteps: 0})

	stream, err := a.Stream(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	var events []models.StreamEvent
	for ev := range stream.Events() {
		events = append(events, ev)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want only finish, got %+v", len(events), events)
	}
	if events[0].Type != models.EventFinish || events[0].FinishReason != models.FinishLength {
		t.Errorf("event = %+v, want finish(length)", events[0])
	}
	if provider.Calls() != 0 {
		t.Errorf("provider calls = %d, want 0", provider.Calls())
	}
	result, err := stream.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if result.FinishReason != models.FinishLength || len(result.Steps) != 0 {
		t.Errorf("result = %+v, want empty length result", result)
	}
}

func TestMaxStepsExhaustedFinishesLength(t *testing.T) {
	// Every turn asks for another tool call.
	provider := &agenttest.ScriptedProvider{Turns: []agenttest.Turn{
		{ToolCalls: []models.ToolCall{call("c1", "echo", `{"msg":"a"}`)}},
		{ToolCalls: []models.ToolCall{call("c2", "echo", `{"msg":"b"}`)}},
		{ToolCalls: []models.ToolCall{call("c3", "echo", `{"msg":"c"}`)}},
	}}
	a := newAgent(t, agent.Config{
		Provider: provider,
		MaxSteps: 2,
		Tools:    []*agent.Tool{echoTool()},
	})

	result, err := a.Generate(context.Background(), "loop forever")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.FinishReason != models.FinishLength {
		t.Errorf("finish reason = %q, want length", result.FinishReason)
	}
	if len(result.Steps) != 2 {
		t.Errorf("steps = %d, want 2", len(result.Steps))
	}
	if provider.Calls() != 2 {
		t.Errorf("provider calls = %d, want 2", provider.Calls())
	}
}

func TestStreamEventOrdering(t *testing.T) {
	provider := &agenttest.ScriptedProvider{Turns: []agenttest.Turn{
		{Text: "thinking about it", ToolCalls: []models.ToolCall{call("c1", "echo", `{"msg":"x"}`)}},
		{Text: "final"},
	}}
	a := newAgent(t, agent.Config{
		Provider: provider,
		MaxSteps: -1,
		Tools:    []*agent.Tool{echoTool()},
	})

	stream, err := a.Stream(context.Background(), "go")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	var types []models.EventType
	var steps []int
	for ev := range stream.Events() {
		types = append(types, ev.Type)
		steps = append(steps, ev.Step)
	}

	index := func(et models.EventType, step int) int {
		for i, ty := range types {
			if ty == et && steps[i] == step {
				return i
			}
		}
		t.Fatalf("no %s event for step %d in %v", et, step, types)
		return -1
	}

	if last := types[len(types)-1]; last != models.EventFinish {
		t.Fatalf("last event = %s, want finish", last)
	}
	if index(models.EventTextDelta, 0) > index(models.EventToolCall, 0) {
		t.Error("text delta after tool-call in step 0")
	}
	if index(models.EventToolResult, 0) > index(models.EventFinishStep, 0) {
		t.Error("tool result after finish-step in step 0")
	}
	if index(models.EventFinishStep, 0) > index(models.EventStartStep, 1) {
		t.Error("start-step 1 before finish-step 0")
	}
}

func TestProviderErrorGuaranteesFinish(t *testing.T) {
	provider := &agenttest.ScriptedProvider{Turns: []agenttest.Turn{
		{Err: errors.New("model unavailable")},
	}}
	a := newAgent(t, agent.Config{Provider: provider, MaxSteps: -1})

	stream, err := a.Stream(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	var sawError, sawFinish bool
	for ev := range stream.Events() {
		switch ev.Type {
		case models.EventError:
			sawError = true
		case models.EventFinish:
			sawFinish = true
			if ev.FinishReason != models.FinishError {
				t.Errorf("finish reason = %q, want error", ev.FinishReason)
			}
		}
	}
	if !sawError || !sawFinish {
		t.Errorf("sawError=%v sawFinish=%v, want both", sawError, sawFinish)
	}
	if _, err := stream.Wait(); err == nil {
		t.Error("Wait returned nil error after provider failure")
	}
}

func TestUsageLimitConvertsToLength(t *testing.T) {
	provider := &agenttest.ScriptedProvider{Turns: []agenttest.Turn{
		{ToolCalls: []models.ToolCall{call("c1", "echo", `{"msg":"a"}`)},
			Usage: models.Usage{InputTokens: 400, OutputTokens: 200, TotalTokens: 600}},
		{ToolCalls: []models.ToolCall{call("c2", "echo", `{"msg":"b"}`)},
			Usage: models.Usage{InputTokens: 400, OutputTokens: 200, TotalTokens: 600}},
		{Text: "never reached"},
	}}
	a := newAgent(t, agent.Config{
		Provider: provider,
		MaxSteps: -1,
		Tools:    []*agent.Tool{echoTool()},
		Limits:   agent.UsageLimits{MaxTotalTokens: 1000},
	})

	result, err := a.Generate(context.Background(), "go")
	var limitErr *agent.LimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("err = %v, want LimitExceededError", err)
	}
	if limitErr.LimitType != agent.LimitTotalTokens || limitErr.CurrentValue != 1200 {
		t.Errorf("limit error = %+v, want maxTotalTokens at 1200", limitErr)
	}
	if result.FinishReason != models.FinishLength {
		t.Errorf("finish reason = %q, want length", result.FinishReason)
	}
	if len(result.Steps) != 2 {
		t.Errorf("steps = %d, want 2", len(result.Steps))
	}
}

func TestMaxRequestsOneStopsAfterFirstRequest(t *testing.T) {
	provider := &agenttest.ScriptedProvider{Turns: []agenttest.Turn{
		{ToolCalls: []models.ToolCall{call("c1", "echo", `{"msg":"a"}`)}},
		{ToolCalls: []models.ToolCall{call("c2", "echo", `{"msg":"b"}`)}},
	}}
	a := newAgent(t, agent.Config{
		Provider: provider,
		MaxSteps: -1,
		Tools:    []*agent.Tool{echoTool()},
		Limits:   agent.UsageLimits{MaxRequests: 1},
	})

	result, err := a.Generate(context.Background(), "go")
	var limitErr *agent.LimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("err = %v, want LimitExceededError", err)
	}
	if limitErr.LimitType != agent.LimitRequests {
		t.Errorf("limit type = %s, want %s", limitErr.LimitType, agent.LimitRequests)
	}
	if provider.Calls() != 1 {
		t.Errorf("provider calls = %d, want 1", provider.Calls())
	}
	if len(result.Steps) != 1 {
		t.Fatalf("steps = %d, want 1", len(result.Steps))
	}
	// The first step's tool calls still run before the limit lands.
	if got := result.Steps[0].ToolResults; len(got) != 1 || got[0].Output != "a" {
		t.Errorf("step 0 tool results = %+v, want echo of %q", got, "a")
	}
	if result.FinishReason != models.FinishLength {
		t.Errorf("finish reason = %q, want length", result.FinishReason)
	}
}

func TestToolCallsFinishWithoutCallsIsFinal(t *testing.T) {
	provider := &agenttest.ScriptedProvider{Turns: []agenttest.Turn{
		{Text: "nothing to run", Finish: models.FinishToolCalls},
		{Text: "never reached"},
	}}
	a := newAgent(t, agent.Config{Provider: provider, MaxSteps: -1})

	result, err := a.Generate(context.Background(), "go")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if provider.Calls() != 1 {
		t.Errorf("provider calls = %d, want 1", provider.Calls())
	}
	if result.FinishReason != models.FinishStop {
		t.Errorf("finish reason = %q, want stop", result.FinishReason)
	}
	if result.Text != "nothing to run" {
		t.Errorf("text = %q, want %q", result.Text, "nothing to run")
	}
}

func TestToolValidationFailure(t *testing.T) {
	provider := &agenttest.ScriptedProvider{Turns: []agenttest.Turn{
		{ToolCalls: []models.ToolCall{call("c1", "echo", `{"wrong":"field"}`)}},
		{Text: "recovered"},
	}}
	a := newAgent(t, agent.Config{
		Provider: provider,
		MaxSteps: -1,
		Tools:    []*agent.Tool{echoTool()},
	})

	result, err := a.Generate(context.Background(), "go")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	tr := result.Steps[0].ToolResults[0]
	if tr.State != models.ToolOutputError {
		t.Fatalf("state = %q, want output-error", tr.State)
	}
	if want := string(agent.ErrCodeValidationFailed); len(tr.ErrorText) == 0 || tr.ErrorText[:len(want)] != want {
		t.Errorf("error text = %q, want %s prefix", tr.ErrorText, want)
	}
}

func TestUnknownToolProducesNotFound(t *testing.T) {
	provider := &agenttest.ScriptedProvider{Turns: []agenttest.Turn{
		{ToolCalls: []models.ToolCall{call("c1", "missing", `{}`)}},
		{Text: "ok"},
	}}
	a := newAgent(t, agent.Config{Provider: provider, MaxSteps: -1})

	result, err := a.Generate(context.Background(), "go")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	tr := result.Steps[0].ToolResults[0]
	if tr.State != models.ToolOutputError {
		t.Fatalf("state = %q, want output-error", tr.State)
	}
}

func TestApprovalFlow(t *testing.T) {
	tests := []struct {
		name      string
		handler   agent.ApprovalHandler
		timeout   time.Duration
		action    agent.TimeoutAction
		wantState models.ToolResultState
	}{
		{
			name: "handler approves",
			handler: func(ctx context.Context, req agent.ApprovalRequest) (bool, error) {
				return true, nil
			},
			wantState: models.ToolOutputAvailable,
		},
		{
			name: "handler denies",
			handler: func(ctx context.Context, req agent.ApprovalRequest) (bool, error) {
				return false, nil
			},
			wantState: models.ToolOutputDenied,
		},
		{
			name: "handler error denies",
			handler: func(ctx context.Context, req agent.ApprovalRequest) (bool, error) {
				return true, errors.New("decider broken")
			},
			wantState: models.ToolOutputDenied,
		},
		{
			name:      "timeout default denies",
			timeout:   20 * time.Millisecond,
			wantState: models.ToolOutputDenied,
		},
		{
			name:      "timeout action approve",
			timeout:   20 * time.Millisecond,
			action:    agent.TimeoutApprove,
			wantState: models.ToolOutputAvailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &agenttest.ScriptedProvider{Turns: []agenttest.Turn{
				{ToolCalls: []models.ToolCall{call("c1", "echo", `{"msg":"hi"}`)}},
				{Text: "done"},
			}}
			a := newAgent(t, agent.Config{
				Provider: provider,
				MaxSteps: -1,
				Tools:    []*agent.Tool{echoTool()},
				Approval: agent.ApprovalConfig{
					Enabled:        true,
					Handler:        tt.handler,
					Timeout:        tt.timeout,
					TimeoutAction:  tt.action,
					DangerousTools: []string{"echo"},
				},
			})

			result, err := a.Generate(context.Background(), "go")
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if got := result.Steps[0].ToolResults[0].State; got != tt.wantState {
				t.Errorf("state = %q, want %q", got, tt.wantState)
			}
		})
	}
}

func TestExternalApprovalResponse(t *testing.T) {
	provider := &agenttest.ScriptedProvider{Turns: []agenttest.Turn{
		{ToolCalls: []models.ToolCall{call("c1", "echo", `{"msg":"hi"}`)}},
		{Text: "done"},
	}}
	a := newAgent(t, agent.Config{
		Provider: provider,
		MaxSteps: -1,
		Tools:    []*agent.Tool{echoTool()},
		Approval: agent.ApprovalConfig{Enabled: true, DangerousTools: []string{"echo"}},
	})

	stream, err := a.Stream(context.Background(), "go")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	var events []models.StreamEvent
	for ev := range stream.Events() {
		if ev.Type == models.EventToolResult && ev.ToolResult.State == models.ToolApprovalRequested {
			if !a.AddToolApprovalResponse(ev.ToolResult.ToolCallID, true) {
				t.Error("first response not recorded")
			}
			// A second response for the same call must be ignored.
			if a.AddToolApprovalResponse(ev.ToolResult.ToolCallID, false) {
				t.Error("second response was recorded")
			}
		}
		events = append(events, ev)
	}

	result, err := stream.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got := result.Steps[0].ToolResults[0]; got.State != models.ToolOutputAvailable || got.Output != "hi" {
		t.Errorf("tool result = %+v, want approved execution", got)
	}

	var responded bool
	for _, ev := range events {
		if ev.Type == models.EventToolResult && ev.ToolResult.State == models.ToolApprovalResponded {
			responded = true
			if ev.ToolResult.Approved == nil || !*ev.ToolResult.Approved {
				t.Errorf("approval-responded event = %+v, want approved", ev.ToolResult)
			}
		}
	}
	if !responded {
		t.Error("no approval-responded event seen")
	}
}

func TestCancellationFinishesStream(t *testing.T) {
	provider := &agenttest.ScriptedProvider{Turns: []agenttest.Turn{
		{ToolCalls: []models.ToolCall{call("c1", "echo", `{"msg":"hi"}`)}},
	}}
	a := newAgent(t, agent.Config{
		Provider: provider,
		MaxSteps: -1,
		Tools:    []*agent.Tool{echoTool()},
		Approval: agent.ApprovalConfig{Enabled: true, DangerousTools: []string{"echo"}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, err := a.Stream(ctx, "go")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	var finish *models.StreamEvent
	for ev := range stream.Events() {
		if ev.Type == models.EventToolResult && ev.ToolResult.State == models.ToolApprovalRequested {
			// Cancel while a call is suspended on approval.
			cancel()
		}
		if ev.Type == models.EventFinish {
			e := ev
			finish = &e
		}
	}
	if finish == nil {
		t.Fatal("no finish event after cancellation")
	}
	if !finish.Cancelled {
		t.Errorf("finish = %+v, want Cancelled", finish)
	}
}

func TestDataPartsReachStreamNotContext(t *testing.T) {
	emitting := &agent.Tool{
		Name:   "emitter",
		Schema: json.RawMessage(`{"type":"object"}`),
		Handler: func(ctx context.Context, raw json.RawMessage, tc *agent.ToolContext) (string, error) {
			tc.Emitter.EmitData(models.NewDataPart(models.DataToolProgress, tc.CallID, map[string]any{"pct": 50}))
			return "ok", nil
		},
	}
	provider := &agenttest.ScriptedProvider{Turns: []agenttest.Turn{
		{ToolCalls: []models.ToolCall{call("c1", "emitter", `{}`)}},
		{Text: "done"},
	}}
	a := newAgent(t, agent.Config{
		Provider: provider,
		MaxSteps: -1,
		Tools:    []*agent.Tool{emitting},
	})

	stream, err := a.Stream(context.Background(), "go")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	var sawData bool
	for ev := range stream.Events() {
		if ev.IsDataEvent() {
			sawData = true
			if ev.Type != models.EventType("data-tool-progress") {
				t.Errorf("data event type = %s", ev.Type)
			}
		}
	}
	if !sawData {
		t.Error("no data event on stream")
	}

	// Data parts must not be fed back to the model.
	for _, req := range provider.Requests() {
		for _, msg := range req.Messages {
			if msg.Role == agent.RoleTool && msg.ToolResult != nil && msg.ToolResult.Output != "ok" {
				t.Errorf("unexpected tool payload in context: %+v", msg.ToolResult)
			}
		}
	}
}

func TestRunActive(t *testing.T) {
	block := make(chan struct{})
	blocking := &agent.Tool{
		Name:   "block",
		Schema: json.RawMessage(`{"type":"object"}`),
		Handler: func(ctx context.Context, raw json.RawMessage, tc *agent.ToolContext) (string, error) {
			<-block
			return "ok", nil
		},
	}
	provider := &agenttest.ScriptedProvider{Turns: []agenttest.Turn{
		{ToolCalls: []models.ToolCall{call("c1", "block", `{}`)}},
		{Text: "done"},
	}}
	a := newAgent(t, agent.Config{Provider: provider, MaxSteps: -1, Tools: []*agent.Tool{blocking}})

	stream, err := a.Stream(context.Background(), "go")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if _, err := a.Stream(context.Background(), "again"); !errors.Is(err, agent.ErrRunActive) {
		t.Errorf("second Stream err = %v, want ErrRunActive", err)
	}
	close(block)
	go func() {
		for range stream.Events() {
		}
	}()
	if _, err := stream.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestParallelDispatchIndependentTools(t *testing.T) {
	// Two slow independent calls in one batch should overlap.
	slow := &agent.Tool{
		Name:       "slow",
		Schema:     json.RawMessage(`{"type":"object"}`),
		Durability: agent.Durability{Enabled: true, Independent: true},
		Handler: func(ctx context.Context, raw json.RawMessage, tc *agent.ToolContext) (string, error) {
			time.Sleep(100 * time.Millisecond)
			return "ok", nil
		},
	}
	provider := &agenttest.ScriptedProvider{Turns: []agenttest.Turn{
		{ToolCalls: []models.ToolCall{
			call("c1", "slow", `{}`),
			call("c2", "slow", `{}`),
			call("c3", "slow", `{}`),
		}},
		{Text: "done"},
	}}
	a := newAgent(t, agent.Config{Provider: provider, MaxSteps: -1, Tools: []*agent.Tool{slow}})

	start := time.Now()
	if _, err := a.Generate(context.Background(), "go"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
		t.Errorf("batch took %s, expected parallel execution", elapsed)
	}
}

func TestExecutorMetricsExposed(t *testing.T) {
	provider := &agenttest.ScriptedProvider{Turns: []agenttest.Turn{
		{ToolCalls: []models.ToolCall{call("c1", "echo", `{"msg":"m"}`)}},
		{Text: "done"},
	}}
	a := newAgent(t, agent.Config{Provider: provider, MaxSteps: -1, Tools: []*agent.Tool{echoTool()}})
	if _, err := a.Generate(context.Background(), "go"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if m := a.ExecutorMetrics(); m.Executions != 1 {
		t.Errorf("executions = %d, want 1", m.Executions)
	}
}

func TestMissingProvider(t *testing.T) {
	if _, err := agent.New(agent.Config{}); !errors.Is(err, agent.ErrNoProvider) {
		t.Errorf("err = %v, want ErrNoProvider", err)
	}
}

func TestDuplicateToolRejected(t *testing.T) {
	provider := &agenttest.ScriptedProvider{}
	_, err := agent.New(agent.Config{
		Provider: provider,
		Tools:    []*agent.Tool{echoTool(), echoTool()},
	})
	if err == nil {
		t.Fatal("duplicate tool accepted")
	}
	if want := fmt.Sprintf("duplicate tool %q", "echo"); err.Error() != want {
		t.Errorf("err = %q, want %q", err, want)
	}
}
