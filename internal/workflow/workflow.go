// Package workflow composes agents into pipelines and parallel fan-outs.
// Pipelines and fan-outs are themselves steps, so workflows nest.
package workflow

import (
	"context"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// Generator is the agent surface workflows need. *agent.Agent satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*models.RunResult, error)
}

// StepInput feeds one step.
type StepInput struct {
	// Prompt is the text handed to the step. For pipeline steps after the
	// first, it is the previous step's output unless a transform rewrites
	// it.
	Prompt string
}

// StepOutput is one step's result.
type StepOutput struct {
	Text string

	// Metadata carries step-specific extras (per-branch outputs, usage).
	Metadata map[string]any
}

// Step is a unit of workflow execution.
type Step interface {
	Name() string
	Execute(ctx context.Context, in StepInput) (StepOutput, error)
}

// AgentStep adapts a generator into a step.
type AgentStep struct {
	StepName string
	Agent    Generator
}

// NewAgentStep wraps an agent as a workflow step.
func NewAgentStep(name string, agent Generator) *AgentStep {
	return &AgentStep{StepName: name, Agent: agent}
}

func (s *AgentStep) Name() string { return s.StepName }

func (s *AgentStep) Execute(ctx context.Context, in StepInput) (StepOutput, error) {
	result, err := s.Agent.Generate(ctx, in.Prompt)
	if err != nil {
		return StepOutput{}, err
	}
	return StepOutput{
		Text: result.Text,
		Metadata: map[string]any{
			"finish_reason": result.FinishReason,
			"steps":         len(result.Steps),
			"usage":         result.TotalUsage,
		},
	}, nil
}
