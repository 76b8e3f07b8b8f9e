package workflow

import (
	"context"
	"fmt"
)

// Transform rewrites the prompt between pipeline stages. It sees the
// original pipeline input and the previous stage's output.
type Transform func(initial StepInput, previous StepOutput) string

// Pipeline runs steps sequentially, feeding each stage the previous output.
// The first failure aborts the run.
type Pipeline struct {
	name       string
	steps      []Step
	transforms map[int]Transform
}

// NewPipeline builds a sequential pipeline. At least one step is required.
func NewPipeline(name string, steps ...Step) (*Pipeline, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("pipeline %q: needs at least one step", name)
	}
	return &Pipeline{
		name:       name,
		steps:      steps,
		transforms: make(map[int]Transform),
	}, nil
}

// WithTransform installs a prompt transform ahead of stage index. Stage 0
// always receives the pipeline input unchanged.
func (p *Pipeline) WithTransform(index int, t Transform) *Pipeline {
	p.transforms[index] = t
	return p
}

func (p *Pipeline) Name() string { return p.name }

func (p *Pipeline) Execute(ctx context.Context, in StepInput) (StepOutput, error) {
	var out StepOutput
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return StepOutput{}, err
		}
		stageIn := in
		if i > 0 {
			if t, ok := p.transforms[i]; ok {
				stageIn = StepInput{Prompt: t(in, out)}
			} else {
				stageIn = StepInput{Prompt: out.Text}
			}
		}
		var err error
		out, err = step.Execute(ctx, stageIn)
		if err != nil {
			return StepOutput{}, fmt.Errorf("pipeline %q stage %d (%s): %w", p.name, i, step.Name(), err)
		}
	}
	return out, nil
}
