package workflow

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Synthesize combines branch outputs into the fan-out result. Failed
// branches appear as "[Step k failed: message]" placeholders.
type Synthesize func(ctx context.Context, in StepInput, branchTexts []string) (string, error)

// Parallel fans the same input out to every branch and gathers all results.
// Branch failures do not abort siblings; each failure becomes a placeholder
// in the gathered texts.
type Parallel struct {
	name       string
	branches   []Step
	maxWorkers int
	synthesize Synthesize
}

// NewParallel builds a fan-out. At least one branch is required.
func NewParallel(name string, branches ...Step) (*Parallel, error) {
	if len(branches) == 0 {
		return nil, fmt.Errorf("parallel %q: needs at least one branch", name)
	}
	return &Parallel{name: name, branches: branches, maxWorkers: len(branches)}, nil
}

// WithMaxWorkers caps concurrent branches.
func (p *Parallel) WithMaxWorkers(n int) *Parallel {
	if n > 0 {
		p.maxWorkers = n
	}
	return p
}

// WithSynthesize installs a combiner. Without one, branch texts are joined
// with blank lines.
func (p *Parallel) WithSynthesize(s Synthesize) *Parallel {
	p.synthesize = s
	return p
}

func (p *Parallel) Name() string { return p.name }

func (p *Parallel) Execute(ctx context.Context, in StepInput) (StepOutput, error) {
	texts := make([]string, len(p.branches))
	outputs := make([]StepOutput, len(p.branches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxWorkers)
	for i, branch := range p.branches {
		i, branch := i, branch
		g.Go(func() error {
			out, err := branch.Execute(gctx, in)
			if err != nil {
				texts[i] = fmt.Sprintf("[Step %d failed: %s]", i, err.Error())
				return nil
			}
			outputs[i] = out
			texts[i] = out.Text
			return nil
		})
	}
	// Branches never return errors to the group; Wait only propagates
	// context cancellation.
	if err := g.Wait(); err != nil {
		return StepOutput{}, err
	}
	if err := ctx.Err(); err != nil {
		return StepOutput{}, err
	}

	text := strings.Join(texts, "\n\n")
	if p.synthesize != nil {
		synthesized, err := p.synthesize(ctx, in, texts)
		if err != nil {
			return StepOutput{}, fmt.Errorf("parallel %q: synthesize: %w", p.name, err)
		}
		text = synthesized
	}
	return StepOutput{
		Text: text,
		Metadata: map[string]any{
			"branches":     len(p.branches),
			"branch_texts": texts,
		},
	}, nil
}

// SynthesizeWithAgent builds a Synthesize that asks an agent to combine the
// branch outputs.
func SynthesizeWithAgent(agent Generator, instruction string) Synthesize {
	return func(ctx context.Context, in StepInput, branchTexts []string) (string, error) {
		var b strings.Builder
		b.WriteString(instruction)
		b.WriteString("\n\nOriginal request:\n")
		b.WriteString(in.Prompt)
		for i, text := range branchTexts {
			fmt.Fprintf(&b, "\n\nResult %d:\n%s", i+1, text)
		}
		result, err := agent.Generate(ctx, b.String())
		if err != nil {
			return "", err
		}
		return result.Text, nil
	}
}
