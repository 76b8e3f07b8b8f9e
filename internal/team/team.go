// Package team coordinates multiple agents over a shared task board and
// mailbox: a coordinator plans, members claim and complete tasks, the
// coordinator synthesizes.
package team

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/haasonsaas/agentcore/internal/workflow"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// DefaultMaxRounds bounds the executing phase.
const DefaultMaxRounds = 10

// ErrStalled means a dispatch round made no progress while tasks remained
// pending, or the round budget ran out with work left.
var ErrStalled = errors.New("team stalled: pending tasks with no claimable work")

// Member is one working agent of the team.
type Member struct {
	Name  string
	Role  string
	Agent workflow.Generator
}

// Config configures a team.
type Config struct {
	Name string

	// Coordinator plans before execution and synthesizes after. Required.
	Coordinator workflow.Generator

	Members []Member

	// MaxRounds caps dispatch rounds in the executing phase. Zero means
	// the default.
	MaxRounds int

	// Synthesize, when set, combines the execution outputs into the final
	// summary instead of prompting the coordinator.
	Synthesize func(ctx context.Context, outputs []string) (string, error)

	Logger *slog.Logger
}

// Team runs a coordinator and members against a shared board.
type Team struct {
	cfg     Config
	board   *Board
	mailbox *Mailbox
	logger  *slog.Logger

	mu      sync.Mutex
	phase   models.TeamPhase
	members map[string]models.MemberPhase
	plan    string
	summary string
}

// New validates the config and builds a team.
func New(cfg Config) (*Team, error) {
	if cfg.Coordinator == nil {
		return nil, fmt.Errorf("team %q: coordinator is required", cfg.Name)
	}
	if len(cfg.Members) == 0 {
		return nil, fmt.Errorf("team %q: needs at least one member", cfg.Name)
	}
	names := make([]string, 0, len(cfg.Members))
	seen := make(map[string]bool, len(cfg.Members))
	for _, m := range cfg.Members {
		if m.Name == "" || m.Agent == nil {
			return nil, fmt.Errorf("team %q: member needs a name and an agent", cfg.Name)
		}
		if seen[m.Name] {
			return nil, fmt.Errorf("team %q: duplicate member %q", cfg.Name, m.Name)
		}
		seen[m.Name] = true
		names = append(names, m.Name)
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	phases := make(map[string]models.MemberPhase, len(names))
	for _, name := range names {
		phases[name] = models.MemberIdle
	}
	return &Team{
		cfg:     cfg,
		board:   NewBoard(),
		mailbox: NewMailbox(names),
		logger:  logger.With("component", "team", "team", cfg.Name),
		phase:   models.TeamPlanning,
		members: phases,
	}, nil
}

// AddTask seeds the board before Run. With no tasks, Run falls back to the
// prompt-based parallel mode.
func (t *Team) AddTask(task models.Task) error {
	return t.board.Add(task)
}

// Board exposes the shared task board, for member tools.
func (t *Team) Board() *Board { return t.board }

// Mailbox exposes the shared mailbox, for member tools.
func (t *Team) Mailbox() *Mailbox { return t.mailbox }

// Phase returns the current run phase.
func (t *Team) Phase() models.TeamPhase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

func (t *Team) setPhase(p models.TeamPhase) {
	t.mu.Lock()
	t.phase = p
	t.mu.Unlock()
	t.logger.Debug("phase change", "phase", p)
}

// MemberPhase returns one member's activity state.
func (t *Team) MemberPhase(name string) models.MemberPhase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.members[name]
}

func (t *Team) setMemberPhase(name string, p models.MemberPhase) {
	t.mu.Lock()
	t.members[name] = p
	t.mu.Unlock()
}

func (t *Team) completeMembers() {
	t.mu.Lock()
	for name := range t.members {
		t.members[name] = models.MemberCompleted
	}
	t.mu.Unlock()
}

// Snapshot returns a serialisable audit view of the run.
func (t *Team) Snapshot() models.TeamSnapshot {
	t.mu.Lock()
	phase, plan, summary := t.phase, t.plan, t.summary
	memberPhases := make(map[string]models.MemberPhase, len(t.members))
	for name, p := range t.members {
		memberPhases[name] = p
	}
	t.mu.Unlock()
	members := make([]string, len(t.cfg.Members))
	for i, m := range t.cfg.Members {
		members[i] = m.Name
	}
	return models.TeamSnapshot{
		Phase:        phase,
		Members:      members,
		MemberPhases: memberPhases,
		Tasks:        t.board.States(),
		Messages:     t.mailbox.Log(),
		Plan:         plan,
		Summary:      summary,
	}
}

// Run executes the objective: planning, executing (board rounds or parallel
// prompts), synthesizing. A round with pending tasks and no progress ends
// the run with ErrStalled.
func (t *Team) Run(ctx context.Context, objective string) (string, error) {
	plan, err := t.planPhase(ctx, objective)
	if err != nil {
		t.setPhase(models.TeamErrored)
		return "", err
	}

	var outputs []string
	if t.board.Len() > 0 {
		outputs, err = t.executeBoard(ctx, objective, plan)
	} else {
		outputs, err = t.executeParallel(ctx, objective, plan)
	}
	if err != nil {
		t.setPhase(models.TeamErrored)
		return "", err
	}

	summary, err := t.synthesizePhase(ctx, objective, outputs)
	if err != nil {
		t.setPhase(models.TeamErrored)
		return "", err
	}
	t.completeMembers()
	t.setPhase(models.TeamCompleted)
	return summary, nil
}

func (t *Team) planPhase(ctx context.Context, objective string) (string, error) {
	t.setPhase(models.TeamPlanning)
	var roster strings.Builder
	for _, m := range t.cfg.Members {
		fmt.Fprintf(&roster, "- %s (%s)\n", m.Name, m.Role)
	}
	prompt := fmt.Sprintf(
		"You are coordinating a team.\n\nObjective:\n%s\n\nTeam members:\n%s\nProduce a concise plan assigning the work.",
		objective, roster.String())
	result, err := t.cfg.Coordinator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("planning: %w", err)
	}
	t.mu.Lock()
	t.plan = result.Text
	t.mu.Unlock()
	return result.Text, nil
}

// executeBoard dispatches board tasks in rounds until the board completes,
// the round budget runs out, or a round makes no progress. Claims are
// serialized per round (each one atomic on the board); the claimed tasks
// then generate and complete concurrently.
func (t *Team) executeBoard(ctx context.Context, objective, plan string) ([]string, error) {
	t.setPhase(models.TeamExecuting)
	for round := 0; round < t.cfg.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if t.board.AllCompleted() {
			break
		}

		type assignment struct {
			member Member
			task   models.Task
		}
		var assignments []assignment
		for _, m := range t.cfg.Members {
			available := t.board.Available()
			if len(available) == 0 {
				break
			}
			task := available[0]
			if err := t.board.Claim(task.ID, m.Name); err != nil {
				continue
			}
			assignments = append(assignments, assignment{member: m, task: task})
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, as := range assignments {
			as := as
			g.Go(func() error {
				t.setMemberPhase(as.member.Name, models.MemberWorking)
				defer t.setMemberPhase(as.member.Name, models.MemberIdle)
				result, err := as.member.Agent.Generate(gctx, t.memberPrompt(as.member, objective, plan, as.task))
				if err != nil {
					t.logger.Warn("member failed", "member", as.member.Name, "task", as.task.ID, "error", err)
					_ = t.board.Complete(as.task.ID, as.member.Name, fmt.Sprintf("[failed: %s]", err.Error()))
					return nil
				}
				if err := t.board.Complete(as.task.ID, as.member.Name, result.Text); err != nil {
					// Member tools may have completed the task already.
					t.logger.Debug("complete skipped", "task", as.task.ID, "error", err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		pending, claimed, _ := t.board.Counts()
		if len(assignments) == 0 && pending+claimed > 0 {
			return nil, ErrStalled
		}
	}
	if !t.board.AllCompleted() {
		return nil, ErrStalled
	}

	outputs := make([]string, 0, t.board.Len())
	for _, state := range t.board.States() {
		outputs = append(outputs, fmt.Sprintf("Task %s (%s), completed by %s:\n%s",
			state.Task.ID, state.Task.Description, state.ClaimedBy, state.Result))
	}
	return outputs, nil
}

// executeParallel is the prompt-based mode: every member gets the objective
// and plan concurrently.
func (t *Team) executeParallel(ctx context.Context, objective, plan string) ([]string, error) {
	t.setPhase(models.TeamExecuting)
	texts := make([]string, len(t.cfg.Members))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range t.cfg.Members {
		i, m := i, m
		g.Go(func() error {
			t.setMemberPhase(m.Name, models.MemberWorking)
			defer t.setMemberPhase(m.Name, models.MemberIdle)
			prompt := fmt.Sprintf(
				"You are %s (%s) on a team.\n\nObjective:\n%s\n\nTeam plan:\n%s\n\nDo your part and report the result.",
				m.Name, m.Role, objective, plan)
			result, err := m.Agent.Generate(gctx, prompt)
			if err != nil {
				texts[i] = fmt.Sprintf("[%s failed: %s]", m.Name, err.Error())
				return nil
			}
			texts[i] = fmt.Sprintf("%s:\n%s", m.Name, result.Text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return texts, nil
}

func (t *Team) synthesizePhase(ctx context.Context, objective string, outputs []string) (string, error) {
	t.setPhase(models.TeamSynthesizing)
	var summary string
	if t.cfg.Synthesize != nil {
		text, err := t.cfg.Synthesize(ctx, outputs)
		if err != nil {
			return "", fmt.Errorf("synthesizing: %w", err)
		}
		summary = text
	} else {
		prompt := fmt.Sprintf(
			"The team finished its work.\n\nObjective:\n%s\n\nResults:\n%s\n\nSynthesize a final answer.",
			objective, strings.Join(outputs, "\n\n"))
		result, err := t.cfg.Coordinator.Generate(ctx, prompt)
		if err != nil {
			return "", fmt.Errorf("synthesizing: %w", err)
		}
		summary = result.Text
	}
	t.mu.Lock()
	t.summary = summary
	t.mu.Unlock()
	return summary, nil
}

func (t *Team) memberPrompt(m Member, objective, plan string, task models.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s (%s) on a team.\n\nObjective:\n%s\n\nTeam plan:\n%s\n\nYour task (%s):\n%s\n",
		m.Name, m.Role, objective, plan, task.ID, task.Description)
	if msgs := t.mailbox.Drain(m.Name); len(msgs) > 0 {
		b.WriteString("\nMessages for you:\n")
		for _, msg := range msgs {
			fmt.Fprintf(&b, "- from %s: %s\n", msg.From, msg.Content)
		}
	}
	b.WriteString("\nComplete the task and report the result.")
	return b.String()
}
