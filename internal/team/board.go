package team

import (
	"fmt"
	"sync"
	"time"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// Board is the shared task list of one team run. All mutation goes through
// the board mutex, so claims are atomic: two members can never hold the same
// task.
type Board struct {
	mu    sync.Mutex
	order []string
	tasks map[string]*models.TaskState
}

// NewBoard builds an empty board.
func NewBoard() *Board {
	return &Board{tasks: make(map[string]*models.TaskState)}
}

// Add registers a task. Duplicate ids and unknown dependencies are rejected.
func (b *Board) Add(task models.Task) error {
	if task.ID == "" {
		return fmt.Errorf("task needs an id")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.tasks[task.ID]; exists {
		return fmt.Errorf("duplicate task %q", task.ID)
	}
	for _, dep := range task.DependsOn {
		if _, ok := b.tasks[dep]; !ok {
			return fmt.Errorf("task %q depends on unknown task %q", task.ID, dep)
		}
	}
	b.tasks[task.ID] = &models.TaskState{Task: task, Status: models.TaskPending}
	b.order = append(b.order, task.ID)
	return nil
}

// Claim atomically assigns a pending task to member. It fails when the task
// is unknown, already taken, or has incomplete dependencies.
func (b *Board) Claim(taskID, member string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.tasks[taskID]
	if !ok {
		return fmt.Errorf("no task %q", taskID)
	}
	if state.Status != models.TaskPending {
		return fmt.Errorf("task %q is %s", taskID, state.Status)
	}
	if !b.depsCompletedLocked(state.Task) {
		return fmt.Errorf("task %q has incomplete dependencies", taskID)
	}
	state.Status = models.TaskClaimed
	state.ClaimedBy = member
	state.ClaimedAt = time.Now()
	return nil
}

// Complete finishes a claimed task. Only the claimer may complete it.
func (b *Board) Complete(taskID, member, result string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.tasks[taskID]
	if !ok {
		return fmt.Errorf("no task %q", taskID)
	}
	if state.Status != models.TaskClaimed {
		return fmt.Errorf("task %q is %s, not claimed", taskID, state.Status)
	}
	if state.ClaimedBy != member {
		return fmt.Errorf("task %q is claimed by %q", taskID, state.ClaimedBy)
	}
	state.Status = models.TaskCompleted
	state.Result = result
	state.CompletedAt = time.Now()
	return nil
}

// Available lists pending tasks whose dependencies are completed, in
// insertion order.
func (b *Board) Available() []models.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.Task
	for _, id := range b.order {
		state := b.tasks[id]
		if state.Status == models.TaskPending && b.depsCompletedLocked(state.Task) {
			out = append(out, state.Task)
		}
	}
	return out
}

// AllCompleted reports whether every task is done. An empty board counts as
// completed.
func (b *Board) AllCompleted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, state := range b.tasks {
		if state.Status != models.TaskCompleted {
			return false
		}
	}
	return true
}

// Counts returns (pending, claimed, completed).
func (b *Board) Counts() (int, int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var pending, claimed, completed int
	for _, state := range b.tasks {
		switch state.Status {
		case models.TaskPending:
			pending++
		case models.TaskClaimed:
			claimed++
		case models.TaskCompleted:
			completed++
		}
	}
	return pending, claimed, completed
}

// States returns the task states in insertion order.
func (b *Board) States() []models.TaskState {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.TaskState, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, *b.tasks[id])
	}
	return out
}

// Len returns the number of tasks.
func (b *Board) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.tasks)
}

func (b *Board) depsCompletedLocked(task models.Task) bool {
	for _, dep := range task.DependsOn {
		depState, ok := b.tasks[dep]
		if !ok || depState.Status != models.TaskCompleted {
			return false
		}
	}
	return true
}
