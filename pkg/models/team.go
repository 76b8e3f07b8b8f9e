package models

import "time"

// TaskStatus is the lifecycle state of a team task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskClaimed   TaskStatus = "claimed"
	TaskCompleted TaskStatus = "completed"
)

// Task is a unit of team work. DependsOn lists task ids that must be
// completed before this task can be claimed.
type Task struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	DependsOn   []string `json:"depends_on,omitempty"`
}

// TaskState is a task plus its runtime bookkeeping on the board.
type TaskState struct {
	Task        Task       `json:"task"`
	Status      TaskStatus `json:"status"`
	ClaimedBy   string     `json:"claimed_by,omitempty"`
	Result      string     `json:"result,omitempty"`
	ClaimedAt   time.Time  `json:"claimed_at,omitempty"`
	CompletedAt time.Time  `json:"completed_at,omitempty"`
}

// TeamMessage is a mailbox entry between members.
type TeamMessage struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to,omitempty"`
	Content   string    `json:"content"`
	Broadcast bool      `json:"broadcast,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TeamPhase is the coordinator's run phase.
type TeamPhase string

const (
	TeamPlanning     TeamPhase = "planning"
	TeamExecuting    TeamPhase = "executing"
	TeamSynthesizing TeamPhase = "synthesizing"
	TeamCompleted    TeamPhase = "completed"
	TeamErrored      TeamPhase = "error"
)

// MemberPhase is one member's activity state: idle between tasks, working
// while a generate is in flight, completed once the team run finishes.
type MemberPhase string

const (
	MemberIdle      MemberPhase = "idle"
	MemberWorking   MemberPhase = "working"
	MemberCompleted MemberPhase = "completed"
)

// TeamSnapshot is a serialisable audit view of a team run.
type TeamSnapshot struct {
	Phase        TeamPhase              `json:"phase"`
	Members      []string               `json:"members"`
	MemberPhases map[string]MemberPhase `json:"member_phases"`
	Tasks        []TaskState            `json:"tasks"`
	Messages     []TeamMessage          `json:"messages"`
	Plan         string                 `json:"plan,omitempty"`
	Summary      string                 `json:"summary,omitempty"`
}
