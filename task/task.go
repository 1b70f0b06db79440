// Package task defines the hierarchical work-item model and its persistence.
//
// Tasks form a forest per agent: root tasks have no parent, and a task whose
// children are not all completed is never directly actionable. All status
// transitions go through the store so the parent-completion invariant is
// enforced in one place.
package task

import (
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
)

// validEdges lists the allowed status transitions. Blocked→in_progress is
// the only backward edge (help received). Completed is terminal.
var validEdges = map[Status][]Status{
	StatusPending:    {StatusInProgress},
	StatusInProgress: {StatusCompleted, StatusBlocked},
	StatusBlocked:    {StatusInProgress},
}

// ValidTransition reports whether from→to is an allowed status edge.
func ValidTransition(from, to Status) bool {
	for _, s := range validEdges[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ErrNotFound is returned when a task does not exist.
var ErrNotFound = errors.New("task not found")

// InvalidTransitionError reports a rejected status edge.
type InvalidTransitionError struct {
	TaskID string
	From   Status
	To     Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("task %s: invalid transition %s → %s", e.TaskID, e.From, e.To)
}

// Task is a unit of work owned by one agent. Lower priority means more
// urgent.
type Task struct {
	ID          string     `json:"id"`
	AgentID     string     `json:"agent_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Priority    int        `json:"priority"`
	ParentID    string     `json:"parent_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Root reports whether the task has no parent.
func (t *Task) Root() bool { return t.ParentID == "" }

// Open reports whether the task still needs work.
func (t *Task) Open() bool {
	return t.Status == StatusPending || t.Status == StatusInProgress
}

// Spec describes a task to create, used by Create and AttachChildren.
type Spec struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
}

// Filter controls which tasks List returns.
type Filter struct {
	AgentID  string  `json:"agent_id,omitempty"`
	Status   *Status `json:"status,omitempty"`
	ParentID string  `json:"parent_id,omitempty"`
	Limit    int     `json:"limit,omitempty"`
}

// Store persists and retrieves tasks. It is the single writer of task
// status.
type Store interface {
	// Create persists a new pending task owned by agentID. parentID may be
	// empty for a root task.
	Create(agentID string, spec Spec, parentID string) (*Task, error)

	// Get retrieves a task by ID.
	Get(id string) (*Task, error)

	// List returns tasks matching the filter, most urgent first.
	List(filter Filter) ([]*Task, error)

	// OpenTasks returns the agent's pending/in_progress tasks ordered
	// leaf-first: tasks with no open children come before parents that are
	// blocked on sub-work, ascending priority within each group.
	OpenTasks(agentID string) ([]*Task, error)

	// Transition moves a task along a valid status edge. Invalid edges fail
	// with *InvalidTransitionError and change nothing.
	Transition(id string, to Status) error

	// ChildrenOf returns a task's direct children, most urgent first.
	ChildrenOf(id string) ([]*Task, error)

	// AttachChildren creates the given specs as children of parentID.
	AttachChildren(parentID string, specs []Spec) ([]*Task, error)

	// CloseIfChildrenComplete atomically completes the parent when every
	// child is completed, and reports whether it closed. Parents with no
	// children never close this way.
	CloseIfChildrenComplete(parentID string) (bool, error)
}
