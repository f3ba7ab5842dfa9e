package domain

import (
	"slices"
	"time"

	"github.com/tandm-app/tandm/internal/docstore"
)

// Child collection name under a project document.
const Collection = "tasks"

// Path returns the task collection of a project.
func Path(projectID string) string {
	return docstore.SubPath("projects", projectID, Collection)
}

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusDone       Status = "done"
)

// Cycle is the order Advance walks through. It wraps from done to todo.
var Cycle = []Status{StatusTodo, StatusInProgress, StatusBlocked, StatusDone}

func (s Status) Valid() bool {
	return slices.Contains(Cycle, s)
}

// Next returns the status after s in the cycle. Unknown statuses restart at
// todo.
func (s Status) Next() Status {
	i := slices.Index(Cycle, s)
	return Cycle[(i+1)%len(Cycle)]
}

type Task struct {
	ID         string     `doc:"-"`
	ProjectID  string     `doc:"-"`
	Title      string     `doc:"title" validate:"required"`
	AssignedTo *string    `doc:"assignedTo"`
	Status     Status     `doc:"status" validate:"required,oneof=todo in_progress blocked done"`
	DueDate    *time.Time `doc:"dueDate"`
	CreatedAt  *time.Time `doc:"createdAt"`
}

// Input creates a task. An empty Status means todo.
type Input struct {
	Title      string `validate:"required"`
	AssignedTo *string
	Status     Status
	DueDate    *time.Time
}
