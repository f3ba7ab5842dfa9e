// Package container holds the observable task list of one project.
//
// Field changes are applied to the local list only after the store confirms
// them, so the list always shows the last confirmed write. Responses are
// applied in completion order: two overlapping writes to one task end with
// whichever response arrives last, not whichever request was issued last.
package container

import (
	"context"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tandm-app/tandm/internal/docstore"
	"github.com/tandm-app/tandm/internal/logging"
	"github.com/tandm-app/tandm/internal/state"
	"github.com/tandm-app/tandm/internal/tasks/domain"
)

type TaskService interface {
	Create(ctx context.Context, projectID string, in domain.Input) (*domain.Task, error)
	FetchForProject(ctx context.Context, projectID string) ([]domain.Task, error)
	UpdateStatus(ctx context.Context, projectID, taskID string, status domain.Status) error
	UpdateAssignment(ctx context.Context, projectID, taskID string, assignee docstore.Patch[string]) error
	UpdateDetails(ctx context.Context, projectID, taskID string, assignee docstore.Patch[string], due docstore.Patch[time.Time]) error
	Delete(ctx context.Context, projectID, taskID string) error
}

type Snapshot = state.Snapshot[[]domain.Task]

type List struct {
	svc       TaskService
	projectID string
	log       *zap.Logger
	store     *state.Store[[]domain.Task]
}

func NewList(svc TaskService, projectID string, log *zap.Logger) *List {
	return &List{
		svc:       svc,
		projectID: projectID,
		log:       logging.OrNop(log).Named("task_list").With(zap.String("project_id", projectID)),
		store:     state.NewList[domain.Task](),
	}
}

func (l *List) Snapshot() Snapshot { return l.store.Snapshot() }

func (l *List) Subscribe() (<-chan Snapshot, func()) { return l.store.Subscribe() }

// Refresh replaces the list. A failed fetch empties it.
func (l *List) Refresh(ctx context.Context) error {
	l.store.StartLoading()

	items, err := l.svc.FetchForProject(ctx, l.projectID)
	if err != nil {
		l.log.Warn("refresh failed", zap.Error(err))
		l.store.Mutate(func(s *Snapshot) {
			s.Value = nil
			s.IsLoading = false
			s.LastError = "Failed to load tasks: " + err.Error()
		})
		return err
	}

	l.store.Mutate(func(s *Snapshot) {
		s.Value = items
		s.IsLoading = false
	})
	return nil
}

// Create adds a task to the project and refreshes the list.
func (l *List) Create(ctx context.Context, in domain.Input) error {
	if strings.TrimSpace(in.Title) == "" {
		l.store.Mutate(func(s *Snapshot) { s.LastError = "Task title cannot be empty." })
		return docstore.Invalid("task title is required")
	}

	l.store.StartLoading()
	if _, err := l.svc.Create(ctx, l.projectID, in); err != nil {
		l.store.Fail("Failed to create task: " + err.Error())
		return err
	}

	_ = l.Refresh(ctx)
	return nil
}

// Advance moves a task one step along the status cycle.
func (l *List) Advance(ctx context.Context, taskID string) error {
	task, ok := l.find(taskID)
	if !ok {
		l.store.Mutate(func(s *Snapshot) { s.LastError = "Task not found." })
		return domain.ErrTaskNotFound
	}
	return l.SetStatus(ctx, taskID, task.Status.Next())
}

// SetStatus writes any status, bypassing the cycle order.
func (l *List) SetStatus(ctx context.Context, taskID string, status domain.Status) error {
	err := l.svc.UpdateStatus(ctx, l.projectID, taskID, status)
	return l.confirm(taskID, "Failed to update task status: ", err, func(t *domain.Task) {
		t.Status = status
	})
}

// Assign sets or clears the assignee.
func (l *List) Assign(ctx context.Context, taskID string, assignee docstore.Patch[string]) error {
	err := l.svc.UpdateAssignment(ctx, l.projectID, taskID, assignee)
	return l.confirm(taskID, "Failed to update task assignment: ", err, func(t *domain.Task) {
		assignee.ApplyPtr(&t.AssignedTo)
	})
}

// UpdateDetails changes assignee and due date together.
func (l *List) UpdateDetails(ctx context.Context, taskID string, assignee docstore.Patch[string], due docstore.Patch[time.Time]) error {
	err := l.svc.UpdateDetails(ctx, l.projectID, taskID, assignee, due)
	return l.confirm(taskID, "Failed to update task: ", err, func(t *domain.Task) {
		assignee.ApplyPtr(&t.AssignedTo)
		due.ApplyPtr(&t.DueDate)
	})
}

// Delete removes the task remotely, then locally.
func (l *List) Delete(ctx context.Context, taskID string) error {
	if err := l.svc.Delete(ctx, l.projectID, taskID); err != nil {
		l.log.Warn("delete failed", zap.String("task_id", taskID), zap.Error(err))
		l.store.Mutate(func(s *Snapshot) { s.LastError = "Failed to delete task: " + err.Error() })
		return err
	}

	l.store.Mutate(func(s *Snapshot) {
		s.Value = slices.DeleteFunc(s.Value, func(t domain.Task) bool { return t.ID == taskID })
	})
	return nil
}

// confirm splices a confirmed write into the matching local task. A task
// removed locally in the meantime is skipped. On failure only LastError
// changes.
func (l *List) confirm(taskID, failPrefix string, err error, apply func(*domain.Task)) error {
	if err != nil {
		l.log.Warn("task update failed", zap.String("task_id", taskID), zap.Error(err))
		l.store.Mutate(func(s *Snapshot) { s.LastError = failPrefix + err.Error() })
		return err
	}

	l.store.Mutate(func(s *Snapshot) {
		state.Splice(s.Value, func(t domain.Task) bool { return t.ID == taskID }, apply)
	})
	return nil
}

func (l *List) find(taskID string) (domain.Task, bool) {
	items := l.store.Snapshot().Value
	i := slices.IndexFunc(items, func(t domain.Task) bool { return t.ID == taskID })
	if i < 0 {
		return domain.Task{}, false
	}
	return items[i], true
}
