package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tandm-app/tandm/internal/docstore"
	"github.com/tandm-app/tandm/internal/logging"
	"github.com/tandm-app/tandm/internal/metrics"
	"github.com/tandm-app/tandm/internal/tasks/domain"
)

// TaskService reads and writes the task documents under a project. Every
// write is a targeted field update.
type TaskService struct {
	store   docstore.Store
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewTaskService creates a new TaskService
func NewTaskService(store docstore.Store, log *zap.Logger, m *metrics.Metrics) *TaskService {
	return &TaskService{
		store:   store,
		log:     logging.OrNop(log).Named("tasks"),
		metrics: m,
	}
}

// Create adds a task to projectID and returns it with its new id. CreatedAt
// is left nil until the task is fetched again.
func (s *TaskService) Create(ctx context.Context, projectID string, in domain.Input) (*domain.Task, error) {
	if err := requireIDs(projectID); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := docstore.ValidateInput(in); err != nil {
		return nil, err
	}
	if in.Status == "" {
		in.Status = domain.StatusTodo
	}
	if !in.Status.Valid() {
		return nil, docstore.Invalid("unknown task status %q", in.Status)
	}

	data := map[string]any{
		"title":     in.Title,
		"status":    string(in.Status),
		"createdAt": docstore.ServerTimestamp,
	}
	if in.AssignedTo != nil {
		data["assignedTo"] = *in.AssignedTo
	}
	if in.DueDate != nil {
		data["dueDate"] = in.DueDate.UTC()
	}

	id, err := s.store.Add(ctx, domain.Path(projectID), data)
	if err != nil {
		return nil, docstore.StoreError("create task", err)
	}
	s.log.Info("task created", zap.String("project_id", projectID), zap.String("id", id))

	return &domain.Task{
		ID:         id,
		ProjectID:  projectID,
		Title:      in.Title,
		AssignedTo: in.AssignedTo,
		Status:     in.Status,
		DueDate:    in.DueDate,
	}, nil
}

// FetchForProject returns the project's tasks, oldest first.
func (s *TaskService) FetchForProject(ctx context.Context, projectID string) ([]domain.Task, error) {
	if err := requireIDs(projectID); err != nil {
		return nil, err
	}

	docs, err := s.store.Query(ctx, domain.Path(projectID), docstore.NewQuery().
		Order("createdAt", docstore.Asc))
	if err != nil {
		return nil, docstore.StoreError("fetch tasks", err)
	}

	return docstore.DecodeAll(docs, func(doc *docstore.Document) (domain.Task, error) {
		return decodeTask(projectID, doc)
	}, docstore.DropReporter(s.log, s.metrics.DocumentDropped)), nil
}

func (s *TaskService) FetchOne(ctx context.Context, projectID, taskID string) (*domain.Task, error) {
	if err := requireIDs(projectID, taskID); err != nil {
		return nil, err
	}

	doc, err := s.store.Get(ctx, domain.Path(projectID), taskID)
	if err != nil {
		return nil, s.wrap("fetch task", taskID, err)
	}
	t, err := decodeTask(projectID, doc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateStatus sets any valid status; the cycle order is not enforced here.
func (s *TaskService) UpdateStatus(ctx context.Context, projectID, taskID string, status domain.Status) error {
	if !status.Valid() {
		return docstore.Invalid("unknown task status %q", status)
	}
	return s.update(ctx, "update task status", projectID, taskID, map[string]any{"status": string(status)})
}

// UpdateAssignment assigns the task with Set or unassigns it with Clear.
func (s *TaskService) UpdateAssignment(ctx context.Context, projectID, taskID string, assignee docstore.Patch[string]) error {
	return s.UpdateDetails(ctx, projectID, taskID, assignee, docstore.Patch[time.Time]{})
}

// UpdateDetails changes assignment and due date in one write.
func (s *TaskService) UpdateDetails(ctx context.Context, projectID, taskID string, assignee docstore.Patch[string], due docstore.Patch[time.Time]) error {
	if v, ok := assignee.Value(); ok && strings.TrimSpace(v) == "" {
		return docstore.Invalid("assignee cannot be blank; clear the assignment instead")
	}

	fields := map[string]any{}
	assignee.Put(fields, "assignedTo")
	due.PutWith(fields, "dueDate", func(t time.Time) any { return t.UTC() })
	if len(fields) == 0 {
		return requireIDs(projectID, taskID)
	}
	return s.update(ctx, "update task", projectID, taskID, fields)
}

// Delete removes the task. Deleting a missing task is not an error.
func (s *TaskService) Delete(ctx context.Context, projectID, taskID string) error {
	if err := requireIDs(projectID, taskID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, domain.Path(projectID), taskID); err != nil {
		return docstore.StoreError("delete task", err)
	}
	s.log.Info("task deleted", zap.String("project_id", projectID), zap.String("id", taskID))
	return nil
}

func (s *TaskService) update(ctx context.Context, op, projectID, taskID string, fields map[string]any) error {
	if err := requireIDs(projectID, taskID); err != nil {
		return err
	}
	if err := s.store.Update(ctx, domain.Path(projectID), taskID, fields); err != nil {
		return s.wrap(op, taskID, err)
	}
	return nil
}

func (s *TaskService) wrap(op, id string, err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	return docstore.StoreError(op, err)
}

func requireIDs(ids ...string) error {
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return docstore.Invalid("project and task ids are required")
		}
	}
	return nil
}

func decodeTask(projectID string, doc *docstore.Document) (domain.Task, error) {
	var t domain.Task
	if err := docstore.Decode(doc, &t); err != nil {
		return domain.Task{}, err
	}
	t.ID = doc.ID
	t.ProjectID = projectID
	return t, nil
}
