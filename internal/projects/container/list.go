// Package container holds the observable project list of one collective.
package container

import (
	"context"

	"go.uber.org/zap"

	"github.com/tandm-app/tandm/internal/logging"
	"github.com/tandm-app/tandm/internal/projects/domain"
	"github.com/tandm-app/tandm/internal/state"
)

type ProjectService interface {
	Create(ctx context.Context, in domain.Input) (string, error)
	FetchForCollective(ctx context.Context, collectiveID string) ([]domain.Project, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status) error
}

type Snapshot = state.Snapshot[[]domain.Project]

type List struct {
	svc          ProjectService
	collectiveID string
	log          *zap.Logger
	store        *state.Store[[]domain.Project]
}

func NewList(svc ProjectService, collectiveID string, log *zap.Logger) *List {
	return &List{
		svc:          svc,
		collectiveID: collectiveID,
		log:          logging.OrNop(log).Named("project_list").With(zap.String("collective_id", collectiveID)),
		store:        state.NewList[domain.Project](),
	}
}

func (l *List) Snapshot() Snapshot { return l.store.Snapshot() }

func (l *List) Subscribe() (<-chan Snapshot, func()) { return l.store.Subscribe() }

// Refresh replaces the list. Items are kept when the fetch fails.
func (l *List) Refresh(ctx context.Context) error {
	l.store.StartLoading()

	items, err := l.svc.FetchForCollective(ctx, l.collectiveID)
	if err != nil {
		l.log.Warn("refresh failed", zap.Error(err))
		l.store.Fail("Failed to load projects: " + err.Error())
		return err
	}

	l.store.Mutate(func(s *Snapshot) {
		s.Value = items
		s.IsLoading = false
	})
	return nil
}

// Create stores a project in this collective and refreshes the list.
func (l *List) Create(ctx context.Context, in domain.Input) error {
	in.CollectiveID = l.collectiveID

	l.store.StartLoading()
	if _, err := l.svc.Create(ctx, in); err != nil {
		l.store.Fail("Failed to create project: " + err.Error())
		return err
	}

	_ = l.Refresh(ctx)
	return nil
}

// UpdateStatus writes the status and, once confirmed, applies it to the
// local item.
func (l *List) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	if err := l.svc.UpdateStatus(ctx, id, status); err != nil {
		l.store.Mutate(func(s *Snapshot) { s.LastError = "Failed to update project status: " + err.Error() })
		return err
	}

	l.store.Mutate(func(s *Snapshot) {
		state.Splice(s.Value, func(p domain.Project) bool { return p.ID == id }, func(p *domain.Project) {
			p.Status = status
		})
	})
	return nil
}
