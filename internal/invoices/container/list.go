// Package container holds the observable invoice list of one collective.
package container

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tandm-app/tandm/internal/docstore"
	"github.com/tandm-app/tandm/internal/invoices/domain"
	"github.com/tandm-app/tandm/internal/logging"
	"github.com/tandm-app/tandm/internal/state"
)

type InvoiceService interface {
	Create(ctx context.Context, in domain.CreateInput) (*domain.Invoice, error)
	FetchForCollective(ctx context.Context, collectiveID string) ([]domain.Invoice, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status) error
}

type Snapshot = state.Snapshot[[]domain.Invoice]

type List struct {
	svc          InvoiceService
	collectiveID string
	log          *zap.Logger
	store        *state.Store[[]domain.Invoice]
}

func NewList(svc InvoiceService, collectiveID string, log *zap.Logger) *List {
	return &List{
		svc:          svc,
		collectiveID: collectiveID,
		log:          logging.OrNop(log).Named("invoice_list").With(zap.String("collective_id", collectiveID)),
		store:        state.NewList[domain.Invoice](),
	}
}

func (l *List) Snapshot() Snapshot { return l.store.Snapshot() }

func (l *List) Subscribe() (<-chan Snapshot, func()) { return l.store.Subscribe() }

// Refresh replaces the list. A failed fetch empties it.
func (l *List) Refresh(ctx context.Context) error {
	l.store.StartLoading()

	items, err := l.svc.FetchForCollective(ctx, l.collectiveID)
	if err != nil {
		l.log.Warn("refresh failed", zap.Error(err))
		l.store.Mutate(func(s *Snapshot) {
			s.Value = nil
			s.IsLoading = false
			s.LastError = "Failed to load invoices: " + err.Error()
		})
		return err
	}

	l.store.Mutate(func(s *Snapshot) {
		s.Value = items
		s.IsLoading = false
	})
	return nil
}

// Create issues a draft invoice for projectID in this collective and
// refreshes the list.
func (l *List) Create(ctx context.Context, projectID string, items []domain.LineItem, dueDate time.Time) error {
	if strings.TrimSpace(projectID) == "" {
		l.store.Mutate(func(s *Snapshot) { s.LastError = "Project ID is required to create an invoice." })
		return docstore.Invalid("project id is required")
	}
	if len(items) == 0 {
		l.store.Mutate(func(s *Snapshot) { s.LastError = "Cannot create an empty invoice." })
		return domain.ErrNoLineItems
	}

	l.store.StartLoading()
	_, err := l.svc.Create(ctx, domain.CreateInput{
		ProjectID:    projectID,
		CollectiveID: l.collectiveID,
		LineItems:    items,
		DueDate:      dueDate,
	})
	if err != nil {
		l.store.Fail("Failed to create invoice: " + err.Error())
		return err
	}

	_ = l.Refresh(ctx)
	return nil
}

// UpdateStatus writes the status and, once confirmed, applies it to the
// local invoice. sentAt and paidAt are server stamps and show up on the next
// refresh.
func (l *List) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	if err := l.svc.UpdateStatus(ctx, id, status); err != nil {
		l.log.Warn("status update failed", zap.String("invoice_id", id), zap.Error(err))
		l.store.Mutate(func(s *Snapshot) { s.LastError = "Failed to update invoice status: " + err.Error() })
		return err
	}

	l.store.Mutate(func(s *Snapshot) {
		state.Splice(s.Value, func(inv domain.Invoice) bool { return inv.ID == id }, func(inv *domain.Invoice) {
			inv.Status = status
		})
	})
	return nil
}
