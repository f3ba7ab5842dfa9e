package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tandm-app/tandm/internal/docstore"
	"github.com/tandm-app/tandm/internal/invoices/domain"
	"github.com/tandm-app/tandm/internal/logging"
	"github.com/tandm-app/tandm/internal/metrics"
)

// InvoiceService reads and writes invoice documents.
type InvoiceService struct {
	store   docstore.Store
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(store docstore.Store, log *zap.Logger, m *metrics.Metrics) *InvoiceService {
	return &InvoiceService{
		store:   store,
		log:     logging.OrNop(log).Named("invoices"),
		metrics: m,
	}
}

// Create stores a draft invoice and returns it as the store saw it. The
// total is computed from the line items before anything is written. Once the
// write succeeds a failed re-read is not an error: the invoice is built from
// what was written, without createdAt.
func (s *InvoiceService) Create(ctx context.Context, in domain.CreateInput) (*domain.Invoice, error) {
	if len(in.LineItems) == 0 {
		return nil, domain.ErrNoLineItems
	}
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	in.CollectiveID = strings.TrimSpace(in.CollectiveID)
	if err := docstore.ValidateInput(in); err != nil {
		return nil, err
	}
	items := withItemIDs(in.LineItems)
	total := domain.Total(items)

	data := map[string]any{
		"projectId":    in.ProjectID,
		"collectiveId": in.CollectiveID,
		"lineItems":    encodeLineItems(items),
		"total":        total.String(),
		"status":       string(domain.StatusDraft),
		"dueDate":      in.DueDate.UTC(),
		"createdAt":    docstore.ServerTimestamp,
	}

	id, err := s.store.Add(ctx, domain.Collection, data)
	if err != nil {
		return nil, docstore.StoreError("create invoice", err)
	}
	s.log.Info("invoice created",
		zap.String("id", id),
		zap.String("project_id", in.ProjectID),
		zap.String("total", total.String()))

	inv, err := s.FetchOne(ctx, id)
	if err != nil {
		s.log.Warn("re-read of created invoice failed", zap.String("id", id), zap.Error(err))
		return &domain.Invoice{
			ID:           id,
			ProjectID:    in.ProjectID,
			CollectiveID: in.CollectiveID,
			LineItems:    items,
			Total:        total,
			Status:       domain.StatusDraft,
			DueDate:      in.DueDate.UTC(),
		}, nil
	}
	return inv, nil
}

// FetchForCollective returns the collective's invoices, newest first.
func (s *InvoiceService) FetchForCollective(ctx context.Context, collectiveID string) ([]domain.Invoice, error) {
	if strings.TrimSpace(collectiveID) == "" {
		return nil, docstore.Invalid("collective id is required")
	}

	docs, err := s.store.Query(ctx, domain.Collection, docstore.NewQuery().
		Where("collectiveId", docstore.OpEqual, collectiveID).
		Order("createdAt", docstore.Desc))
	if err != nil {
		return nil, docstore.StoreError("fetch invoices", err)
	}
	return docstore.DecodeAll(docs, decodeInvoice, docstore.DropReporter(s.log, s.metrics.DocumentDropped)), nil
}

func (s *InvoiceService) FetchOne(ctx context.Context, id string) (*domain.Invoice, error) {
	if strings.TrimSpace(id) == "" {
		return nil, docstore.Invalid("invoice id is required")
	}

	doc, err := s.store.Get(ctx, domain.Collection, id)
	if err != nil {
		return nil, s.wrap("fetch invoice", id, err)
	}
	inv, err := decodeInvoice(doc)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// Update applies a field-level patch. A status change stamps sentAt or
// paidAt the same way UpdateStatus does.
func (s *InvoiceService) Update(ctx context.Context, id string, p domain.Patch) error {
	if strings.TrimSpace(id) == "" {
		return docstore.Invalid("invoice id is required")
	}
	if p.Empty() {
		return nil
	}

	fields := map[string]any{}
	if p.LineItems.Changed() {
		items, _ := p.LineItems.Value()
		if len(items) == 0 {
			return domain.ErrNoLineItems
		}
		fields["lineItems"] = encodeLineItems(items)
		fields["total"] = domain.Total(items).String()
	}
	if p.DueDate.Cleared() {
		return docstore.Invalid("invoice due date cannot be cleared")
	}
	p.DueDate.PutWith(fields, "dueDate", func(t time.Time) any { return t.UTC() })
	if p.Status.Changed() {
		status, _ := p.Status.Value()
		if !status.Valid() {
			return docstore.Invalid("unknown invoice status %q", status)
		}
		fields["status"] = string(status)
		stamp(fields, status)
	}

	if err := s.store.Update(ctx, domain.Collection, id, fields); err != nil {
		return s.wrap("update invoice", id, err)
	}
	return nil
}

// UpdateStatus sets any status; no transition order is enforced.
func (s *InvoiceService) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	if err := s.Update(ctx, id, domain.Patch{Status: docstore.Set(status)}); err != nil {
		return err
	}
	s.log.Info("invoice status changed", zap.String("id", id), zap.String("status", string(status)))
	return nil
}

// MarkOverdue moves a sent invoice to overdue. It returns an error wrapping
// docstore.ErrConflict, and writes nothing, when the invoice is no longer
// sent.
func (s *InvoiceService) MarkOverdue(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return docstore.Invalid("invoice id is required")
	}
	err := s.store.UpdateIf(ctx, domain.Collection, id, "status", string(domain.StatusSent),
		map[string]any{"status": string(domain.StatusOverdue)})
	if err != nil {
		return s.wrap("mark invoice overdue", id, err)
	}
	return nil
}

// FetchOverdueCandidates returns sent invoices whose due date is before now,
// across all collectives.
func (s *InvoiceService) FetchOverdueCandidates(ctx context.Context, now time.Time) ([]domain.Invoice, error) {
	docs, err := s.store.Query(ctx, domain.Collection, docstore.NewQuery().
		Where("status", docstore.OpEqual, string(domain.StatusSent)).
		Order("dueDate", docstore.Asc))
	if err != nil {
		return nil, docstore.StoreError("fetch overdue invoices", err)
	}

	sent := docstore.DecodeAll(docs, decodeInvoice, docstore.DropReporter(s.log, s.metrics.DocumentDropped))
	out := sent[:0]
	for _, inv := range sent {
		if inv.Overdue(now) {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (s *InvoiceService) wrap(op, id string, err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrInvoiceNotFound, id)
	}
	return docstore.StoreError(op, err)
}

func stamp(fields map[string]any, status domain.Status) {
	switch status {
	case domain.StatusSent:
		fields["sentAt"] = docstore.ServerTimestamp
	case domain.StatusPaid:
		fields["paidAt"] = docstore.ServerTimestamp
	}
}

func withItemIDs(items []domain.LineItem) []domain.LineItem {
	out := make([]domain.LineItem, len(items))
	for i, it := range items {
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		out[i] = it
	}
	return out
}

func encodeLineItems(items []domain.LineItem) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		id := it.ID
		if id == "" {
			id = uuid.NewString()
		}
		out = append(out, map[string]any{
			"id":           id,
			"description":  it.Description,
			"amount":       it.Amount.String(),
			"freelancerId": it.FreelancerID,
		})
	}
	return out
}

func decodeInvoice(doc *docstore.Document) (domain.Invoice, error) {
	var inv domain.Invoice
	if err := docstore.Decode(doc, &inv); err != nil {
		return domain.Invoice{}, err
	}
	inv.ID = doc.ID
	return inv, nil
}
