package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tandm-app/tandm/internal/docstore"
)

// Collection is the document store path for invoices.
const Collection = "invoices"

type Status string

const (
	StatusDraft   Status = "draft"
	StatusSent    Status = "sent"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
	StatusVoid    Status = "void"
)

var Statuses = []Status{StatusDraft, StatusSent, StatusPaid, StatusOverdue, StatusVoid}

func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

// LineItem is one billed entry. ID only identifies the item within its
// invoice.
type LineItem struct {
	ID           string          `doc:"id"`
	Description  string          `doc:"description"`
	Amount       decimal.Decimal `doc:"amount"`
	FreelancerID string          `doc:"freelancerId"`
}

func NewLineItem(description string, amount decimal.Decimal, freelancerID string) LineItem {
	return LineItem{
		ID:           uuid.NewString(),
		Description:  description,
		Amount:       amount,
		FreelancerID: freelancerID,
	}
}

// Total sums the item amounts. Negative amounts count as zero.
func Total(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(decimal.Max(decimal.Zero, it.Amount))
	}
	return total
}

type Invoice struct {
	ID           string          `doc:"-"`
	ProjectID    string          `doc:"projectId" validate:"required"`
	CollectiveID string          `doc:"collectiveId" validate:"required"`
	LineItems    []LineItem      `doc:"lineItems" validate:"min=1"`
	Total        decimal.Decimal `doc:"total"`
	Status       Status          `doc:"status" validate:"required,oneof=draft sent paid overdue void"`
	DueDate      time.Time       `doc:"dueDate" validate:"required"`
	CreatedAt    *time.Time      `doc:"createdAt"`
	SentAt       *time.Time      `doc:"sentAt"`
	PaidAt       *time.Time      `doc:"paidAt"`
}

// Overdue reports whether a sent invoice is past its due date at now.
func (inv Invoice) Overdue(now time.Time) bool {
	return inv.Status == StatusSent && inv.DueDate.Before(now)
}

type CreateInput struct {
	ProjectID    string `validate:"required"`
	CollectiveID string `validate:"required"`
	LineItems    []LineItem
	DueDate      time.Time `validate:"required"`
}

// Patch changes invoice details. Replacing the line items recomputes the
// total.
type Patch struct {
	LineItems docstore.Patch[[]LineItem]
	DueDate   docstore.Patch[time.Time]
	Status    docstore.Patch[Status]
}

func (p Patch) Empty() bool {
	return !p.LineItems.Changed() && !p.DueDate.Changed() && !p.Status.Changed()
}
