package container

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tandm-app/tandm/internal/docstore"
	"github.com/tandm-app/tandm/internal/invoices/domain"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) Create(ctx context.Context, in domain.CreateInput) (*domain.Invoice, error) {
	args := m.Called(ctx, in)
	inv, _ := args.Get(0).(*domain.Invoice)
	return inv, args.Error(1)
}

func (m *mockService) FetchForCollective(ctx context.Context, collectiveID string) ([]domain.Invoice, error) {
	args := m.Called(ctx, collectiveID)
	out, _ := args.Get(0).([]domain.Invoice)
	return out, args.Error(1)
}

func (m *mockService) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	return m.Called(ctx, id, status).Error(0)
}

var due = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

func lineItems() []domain.LineItem {
	return []domain.LineItem{domain.NewLineItem("design", decimal.NewFromInt(500), "u1")}
}

func TestCreate_UsesCollectiveScopeAndRefreshes(t *testing.T) {
	svc := &mockService{}
	items := lineItems()
	svc.On("Create", mock.Anything, domain.CreateInput{ProjectID: "p1", CollectiveID: "c1", LineItems: items, DueDate: due}).
		Return(&domain.Invoice{ID: "i1"}, nil)
	svc.On("FetchForCollective", mock.Anything, "c1").Return([]domain.Invoice{{ID: "i1", Status: domain.StatusDraft}}, nil)

	l := NewList(svc, "c1", nil)
	require.NoError(t, l.Create(context.Background(), "p1", items, due))

	snap := l.Snapshot()
	require.Len(t, snap.Value, 1)
	assert.False(t, snap.IsLoading)
	assert.Empty(t, snap.LastError)
	svc.AssertExpectations(t)
}

func TestCreate_ClientGuards(t *testing.T) {
	svc := &mockService{}
	l := NewList(svc, "c1", nil)

	err := l.Create(context.Background(), " ", lineItems(), due)
	assert.ErrorIs(t, err, docstore.ErrValidation)
	assert.Equal(t, "Project ID is required to create an invoice.", l.Snapshot().LastError)

	err = l.Create(context.Background(), "p1", nil, due)
	assert.ErrorIs(t, err, domain.ErrNoLineItems)
	assert.Equal(t, "Cannot create an empty invoice.", l.Snapshot().LastError)

	assert.False(t, l.Snapshot().IsLoading)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreate_Failure(t *testing.T) {
	svc := &mockService{}
	svc.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("denied"))

	l := NewList(svc, "c1", nil)
	require.Error(t, l.Create(context.Background(), "p1", lineItems(), due))

	snap := l.Snapshot()
	assert.False(t, snap.IsLoading)
	assert.Equal(t, "Failed to create invoice: denied", snap.LastError)
	svc.AssertNotCalled(t, "FetchForCollective", mock.Anything, mock.Anything)
}

func TestRefresh_FailureClearsItems(t *testing.T) {
	svc := &mockService{}
	svc.On("FetchForCollective", mock.Anything, "c1").Return([]domain.Invoice{{ID: "i1"}}, nil).Once()
	svc.On("FetchForCollective", mock.Anything, "c1").Return(nil, errors.New("offline")).Once()

	l := NewList(svc, "c1", nil)
	require.NoError(t, l.Refresh(context.Background()))
	require.Error(t, l.Refresh(context.Background()))

	snap := l.Snapshot()
	assert.Empty(t, snap.Value)
	assert.False(t, snap.IsLoading)
	assert.Equal(t, "Failed to load invoices: offline", snap.LastError)
}

func TestUpdateStatus(t *testing.T) {
	svc := &mockService{}
	svc.On("FetchForCollective", mock.Anything, "c1").Return([]domain.Invoice{
		{ID: "i1", Status: domain.StatusDraft},
		{ID: "i2", Status: domain.StatusSent},
	}, nil)
	svc.On("UpdateStatus", mock.Anything, "i1", domain.StatusSent).Return(nil)
	svc.On("UpdateStatus", mock.Anything, "i2", domain.StatusPaid).Return(errors.New("denied"))
	svc.On("UpdateStatus", mock.Anything, "gone", domain.StatusVoid).Return(nil)

	l := NewList(svc, "c1", nil)
	require.NoError(t, l.Refresh(context.Background()))

	require.NoError(t, l.UpdateStatus(context.Background(), "i1", domain.StatusSent))
	require.NoError(t, l.UpdateStatus(context.Background(), "gone", domain.StatusVoid))
	require.Error(t, l.UpdateStatus(context.Background(), "i2", domain.StatusPaid))

	snap := l.Snapshot()
	assert.Equal(t, domain.StatusSent, snap.Value[0].Status)
	assert.Equal(t, domain.StatusSent, snap.Value[1].Status)
	assert.Len(t, snap.Value, 2)
	assert.Equal(t, "Failed to update invoice status: denied", snap.LastError)
}
