package container

import (
	"context"

	"go.uber.org/zap"

	"github.com/tandm-app/tandm/internal/logging"
	"github.com/tandm-app/tandm/internal/state"
	"github.com/tandm-app/tandm/internal/users/domain"
)

type ProfileBatch interface {
	FetchMany(ctx context.Context, uids []string) ([]domain.Profile, error)
}

type MembersSnapshot = state.Snapshot[[]domain.Profile]

// MemberList projects the profiles of a collective's members.
type MemberList struct {
	svc   ProfileBatch
	log   *zap.Logger
	store *state.Store[[]domain.Profile]
}

func NewMemberList(svc ProfileBatch, log *zap.Logger) *MemberList {
	return &MemberList{
		svc:   svc,
		log:   logging.OrNop(log).Named("member_list"),
		store: state.NewList[domain.Profile](),
	}
}

func (m *MemberList) Snapshot() MembersSnapshot { return m.store.Snapshot() }

func (m *MemberList) Subscribe() (<-chan MembersSnapshot, func()) { return m.store.Subscribe() }

// Refresh replaces the list with the profiles of uids. Members without a
// readable profile are left out; items are kept when the lookup fails.
func (m *MemberList) Refresh(ctx context.Context, uids []string) error {
	m.store.StartLoading()

	profiles, err := m.svc.FetchMany(ctx, uids)
	if err != nil {
		m.log.Warn("fetch members failed", zap.Int("uids", len(uids)), zap.Error(err))
		m.store.Fail("Failed to load members: " + err.Error())
		return err
	}

	m.store.Mutate(func(s *MembersSnapshot) {
		s.Value = profiles
		s.IsLoading = false
	})
	return nil
}
