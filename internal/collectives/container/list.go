// Package container holds the observable collective list for the signed-in
// user.
package container

import (
	"context"

	"go.uber.org/zap"

	"github.com/tandm-app/tandm/internal/auth"
	"github.com/tandm-app/tandm/internal/collectives/domain"
	"github.com/tandm-app/tandm/internal/invitations"
	"github.com/tandm-app/tandm/internal/logging"
	"github.com/tandm-app/tandm/internal/state"
)

type CollectiveService interface {
	Create(ctx context.Context, in domain.CreateInput) (string, error)
	FetchForMember(ctx context.Context, uid string) ([]domain.Collective, error)
}

type Inviter interface {
	Invite(ctx context.Context, email, collectiveID string) error
}

type IdentitySource interface {
	Current() *auth.Identity
}

type Snapshot = state.Snapshot[[]domain.Collective]

// List projects the collectives the current user belongs to.
type List struct {
	svc      CollectiveService
	inviter  Inviter
	identity IdentitySource
	log      *zap.Logger
	store    *state.Store[[]domain.Collective]
}

func NewList(svc CollectiveService, inviter Inviter, identity IdentitySource, log *zap.Logger) *List {
	return &List{
		svc:      svc,
		inviter:  inviter,
		identity: identity,
		log:      logging.OrNop(log).Named("collective_list"),
		store:    state.NewList[domain.Collective](),
	}
}

func (l *List) Snapshot() Snapshot { return l.store.Snapshot() }

func (l *List) Subscribe() (<-chan Snapshot, func()) { return l.store.Subscribe() }

// Refresh replaces the list with uid's collectives. Items are kept when the
// fetch fails.
func (l *List) Refresh(ctx context.Context, uid string) error {
	l.store.StartLoading()

	items, err := l.svc.FetchForMember(ctx, uid)
	if err != nil {
		l.log.Warn("refresh failed", zap.String("uid", uid), zap.Error(err))
		l.store.Fail("Failed to load collectives: " + err.Error())
		return err
	}

	l.store.Mutate(func(s *Snapshot) {
		s.Value = items
		s.IsLoading = false
	})
	return nil
}

// Create stores a collective owned by the current user, then refreshes. A
// failed refresh is reported through LastError only.
func (l *List) Create(ctx context.Context, name string, clientFacingName, publicPageSlug *string) error {
	id := l.identity.Current()
	if id == nil {
		l.store.Mutate(func(s *Snapshot) { s.LastError = "Cannot create collective: User not logged in." })
		return domain.ErrNotSignedIn
	}

	l.store.StartLoading()
	_, err := l.svc.Create(ctx, domain.CreateInput{
		Name:             name,
		ClientFacingName: clientFacingName,
		PublicPageSlug:   publicPageSlug,
		CreatedBy:        id.UID,
	})
	if err != nil {
		l.store.Fail("Failed to create collective: " + err.Error())
		return err
	}

	_ = l.Refresh(ctx, id.UID)
	return nil
}

// InviteMember adds the user registered under email to collectiveID.
func (l *List) InviteMember(ctx context.Context, email, collectiveID string) error {
	l.store.StartLoading()

	if err := l.inviter.Invite(ctx, email, collectiveID); err != nil {
		l.store.Fail(invitations.Message(err))
		return err
	}

	l.store.Mutate(func(s *Snapshot) { s.IsLoading = false })
	return nil
}

// Clear empties the list without calling the service.
func (l *List) Clear() {
	l.store.Mutate(func(s *Snapshot) {
		s.Value = nil
		s.IsLoading = false
		s.LastError = ""
	})
}

// Watch follows identity changes until ctx ends or events closes: a present
// identity triggers a refresh, sign-out clears the list.
func (l *List) Watch(ctx context.Context, events <-chan auth.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Identity == nil {
				l.Clear()
				continue
			}
			_ = l.Refresh(ctx, ev.Identity.UID)
		}
	}
}
