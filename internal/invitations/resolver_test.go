package invitations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	collectivedomain "github.com/tandm-app/tandm/internal/collectives/domain"
	collectiveservice "github.com/tandm-app/tandm/internal/collectives/service"
	"github.com/tandm-app/tandm/internal/docstore"
	"github.com/tandm-app/tandm/internal/docstore/redisstore"
	"github.com/tandm-app/tandm/internal/metrics"
	userdomain "github.com/tandm-app/tandm/internal/users/domain"
	userservice "github.com/tandm-app/tandm/internal/users/service"
)

type mockProfiles struct {
	mock.Mock
}

func (m *mockProfiles) FetchByEmail(ctx context.Context, email string) (*userdomain.Profile, error) {
	args := m.Called(ctx, email)
	p, _ := args.Get(0).(*userdomain.Profile)
	return p, args.Error(1)
}

type mockMembers struct {
	mock.Mock
}

func (m *mockMembers) AddMember(ctx context.Context, collectiveID, uid string) error {
	return m.Called(ctx, collectiveID, uid).Error(0)
}

func TestInvite_Success(t *testing.T) {
	profiles := &mockProfiles{}
	members := &mockMembers{}
	profiles.On("FetchByEmail", mock.Anything, "grace@example.com").
		Return(&userdomain.Profile{ID: "u42", UID: "u42", Email: "grace@example.com"}, nil)
	members.On("AddMember", mock.Anything, "c1", "u42").Return(nil)

	r := NewResolver(profiles, members, nil, nil)
	require.NoError(t, r.Invite(context.Background(), " grace@example.com ", "c1"))

	profiles.AssertExpectations(t)
	members.AssertExpectations(t)
}

func TestInvite_NotFoundNeverTouchesMembership(t *testing.T) {
	profiles := &mockProfiles{}
	members := &mockMembers{}
	profiles.On("FetchByEmail", mock.Anything, "nobody@example.com").
		Return(nil, fmt.Errorf("%w: no profile", userdomain.ErrProfileNotFound))

	r := NewResolver(profiles, members, nil, nil)
	err := r.Invite(context.Background(), "nobody@example.com", "c1")

	assert.ErrorIs(t, err, ErrInviteeNotFound)
	assert.NotErrorIs(t, err, ErrInviteeLookupFailed)
	members.AssertNotCalled(t, "AddMember", mock.Anything, mock.Anything, mock.Anything)
}

func TestInvite_MissingIdentityNeverTouchesMembership(t *testing.T) {
	for _, uid := range []string{"", "   "} {
		profiles := &mockProfiles{}
		members := &mockMembers{}
		profiles.On("FetchByEmail", mock.Anything, "legacy@example.com").
			Return(&userdomain.Profile{ID: "doc-1", UID: uid, Email: "legacy@example.com"}, nil)

		r := NewResolver(profiles, members, nil, nil)
		err := r.Invite(context.Background(), "legacy@example.com", "c1")

		assert.ErrorIs(t, err, ErrInviteeMissingIdentity)
		assert.NotErrorIs(t, err, ErrInviteeNotFound)
		members.AssertNotCalled(t, "AddMember", mock.Anything, mock.Anything, mock.Anything)
	}
}

func TestInvite_LookupFailureWrapsCause(t *testing.T) {
	cause := fmt.Errorf("%w: query: unavailable", docstore.ErrStore)
	for name, lookupErr := range map[string]error{
		"store":    cause,
		"decoding": fmt.Errorf("%w: users/x: bad skills", docstore.ErrDecoding),
	} {
		t.Run(name, func(t *testing.T) {
			profiles := &mockProfiles{}
			members := &mockMembers{}
			profiles.On("FetchByEmail", mock.Anything, "a@example.com").Return(nil, lookupErr)

			r := NewResolver(profiles, members, nil, nil)
			err := r.Invite(context.Background(), "a@example.com", "c1")

			assert.ErrorIs(t, err, ErrInviteeLookupFailed)
			assert.ErrorIs(t, err, lookupErr)
			assert.NotErrorIs(t, err, ErrInviteeNotFound)
			members.AssertNotCalled(t, "AddMember", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestInvite_MembershipFailureIsDistinct(t *testing.T) {
	profiles := &mockProfiles{}
	members := &mockMembers{}
	cause := errors.New("deadline exceeded")
	profiles.On("FetchByEmail", mock.Anything, "a@example.com").
		Return(&userdomain.Profile{UID: "u1", Email: "a@example.com"}, nil)
	members.On("AddMember", mock.Anything, "c1", "u1").Return(cause).Once()
	members.On("AddMember", mock.Anything, "c1", "u1").Return(nil).Once()

	r := NewResolver(profiles, members, nil, nil)
	err := r.Invite(context.Background(), "a@example.com", "c1")
	assert.ErrorIs(t, err, ErrMembershipUpdateFailed)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrInviteeLookupFailed)

	// Retrying from the top repeats the lookup and succeeds.
	require.NoError(t, r.Invite(context.Background(), "a@example.com", "c1"))
	profiles.AssertNumberOfCalls(t, "FetchByEmail", 2)
	members.AssertNumberOfCalls(t, "AddMember", 2)
}

func TestInvite_InvalidInput(t *testing.T) {
	profiles := &mockProfiles{}
	members := &mockMembers{}
	r := NewResolver(profiles, members, nil, nil)

	assert.ErrorIs(t, r.Invite(context.Background(), "", "c1"), docstore.ErrValidation)
	assert.ErrorIs(t, r.Invite(context.Background(), "a@example.com", " "), docstore.ErrValidation)
	profiles.AssertNotCalled(t, "FetchByEmail", mock.Anything, mock.Anything)
}

func TestInvite_AgainstStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := redisstore.New(client)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	users := userservice.NewProfileService(store, nil, nil, m)
	collectives := collectiveservice.NewCollectiveService(store, nil, m)
	r := NewResolver(users, collectives, nil, m)
	ctx := context.Background()

	require.NoError(t, users.Upsert(ctx, userdomain.Profile{UID: "u42", Name: "Grace", Email: "grace@example.com"}))
	require.NoError(t, store.Set(ctx, userdomain.Collection, "legacy", map[string]any{"name": "Old", "email": "old@example.com"}, false))
	cid, err := collectives.Create(ctx, collectivedomain.CreateInput{Name: "Studio", CreatedBy: "owner"})
	require.NoError(t, err)

	// A: resolves and joins.
	require.NoError(t, r.Invite(ctx, "grace@example.com", cid))
	c, err := collectives.FetchOne(ctx, cid)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"owner", "u42"}, c.Members)

	// Inviting again leaves membership unchanged.
	require.NoError(t, r.Invite(ctx, "grace@example.com", cid))
	c, err = collectives.FetchOne(ctx, cid)
	require.NoError(t, err)
	assert.Len(t, c.Members, 2)

	// B: no such email.
	assert.ErrorIs(t, r.Invite(ctx, "nobody@example.com", cid), ErrInviteeNotFound)

	// C: profile without uid.
	assert.ErrorIs(t, r.Invite(ctx, "old@example.com", cid), ErrInviteeMissingIdentity)

	// Unknown collective surfaces as a membership failure.
	err = r.Invite(ctx, "grace@example.com", "missing")
	assert.ErrorIs(t, err, ErrMembershipUpdateFailed)
	assert.ErrorIs(t, err, collectivedomain.ErrCollectiveNotFound)

	c, err = collectives.FetchOne(ctx, cid)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"owner", "u42"}, c.Members)

	expected := `
# HELP tandm_invitations_outcomes_total Member invitation results by outcome.
# TYPE tandm_invitations_outcomes_total counter
tandm_invitations_outcomes_total{outcome="invitee_missing_identity"} 1
tandm_invitations_outcomes_total{outcome="invitee_not_found"} 1
tandm_invitations_outcomes_total{outcome="membership_update_failed"} 1
tandm_invitations_outcomes_total{outcome="success"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "tandm_invitations_outcomes_total"))
}

func TestMessage(t *testing.T) {
	assert.Empty(t, Message(nil))
	assert.Contains(t, Message(ErrInviteeNotFound), "No user found")
	assert.Contains(t, Message(fmt.Errorf("%w: profile x", ErrInviteeMissingIdentity)), "incomplete")
	assert.Contains(t, Message(fmt.Errorf("%w: %w", ErrInviteeLookupFailed, errors.New("x"))), "try again")
	assert.Contains(t, Message(fmt.Errorf("%w: %w", ErrMembershipUpdateFailed, errors.New("x"))), "couldn't add them")
	assert.Equal(t, "Failed to invite member: boom", Message(errors.New("boom")))

	distinct := map[string]bool{}
	for _, err := range []error{ErrInviteeNotFound, ErrInviteeMissingIdentity, ErrInviteeLookupFailed, ErrMembershipUpdateFailed} {
		distinct[Message(err)] = true
	}
	assert.Len(t, distinct, 4)
}
