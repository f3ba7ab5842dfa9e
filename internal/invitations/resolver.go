// Package invitations adds a user to a collective by email: the email is
// resolved to a profile, the profile's uid is checked, and the uid is unioned
// into the collective's members. The steps are not atomic; retrying from the
// top is safe because the union is idempotent.
package invitations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tandm-app/tandm/internal/docstore"
	"github.com/tandm-app/tandm/internal/logging"
	"github.com/tandm-app/tandm/internal/metrics"
	userdomain "github.com/tandm-app/tandm/internal/users/domain"
)

var (
	ErrInviteeNotFound        = errors.New("no user with that email")
	ErrInviteeMissingIdentity = errors.New("user profile has no uid")
	ErrInviteeLookupFailed    = errors.New("invitee lookup failed")
	ErrMembershipUpdateFailed = errors.New("membership update failed")
)

// Outcome labels recorded for each invitation.
const (
	OutcomeSuccess          = "success"
	OutcomeNotFound         = "invitee_not_found"
	OutcomeMissingIdentity  = "invitee_missing_identity"
	OutcomeLookupFailed     = "invitee_lookup_failed"
	OutcomeMembershipFailed = "membership_update_failed"
	OutcomeInvalid          = "invalid_input"
)

type ProfileLookup interface {
	FetchByEmail(ctx context.Context, email string) (*userdomain.Profile, error)
}

type MembershipWriter interface {
	AddMember(ctx context.Context, collectiveID, uid string) error
}

// Resolver runs the invitation protocol. It holds no state of its own.
type Resolver struct {
	profiles ProfileLookup
	members  MembershipWriter
	log      *zap.Logger
	metrics  *metrics.Metrics
}

func NewResolver(profiles ProfileLookup, members MembershipWriter, log *zap.Logger, m *metrics.Metrics) *Resolver {
	return &Resolver{
		profiles: profiles,
		members:  members,
		log:      logging.OrNop(log).Named("invitations"),
		metrics:  m,
	}
}

// Invite adds the user registered under email to collectiveID. Lookup and
// membership failures wrap their cause so callers can tell them apart with
// errors.Is.
func (r *Resolver) Invite(ctx context.Context, email, collectiveID string) error {
	email = strings.TrimSpace(email)
	collectiveID = strings.TrimSpace(collectiveID)
	if email == "" || collectiveID == "" {
		return r.done(OutcomeInvalid, email, collectiveID, docstore.Invalid("email and collective id are required"))
	}

	profile, err := r.profiles.FetchByEmail(ctx, email)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return r.done(OutcomeNotFound, email, collectiveID, ErrInviteeNotFound)
	case err != nil:
		return r.done(OutcomeLookupFailed, email, collectiveID, fmt.Errorf("%w: %w", ErrInviteeLookupFailed, err))
	}

	uid := strings.TrimSpace(profile.UID)
	if uid == "" {
		return r.done(OutcomeMissingIdentity, email, collectiveID,
			fmt.Errorf("%w: profile %s", ErrInviteeMissingIdentity, profile.ID))
	}

	if err := r.members.AddMember(ctx, collectiveID, uid); err != nil {
		return r.done(OutcomeMembershipFailed, email, collectiveID, fmt.Errorf("%w: %w", ErrMembershipUpdateFailed, err))
	}

	r.log.Info("member invited",
		zap.String("collective_id", collectiveID),
		zap.String("uid", uid))
	return r.done(OutcomeSuccess, email, collectiveID, nil)
}

func (r *Resolver) done(outcome, email, collectiveID string, err error) error {
	r.metrics.InvitationOutcome(outcome)
	if err != nil {
		r.log.Warn("invitation failed",
			zap.String("outcome", outcome),
			zap.String("email", email),
			zap.String("collective_id", collectiveID),
			zap.Error(err))
	}
	return err
}

// Message turns an Invite error into text a user can act on.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInviteeNotFound):
		return "No user found with that email address."
	case errors.Is(err, ErrInviteeMissingIdentity):
		return "That user's profile is incomplete and can't be invited until it is repaired."
	case errors.Is(err, ErrInviteeLookupFailed):
		return "Couldn't look up that user. Please try again."
	case errors.Is(err, ErrMembershipUpdateFailed):
		return "Found the user but couldn't add them to the collective. Please try again."
	case errors.Is(err, docstore.ErrValidation):
		return "Enter an email address and choose a collective."
	}
	return "Failed to invite member: " + err.Error()
}
