package domain

import (
	"slices"
	"time"

	"github.com/tandm-app/tandm/internal/docstore"
)

// Collection is the document store path for user profiles. Documents are
// keyed by uid.
const Collection = "users"

const (
	DefaultName  = "New User"
	DefaultEmail = "no-email@example.com"
	DefaultBio   = "Please update your bio."
)

// Profile is a user's public profile. UID may be empty on documents written
// by older clients; such profiles cannot be invited.
type Profile struct {
	ID           string     `doc:"-"`
	UID          string     `doc:"uid"`
	Name         string     `doc:"name"`
	Email        string     `doc:"email" validate:"required"`
	Bio          *string    `doc:"bio"`
	Skills       []string   `doc:"skills"`
	PortfolioURL *string    `doc:"portfolioUrl"`
	ProfileImage *string    `doc:"profileImage"`
	CreatedAt    *time.Time `doc:"createdAt"`
}

// Clone returns a deep copy of p.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.Skills = slices.Clone(p.Skills)
	c.Bio = clonePtr(p.Bio)
	c.PortfolioURL = clonePtr(p.PortfolioURL)
	c.ProfileImage = clonePtr(p.ProfileImage)
	c.CreatedAt = clonePtr(p.CreatedAt)
	return &c
}

// DefaultShell is the placeholder profile shown to a signed-in user who has
// not saved one yet.
func DefaultShell(uid, email string, now time.Time) *Profile {
	if email == "" {
		email = DefaultEmail
	}
	bio := DefaultBio
	return &Profile{
		ID:        uid,
		UID:       uid,
		Name:      DefaultName,
		Email:     email,
		Bio:       &bio,
		CreatedAt: &now,
	}
}

// Patch changes individual profile fields. Email is the lookup key for
// invitations and is only written through Upsert.
type Patch struct {
	Name         docstore.Patch[string]
	Bio          docstore.Patch[string]
	Skills       docstore.Patch[[]string]
	PortfolioURL docstore.Patch[string]
	ProfileImage docstore.Patch[string]
}

func (p Patch) Empty() bool {
	return !p.Name.Changed() && !p.Bio.Changed() && !p.Skills.Changed() &&
		!p.PortfolioURL.Changed() && !p.ProfileImage.Changed()
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
