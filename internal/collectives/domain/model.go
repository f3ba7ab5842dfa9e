package domain

import (
	"slices"
	"time"

	"github.com/tandm-app/tandm/internal/docstore"
)

// Collection is the document store path for collectives.
const Collection = "collectives"

// Collective is a team that owns projects and invoices. Members always
// contains CreatedBy.
type Collective struct {
	ID               string     `doc:"-"`
	Name             string     `doc:"name" validate:"required"`
	ClientFacingName *string    `doc:"clientFacingName"`
	Members          []string   `doc:"members"`
	CreatedBy        string     `doc:"createdBy" validate:"required"`
	PublicPageSlug   *string    `doc:"publicPageSlug"`
	CreatedAt        *time.Time `doc:"createdAt"`
}

func (c Collective) HasMember(uid string) bool {
	return slices.Contains(c.Members, uid)
}

type CreateInput struct {
	Name             string `validate:"required"`
	ClientFacingName *string
	PublicPageSlug   *string
	CreatedBy        string `validate:"required"`
}

// Patch changes collective details. Membership is only ever changed through
// AddMember.
type Patch struct {
	Name             docstore.Patch[string]
	ClientFacingName docstore.Patch[string]
	PublicPageSlug   docstore.Patch[string]
}

func (p Patch) Empty() bool {
	return !p.Name.Changed() && !p.ClientFacingName.Changed() && !p.PublicPageSlug.Changed()
}
