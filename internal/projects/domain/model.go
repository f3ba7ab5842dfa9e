package domain

import (
	"fmt"
	"time"

	"github.com/tandm-app/tandm/internal/docstore"
)

// Collection is the document store path for projects.
const Collection = "projects"

type Status string

const (
	StatusPlanning  Status = "planning"
	StatusActive    Status = "active"
	StatusOnHold    Status = "on_hold"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

var Statuses = []Status{StatusPlanning, StatusActive, StatusOnHold, StatusCompleted, StatusArchived}

func (s Status) Valid() bool {
	switch s {
	case StatusPlanning, StatusActive, StatusOnHold, StatusCompleted, StatusArchived:
		return true
	}
	return false
}

// ParseStatus checks raw against the known statuses.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown project status %q", docstore.ErrValidation, raw)
	}
	return s, nil
}

// Project belongs to exactly one collective for its whole life.
type Project struct {
	ID           string     `doc:"-"`
	Title        string     `doc:"title" validate:"required"`
	Description  string     `doc:"description"`
	CollectiveID string     `doc:"collectiveId" validate:"required"`
	Status       Status     `doc:"status" validate:"required,oneof=planning active on_hold completed archived"`
	StartDate    time.Time  `doc:"startDate"`
	EndDate      *time.Time `doc:"endDate"`
	CreatedAt    *time.Time `doc:"createdAt"`
}

// Input creates a project. An empty Status means planning.
type Input struct {
	Title        string `validate:"required"`
	Description  string
	CollectiveID string `validate:"required"`
	Status       Status
	StartDate    time.Time
	EndDate      *time.Time
}

// Patch changes project details. The owning collective never changes.
type Patch struct {
	Title       docstore.Patch[string]
	Description docstore.Patch[string]
	Status      docstore.Patch[Status]
	StartDate   docstore.Patch[time.Time]
	EndDate     docstore.Patch[time.Time]
}

func (p Patch) Empty() bool {
	return !p.Title.Changed() && !p.Description.Changed() && !p.Status.Changed() &&
		!p.StartDate.Changed() && !p.EndDate.Changed()
}

// ApplyTo copies the patch onto a local project.
func (p Patch) ApplyTo(project *Project) {
	p.Title.Apply(&project.Title)
	p.Description.Apply(&project.Description)
	p.Status.Apply(&project.Status)
	p.StartDate.Apply(&project.StartDate)
	p.EndDate.ApplyPtr(&project.EndDate)
}
