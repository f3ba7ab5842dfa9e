package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tandm-app/tandm/internal/docstore"
	"github.com/tandm-app/tandm/internal/logging"
	"github.com/tandm-app/tandm/internal/metrics"
	"github.com/tandm-app/tandm/internal/projects/domain"
)

// ProjectService reads and writes project documents.
type ProjectService struct {
	store   docstore.Store
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewProjectService creates a new ProjectService
func NewProjectService(store docstore.Store, log *zap.Logger, m *metrics.Metrics) *ProjectService {
	return &ProjectService{
		store:   store,
		log:     logging.OrNop(log).Named("projects"),
		metrics: m,
		now:     time.Now,
	}
}

// Create stores a new project. A zero start date means today.
func (s *ProjectService) Create(ctx context.Context, in domain.Input) (string, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.CollectiveID = strings.TrimSpace(in.CollectiveID)
	if err := docstore.ValidateInput(in); err != nil {
		return "", err
	}
	if in.Status == "" {
		in.Status = domain.StatusPlanning
	}
	if !in.Status.Valid() {
		return "", docstore.Invalid("unknown project status %q", in.Status)
	}
	if in.StartDate.IsZero() {
		in.StartDate = s.now().UTC()
	}
	if in.EndDate != nil && in.EndDate.Before(in.StartDate) {
		return "", domain.ErrInvalidDates
	}

	data := map[string]any{
		"title":        in.Title,
		"description":  in.Description,
		"collectiveId": in.CollectiveID,
		"status":       string(in.Status),
		"startDate":    in.StartDate.UTC(),
		"createdAt":    docstore.ServerTimestamp,
	}
	if in.EndDate != nil {
		data["endDate"] = in.EndDate.UTC()
	}

	id, err := s.store.Add(ctx, domain.Collection, data)
	if err != nil {
		return "", docstore.StoreError("create project", err)
	}
	s.log.Info("project created", zap.String("id", id), zap.String("collective_id", in.CollectiveID))
	return id, nil
}

// FetchForCollective returns the collective's projects, newest first.
func (s *ProjectService) FetchForCollective(ctx context.Context, collectiveID string) ([]domain.Project, error) {
	if strings.TrimSpace(collectiveID) == "" {
		return nil, docstore.Invalid("collective id is required")
	}

	docs, err := s.store.Query(ctx, domain.Collection, docstore.NewQuery().
		Where("collectiveId", docstore.OpEqual, collectiveID).
		Order("createdAt", docstore.Desc))
	if err != nil {
		return nil, docstore.StoreError("fetch projects", err)
	}
	return docstore.DecodeAll(docs, decodeProject, docstore.DropReporter(s.log, s.metrics.DocumentDropped)), nil
}

func (s *ProjectService) FetchOne(ctx context.Context, id string) (*domain.Project, error) {
	if strings.TrimSpace(id) == "" {
		return nil, docstore.Invalid("project id is required")
	}

	doc, err := s.store.Get(ctx, domain.Collection, id)
	if err != nil {
		return nil, s.wrap("fetch project", id, err)
	}
	p, err := decodeProject(doc)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Update applies a field-level patch. Date consistency is only checked when
// both dates are part of the patch.
func (s *ProjectService) Update(ctx context.Context, id string, p domain.Patch) error {
	if strings.TrimSpace(id) == "" {
		return docstore.Invalid("project id is required")
	}
	if p.Empty() {
		return nil
	}
	if title, ok := p.Title.Value(); p.Title.Cleared() || (ok && strings.TrimSpace(title) == "") {
		return docstore.Invalid("project title cannot be empty")
	}
	if status, ok := p.Status.Value(); p.Status.Cleared() || (ok && !status.Valid()) {
		return docstore.Invalid("unknown project status %q", status)
	}
	if p.StartDate.Cleared() {
		return docstore.Invalid("project start date cannot be cleared")
	}
	start, okStart := p.StartDate.Value()
	end, okEnd := p.EndDate.Value()
	if okStart && okEnd && end.Before(start) {
		return domain.ErrInvalidDates
	}

	fields := map[string]any{}
	p.Title.PutWith(fields, "title", func(v string) any { return strings.TrimSpace(v) })
	p.Description.Put(fields, "description")
	p.Status.PutWith(fields, "status", func(v domain.Status) any { return string(v) })
	p.StartDate.PutWith(fields, "startDate", utc)
	p.EndDate.PutWith(fields, "endDate", utc)

	if err := s.store.Update(ctx, domain.Collection, id, fields); err != nil {
		return s.wrap("update project", id, err)
	}
	return nil
}

func (s *ProjectService) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	return s.Update(ctx, id, domain.Patch{Status: docstore.Set(status)})
}

func (s *ProjectService) wrap(op, id string, err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrProjectNotFound, id)
	}
	return docstore.StoreError(op, err)
}

func decodeProject(doc *docstore.Document) (domain.Project, error) {
	var p domain.Project
	if err := docstore.Decode(doc, &p); err != nil {
		return domain.Project{}, err
	}
	p.ID = doc.ID
	return p, nil
}

func utc(t time.Time) any { return t.UTC() }
