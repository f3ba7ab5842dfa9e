package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/tandm-app/tandm/internal/collectives/domain"
	"github.com/tandm-app/tandm/internal/docstore"
	"github.com/tandm-app/tandm/internal/logging"
	"github.com/tandm-app/tandm/internal/metrics"
)

// CollectiveService reads and writes collective documents.
type CollectiveService struct {
	store   docstore.Store
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewCollectiveService creates a new CollectiveService
func NewCollectiveService(store docstore.Store, log *zap.Logger, m *metrics.Metrics) *CollectiveService {
	return &CollectiveService{
		store:   store,
		log:     logging.OrNop(log).Named("collectives"),
		metrics: m,
	}
}

// Create stores a new collective whose only member is its creator.
func (s *CollectiveService) Create(ctx context.Context, in domain.CreateInput) (string, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.CreatedBy = strings.TrimSpace(in.CreatedBy)
	if err := docstore.ValidateInput(in); err != nil {
		return "", err
	}

	data := map[string]any{
		"name":      in.Name,
		"members":   []string{in.CreatedBy},
		"createdBy": in.CreatedBy,
		"createdAt": docstore.ServerTimestamp,
	}
	if in.ClientFacingName != nil {
		data["clientFacingName"] = *in.ClientFacingName
	}
	if in.PublicPageSlug != nil {
		normalized, err := normalizeSlug(*in.PublicPageSlug)
		if err != nil {
			return "", err
		}
		data["publicPageSlug"] = normalized
	}

	id, err := s.store.Add(ctx, domain.Collection, data)
	if err != nil {
		return "", docstore.StoreError("create collective", err)
	}
	s.log.Info("collective created", zap.String("id", id), zap.String("created_by", in.CreatedBy))
	return id, nil
}

// FetchForMember returns every collective uid belongs to. Malformed
// documents are skipped.
func (s *CollectiveService) FetchForMember(ctx context.Context, uid string) ([]domain.Collective, error) {
	if strings.TrimSpace(uid) == "" {
		return nil, docstore.Invalid("user id is required")
	}

	docs, err := s.store.Query(ctx, domain.Collection, docstore.NewQuery().
		Where("members", docstore.OpArrayContains, uid))
	if err != nil {
		return nil, docstore.StoreError("fetch collectives", err)
	}

	out := docstore.DecodeAll(docs, decodeCollective, docstore.DropReporter(s.log, s.metrics.DocumentDropped))
	s.log.Debug("fetched collectives", zap.String("uid", uid), zap.Int("count", len(out)), zap.Int("documents", len(docs)))
	return out, nil
}

// FetchOne returns a single collective by id.
func (s *CollectiveService) FetchOne(ctx context.Context, id string) (*domain.Collective, error) {
	if strings.TrimSpace(id) == "" {
		return nil, docstore.Invalid("collective id is required")
	}

	doc, err := s.store.Get(ctx, domain.Collection, id)
	if err != nil {
		return nil, s.wrap("fetch collective", id, err)
	}
	c, err := decodeCollective(doc)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Update applies a field-level patch to a collective.
func (s *CollectiveService) Update(ctx context.Context, id string, p domain.Patch) error {
	if strings.TrimSpace(id) == "" {
		return docstore.Invalid("collective id is required")
	}
	if p.Empty() {
		return nil
	}

	fields := map[string]any{}
	if p.Name.Changed() {
		name, _ := p.Name.Value()
		name = strings.TrimSpace(name)
		if name == "" {
			return docstore.Invalid("collective name cannot be empty")
		}
		fields["name"] = name
	}
	p.ClientFacingName.Put(fields, "clientFacingName")
	if v, ok := p.PublicPageSlug.Value(); ok {
		normalized, err := normalizeSlug(v)
		if err != nil {
			return err
		}
		fields["publicPageSlug"] = normalized
	} else {
		p.PublicPageSlug.Put(fields, "publicPageSlug")
	}

	if err := s.store.Update(ctx, domain.Collection, id, fields); err != nil {
		return s.wrap("update collective", id, err)
	}
	return nil
}

// AddMember unions uid into the collective's members. Adding an existing
// member is a no-op.
func (s *CollectiveService) AddMember(ctx context.Context, collectiveID, uid string) error {
	if strings.TrimSpace(collectiveID) == "" || strings.TrimSpace(uid) == "" {
		return docstore.Invalid("collective id and user id are required")
	}

	if err := s.store.ArrayUnion(ctx, domain.Collection, collectiveID, "members", uid); err != nil {
		return s.wrap("add member", collectiveID, err)
	}
	s.log.Info("member added", zap.String("collective_id", collectiveID), zap.String("uid", uid))
	return nil
}

func (s *CollectiveService) wrap(op, id string, err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrCollectiveNotFound, id)
	}
	return docstore.StoreError(op, err)
}

func decodeCollective(doc *docstore.Document) (domain.Collective, error) {
	var c domain.Collective
	if err := docstore.Decode(doc, &c); err != nil {
		return domain.Collective{}, err
	}
	c.ID = doc.ID
	return c, nil
}

func normalizeSlug(raw string) (string, error) {
	out := slug.Make(raw)
	if out == "" {
		return "", docstore.Invalid("public page slug %q has no usable characters", raw)
	}
	return out, nil
}
