package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tandm-app/tandm/internal/blob"
	"github.com/tandm-app/tandm/internal/docstore"
	"github.com/tandm-app/tandm/internal/logging"
	"github.com/tandm-app/tandm/internal/metrics"
	"github.com/tandm-app/tandm/internal/users/domain"
)

// ProfileService reads and writes user profile documents.
type ProfileService struct {
	store   docstore.Store
	blobs   blob.Uploader
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewProfileService creates a new ProfileService. A nil uploader disables
// profile image uploads.
func NewProfileService(store docstore.Store, blobs blob.Uploader, log *zap.Logger, m *metrics.Metrics) *ProfileService {
	if blobs == nil {
		blobs = blob.Disabled{}
	}
	return &ProfileService{
		store:   store,
		blobs:   blobs,
		log:     logging.OrNop(log).Named("users"),
		metrics: m,
	}
}

// FetchOne returns the profile stored under uid.
func (s *ProfileService) FetchOne(ctx context.Context, uid string) (*domain.Profile, error) {
	if strings.TrimSpace(uid) == "" {
		return nil, domain.ErrMissingUID
	}

	doc, err := s.store.Get(ctx, domain.Collection, uid)
	if err != nil {
		return nil, s.wrap("fetch profile", uid, err)
	}
	p, err := decodeProfile(doc)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FetchByEmail returns the first profile whose email matches exactly.
func (s *ProfileService) FetchByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, docstore.Invalid("email is required")
	}

	docs, err := s.store.Query(ctx, domain.Collection, docstore.NewQuery().
		Where("email", docstore.OpEqual, email).
		Take(1))
	if err != nil {
		return nil, docstore.StoreError("fetch profile by email", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no profile with email %s", domain.ErrProfileNotFound, email)
	}

	p, err := decodeProfile(docs[0])
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FetchMany resolves uids to profiles, in the order the uids were given.
// Unknown uids and malformed documents are left out of the result.
func (s *ProfileService) FetchMany(ctx context.Context, uids []string) ([]domain.Profile, error) {
	wanted := make([]string, 0, len(uids))
	for _, uid := range uids {
		if uid = strings.TrimSpace(uid); uid != "" && !slices.Contains(wanted, uid) {
			wanted = append(wanted, uid)
		}
	}
	if len(wanted) == 0 {
		return nil, nil
	}

	chunks := slices.Collect(slices.Chunk(wanted, docstore.MaxInValues))
	results := make([][]*docstore.Document, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		g.Go(func() error {
			docs, err := s.store.Query(gctx, domain.Collection, docstore.NewQuery().
				Where("uid", docstore.OpIn, chunk))
			if err != nil {
				return err
			}
			results[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, docstore.StoreError("fetch profiles", err)
	}

	var docs []*docstore.Document
	for _, r := range results {
		docs = append(docs, r...)
	}
	out := docstore.DecodeAll(docs, decodeProfile, docstore.DropReporter(s.log, s.metrics.DocumentDropped))

	slices.SortStableFunc(out, func(a, b domain.Profile) int {
		return slices.Index(wanted, a.UID) - slices.Index(wanted, b.UID)
	})
	return out, nil
}

// Upsert merges p into the document keyed by p.UID, creating it if needed.
// Nil optional fields are left untouched.
func (s *ProfileService) Upsert(ctx context.Context, p domain.Profile) error {
	uid := strings.TrimSpace(p.UID)
	if uid == "" {
		return domain.ErrMissingUID
	}
	if strings.TrimSpace(p.Email) == "" {
		return docstore.Invalid("email is required")
	}

	data := map[string]any{
		"uid":   uid,
		"name":  p.Name,
		"email": strings.TrimSpace(p.Email),
	}
	if p.Bio != nil {
		data["bio"] = *p.Bio
	}
	if p.Skills != nil {
		data["skills"] = p.Skills
	}
	if p.PortfolioURL != nil {
		data["portfolioUrl"] = *p.PortfolioURL
	}
	if p.ProfileImage != nil {
		data["profileImage"] = *p.ProfileImage
	}
	if p.CreatedAt != nil {
		data["createdAt"] = p.CreatedAt.UTC()
	}

	if err := s.store.Set(ctx, domain.Collection, uid, data, true); err != nil {
		return docstore.StoreError("save profile", err)
	}
	s.log.Info("profile saved", zap.String("uid", uid))
	return nil
}

// UpdateFields applies a field-level patch to an existing profile.
func (s *ProfileService) UpdateFields(ctx context.Context, uid string, p domain.Patch) error {
	if strings.TrimSpace(uid) == "" {
		return domain.ErrMissingUID
	}
	if p.Empty() {
		return nil
	}
	if name, ok := p.Name.Value(); p.Name.Cleared() || (ok && strings.TrimSpace(name) == "") {
		return docstore.Invalid("name cannot be empty")
	}

	fields := map[string]any{}
	p.Name.Put(fields, "name")
	p.Bio.Put(fields, "bio")
	p.Skills.Put(fields, "skills")
	p.PortfolioURL.Put(fields, "portfolioUrl")
	p.ProfileImage.Put(fields, "profileImage")

	if err := s.store.Update(ctx, domain.Collection, uid, fields); err != nil {
		return s.wrap("update profile", uid, err)
	}
	return nil
}

// UploadProfileImage stores an image and points the profile at its URL. The
// profile must already exist; ErrProfileNotFound is returned before anything
// is uploaded.
func (s *ProfileService) UploadProfileImage(ctx context.Context, uid string, data []byte, contentType string) (string, error) {
	if strings.TrimSpace(uid) == "" {
		return "", domain.ErrMissingUID
	}
	if len(data) == 0 {
		return "", docstore.Invalid("image is empty")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", docstore.Invalid("unsupported content type %q", contentType)
	}

	if _, err := s.store.Get(ctx, domain.Collection, uid); err != nil {
		return "", s.wrap("upload profile image", uid, err)
	}

	url, err := s.blobs.Put(ctx, blob.ProfileImagePath(uid, contentType), data, contentType)
	if err != nil {
		return "", docstore.StoreError("upload profile image", err)
	}
	if err := s.UpdateFields(ctx, uid, domain.Patch{ProfileImage: docstore.Set(url)}); err != nil {
		return "", err
	}
	return url, nil
}

func (s *ProfileService) wrap(op, uid string, err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrProfileNotFound, uid)
	}
	return docstore.StoreError(op, err)
}

func decodeProfile(doc *docstore.Document) (domain.Profile, error) {
	var p domain.Profile
	if err := docstore.Decode(doc, &p); err != nil {
		return domain.Profile{}, err
	}
	p.ID = doc.ID
	return p, nil
}
