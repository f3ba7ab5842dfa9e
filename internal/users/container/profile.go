// Package container holds the signed-in user's profile and the member
// profiles of a collective.
package container

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/tandm-app/tandm/internal/auth"
	"github.com/tandm-app/tandm/internal/logging"
	"github.com/tandm-app/tandm/internal/state"
	"github.com/tandm-app/tandm/internal/users/domain"
)

type ProfileService interface {
	FetchOne(ctx context.Context, uid string) (*domain.Profile, error)
	Upsert(ctx context.Context, p domain.Profile) error
	UploadProfileImage(ctx context.Context, uid string, data []byte, contentType string) (string, error)
}

type IdentitySource interface {
	Current() *auth.Identity
}

type ProfileSnapshot = state.Snapshot[*domain.Profile]

// Profile projects the current user's profile. A signed-in user without a
// stored profile sees a default shell until they save one.
type Profile struct {
	svc      ProfileService
	identity IdentitySource
	log      *zap.Logger
	now      func() time.Time
	store    *state.Store[*domain.Profile]
}

func NewProfile(svc ProfileService, identity IdentitySource, log *zap.Logger) *Profile {
	return &Profile{
		svc:      svc,
		identity: identity,
		log:      logging.OrNop(log).Named("profile"),
		now:      time.Now,
		store:    state.New[*domain.Profile](nil, (*domain.Profile).Clone),
	}
}

func (c *Profile) Snapshot() ProfileSnapshot { return c.store.Snapshot() }

func (c *Profile) Subscribe() (<-chan ProfileSnapshot, func()) { return c.store.Subscribe() }

// Refresh loads the current user's profile.
func (c *Profile) Refresh(ctx context.Context) error {
	id := c.identity.Current()
	if id == nil {
		c.store.Fail("User not logged in.")
		return domain.ErrNotSignedIn
	}
	return c.load(ctx, *id)
}

func (c *Profile) load(ctx context.Context, id auth.Identity) error {
	c.store.StartLoading()

	p, err := c.svc.FetchOne(ctx, id.UID)
	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		p = domain.DefaultShell(id.UID, id.Email, c.now().UTC())
	case err != nil:
		c.log.Warn("fetch profile failed", zap.String("uid", id.UID), zap.Error(err))
		c.store.Fail("Failed to fetch user profile: " + err.Error())
		return err
	}

	c.store.Mutate(func(s *ProfileSnapshot) {
		s.Value = p
		s.IsLoading = false
	})
	return nil
}

// Save merges p into the stored profile and reloads it. An empty UID is
// filled from the current identity.
func (c *Profile) Save(ctx context.Context, p domain.Profile) error {
	if p.UID == "" {
		if id := c.identity.Current(); id != nil {
			p.UID = id.UID
		}
	}
	if p.UID == "" {
		c.store.Fail("Cannot save profile without a user ID.")
		return domain.ErrMissingUID
	}

	c.store.StartLoading()
	if err := c.svc.Upsert(ctx, p); err != nil {
		c.store.Fail("Failed to save user profile: " + err.Error())
		return err
	}

	id := auth.Identity{UID: p.UID, Email: p.Email}
	_ = c.load(ctx, id)
	return nil
}

// UploadImage stores a new profile image and points the projection at it.
// A user who never saved a profile gets the default shell stored first.
func (c *Profile) UploadImage(ctx context.Context, data []byte, contentType string) (string, error) {
	id := c.identity.Current()
	if id == nil {
		c.store.Fail("User not logged in.")
		return "", domain.ErrNotSignedIn
	}

	c.store.StartLoading()
	url, err := c.svc.UploadProfileImage(ctx, id.UID, data, contentType)
	if errors.Is(err, domain.ErrProfileNotFound) && id.Email != "" {
		shell := domain.DefaultShell(id.UID, id.Email, c.now().UTC())
		if err = c.svc.Upsert(ctx, *shell); err == nil {
			c.log.Info("stored default profile before image upload", zap.String("uid", id.UID))
			url, err = c.svc.UploadProfileImage(ctx, id.UID, data, contentType)
		}
	}
	if err != nil {
		c.store.Fail("Failed to upload profile image: " + err.Error())
		return "", err
	}

	c.store.Mutate(func(s *ProfileSnapshot) {
		if s.Value != nil && s.Value.UID == id.UID {
			s.Value.ProfileImage = &url
		}
		s.IsLoading = false
	})
	return url, nil
}

// Clear drops the projection without calling the service.
func (c *Profile) Clear() {
	c.store.Mutate(func(s *ProfileSnapshot) {
		s.Value = nil
		s.IsLoading = false
		s.LastError = ""
	})
}

// Watch loads the profile on sign-in and clears it on sign-out until ctx
// ends or events closes.
func (c *Profile) Watch(ctx context.Context, events <-chan auth.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Identity == nil {
				c.Clear()
				continue
			}
			_ = c.load(ctx, *ev.Identity)
		}
	}
}
