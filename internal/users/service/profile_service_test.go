package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandm-app/tandm/internal/blob"
	"github.com/tandm-app/tandm/internal/docstore"
	"github.com/tandm-app/tandm/internal/docstore/redisstore"
	"github.com/tandm-app/tandm/internal/users/domain"
)

type recordingUploader struct {
	paths []string
	err   error
}

func (u *recordingUploader) Put(_ context.Context, path string, _ []byte, _ string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.paths = append(u.paths, path)
	return "https://cdn.example/" + path, nil
}

func setupService(t *testing.T, uploader blob.Uploader) (*ProfileService, docstore.Store) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := redisstore.New(client)
	return NewProfileService(store, uploader, nil, nil), store
}

func ptr[T any](v T) *T { return &v }

func TestUpsertAndFetchOne(t *testing.T) {
	svc, _ := setupService(t, nil)
	ctx := context.Background()

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.Upsert(ctx, domain.Profile{
		UID:       "u1",
		Name:      "Ada",
		Email:     "ada@example.com",
		Bio:       ptr("Engines"),
		Skills:    []string{"math"},
		CreatedAt: &created,
	}))

	// Merge keeps fields the second write leaves nil.
	require.NoError(t, svc.Upsert(ctx, domain.Profile{UID: "u1", Name: "Ada L.", Email: "ada@example.com"}))

	p, err := svc.FetchOne(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", p.ID)
	assert.Equal(t, "Ada L.", p.Name)
	assert.Equal(t, "Engines", *p.Bio)
	assert.Equal(t, []string{"math"}, p.Skills)
	assert.True(t, created.Equal(*p.CreatedAt))

	_, err = svc.FetchOne(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestUpsert_RequiresUID(t *testing.T) {
	svc, store := setupService(t, nil)
	ctx := context.Background()

	err := svc.Upsert(ctx, domain.Profile{Name: "Ada", Email: "ada@example.com"})
	assert.ErrorIs(t, err, domain.ErrMissingUID)
	assert.ErrorIs(t, err, docstore.ErrValidation)

	docs, err := store.Query(ctx, domain.Collection, docstore.NewQuery())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestFetchByEmail(t *testing.T) {
	svc, store := setupService(t, nil)
	ctx := context.Background()

	require.NoError(t, svc.Upsert(ctx, domain.Profile{UID: "u42", Name: "Grace", Email: "grace@example.com"}))
	require.NoError(t, store.Set(ctx, domain.Collection, "legacy", map[string]any{
		"name":  "Old",
		"email": "old@example.com",
	}, false))

	p, err := svc.FetchByEmail(ctx, "grace@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u42", p.UID)

	legacy, err := svc.FetchByEmail(ctx, "old@example.com")
	require.NoError(t, err)
	assert.Empty(t, legacy.UID)
	assert.Equal(t, "legacy", legacy.ID)

	_, err = svc.FetchByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)

	_, err = svc.FetchByEmail(ctx, " ")
	assert.ErrorIs(t, err, docstore.ErrValidation)
}

func TestFetchByEmail_MalformedIsDecodingError(t *testing.T) {
	svc, store := setupService(t, nil)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, domain.Collection, "bad", map[string]any{
		"email":  "bad@example.com",
		"skills": "not-a-list-of-strings",
	}, false))

	_, err := svc.FetchByEmail(ctx, "bad@example.com")
	assert.ErrorIs(t, err, docstore.ErrDecoding)
	assert.NotErrorIs(t, err, docstore.ErrNotFound)
}

func TestFetchMany_ChunksAndKeepsOrder(t *testing.T) {
	svc, store := setupService(t, nil)
	ctx := context.Background()

	var uids []string
	for i := 0; i < 65; i++ {
		uid := fmt.Sprintf("u%02d", i)
		uids = append(uids, uid)
		require.NoError(t, svc.Upsert(ctx, domain.Profile{UID: uid, Name: uid, Email: uid + "@example.com"}))
	}
	// Matches the uid filter but has no email, so it is dropped.
	require.NoError(t, store.Set(ctx, domain.Collection, "u99", map[string]any{"uid": "u99", "name": "x"}, false))

	reversed := make([]string, 0, len(uids)+3)
	for i := len(uids) - 1; i >= 0; i-- {
		reversed = append(reversed, uids[i])
	}
	reversed = append(reversed, "u99", "missing", "u00")

	got, err := svc.FetchMany(ctx, reversed)
	require.NoError(t, err)
	require.Len(t, got, 65)
	assert.Equal(t, "u64", got[0].UID)
	assert.Equal(t, "u00", got[64].UID)

	none, err := svc.FetchMany(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpdateFields(t *testing.T) {
	svc, _ := setupService(t, nil)
	ctx := context.Background()

	require.NoError(t, svc.Upsert(ctx, domain.Profile{
		UID: "u1", Name: "Ada", Email: "ada@example.com", PortfolioURL: ptr("https://ada.dev"),
	}))

	require.NoError(t, svc.UpdateFields(ctx, "u1", domain.Patch{
		Bio:          docstore.Set("Hello"),
		PortfolioURL: docstore.Clear[string](),
		Skills:       docstore.Set([]string{"go", "sql"}),
	}))

	p, err := svc.FetchOne(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Hello", *p.Bio)
	assert.Nil(t, p.PortfolioURL)
	assert.Equal(t, []string{"go", "sql"}, p.Skills)
	assert.Equal(t, "Ada", p.Name)

	assert.ErrorIs(t, svc.UpdateFields(ctx, "u1", domain.Patch{Name: docstore.Clear[string]()}), docstore.ErrValidation)
	assert.ErrorIs(t, svc.UpdateFields(ctx, "nobody", domain.Patch{Bio: docstore.Set("x")}), domain.ErrProfileNotFound)
}

func TestUploadProfileImage(t *testing.T) {
	up := &recordingUploader{}
	svc, _ := setupService(t, up)
	ctx := context.Background()

	require.NoError(t, svc.Upsert(ctx, domain.Profile{UID: "u1", Name: "Ada", Email: "ada@example.com"}))

	url, err := svc.UploadProfileImage(ctx, "u1", []byte{0x89, 'P', 'N', 'G'}, "image/png")
	require.NoError(t, err)
	require.Len(t, up.paths, 1)
	assert.Equal(t, "https://cdn.example/"+up.paths[0], url)

	p, err := svc.FetchOne(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, url, *p.ProfileImage)

	_, err = svc.UploadProfileImage(ctx, "u1", nil, "image/png")
	assert.ErrorIs(t, err, docstore.ErrValidation)
	_, err = svc.UploadProfileImage(ctx, "u1", []byte("x"), "text/plain")
	assert.ErrorIs(t, err, docstore.ErrValidation)
	assert.Len(t, up.paths, 1)
}

func TestUploadProfileImage_MissingProfileUploadsNothing(t *testing.T) {
	up := &recordingUploader{}
	svc, _ := setupService(t, up)

	url, err := svc.UploadProfileImage(context.Background(), "u1", []byte("x"), "image/png")
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
	assert.Empty(t, url)
	assert.Empty(t, up.paths)
}

func TestUploadProfileImage_BlobFailure(t *testing.T) {
	ctx := context.Background()
	ada := domain.Profile{UID: "u1", Name: "Ada", Email: "ada@example.com"}

	svc, _ := setupService(t, &recordingUploader{err: errors.New("bucket unavailable")})
	require.NoError(t, svc.Upsert(ctx, ada))
	_, err := svc.UploadProfileImage(ctx, "u1", []byte("x"), "image/png")
	assert.ErrorIs(t, err, docstore.ErrStore)

	disabled, _ := setupService(t, nil)
	require.NoError(t, disabled.Upsert(ctx, ada))
	_, err = disabled.UploadProfileImage(ctx, "u1", []byte("x"), "image/png")
	assert.ErrorIs(t, err, blob.ErrDisabled)
}
