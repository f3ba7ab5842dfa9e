package service

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandm-app/tandm/internal/collectives/domain"
	"github.com/tandm-app/tandm/internal/docstore"
	"github.com/tandm-app/tandm/internal/docstore/redisstore"
	"github.com/tandm-app/tandm/internal/metrics"
)

func setupService(t *testing.T) (*CollectiveService, docstore.Store) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := redisstore.New(client)
	return NewCollectiveService(store, nil, nil), store
}

func ptr[T any](v T) *T { return &v }

func TestCreate_MembersIsExactlyCreator(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	for _, uid := range []string{"u1", "owner-2", "x"} {
		id, err := svc.Create(ctx, domain.CreateInput{Name: "Studio " + uid, CreatedBy: uid})
		require.NoError(t, err)

		c, err := svc.FetchOne(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []string{uid}, c.Members)
		assert.Equal(t, uid, c.CreatedBy)
		assert.Equal(t, id, c.ID)
		assert.NotNil(t, c.CreatedAt)
	}
}

func TestCreate_NormalizesSlug(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, domain.CreateInput{
		Name:             "Night Owls",
		ClientFacingName: ptr("Night Owls Studio"),
		PublicPageSlug:   ptr("Night Owls Studio!"),
		CreatedBy:        "u1",
	})
	require.NoError(t, err)

	c, err := svc.FetchOne(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, c.PublicPageSlug)
	assert.Equal(t, "night-owls-studio", *c.PublicPageSlug)
	assert.Equal(t, "Night Owls Studio", *c.ClientFacingName)
}

func TestCreate_ValidationHappensBeforeWrite(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateInput{Name: "  ", CreatedBy: "u1"})
	assert.ErrorIs(t, err, docstore.ErrValidation)

	_, err = svc.Create(ctx, domain.CreateInput{Name: "Studio"})
	assert.ErrorIs(t, err, docstore.ErrValidation)

	_, err = svc.Create(ctx, domain.CreateInput{Name: "Studio", CreatedBy: "u1", PublicPageSlug: ptr("!!!")})
	assert.ErrorIs(t, err, docstore.ErrValidation)

	docs, err := store.Query(ctx, domain.Collection, docstore.NewQuery())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestAddMember_IsIdempotent(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, domain.CreateInput{Name: "Studio", CreatedBy: "owner"})
	require.NoError(t, err)

	require.NoError(t, svc.AddMember(ctx, id, "u42"))
	once, err := svc.FetchOne(ctx, id)
	require.NoError(t, err)

	require.NoError(t, svc.AddMember(ctx, id, "u42"))
	twice, err := svc.FetchOne(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, once.Members, twice.Members)
	assert.ElementsMatch(t, []string{"owner", "u42"}, twice.Members)
	assert.True(t, twice.HasMember("owner"))
}

func TestAddMember_UnknownCollective(t *testing.T) {
	svc, _ := setupService(t)

	err := svc.AddMember(context.Background(), "missing", "u1")
	assert.ErrorIs(t, err, domain.ErrCollectiveNotFound)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestFetchForMember_DropsMalformed(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := redisstore.New(client)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	svc := NewCollectiveService(store, nil, m)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := svc.Create(ctx, domain.CreateInput{Name: "Studio", CreatedBy: "u1"})
		require.NoError(t, err)
	}
	// Missing name: present in the store but not a valid collective.
	_, err := store.Add(ctx, domain.Collection, map[string]any{"members": []string{"u1"}, "createdBy": "u1"})
	require.NoError(t, err)

	got, err := svc.FetchForMember(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, got, 4)

	others, err := svc.FetchForMember(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, others)

	expected := `
# HELP tandm_decode_dropped_documents_total Documents skipped by list fetches because they failed to decode.
# TYPE tandm_decode_dropped_documents_total counter
tandm_decode_dropped_documents_total{collection="collectives"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "tandm_decode_dropped_documents_total"))
}

func TestUpdate(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, domain.CreateInput{Name: "Studio", CreatedBy: "u1", ClientFacingName: ptr("Client")})
	require.NoError(t, err)

	err = svc.Update(ctx, id, domain.Patch{
		Name:             docstore.Set("Renamed"),
		ClientFacingName: docstore.Clear[string](),
		PublicPageSlug:   docstore.Set("Renamed Studio"),
	})
	require.NoError(t, err)

	c, err := svc.FetchOne(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", c.Name)
	assert.Nil(t, c.ClientFacingName)
	assert.Equal(t, "renamed-studio", *c.PublicPageSlug)
	assert.Equal(t, []string{"u1"}, c.Members)

	assert.ErrorIs(t, svc.Update(ctx, id, domain.Patch{Name: docstore.Set("")}), docstore.ErrValidation)
	assert.ErrorIs(t, svc.Update(ctx, "missing", domain.Patch{Name: docstore.Set("x")}), domain.ErrCollectiveNotFound)
	assert.NoError(t, svc.Update(ctx, "missing", domain.Patch{}))
}
