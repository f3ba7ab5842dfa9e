package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandm-app/tandm/internal/docstore"
	"github.com/tandm-app/tandm/internal/docstore/redisstore"
	"github.com/tandm-app/tandm/internal/projects/domain"
)

type tick struct {
	t time.Time
}

func (c *tick) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func setupService(t *testing.T) (*ProjectService, docstore.Store) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := &tick{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := redisstore.New(client, redisstore.WithClock(clock.now))
	return NewProjectService(store, nil, nil), store
}

func TestCreate_DefaultsAndFetch(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	id, err := svc.Create(ctx, domain.Input{Title: "  Site ", CollectiveID: "c1", StartDate: start})
	require.NoError(t, err)

	p, err := svc.FetchOne(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Site", p.Title)
	assert.Equal(t, domain.StatusPlanning, p.Status)
	assert.Equal(t, "c1", p.CollectiveID)
	assert.True(t, start.Equal(p.StartDate))
	assert.Nil(t, p.EndDate)
	require.NotNil(t, p.CreatedAt)
}

func TestCreate_Validation(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	before := start.Add(-time.Hour)

	for name, in := range map[string]domain.Input{
		"no title":      {CollectiveID: "c1"},
		"no collective": {Title: "x"},
		"bad status":    {Title: "x", CollectiveID: "c1", Status: "paused"},
		"end first":     {Title: "x", CollectiveID: "c1", StartDate: start, EndDate: &before},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, in)
			assert.ErrorIs(t, err, docstore.ErrValidation)
		})
	}

	docs, err := store.Query(ctx, domain.Collection, docstore.NewQuery())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestFetchForCollective_NewestFirstAndScoped(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, domain.Input{Title: "one", CollectiveID: "c1"})
	require.NoError(t, err)
	second, err := svc.Create(ctx, domain.Input{Title: "two", CollectiveID: "c1"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.Input{Title: "other", CollectiveID: "c2"})
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, domain.Collection, "broken", map[string]any{"collectiveId": "c1", "status": "planning"}, false))

	got, err := svc.FetchForCollective(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second, got[0].ID)
	assert.Equal(t, first, got[1].ID)
}

func TestUpdate(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	end := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	id, err := svc.Create(ctx, domain.Input{Title: "Site", CollectiveID: "c1", StartDate: start, EndDate: &end})
	require.NoError(t, err)

	require.NoError(t, svc.Update(ctx, id, domain.Patch{
		Description: docstore.Set("Relaunch"),
		EndDate:     docstore.Clear[time.Time](),
	}))
	require.NoError(t, svc.UpdateStatus(ctx, id, domain.StatusActive))

	p, err := svc.FetchOne(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Relaunch", p.Description)
	assert.Nil(t, p.EndDate)
	assert.Equal(t, domain.StatusActive, p.Status)
	assert.Equal(t, "c1", p.CollectiveID)

	assert.ErrorIs(t, svc.UpdateStatus(ctx, id, "paused"), docstore.ErrValidation)
	assert.ErrorIs(t, svc.Update(ctx, id, domain.Patch{Title: docstore.Set(" ")}), docstore.ErrValidation)
	assert.ErrorIs(t, svc.UpdateStatus(ctx, "missing", domain.StatusActive), domain.ErrProjectNotFound)
}
