package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecorewards/core"
)

// newTestClient spins up a miniredis server and returns a client plus the server.
func newTestClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func sampleProfile(user core.UserID) core.UserProfile {
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	p := core.NewProfile(user, now)
	p.Points = 250
	p.Level = 3
	p.TotalRecycled = 2
	p.Achievements = []core.AchievementID{core.AchievementFirstPickup}
	p.Prepend(core.ActivityRecord{ID: "a1", Type: core.ActivityPickup, Points: 200, Timestamp: now, WeightKg: 4.5, Items: 2})
	return p
}

func TestStore_LoadMissing(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewWithClient(client)

	_, err := store.Load(context.Background(), "nobody")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStore_SaveAndLoad(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewWithClient(client)
	ctx := context.Background()

	want := sampleProfile("alice")
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, want.Points, got.Points)
	assert.Equal(t, want.Level, got.Level)
	assert.Equal(t, want.Achievements, got.Achievements)
	require.Len(t, got.Activities, 1)
	assert.Equal(t, 4.5, got.Activities[0].WeightKg)
	assert.True(t, want.JoinedAt.Equal(got.JoinedAt))

	exists, err := client.Exists(ctx, "user:alice:profile").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
}

func TestStore_SaveOverwrites(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewWithClient(client)
	ctx := context.Background()

	p := sampleProfile("alice")
	require.NoError(t, store.Save(ctx, p))
	p.Points = 10
	require.NoError(t, store.Save(ctx, p))

	got, err := store.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Points)
}

func TestStore_Users(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewWithClient(client)
	ctx := context.Background()

	for _, u := range []core.UserID{"carol", "alice", "bob"} {
		require.NoError(t, store.Save(ctx, sampleProfile(u)))
	}
	users, err := store.Users(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.UserID{"alice", "bob", "carol"}, users)
}

func TestStore_KeyPrefix(t *testing.T) {
	client, _ := newTestClient(t)
	store := &Store{client: client, prefix: "eco:"}
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleProfile("alice")))
	exists, err := client.Exists(ctx, "eco:user:alice:profile").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
}

func TestStore_CorruptBlob(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewWithClient(client)

	require.NoError(t, mr.Set("user:alice:profile", "{broken"))
	_, err := store.Load(context.Background(), "alice")
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrNotFound)
}

func TestStore_ServerDown(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewWithClient(client)
	mr.Close()

	err := store.Save(context.Background(), sampleProfile("alice"))
	assert.Error(t, err)
}

func TestConfig_DefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "localhost:6379", config.Addr)
	assert.Equal(t, "", config.Password)
	assert.Equal(t, 0, config.DB)
	assert.Equal(t, 10, config.PoolSize)
	assert.Equal(t, 2, config.MinIdleConns)
	assert.Equal(t, 5*time.Second, config.DialTimeout)
	assert.Equal(t, 3*time.Second, config.ReadTimeout)
	assert.Equal(t, 3*time.Second, config.WriteTimeout)
}
