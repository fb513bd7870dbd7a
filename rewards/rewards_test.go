package rewards

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "ecorewards/adapters/memory"
	"ecorewards/core"
	"ecorewards/engine"
	"ecorewards/realtime"
)

var fixed = engine.ClockFunc(func() time.Time { return time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC) })

func TestNewDefaultsAndOptions(t *testing.T) {
	hub := realtime.NewHub()
	_, ch := hub.Subscribe(16)
	store := mem.New()

	var mu sync.Mutex
	var seen []core.EventType
	svc := New(
		WithRealtime(hub),
		WithStore(store),
		WithDispatchMode(engine.DispatchSync),
		WithClock(fixed),
		WithSubscriber(func(_ context.Context, e core.Event) {
			mu.Lock()
			seen = append(seen, e.Type)
			mu.Unlock()
		}),
	)
	defer svc.Close()

	out, err := svc.EarnPoints(context.Background(), "alice", 5, "login", engine.ActivityMeta{Type: core.ActivityDailyLogin})
	require.NoError(t, err)
	assert.Equal(t, int64(5), out.Points)

	ev := <-ch
	assert.Equal(t, core.UserID("alice"), ev.UserID)
	assert.Equal(t, core.EventPointsEarned, ev.Type)

	mu.Lock()
	assert.Equal(t, []core.EventType{core.EventPointsEarned, core.EventProfileChanged}, seen)
	mu.Unlock()

	saved, err := store.Load(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(5), saved.Points)
}

func TestNewFallsBackToMemory(t *testing.T) {
	svc := New(WithDispatchMode(engine.DispatchSync), WithMaxActivities(1))
	defer svc.Close()

	_, err := svc.EarnPoints(context.Background(), "bob", 3, "share", engine.ActivityMeta{Type: core.ActivityShare})
	require.NoError(t, err)
	_, err = svc.EarnPoints(context.Background(), "bob", 4, "share", engine.ActivityMeta{Type: core.ActivityShare})
	require.NoError(t, err)

	p, err := svc.Profile(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.Points)
	assert.Len(t, p.Activities, 1)
}

func TestNewWithDemoSeedAndCatalog(t *testing.T) {
	cat := core.DefaultCatalog()
	cat.Levels.PointsPerLevel = 1000
	svc := New(WithDispatchMode(engine.DispatchSync), WithDemoSeed(true), WithCatalog(cat), WithClock(fixed))
	defer svc.Close()

	p, err := svc.Profile(context.Background(), "demo")
	require.NoError(t, err)
	assert.NotEmpty(t, p.Activities)
	assert.Equal(t, int64(1000), svc.Catalog().Levels.PointsPerLevel)
}
