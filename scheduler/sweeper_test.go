package scheduler

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
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type blockingTarget struct {
	entered chan struct{}
	release chan struct{}
	calls   int
}

func (b *blockingTarget) Sweep(ctx context.Context, _ time.Time) error {
	b.calls++
	b.entered <- struct{}{}
	<-b.release
	return nil
}

func TestTickDropsOverlappingRuns(t *testing.T) {
	target := &blockingTarget{entered: make(chan struct{}), release: make(chan struct{})}
	s := New(target)

	done := make(chan bool)
	go func() { done <- s.Tick(context.Background()) }()
	<-target.entered

	assert.False(t, s.Tick(context.Background()))
	close(target.release)
	assert.True(t, <-done)

	ticks, skipped := s.Stats()
	assert.Equal(t, int64(1), ticks)
	assert.Equal(t, int64(1), skipped)
	assert.Equal(t, 1, target.calls)
}

func TestTickClosesStreakDays(t *testing.T) {
	ctx := context.Background()
	clock := &manualClock{now: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)}
	store := mem.New()
	bus := engine.NewEventBus(engine.DispatchSync)
	svc := engine.NewRewardsService(store, bus, engine.Options{Clock: clock})
	s := New(svc, WithClock(clock))

	_, err := svc.EarnPoints(ctx, "alice", 10, "daily login", engine.ActivityMeta{Type: core.ActivityDailyLogin})
	require.NoError(t, err)

	clock.Set(time.Date(2024, 3, 5, 0, 0, 30, 0, time.UTC))
	require.True(t, s.Tick(ctx))
	p, err := svc.Profile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Streak)

	// sweeping again the same day changes nothing
	require.True(t, s.Tick(ctx))
	p, _ = svc.Profile(ctx, "alice")
	assert.Equal(t, int64(1), p.Streak)

	// a day without activity breaks the streak
	clock.Set(time.Date(2024, 3, 6, 0, 0, 30, 0, time.UTC))
	require.True(t, s.Tick(ctx))
	p, _ = svc.Profile(ctx, "alice")
	assert.Equal(t, int64(0), p.Streak)
	assert.Equal(t, int64(1), p.LongestStreak)
}

func TestStartStopsWithContext(t *testing.T) {
	target := &countingTarget{}
	s := New(target, WithInterval(5*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(finished)
	}()

	require.Eventually(t, func() bool { return target.count() > 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

type countingTarget struct {
	mu sync.Mutex
	n  int
}

func (c *countingTarget) Sweep(context.Context, time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return nil
}

func (c *countingTarget) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
