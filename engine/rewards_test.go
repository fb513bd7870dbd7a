package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "ecorewards/adapters/memory"
	"ecorewards/core"
)

// fixed test clock
var testNow = time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)

type recorder struct {
	events []core.Event
}

func (r *recorder) handle(_ context.Context, e core.Event) { r.events = append(r.events, e) }

func (r *recorder) types() []core.EventType {
	out := make([]core.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *recorder) reset() { r.events = nil }

func newTestEngine(t *testing.T, profile core.UserProfile) (*RewardsEngine, *mem.Store, *recorder) {
	t.Helper()
	return newTestEngineAt(t, profile, testNow)
}

func newTestEngineAt(t *testing.T, profile core.UserProfile, now time.Time) (*RewardsEngine, *mem.Store, *recorder) {
	t.Helper()
	store := mem.New()
	bus := NewEventBus(DispatchSync)
	rec := &recorder{}
	bus.SubscribeAll(rec.handle)
	n := 0
	eng := NewRewardsEngine(profile, store, bus, Options{
		Clock: ClockFunc(func() time.Time { return now }),
		NewID: func() string { n++; return fmt.Sprintf("act-%d", n) },
	})
	return eng, store, rec
}

func TestEarnPointsLevelsAndUnlocks(t *testing.T) {
	eng, store, rec := newTestEngine(t, core.NewProfile("alice", testNow))

	out, err := eng.EarnPoints(context.Background(), 150, "Recycled a laptop", ActivityMeta{Type: core.ActivityPickup, WeightKg: 2.5})
	require.NoError(t, err)

	assert.Equal(t, int64(200), out.Points)
	assert.Equal(t, int64(3), out.Level)
	require.Len(t, out.Unlocked, 1)
	assert.Equal(t, core.AchievementFirstPickup, out.Unlocked[0].ID)
	assert.Equal(t, []LevelChange{{From: 1, To: 2}, {From: 2, To: 3}}, out.LevelUps)

	assert.Equal(t, []core.EventType{
		core.EventPointsEarned,
		core.EventLevelUp,
		core.EventAchievementUnlocked,
		core.EventLevelUp,
		core.EventProfileChanged,
	}, rec.types())
	assert.Equal(t, int64(150), rec.events[0].Amount)
	assert.Equal(t, int64(1), rec.events[1].FromLevel)
	assert.Equal(t, int64(2), rec.events[1].ToLevel)
	require.NotNil(t, rec.events[4].View)
	assert.Equal(t, int64(200), rec.events[4].View.Profile.Points)

	p := eng.Snapshot()
	assert.Equal(t, int64(1), p.TotalRecycled)
	require.Len(t, p.Activities, 2)
	assert.Equal(t, core.ActivityAchievement, p.Activities[0].Type)
	assert.Equal(t, core.ActivityPickup, p.Activities[1].Type)
	assert.Equal(t, "act-1", p.Activities[1].ID)

	saved, err := store.Load(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(200), saved.Points)
}

func TestFirstPickupIgnoresTimeOfDay(t *testing.T) {
	for name, at := range map[string]time.Time{
		"wednesday morning": time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC),
		"saturday evening":  time.Date(2024, 3, 9, 19, 0, 0, 0, time.UTC),
		"sunday midnight":   time.Date(2024, 3, 10, 0, 30, 0, 0, time.UTC),
	} {
		t.Run(name, func(t *testing.T) {
			eng, _, _ := newTestEngineAt(t, core.NewProfile("alice", at), at)

			out, err := eng.EarnPoints(context.Background(), 150, "Recycled a laptop", ActivityMeta{Type: core.ActivityPickup})
			require.NoError(t, err)

			assert.Equal(t, int64(200), out.Points)
			assert.Equal(t, int64(3), out.Level)
			require.Len(t, out.Unlocked, 1)
			assert.Equal(t, core.AchievementFirstPickup, out.Unlocked[0].ID)
			assert.Equal(t, []core.AchievementID{core.AchievementFirstPickup}, eng.Snapshot().Achievements)
		})
	}
}

func TestEarnPointsCascadesThroughLevelFive(t *testing.T) {
	eng, _, rec := newTestEngine(t, core.NewProfile("alice", testNow))

	out, err := eng.EarnPoints(context.Background(), 400, "Bulk drop-off", ActivityMeta{Type: core.ActivityPoints})
	require.NoError(t, err)

	// 400 reaches level 5, level_5 pays 300, points_500 then pays 200
	assert.Equal(t, int64(900), out.Points)
	assert.Equal(t, int64(10), out.Level)
	require.Len(t, out.Unlocked, 2)
	assert.Equal(t, core.AchievementLevel5, out.Unlocked[0].ID)
	assert.Equal(t, core.AchievementPoints500, out.Unlocked[1].ID)

	require.Len(t, out.LevelUps, 3)
	assert.Equal(t, int64(1), out.LevelUps[0].From)
	assert.Equal(t, int64(5), out.LevelUps[0].To)
	require.NotNil(t, out.LevelUps[0].Bonus)
	assert.Equal(t, "discount", out.LevelUps[0].Bonus.Type)
	assert.Equal(t, int64(5), out.LevelUps[0].Bonus.Value)
	assert.Nil(t, out.LevelUps[1].Bonus)
	require.NotNil(t, out.LevelUps[2].Bonus)
	assert.Equal(t, int64(10), out.LevelUps[2].Bonus.Value)

	assert.Equal(t, []core.EventType{
		core.EventPointsEarned,
		core.EventLevelUp,
		core.EventAchievementUnlocked,
		core.EventLevelUp,
		core.EventAchievementUnlocked,
		core.EventLevelUp,
		core.EventProfileChanged,
	}, rec.types())
	first := rec.events[1]
	assert.Equal(t, int64(1), first.FromLevel)
	assert.Equal(t, int64(5), first.ToLevel)
	require.NotNil(t, first.Bonus)
	assert.Equal(t, "discount", first.Bonus.Type)
	assert.Equal(t, int64(700), rec.events[2].Total)
}

func TestEarnPointsCapsLevel(t *testing.T) {
	eng, _, rec := newTestEngine(t, core.NewProfile("alice", testNow))

	out, err := eng.EarnPoints(context.Background(), 1_000_000, "Fleet recycling contract", ActivityMeta{Type: core.ActivityPoints})
	require.NoError(t, err)

	assert.Equal(t, int64(1_000_500), out.Points)
	assert.Equal(t, int64(50), out.Level)
	require.Len(t, out.LevelUps, 1)
	assert.Equal(t, LevelChange{From: 1, To: 50, Bonus: out.LevelUps[0].Bonus}, out.LevelUps[0])
	require.NotNil(t, out.LevelUps[0].Bonus)
	assert.Equal(t, "legend", out.LevelUps[0].Bonus.Type)

	levelUps := 0
	for _, e := range rec.events {
		if e.Type == core.EventLevelUp {
			levelUps++
		}
	}
	assert.Equal(t, 1, levelUps)

	// further earnings never push past the cap
	out, err = eng.EarnPoints(context.Background(), 500, "More", ActivityMeta{Type: core.ActivityPoints})
	require.NoError(t, err)
	assert.Equal(t, int64(50), out.Level)
	assert.Empty(t, out.LevelUps)
}

func TestPointsEqualEarningsPlusRewards(t *testing.T) {
	type step struct {
		amount int64
		kind   core.ActivityType
	}
	pickups := func(n int) []step {
		out := make([]step, n)
		for i := range out {
			out[i] = step{amount: 25, kind: core.ActivityPickup}
		}
		return out
	}

	tests := []struct {
		name  string
		steps []step
	}{
		{"single pickup", pickups(1)},
		{"five pickups", pickups(5)},
		{"referrals and reviews", []step{
			{50, core.ActivityReferral},
			{50, core.ActivityReferral},
			{10, core.ActivityReview},
			{50, core.ActivityReferral},
			{5, core.ActivityShare},
		}},
		{"large then small", []step{
			{480, core.ActivityPoints},
			{25, core.ActivityPickup},
			{1, core.ActivityPoints},
			{3_000, core.ActivityPoints},
		}},
		{"mixed", append(pickups(7), step{5, core.ActivityDailyLogin}, step{10, core.ActivityBonusWeekend})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, _, _ := newTestEngine(t, core.NewProfile("alice", testNow))
			var want int64
			seen := map[core.AchievementID]bool{}
			for i, s := range tt.steps {
				out, err := eng.EarnPoints(context.Background(), s.amount, fmt.Sprintf("step %d", i), ActivityMeta{Type: s.kind})
				require.NoError(t, err)
				want += s.amount
				for _, a := range out.Unlocked {
					assert.False(t, seen[a.ID], "%s unlocked twice", a.ID)
					seen[a.ID] = true
					want += a.PointReward
				}
				assert.Equal(t, want, out.Points)
				assert.Equal(t, core.DefaultLevelPolicy().Level(want), out.Level)
			}
			assert.Equal(t, want, eng.Snapshot().Points)
			assert.Len(t, eng.Snapshot().Achievements, len(seen))
		})
	}
}

func TestEarnPointsRejectsNonPositive(t *testing.T) {
	eng, _, rec := newTestEngine(t, core.NewProfile("alice", testNow))
	for _, amount := range []int64{0, -5} {
		_, err := eng.EarnPoints(context.Background(), amount, "nope", ActivityMeta{})
		assert.ErrorIs(t, err, core.ErrInvalidAmount)
	}
	assert.Empty(t, rec.events)
	assert.Empty(t, eng.Snapshot().Activities)
}

func TestRecycleFiveUnlocksOnce(t *testing.T) {
	p := core.NewProfile("alice", testNow)
	p.TotalRecycled = 5
	eng, _, rec := newTestEngine(t, p)

	out, err := eng.EarnPoints(context.Background(), 10, "Shared on social", ActivityMeta{Type: core.ActivityShare})
	require.NoError(t, err)
	require.Len(t, out.Unlocked, 1)
	assert.Equal(t, core.AchievementRecycle5, out.Unlocked[0].ID)
	assert.Equal(t, int64(110), out.Points)

	rec.reset()
	out, err = eng.EarnPoints(context.Background(), 10, "Shared on social", ActivityMeta{Type: core.ActivityShare})
	require.NoError(t, err)
	assert.Empty(t, out.Unlocked)
	assert.Equal(t, int64(120), out.Points)
	assert.NotContains(t, rec.types(), core.EventAchievementUnlocked)
	assert.Len(t, eng.Snapshot().Achievements, 1)
}

func TestEvaluateAchievementsIsIdempotent(t *testing.T) {
	p := core.NewProfile("alice", testNow)
	p.Points = 480
	p.Level = 5
	eng, _, rec := newTestEngine(t, p)

	out, err := eng.EvaluateAchievements(context.Background())
	require.NoError(t, err)
	ids := []core.AchievementID{}
	for _, a := range out.Unlocked {
		ids = append(ids, a.ID)
	}
	// level_5 pays 300, which then pushes the balance past 500
	assert.Equal(t, []core.AchievementID{core.AchievementLevel5, core.AchievementPoints500}, ids)
	assert.Equal(t, int64(980), out.Points)

	rec.reset()
	out, err = eng.EvaluateAchievements(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out.Unlocked)
	assert.Empty(t, rec.events)
}

func TestRedeemKeepsLevel(t *testing.T) {
	p := core.NewProfile("alice", testNow)
	p.Points = 300
	p.Level = 4
	eng, _, rec := newTestEngine(t, p)

	out, err := eng.Redeem(context.Background(), "plant_tree")
	require.NoError(t, err)
	assert.Equal(t, int64(50), out.Points)
	assert.Equal(t, int64(4), out.Level)
	assert.Equal(t, []core.EventType{core.EventRedeemed, core.EventProfileChanged}, rec.types())
	assert.Equal(t, core.RewardID("plant_tree"), rec.events[0].Reward.ID)

	prog := eng.View().Level
	assert.Equal(t, int64(0), prog.IntoLevel)
}

func TestRedeemFailuresChangeNothing(t *testing.T) {
	p := core.NewProfile("alice", testNow)
	p.Points = 100
	p.Achievements = []core.AchievementID{core.AchievementFirstPickup}
	p.Prepend(core.ActivityRecord{ID: "x", Type: core.ActivityPickup, Points: 100, Timestamp: testNow})
	eng, store, rec := newTestEngine(t, p)
	before := eng.Snapshot()

	_, err := eng.Redeem(context.Background(), "free_pickup")
	assert.ErrorIs(t, err, core.ErrInsufficientPoints)
	_, err = eng.Redeem(context.Background(), "golden_ticket")
	assert.ErrorIs(t, err, core.ErrUnknownReward)

	assert.Equal(t, before, eng.Snapshot())
	assert.Equal(t, []core.EventType{core.EventRedeemFailed, core.EventRedeemFailed}, rec.types())
	assert.Equal(t, core.ErrInsufficientPoints.Error(), rec.events[0].Reason)
	_, err = store.Load(context.Background(), "alice")
	assert.ErrorIs(t, err, core.ErrNotFound, "failed redemptions must not persist")
}

func TestSaveFailureKeepsStateAndNotifies(t *testing.T) {
	eng, store, rec := newTestEngine(t, core.NewProfile("alice", testNow))
	boom := errors.New("connection reset")
	store.FailSaves(boom)

	out, err := eng.EarnPoints(context.Background(), 20, "review", ActivityMeta{Type: core.ActivityReview})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrPersistence)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(20), out.Points)
	assert.Equal(t, int64(20), eng.Snapshot().Points)
	assert.Equal(t, []core.EventType{
		core.EventPointsEarned,
		core.EventPersistenceFailed,
		core.EventProfileChanged,
	}, rec.types())
}

func TestCloseDayStreaks(t *testing.T) {
	eng, _, rec := newTestEngine(t, core.NewProfile("alice", testNow))
	ctx := context.Background()

	_, err := eng.EarnPoints(ctx, 5, "daily login", ActivityMeta{Type: core.ActivityDailyLogin})
	require.NoError(t, err)

	out, err := eng.CloseDay(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Streak)

	rec.reset()
	out, err = eng.CloseDay(ctx, testNow.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Streak)
	assert.Empty(t, rec.events, "closing an already closed day is a no-op")

	out, err = eng.CloseDay(ctx, testNow.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(0), out.Streak)
	p := eng.Snapshot()
	assert.Equal(t, int64(1), p.LongestStreak)
	assert.True(t, p.StreakDay.Equal(time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)))
}

func TestCloseDayUnlocksStreakSeven(t *testing.T) {
	p := core.NewProfile("alice", testNow)
	p.Streak = 6
	p.LongestStreak = 6
	p.StreakDay = time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	p.Prepend(core.ActivityRecord{ID: "x", Type: core.ActivityReview, Points: 10, Timestamp: testNow})
	p.Points = 10
	eng, _, rec := newTestEngine(t, p)

	out, err := eng.CloseDay(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(7), out.Streak)
	require.Len(t, out.Unlocked, 1)
	assert.Equal(t, core.AchievementStreak7, out.Unlocked[0].ID)
	assert.Equal(t, core.EventStreakUpdated, rec.types()[0])
}

func TestRetentionKeepsPredicatesExact(t *testing.T) {
	store := mem.New()
	bus := NewEventBus(DispatchSync)
	eng := NewRewardsEngine(core.NewProfile("alice", testNow), store, bus, Options{
		Clock:         ClockFunc(func() time.Time { return testNow }),
		MaxActivities: 3,
	})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := eng.EarnPoints(ctx, 50, "referral", ActivityMeta{Type: core.ActivityReferral})
		require.NoError(t, err)
		_, err = eng.EarnPoints(ctx, 1, "share", ActivityMeta{Type: core.ActivityShare})
		require.NoError(t, err)
	}
	p := eng.Snapshot()
	assert.Len(t, p.Activities, 3)
	assert.Equal(t, int64(3), p.CountActivities(core.ActivityReferral))
	assert.True(t, p.HasAchievement(core.AchievementReferral3))
}

func TestImpactAndProgress(t *testing.T) {
	eng, _, _ := newTestEngine(t, core.DemoProfile("alice", testNow))

	impact := eng.Impact()
	assert.InDelta(t, 3.7, impact.TotalWeightKg, 1e-9)
	assert.Equal(t, int64(57), impact.EnergySavedKWh)

	progress := eng.Progress()
	assert.Len(t, progress, len(core.DefaultAchievements()))
	for _, row := range progress {
		if row.Achievement.ID == core.AchievementStreak7 {
			assert.Equal(t, int64(3), row.Current)
			assert.Equal(t, int64(7), row.Target)
		}
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	eng, _, _ := newTestEngine(t, core.NewProfile("alice", testNow))
	_, err := eng.EarnPoints(context.Background(), 10, "share", ActivityMeta{Type: core.ActivityShare})
	require.NoError(t, err)

	snap := eng.Snapshot()
	snap.Activities[0].Points = 9999
	snap.Points = 9999
	assert.Equal(t, int64(10), eng.Snapshot().Points)
	assert.Equal(t, int64(10), eng.Snapshot().Activities[0].Points)
}
