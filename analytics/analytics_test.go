package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecorewards/core"
)

var base = time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC) // Wednesday

func achievement(id core.AchievementID) core.Achievement {
	a, _ := core.DefaultCatalog().Achievement(id)
	return a
}

func reward(id core.RewardID) core.Reward {
	r, _ := core.DefaultCatalog().Reward(id)
	return r
}

func TestMetrics_OnEvent(t *testing.T) {
	metrics := NewMetrics()
	user := core.UserID("user123")

	metrics.OnEvent(core.NewPointsEarned(base, user, 100, 100, "pickup", core.ActivityPickup))
	metrics.OnEvent(core.NewAchievementUnlocked(base, user, achievement(core.AchievementFirstPickup), 150))
	metrics.OnEvent(core.NewLevelUp(base, user, 1, 2, nil))
	metrics.OnEvent(core.NewRedeemed(base, user, reward("discount_5"), 50))

	day := base.Format("2006-01-02")
	assert.Equal(t, int64(100), metrics.GetPointsEarnedByDay(day))
	assert.Equal(t, int64(100), metrics.GetPointsEarnedByActivity(core.ActivityPickup))
	assert.Equal(t, int64(100), metrics.GetPointsRedeemedByDay(day))
	assert.Equal(t, int64(1), metrics.GetRedemptions("discount_5"))
	assert.Equal(t, int64(1), metrics.GetLevelUpsByDay(day))
	assert.Equal(t, int64(1), metrics.GetAchievementsUnlockedByDay(day))
	assert.Equal(t, int64(1), metrics.GetAchievementUnlocks(core.AchievementFirstPickup))
	assert.Equal(t, 1, metrics.GetDailyActiveUsers(day))
	assert.Equal(t, map[int64]int{2: 1}, metrics.GetLevelDistribution())

	earned, redeemed, levels := metrics.GetRealtimeStats()
	assert.Equal(t, int64(100), earned)
	assert.Equal(t, int64(100), redeemed)
	assert.Equal(t, int64(1), levels)
}

func TestMetrics_SweeperOutputIsNotEngagement(t *testing.T) {
	metrics := NewMetrics()
	metrics.OnEvent(core.NewStreakUpdated(base, "ghost", 0))
	metrics.OnEvent(core.NewAchievementUnlocked(base, "ghost", achievement(core.AchievementStreak7), 150))

	assert.Equal(t, 0, metrics.GetDailyActiveUsers(dayKey(base)))
	assert.Equal(t, int64(1), metrics.GetAchievementsUnlockedByDay(dayKey(base)))
}

func TestMetrics_FailuresCounted(t *testing.T) {
	metrics := NewMetrics()
	metrics.OnEvent(core.NewRedeemFailed(base, "u1", "free_pickup", core.ErrInsufficientPoints.Error()))
	metrics.OnEvent(core.NewRedeemFailed(base, "u1", "nope", core.ErrUnknownReward.Error()))
	metrics.OnEvent(core.NewRedeemFailed(base, "u2", "free_pickup", core.ErrInsufficientPoints.Error()))
	metrics.OnEvent(core.NewPersistenceFailed(base, "u1", "disk full"))

	assert.Equal(t, int64(2), metrics.GetRedeemFailures(core.ErrInsufficientPoints.Error()))
	assert.Equal(t, int64(1), metrics.GetRedeemFailures(core.ErrUnknownReward.Error()))
	assert.Equal(t, int64(1), metrics.GetPersistenceFailures())
	assert.Equal(t, 2, metrics.GetDailyActiveUsers(dayKey(base)))
}

func TestMetrics_TopActivities(t *testing.T) {
	metrics := NewMetrics()
	metrics.OnEvent(core.NewPointsEarned(base, "u1", 10, 10, "login", core.ActivityDailyLogin))
	metrics.OnEvent(core.NewPointsEarned(base, "u1", 100, 110, "pickup", core.ActivityPickup))
	metrics.OnEvent(core.NewPointsEarned(base, "u2", 50, 50, "referral", core.ActivityReferral))

	top := metrics.TopActivities(2)
	require.Len(t, top, 2)
	assert.Equal(t, ActivityPoints{Activity: core.ActivityPickup, Points: 100}, top[0])
	assert.Equal(t, ActivityPoints{Activity: core.ActivityReferral, Points: 50}, top[1])
	assert.Len(t, metrics.TopActivities(0), 3)
}

func TestDAU(t *testing.T) {
	dau := NewDAU()
	dau.OnEvent(core.NewPointsEarned(base, "a", 1, 1, "", core.ActivityPoints))
	dau.OnEvent(core.NewPointsEarned(base, "a", 1, 2, "", core.ActivityPoints))
	dau.OnEvent(core.NewPointsEarned(base, "b", 1, 1, "", core.ActivityPoints))
	dau.OnEvent(core.NewLevelUp(base, "c", 1, 2, nil))

	assert.Equal(t, 2, dau.Count(dayKey(base)))
	assert.Equal(t, 0, dau.Count("1999-01-01"))
}

func TestBridgeHookAndHandler(t *testing.T) {
	m1, m2 := NewMetrics(), NewMetrics()
	handler := Handler(NewBridge(m1, m2))

	handler(context.Background(), core.NewPointsEarned(base, "u", 30, 30, "", core.ActivityShare))

	assert.Equal(t, int64(30), m1.GetPointsEarnedByActivity(core.ActivityShare))
	assert.Equal(t, int64(30), m2.GetPointsEarnedByActivity(core.ActivityShare))
}

func TestPeriodKeys(t *testing.T) {
	assert.Equal(t, "2024-01-03", dayKey(base))
	assert.Equal(t, "2024-W01", weekKey(base))
	assert.Equal(t, "2024-01", monthKey(base))
	// ISO week of the last days of 2024 belongs to 2025
	assert.Equal(t, "2025-W01", weekKey(time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)))
}
