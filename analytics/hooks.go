package analytics

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"ecorewards/core"
)

// Hook receives domain events for KPI aggregation.
type Hook interface {
	OnEvent(e core.Event)
}

// DAU tracks daily active users.
type DAU struct {
	mu   sync.Mutex
	days map[string]map[core.UserID]struct{}
}

func NewDAU() *DAU { return &DAU{days: map[string]map[core.UserID]struct{}{}} }

func (d *DAU) OnEvent(e core.Event) {
	if !engagement(e) {
		return
	}
	day := dayKey(e.Time)
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.days[day]
	if m == nil {
		m = map[core.UserID]struct{}{}
		d.days[day] = m
	}
	m[e.UserID] = struct{}{}
}

func (d *DAU) Count(day string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.days[day])
}

// engagement reports whether an event reflects something the user did.
// Sweeper output and render notifications do not count as activity.
func engagement(e core.Event) bool {
	switch e.Type {
	case core.EventPointsEarned, core.EventRedeemed, core.EventRedeemFailed:
		return true
	}
	return false
}

// Metrics tracks program KPIs from engine events.
type Metrics struct {
	mu sync.RWMutex

	// User engagement metrics
	dailyActiveUsers   map[string]map[core.UserID]struct{}
	weeklyActiveUsers  map[string]map[core.UserID]struct{}
	monthlyActiveUsers map[string]map[core.UserID]struct{}

	// Points metrics
	pointsEarnedByDay      map[string]int64
	pointsEarnedByActivity map[core.ActivityType]int64
	pointsRedeemedByDay    map[string]int64
	redemptionsByReward    map[core.RewardID]int64
	redeemFailuresByReason map[string]int64

	// Level metrics
	levelUpsByDay     map[string]int64
	levelDistribution map[int64]int // reached level -> count

	// Achievement metrics
	achievementsUnlockedByDay map[string]int64
	achievementsByID          map[core.AchievementID]int64

	persistenceFailures int64

	// Real-time counters (last 24 hours)
	realtimeCounters struct {
		pointsEarned   int64
		pointsRedeemed int64
		levelUps       int64
		lastReset      time.Time
	}
}

func NewMetrics() *Metrics {
	m := &Metrics{
		dailyActiveUsers:          make(map[string]map[core.UserID]struct{}),
		weeklyActiveUsers:         make(map[string]map[core.UserID]struct{}),
		monthlyActiveUsers:        make(map[string]map[core.UserID]struct{}),
		pointsEarnedByDay:         make(map[string]int64),
		pointsEarnedByActivity:    make(map[core.ActivityType]int64),
		pointsRedeemedByDay:       make(map[string]int64),
		redemptionsByReward:       make(map[core.RewardID]int64),
		redeemFailuresByReason:    make(map[string]int64),
		levelUpsByDay:             make(map[string]int64),
		levelDistribution:         make(map[int64]int),
		achievementsUnlockedByDay: make(map[string]int64),
		achievementsByID:          make(map[core.AchievementID]int64),
	}
	m.realtimeCounters.lastReset = time.Now()
	return m
}

func (m *Metrics) OnEvent(e core.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// reset the rolling window before counting into it
	if e.Time.Sub(m.realtimeCounters.lastReset) > 24*time.Hour {
		m.realtimeCounters.pointsEarned = 0
		m.realtimeCounters.pointsRedeemed = 0
		m.realtimeCounters.levelUps = 0
		m.realtimeCounters.lastReset = e.Time
	}

	day := dayKey(e.Time)
	if engagement(e) {
		m.trackUserEngagement(e.UserID, day, weekKey(e.Time), monthKey(e.Time))
	}

	switch e.Type {
	case core.EventPointsEarned:
		if e.Amount > 0 {
			m.pointsEarnedByDay[day] += e.Amount
			m.pointsEarnedByActivity[e.Activity] += e.Amount
			m.realtimeCounters.pointsEarned += e.Amount
		}
	case core.EventRedeemed:
		m.pointsRedeemedByDay[day] += e.Amount
		if e.Reward != nil {
			m.redemptionsByReward[e.Reward.ID]++
		}
		m.realtimeCounters.pointsRedeemed += e.Amount
	case core.EventRedeemFailed:
		m.redeemFailuresByReason[e.Reason]++
	case core.EventLevelUp:
		m.levelUpsByDay[day]++
		m.levelDistribution[e.ToLevel]++
		m.realtimeCounters.levelUps++
	case core.EventAchievementUnlocked:
		if e.Achievement != nil {
			m.achievementsUnlockedByDay[day]++
			m.achievementsByID[e.Achievement.ID]++
		}
	case core.EventPersistenceFailed:
		m.persistenceFailures++
	}
}

func (m *Metrics) trackUserEngagement(userID core.UserID, day, week, month string) {
	add := func(bucket map[string]map[core.UserID]struct{}, key string) {
		if bucket[key] == nil {
			bucket[key] = make(map[core.UserID]struct{})
		}
		bucket[key][userID] = struct{}{}
	}
	add(m.dailyActiveUsers, day)
	add(m.weeklyActiveUsers, week)
	add(m.monthlyActiveUsers, month)
}

// GetDailyActiveUsers returns the count of daily active users for a specific day
func (m *Metrics) GetDailyActiveUsers(day string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.dailyActiveUsers[day])
}

// GetWeeklyActiveUsers returns the count of weekly active users for a specific week
func (m *Metrics) GetWeeklyActiveUsers(week string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.weeklyActiveUsers[week])
}

// GetMonthlyActiveUsers returns the count of monthly active users for a specific month
func (m *Metrics) GetMonthlyActiveUsers(month string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.monthlyActiveUsers[month])
}

func (m *Metrics) GetPointsEarnedByDay(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pointsEarnedByDay[day]
}

func (m *Metrics) GetPointsEarnedByActivity(t core.ActivityType) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pointsEarnedByActivity[t]
}

func (m *Metrics) GetPointsRedeemedByDay(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pointsRedeemedByDay[day]
}

func (m *Metrics) GetRedemptions(reward core.RewardID) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.redemptionsByReward[reward]
}

func (m *Metrics) GetRedeemFailures(reason string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.redeemFailuresByReason[reason]
}

func (m *Metrics) GetLevelUpsByDay(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.levelUpsByDay[day]
}

// GetLevelDistribution returns how often each level was reached.
func (m *Metrics) GetLevelDistribution() map[int64]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64]int, len(m.levelDistribution))
	for k, v := range m.levelDistribution {
		out[k] = v
	}
	return out
}

func (m *Metrics) GetAchievementsUnlockedByDay(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.achievementsUnlockedByDay[day]
}

func (m *Metrics) GetAchievementUnlocks(id core.AchievementID) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.achievementsByID[id]
}

func (m *Metrics) GetPersistenceFailures() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.persistenceFailures
}

// GetRealtimeStats returns rolling 24 hour counters.
func (m *Metrics) GetRealtimeStats() (earned, redeemed, levelUps int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.realtimeCounters.pointsEarned,
		m.realtimeCounters.pointsRedeemed,
		m.realtimeCounters.levelUps
}

// ActivityPoints pairs an activity type with the points it earned.
type ActivityPoints struct {
	Activity core.ActivityType `json:"activity"`
	Points   int64             `json:"points"`
}

// TopActivities returns the activity types that earned the most points, best first.
func (m *Metrics) TopActivities(limit int) []ActivityPoints {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ActivityPoints, 0, len(m.pointsEarnedByActivity))
	for a, p := range m.pointsEarnedByActivity {
		out = append(out, ActivityPoints{Activity: a, Points: p})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points == out[j].Points {
			return out[i].Activity < out[j].Activity
		}
		return out[i].Points > out[j].Points
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Helper functions
func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func weekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func monthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
