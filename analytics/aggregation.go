package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"ecorewards/core"
)

// AggregationPeriod represents different time periods for aggregation
type AggregationPeriod string

const (
	PeriodDaily   AggregationPeriod = "daily"
	PeriodWeekly  AggregationPeriod = "weekly"
	PeriodMonthly AggregationPeriod = "monthly"
)

// AggregatedData represents aggregated analytics data
type AggregatedData struct {
	Period    AggregationPeriod `json:"period"`
	Key       string            `json:"key"` // e.g., "2024-01-01" for daily, "2024-W01" for weekly
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time"`

	ActiveUsers          int   `json:"active_users"`
	PointsEarned         int64 `json:"points_earned"`
	PointsRedeemed       int64 `json:"points_redeemed"`
	LevelUps             int64 `json:"level_ups"`
	AchievementsUnlocked int64 `json:"achievements_unlocked"`

	CreatedAt time.Time `json:"created_at"`
}

// AggregationEngine periodically rolls Metrics up into daily, weekly and monthly summaries.
type AggregationEngine struct {
	mu sync.RWMutex

	metrics *Metrics
	log     *slog.Logger
	now     func() time.Time

	aggregations map[AggregationPeriod]map[string]*AggregatedData

	aggregationInterval time.Duration
	lastAggregation     time.Time
}

func NewAggregationEngine(metrics *Metrics, aggregationInterval time.Duration, log *slog.Logger) *AggregationEngine {
	if log == nil {
		log = slog.Default()
	}
	return &AggregationEngine{
		metrics: metrics,
		log:     log,
		now:     time.Now,
		aggregations: map[AggregationPeriod]map[string]*AggregatedData{
			PeriodDaily:   {},
			PeriodWeekly:  {},
			PeriodMonthly: {},
		},
		aggregationInterval: aggregationInterval,
	}
}

// OnEvent forwards events to the underlying metrics
func (ae *AggregationEngine) OnEvent(e core.Event) {
	ae.metrics.OnEvent(e)
}

// AggregateNow forces an immediate aggregation of all periods
func (ae *AggregationEngine) AggregateNow() {
	ae.AggregateAt(ae.now())
}

// AggregateAt rolls up the day, week and month containing t.
func (ae *AggregationEngine) AggregateAt(t time.Time) {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)

	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	weekStart := day.AddDate(0, 0, -daysSinceMonday)
	monthStart := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)

	daily := ae.rollup(PeriodDaily, dayKey(t), day, day.AddDate(0, 0, 1), t)
	daily.ActiveUsers = ae.metrics.GetDailyActiveUsers(daily.Key)
	weekly := ae.rollup(PeriodWeekly, weekKey(t), weekStart, weekStart.AddDate(0, 0, 7), t)
	weekly.ActiveUsers = ae.metrics.GetWeeklyActiveUsers(weekly.Key)
	monthly := ae.rollup(PeriodMonthly, monthKey(t), monthStart, monthStart.AddDate(0, 1, 0), t)
	monthly.ActiveUsers = ae.metrics.GetMonthlyActiveUsers(monthly.Key)

	ae.mu.Lock()
	defer ae.mu.Unlock()
	ae.aggregations[PeriodDaily][daily.Key] = daily
	ae.aggregations[PeriodWeekly][weekly.Key] = weekly
	ae.aggregations[PeriodMonthly][monthly.Key] = monthly
	ae.lastAggregation = t
}

// rollup sums the per-day counters over [start, end).
func (ae *AggregationEngine) rollup(period AggregationPeriod, key string, start, end, now time.Time) *AggregatedData {
	data := &AggregatedData{Period: period, Key: key, StartTime: start, EndTime: end, CreatedAt: now}
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		k := dayKey(d)
		data.PointsEarned += ae.metrics.GetPointsEarnedByDay(k)
		data.PointsRedeemed += ae.metrics.GetPointsRedeemedByDay(k)
		data.LevelUps += ae.metrics.GetLevelUpsByDay(k)
		data.AchievementsUnlocked += ae.metrics.GetAchievementsUnlockedByDay(k)
	}
	return data
}

// GetAggregatedData returns aggregated data for a specific period and key
func (ae *AggregationEngine) GetAggregatedData(period AggregationPeriod, key string) (*AggregatedData, bool) {
	ae.mu.RLock()
	defer ae.mu.RUnlock()
	data, exists := ae.aggregations[period][key]
	return data, exists
}

// GetAllAggregatedData returns all aggregated data for a period, oldest first.
func (ae *AggregationEngine) GetAllAggregatedData(period AggregationPeriod) []*AggregatedData {
	ae.mu.RLock()
	defer ae.mu.RUnlock()

	result := make([]*AggregatedData, 0, len(ae.aggregations[period]))
	for _, data := range ae.aggregations[period] {
		result = append(result, data)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return result
}

// Start aggregates immediately and then every interval until ctx is done.
func (ae *AggregationEngine) Start(ctx context.Context) {
	ticker := time.NewTicker(ae.aggregationInterval)
	defer ticker.Stop()

	ae.AggregateNow()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ae.AggregateNow()
			ae.log.Debug("analytics aggregated", "at", ae.LastAggregation())
		}
	}
}

func (ae *AggregationEngine) LastAggregation() time.Time {
	ae.mu.RLock()
	defer ae.mu.RUnlock()
	return ae.lastAggregation
}

// ExportData exports aggregated data to JSON format
func (ae *AggregationEngine) ExportData(period AggregationPeriod) ([]byte, error) {
	switch period {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
	default:
		return nil, fmt.Errorf("unknown aggregation period %q", period)
	}
	return json.MarshalIndent(ae.GetAllAggregatedData(period), "", "  ")
}
