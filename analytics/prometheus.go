package analytics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ecorewards/core"
)

// PromCollector mirrors engine events into Prometheus counters.
type PromCollector struct {
	events         *prometheus.CounterVec
	pointsEarned   *prometheus.CounterVec
	pointsRedeemed *prometheus.CounterVec
	redeemFailures *prometheus.CounterVec
	achievements   *prometheus.CounterVec
	levelUps       prometheus.Counter
	persistFails   prometheus.Counter
}

// NewPromCollector registers the counters on reg; a nil reg uses the default registerer.
func NewPromCollector(reg prometheus.Registerer) *PromCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &PromCollector{
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ecorewards_events_total",
			Help: "Engine notifications by type",
		}, []string{"type"}),
		pointsEarned: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ecorewards_points_earned_total",
			Help: "Points awarded by activity type",
		}, []string{"activity"}),
		pointsRedeemed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ecorewards_points_redeemed_total",
			Help: "Points spent by reward",
		}, []string{"reward"}),
		redeemFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ecorewards_redeem_failures_total",
			Help: "Rejected redemptions by reason",
		}, []string{"reason"}),
		achievements: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ecorewards_achievements_unlocked_total",
			Help: "Achievement unlocks by id",
		}, []string{"achievement"}),
		levelUps: f.NewCounter(prometheus.CounterOpts{
			Name: "ecorewards_level_ups_total",
			Help: "Level transitions",
		}),
		persistFails: f.NewCounter(prometheus.CounterOpts{
			Name: "ecorewards_persistence_failures_total",
			Help: "Profile saves that failed",
		}),
	}
}

func (p *PromCollector) OnEvent(e core.Event) {
	p.events.WithLabelValues(string(e.Type)).Inc()
	switch e.Type {
	case core.EventPointsEarned:
		p.pointsEarned.WithLabelValues(string(e.Activity)).Add(float64(e.Amount))
	case core.EventRedeemed:
		if e.Reward != nil {
			p.pointsRedeemed.WithLabelValues(string(e.Reward.ID)).Add(float64(e.Amount))
		}
	case core.EventRedeemFailed:
		p.redeemFailures.WithLabelValues(e.Reason).Inc()
	case core.EventAchievementUnlocked:
		if e.Achievement != nil {
			p.achievements.WithLabelValues(string(e.Achievement.ID)).Inc()
		}
	case core.EventLevelUp:
		p.levelUps.Inc()
	case core.EventPersistenceFailed:
		p.persistFails.Inc()
	}
}
