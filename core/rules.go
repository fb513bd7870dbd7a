package core

import "math"

// Predicate decides whether an achievement is earned by the given profile.
type Predicate func(p UserProfile) bool

// Progress reports how close a profile is to an achievement: current out of target.
type Progress func(p UserProfile) (current, target int64)

// Rule pairs the unlock predicate with its progress measure.
type Rule struct {
	Unlocked Predicate
	Progress Progress
}

// Rules is the predicate table keyed by achievement id.
type Rules map[AchievementID]Rule

// DefaultRules returns the unlock rules of the default catalog.
// night_owl, early_bird and weekend_warrior have no rule and never unlock.
func DefaultRules() Rules {
	return Rules{
		AchievementFirstPickup: {
			Unlocked: func(p UserProfile) bool { return p.CountActivities(ActivityPickup) >= 1 },
			Progress: func(p UserProfile) (int64, int64) { return clamp(p.CountActivities(ActivityPickup), 1), 1 },
		},
		AchievementRecycle5:  threshold(5, func(p UserProfile) int64 { return p.TotalRecycled }),
		AchievementPoints500: threshold(500, func(p UserProfile) int64 { return p.Points }),
		AchievementStreak7:   threshold(7, func(p UserProfile) int64 { return p.Streak }),
		AchievementLevel5:    threshold(5, func(p UserProfile) int64 { return p.Level }),
		AchievementReferral3: threshold(3, func(p UserProfile) int64 { return p.CountActivities(ActivityReferral) }),
		AchievementEarthSaver: {
			Unlocked: func(p UserProfile) bool { return p.TotalWeightKg() >= 100 },
			Progress: func(p UserProfile) (int64, int64) {
				return clamp(int64(math.Floor(p.TotalWeightKg())), 100), 100
			},
		},
	}
}

// Unlocked evaluates the rule for id; ids without a rule never unlock.
func (r Rules) Unlocked(id AchievementID, p UserProfile) bool {
	rule, ok := r[id]
	if !ok || rule.Unlocked == nil {
		return false
	}
	return rule.Unlocked(p)
}

func threshold(target int64, value func(UserProfile) int64) Rule {
	return Rule{
		Unlocked: func(p UserProfile) bool { return value(p) >= target },
		Progress: func(p UserProfile) (int64, int64) { return clamp(value(p), target), target },
	}
}

func clamp(v, max int64) int64 {
	if v > max {
		return max
	}
	if v < 0 {
		return 0
	}
	return v
}

// AchievementProgress is one row of a profile's progress report.
type AchievementProgress struct {
	Achievement Achievement `json:"achievement"`
	Current     int64       `json:"current"`
	Target      int64       `json:"target"`
	Unlocked    bool        `json:"unlocked"`
}

// ProgressReport lists every catalog achievement with the profile's progress toward it.
func ProgressReport(c Catalog, rules Rules, p UserProfile) []AchievementProgress {
	out := make([]AchievementProgress, 0, len(c.Achievements))
	for _, a := range c.Achievements {
		row := AchievementProgress{Achievement: a, Target: 1, Unlocked: p.HasAchievement(a.ID)}
		if rule, ok := rules[a.ID]; ok && rule.Progress != nil {
			row.Current, row.Target = rule.Progress(p)
		}
		if row.Unlocked {
			row.Current = row.Target
		}
		out = append(out, row)
	}
	return out
}
