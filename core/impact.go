package core

import "math"

const (
	treesPerKg = 0.1
	kWhPerKg   = 15.5
)

// ImpactStats are environmental figures derived from the activity history. They are never stored.
type ImpactStats struct {
	TotalWeightKg   float64 `json:"total_weight_kg"`
	TreesEquivalent int64   `json:"trees_equivalent"`
	EnergySavedKWh  int64   `json:"energy_saved_kwh"`
}

// ComputeImpact derives impact statistics from the pickups of a profile.
func ComputeImpact(p UserProfile) ImpactStats {
	w := p.TotalWeightKg()
	return ImpactStats{
		TotalWeightKg:   w,
		TreesEquivalent: int64(math.Floor(w * treesPerKg)),
		EnergySavedKWh:  int64(math.Floor(w * kWhPerKg)),
	}
}

// View is what a render sink receives on every profile change.
type View struct {
	Profile      UserProfile   `json:"profile"`
	Level        LevelProgress `json:"level_progress"`
	Impact       ImpactStats   `json:"impact"`
	Achievements []Achievement `json:"achievements"`
	Rewards      []Reward      `json:"rewards"`
}

// NewView assembles a read-only view. The profile must already be a copy.
func NewView(c Catalog, p UserProfile) View {
	return View{
		Profile:      p,
		Level:        c.Levels.Progress(p.Points, p.Level),
		Impact:       ComputeImpact(p),
		Achievements: append([]Achievement{}, c.Achievements...),
		Rewards:      append([]Reward{}, c.Rewards...),
	}
}
