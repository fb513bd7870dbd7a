package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// UserID uniquely identifies a profile owner.
type UserID string

// ActivityType classifies an entry of the activity history.
type ActivityType string

const (
	ActivityPickup       ActivityType = "pickup"
	ActivityReferral     ActivityType = "referral"
	ActivityReview       ActivityType = "review"
	ActivityShare        ActivityType = "share"
	ActivityDailyLogin   ActivityType = "daily_login"
	ActivityAchievement  ActivityType = "achievement"
	ActivityPoints       ActivityType = "points"
	ActivityBonusWeekend ActivityType = "bonus_weekend"
	ActivityBonusStreak  ActivityType = "bonus_streak"
)

// ActivityRecord is one immutable entry of a user's history.
// WeightKg carries the recycled weight of pickups as a number; Impact is display text only.
type ActivityRecord struct {
	ID          string       `json:"id"`
	Type        ActivityType `json:"type"`
	Description string       `json:"description"`
	Points      int64        `json:"points"`
	Timestamp   time.Time    `json:"timestamp"`
	Impact      string       `json:"impact,omitempty"`
	WeightKg    float64      `json:"weight_kg,omitempty"`
	Items       int64        `json:"items,omitempty"`
}

// ActivityTally summarises activities evicted from the history by the retention cap.
type ActivityTally struct {
	Counts   map[ActivityType]int64 `json:"counts,omitempty"`
	WeightKg float64                `json:"weight_kg,omitempty"`
	Points   int64                  `json:"points,omitempty"`
}

func (t *ActivityTally) add(a ActivityRecord) {
	if t.Counts == nil {
		t.Counts = map[ActivityType]int64{}
	}
	t.Counts[a.Type]++
	t.Points += a.Points
	if a.Type == ActivityPickup {
		t.WeightKg += a.WeightKg
	}
}

// UserProfile is the root aggregate owned by a RewardsEngine.
// Values handed out of the engine are deep copies; see Clone.
type UserProfile struct {
	UserID        UserID           `json:"user_id"`
	Points        int64            `json:"points"`
	Level         int64            `json:"level"`
	Streak        int64            `json:"streak"`
	LongestStreak int64            `json:"longest_streak"`
	StreakDay     time.Time        `json:"streak_day,omitempty"`
	TotalRecycled int64            `json:"total_recycled"`
	Achievements  []AchievementID  `json:"achievements"`
	Activities    []ActivityRecord `json:"activities"`
	Archive       ActivityTally    `json:"archive"`
	LastActivity  time.Time        `json:"last_activity,omitempty"`
	JoinedAt      time.Time        `json:"joined_at"`
	Updated       time.Time        `json:"updated"`
}

// NewProfile returns an empty level 1 profile.
func NewProfile(user UserID, now time.Time) UserProfile {
	return UserProfile{
		UserID:       user,
		Level:        1,
		Achievements: []AchievementID{},
		Activities:   []ActivityRecord{},
		JoinedAt:     now,
		Updated:      now,
	}
}

// Clone returns a deep copy of the profile.
func (p UserProfile) Clone() UserProfile {
	cp := p
	cp.Achievements = append([]AchievementID{}, p.Achievements...)
	cp.Activities = append([]ActivityRecord{}, p.Activities...)
	if p.Archive.Counts != nil {
		cp.Archive.Counts = make(map[ActivityType]int64, len(p.Archive.Counts))
		for k, v := range p.Archive.Counts {
			cp.Archive.Counts[k] = v
		}
	}
	return cp
}

// HasAchievement reports whether id is already unlocked.
func (p UserProfile) HasAchievement(id AchievementID) bool {
	for _, a := range p.Achievements {
		if a == id {
			return true
		}
	}
	return false
}

// CountActivities counts records of the given type, archived ones included.
func (p UserProfile) CountActivities(t ActivityType) int64 {
	n := p.Archive.Counts[t]
	for _, a := range p.Activities {
		if a.Type == t {
			n++
		}
	}
	return n
}

// TotalWeightKg sums the recorded weight of every pickup, archived ones included.
func (p UserProfile) TotalWeightKg() float64 {
	total := p.Archive.WeightKg
	for _, a := range p.Activities {
		if a.Type == ActivityPickup {
			total += a.WeightKg
		}
	}
	return total
}

// Prepend adds a record at the head of the history (newest first).
func (p *UserProfile) Prepend(a ActivityRecord) {
	p.Activities = append([]ActivityRecord{a}, p.Activities...)
	if a.Timestamp.After(p.LastActivity) {
		p.LastActivity = a.Timestamp
	}
}

// Retain keeps at most max records, folding older ones into the archive tally.
// A max of zero or less keeps everything.
func (p *UserProfile) Retain(max int) {
	if max <= 0 || len(p.Activities) <= max {
		return
	}
	for _, a := range p.Activities[max:] {
		p.Archive.add(a)
	}
	p.Activities = append([]ActivityRecord{}, p.Activities[:max]...)
}

// AddSafe adds delta to base ensuring no signed overflow occurs.
func AddSafe(base int64, delta int64) (int64, error) {
	if (delta > 0 && base > math.MaxInt64-delta) || (delta < 0 && base < math.MinInt64-delta) {
		return 0, ErrOverflow
	}
	return base + delta, nil
}

// NormalizeUserID trims and lowercases user identifiers.
func NormalizeUserID(id UserID) (UserID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUser)
	}
	return UserID(strings.ToLower(s)), nil
}

// ValidateCatalogID checks catalog identifiers: alnum, dash and underscore only.
func ValidateCatalogID(id string) error {
	s := strings.TrimSpace(id)
	if s == "" {
		return errors.New("empty catalog id")
	}
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			continue
		}
		return errors.New("invalid catalog id")
	}
	return nil
}
