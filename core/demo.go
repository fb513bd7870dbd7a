package core

import "time"

// DemoProfile returns the showcase profile new sessions get when demo seeding is enabled.
// Record ids are stable so seeded histories compare equal across runs.
func DemoProfile(user UserID, now time.Time) UserProfile {
	day := 24 * time.Hour
	p := NewProfile(user, now)
	p.Points = 485
	p.Level = 4
	p.Streak = 3
	p.LongestStreak = 3
	p.TotalRecycled = 15
	p.Achievements = []AchievementID{AchievementFirstPickup, AchievementRecycle5, AchievementPoints500}
	p.Activities = []ActivityRecord{
		{ID: "demo-1", Type: ActivityPickup, Description: "Recycled laptop and accessories", Points: 50, Timestamp: now.Add(-1 * day), Impact: "2.5kg e-waste recycled", WeightKg: 2.5, Items: 3},
		{ID: "demo-2", Type: ActivityReferral, Description: "Referred Sarah Johnson", Points: 50, Timestamp: now.Add(-2 * day), Impact: "New user joined"},
		{ID: "demo-3", Type: ActivityAchievement, Description: "Unlocked Point Master achievement", Points: 200, Timestamp: now.Add(-3 * day), Impact: "Achievement unlocked"},
		{ID: "demo-4", Type: ActivityPickup, Description: "Recycled mobile phones and chargers", Points: 30, Timestamp: now.Add(-4 * day), Impact: "1.2kg e-waste recycled", WeightKg: 1.2, Items: 4},
	}
	p.LastActivity = now.Add(-1 * day)
	p.JoinedAt = now.Add(-30 * day)
	return p
}
