package core

import (
	"errors"
	"fmt"
	"strings"
)

// AchievementID names a one-time unlockable milestone.
type AchievementID string

const (
	AchievementFirstPickup    AchievementID = "first_pickup"
	AchievementRecycle5       AchievementID = "recycle_5"
	AchievementPoints500      AchievementID = "points_500"
	AchievementStreak7        AchievementID = "streak_7"
	AchievementLevel5         AchievementID = "level_5"
	AchievementReferral3      AchievementID = "referral_3"
	AchievementEarthSaver     AchievementID = "earth_saver"
	AchievementNightOwl       AchievementID = "night_owl"
	AchievementEarlyBird      AchievementID = "early_bird"
	AchievementWeekendWarrior AchievementID = "weekend_warrior"
)

// Achievement is a static catalog entry.
type Achievement struct {
	ID          AchievementID `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	PointReward int64         `json:"point_reward"`
	Category    string        `json:"category"`
	Rarity      string        `json:"rarity"`
	Icon        string        `json:"icon,omitempty"`
}

// RewardID names a redeemable reward.
type RewardID string

// Availability tells whether a reward has limited stock.
type Availability string

const (
	AvailabilityUnlimited Availability = "unlimited"
	AvailabilityLimited   Availability = "limited"
)

// Reward is a catalog entry exchangeable for points.
type Reward struct {
	ID           RewardID     `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	Cost         int64        `json:"cost"`
	Category     string       `json:"category"`
	Availability Availability `json:"availability"`
	Icon         string       `json:"icon,omitempty"`
}

// Catalog bundles the static configuration the engine runs against.
// Achievement order is the evaluation order.
type Catalog struct {
	Achievements []Achievement          `json:"achievements"`
	Rewards      []Reward               `json:"rewards"`
	Levels       LevelPolicy            `json:"levels"`
	PointValues  map[ActivityType]int64 `json:"point_values"`
}

// DefaultCatalog returns the recycling program's catalog.
func DefaultCatalog() Catalog {
	return Catalog{
		Achievements: DefaultAchievements(),
		Rewards:      DefaultRewards(),
		Levels:       DefaultLevelPolicy(),
		PointValues:  DefaultPointValues(),
	}
}

// Achievement looks an entry up by id.
func (c Catalog) Achievement(id AchievementID) (Achievement, bool) {
	for _, a := range c.Achievements {
		if a.ID == id {
			return a, true
		}
	}
	return Achievement{}, false
}

// Reward looks an entry up by id.
func (c Catalog) Reward(id RewardID) (Reward, bool) {
	for _, r := range c.Rewards {
		if r.ID == id {
			return r, true
		}
	}
	return Reward{}, false
}

// PointValue returns the default award for an activity type, zero if none.
func (c Catalog) PointValue(t ActivityType) int64 {
	return c.PointValues[t]
}

// Validate checks ids are unique and well formed, costs positive and rewards non-negative.
func (c Catalog) Validate() error {
	var errs []string
	seen := map[string]struct{}{}
	for i, a := range c.Achievements {
		if err := ValidateCatalogID(string(a.ID)); err != nil {
			errs = append(errs, fmt.Sprintf("achievements[%d]: %v", i, err))
		}
		if _, dup := seen["a:"+string(a.ID)]; dup {
			errs = append(errs, fmt.Sprintf("achievements[%d]: duplicate id %s", i, a.ID))
		}
		seen["a:"+string(a.ID)] = struct{}{}
		if a.PointReward < 0 {
			errs = append(errs, fmt.Sprintf("achievements[%d]: point_reward must be >= 0", i))
		}
	}
	for i, r := range c.Rewards {
		if err := ValidateCatalogID(string(r.ID)); err != nil {
			errs = append(errs, fmt.Sprintf("rewards[%d]: %v", i, err))
		}
		if _, dup := seen["r:"+string(r.ID)]; dup {
			errs = append(errs, fmt.Sprintf("rewards[%d]: duplicate id %s", i, r.ID))
		}
		seen["r:"+string(r.ID)] = struct{}{}
		if r.Cost <= 0 {
			errs = append(errs, fmt.Sprintf("rewards[%d]: cost must be > 0", i))
		}
	}
	if err := c.Levels.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("levels: %v", err))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func DefaultAchievements() []Achievement {
	return []Achievement{
		{ID: AchievementFirstPickup, Name: "First Steps", Description: "Complete your first e-waste pickup", PointReward: 50, Category: "milestone", Rarity: "common", Icon: "fas fa-star"},
		{ID: AchievementRecycle5, Name: "Eco Warrior", Description: "Recycle 5 different items", PointReward: 100, Category: "milestone", Rarity: "uncommon", Icon: "fas fa-shield-alt"},
		{ID: AchievementPoints500, Name: "Point Master", Description: "Accumulate 500 total points", PointReward: 200, Category: "points", Rarity: "rare", Icon: "fas fa-trophy"},
		{ID: AchievementStreak7, Name: "Consistent Recycler", Description: "Maintain a 7-day recycling streak", PointReward: 150, Category: "streak", Rarity: "rare", Icon: "fas fa-fire"},
		{ID: AchievementLevel5, Name: "Eco Champion", Description: "Reach level 5", PointReward: 300, Category: "level", Rarity: "epic", Icon: "fas fa-crown"},
		{ID: AchievementReferral3, Name: "Community Builder", Description: "Successfully refer 3 friends", PointReward: 250, Category: "social", Rarity: "rare", Icon: "fas fa-users"},
		{ID: AchievementEarthSaver, Name: "Earth Saver", Description: "Recycle 100kg of e-waste", PointReward: 500, Category: "impact", Rarity: "legendary", Icon: "fas fa-globe-americas"},
		{ID: AchievementNightOwl, Name: "Night Owl", Description: "Schedule pickup between 6PM-8PM", PointReward: 25, Category: "special", Rarity: "uncommon", Icon: "fas fa-moon"},
		{ID: AchievementEarlyBird, Name: "Early Bird", Description: "Schedule pickup before 10AM", PointReward: 25, Category: "special", Rarity: "uncommon", Icon: "fas fa-sun"},
		{ID: AchievementWeekendWarrior, Name: "Weekend Warrior", Description: "Recycle on weekends", PointReward: 30, Category: "special", Rarity: "uncommon", Icon: "fas fa-calendar-weekend"},
	}
}

func DefaultRewards() []Reward {
	return []Reward{
		{ID: "discount_5", Name: "5% Pickup Discount", Description: "Get 5% off your next pickup", Cost: 100, Category: "discount", Availability: AvailabilityUnlimited, Icon: "fas fa-percentage"},
		{ID: "discount_10", Name: "10% Pickup Discount", Description: "Get 10% off your next pickup", Cost: 200, Category: "discount", Availability: AvailabilityUnlimited, Icon: "fas fa-tags"},
		{ID: "priority_slot", Name: "Priority Time Slot", Description: "Get priority booking for preferred time slots", Cost: 150, Category: "service", Availability: AvailabilityLimited, Icon: "fas fa-clock"},
		{ID: "free_pickup", Name: "Free Pickup Service", Description: "One free pickup service (up to 5 items)", Cost: 500, Category: "service", Availability: AvailabilityLimited, Icon: "fas fa-truck"},
		{ID: "eco_certificate", Name: "Eco-Warrior Certificate", Description: "Digital certificate of your environmental contribution", Cost: 300, Category: "certificate", Availability: AvailabilityUnlimited, Icon: "fas fa-certificate"},
		{ID: "plant_tree", Name: "Plant a Tree", Description: "We plant a tree in your name", Cost: 250, Category: "impact", Availability: AvailabilityLimited, Icon: "fas fa-tree"},
	}
}

// DefaultPointValues are the awards used when an earn request names an activity but no amount.
func DefaultPointValues() map[ActivityType]int64 {
	return map[ActivityType]int64{
		ActivityPickup:       25,
		ActivityReferral:     50,
		ActivityReview:       10,
		ActivityShare:        5,
		ActivityDailyLogin:   5,
		ActivityBonusWeekend: 10,
		ActivityBonusStreak:  5,
	}
}
