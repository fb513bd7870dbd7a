package core

import "time"

// EventType enumerates notifications emitted by the rewards engine.
type EventType string

const (
	EventPointsEarned        EventType = "points_earned"
	EventLevelUp             EventType = "level_up"
	EventAchievementUnlocked EventType = "achievement_unlocked"
	EventRedeemed            EventType = "redeemed"
	EventRedeemFailed        EventType = "redeem_failed"
	EventStreakUpdated       EventType = "streak_updated"
	EventPersistenceFailed   EventType = "persistence_failed"
	EventProfileChanged      EventType = "profile_changed"
)

// AllEventTypes lists every type in emission-contract order.
var AllEventTypes = []EventType{
	EventPointsEarned,
	EventLevelUp,
	EventAchievementUnlocked,
	EventRedeemed,
	EventRedeemFailed,
	EventStreakUpdated,
	EventPersistenceFailed,
	EventProfileChanged,
}

// Event represents an immutable notification. Only the fields relevant to Type are set.
type Event struct {
	Type        EventType    `json:"type"`
	Time        time.Time    `json:"time"`
	UserID      UserID       `json:"user_id"`
	Amount      int64        `json:"amount,omitempty"`
	Total       int64        `json:"total,omitempty"`
	Reason      string       `json:"reason,omitempty"`
	Activity    ActivityType `json:"activity,omitempty"`
	FromLevel   int64        `json:"from_level,omitempty"`
	ToLevel     int64        `json:"to_level,omitempty"`
	Bonus       *LevelBonus  `json:"bonus,omitempty"`
	Achievement *Achievement `json:"achievement,omitempty"`
	Reward      *Reward      `json:"reward,omitempty"`
	Streak      int64        `json:"streak,omitempty"`
	View        *View        `json:"view,omitempty"`
}

func NewPointsEarned(at time.Time, user UserID, amount, total int64, reason string, activity ActivityType) Event {
	return Event{Type: EventPointsEarned, Time: at, UserID: user, Amount: amount, Total: total, Reason: reason, Activity: activity}
}

// NewLevelUp carries both ends of the transition; a single award may cross several levels.
func NewLevelUp(at time.Time, user UserID, from, to int64, bonus *LevelBonus) Event {
	return Event{Type: EventLevelUp, Time: at, UserID: user, FromLevel: from, ToLevel: to, Bonus: bonus}
}

func NewAchievementUnlocked(at time.Time, user UserID, a Achievement, total int64) Event {
	return Event{Type: EventAchievementUnlocked, Time: at, UserID: user, Achievement: &a, Amount: a.PointReward, Total: total}
}

func NewRedeemed(at time.Time, user UserID, r Reward, total int64) Event {
	return Event{Type: EventRedeemed, Time: at, UserID: user, Reward: &r, Amount: r.Cost, Total: total}
}

func NewRedeemFailed(at time.Time, user UserID, reward RewardID, reason string) Event {
	return Event{Type: EventRedeemFailed, Time: at, UserID: user, Reward: &Reward{ID: reward}, Reason: reason}
}

func NewStreakUpdated(at time.Time, user UserID, streak int64) Event {
	return Event{Type: EventStreakUpdated, Time: at, UserID: user, Streak: streak}
}

func NewPersistenceFailed(at time.Time, user UserID, reason string) Event {
	return Event{Type: EventPersistenceFailed, Time: at, UserID: user, Reason: reason}
}

func NewProfileChanged(at time.Time, view View) Event {
	return Event{Type: EventProfileChanged, Time: at, UserID: view.Profile.UserID, Total: view.Profile.Points, View: &view}
}
