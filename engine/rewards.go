package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"ecorewards/core"
)

// DefaultMaxActivities bounds the live activity history of a profile.
const DefaultMaxActivities = 200

// Options configures a RewardsEngine. Zero values fall back to defaults.
type Options struct {
	Catalog       core.Catalog
	Rules         core.Rules
	Clock         Clock
	MaxActivities int
	Logger        *slog.Logger
	// NewID generates activity record ids.
	NewID func() string
}

func (o Options) withDefaults() Options {
	if o.Catalog.Achievements == nil && o.Catalog.Rewards == nil {
		o.Catalog = core.DefaultCatalog()
	}
	if o.Rules == nil {
		o.Rules = core.DefaultRules()
	}
	if o.Clock == nil {
		o.Clock = SystemClock
	}
	if o.MaxActivities == 0 {
		o.MaxActivities = DefaultMaxActivities
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// ActivityMeta describes the activity behind a point award.
type ActivityMeta struct {
	Type     core.ActivityType `json:"type,omitempty"`
	Impact   string            `json:"impact,omitempty"`
	WeightKg float64           `json:"weight_kg,omitempty"`
	// Items counts recycled items of a pickup; zero means one.
	Items int64 `json:"items,omitempty"`
}

// LevelChange is one level transition.
type LevelChange struct {
	From  int64            `json:"from"`
	To    int64            `json:"to"`
	Bonus *core.LevelBonus `json:"bonus,omitempty"`
}

// Outcome summarises the effect of one operation.
type Outcome struct {
	Points   int64              `json:"points"`
	Level    int64              `json:"level"`
	Streak   int64              `json:"streak"`
	Unlocked []core.Achievement `json:"unlocked,omitempty"`
	LevelUps []LevelChange      `json:"level_ups,omitempty"`
}

// RewardsEngine is the single authority over one user's profile.
// Every mutation runs to completion under mu, persists once, then notifies.
// Handlers subscribed to the bus must not call back into the same engine synchronously.
type RewardsEngine struct {
	mu      sync.Mutex
	profile core.UserProfile
	store   Store
	bus     *EventBus
	opts    Options
}

func NewRewardsEngine(profile core.UserProfile, store Store, bus *EventBus, opts Options) *RewardsEngine {
	if store == nil || bus == nil {
		panic("NewRewardsEngine requires non-nil store and bus")
	}
	opts = opts.withDefaults()
	if profile.Level < 1 {
		profile.Level = 1
	}
	return &RewardsEngine{profile: profile.Clone(), store: store, bus: bus, opts: opts}
}

// change collects the events and outcome of one mutation until commit.
type change struct {
	now    time.Time
	next   core.UserProfile
	events []core.Event
	out    Outcome
}

func (e *RewardsEngine) begin() *change {
	return &change{now: e.opts.Clock.Now(), next: e.profile.Clone()}
}

// EarnPoints awards a positive amount for an activity, then re-levels and evaluates achievements.
func (e *RewardsEngine) EarnPoints(ctx context.Context, amount int64, reason string, meta ActivityMeta) (Outcome, error) {
	if amount <= 0 {
		return Outcome{}, core.ErrInvalidAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.begin()
	typ := meta.Type
	if typ == "" {
		typ = core.ActivityPoints
	}
	c.next.Prepend(core.ActivityRecord{
		ID:          e.opts.NewID(),
		Type:        typ,
		Description: reason,
		Points:      amount,
		Timestamp:   c.now,
		Impact:      meta.Impact,
		WeightKg:    meta.WeightKg,
		Items:       meta.Items,
	})
	total, err := core.AddSafe(c.next.Points, amount)
	if err != nil {
		return Outcome{}, err
	}
	c.next.Points = total
	if typ == core.ActivityPickup {
		items := meta.Items
		if items <= 0 {
			items = 1
		}
		c.next.TotalRecycled += items
	}
	c.events = append(c.events, core.NewPointsEarned(c.now, c.next.UserID, amount, total, reason, typ))

	e.relevel(c)
	if err := e.evaluate(c); err != nil {
		return Outcome{}, err
	}
	return e.commit(ctx, c)
}

// EvaluateAchievements unlocks every achievement whose predicate now holds.
// It persists and notifies only when something unlocked.
func (e *RewardsEngine) EvaluateAchievements(ctx context.Context) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.begin()
	if err := e.evaluate(c); err != nil {
		return Outcome{}, err
	}
	if len(c.out.Unlocked) == 0 {
		return e.outcome(c), nil
	}
	return e.commit(ctx, c)
}

// Redeem exchanges points for a catalog reward. Level is left untouched.
// Failures change nothing and are reported on the bus as redeem_failed.
func (e *RewardsEngine) Redeem(ctx context.Context, id core.RewardID) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.opts.Clock.Now()
	reward, ok := e.opts.Catalog.Reward(id)
	if !ok {
		e.bus.Publish(ctx, core.NewRedeemFailed(now, e.profile.UserID, id, core.ErrUnknownReward.Error()))
		return Outcome{}, fmt.Errorf("%w: %s", core.ErrUnknownReward, id)
	}
	if e.profile.Points < reward.Cost {
		e.bus.Publish(ctx, core.NewRedeemFailed(now, e.profile.UserID, id, core.ErrInsufficientPoints.Error()))
		return Outcome{}, fmt.Errorf("%w: need %d, have %d", core.ErrInsufficientPoints, reward.Cost, e.profile.Points)
	}

	c := e.begin()
	c.now = now
	c.next.Points -= reward.Cost
	c.events = append(c.events, core.NewRedeemed(now, c.next.UserID, reward, c.next.Points))
	return e.commit(ctx, c)
}

// CloseDay settles the streak for every calendar day up to and including day.
// A day qualifies when the history holds a non-achievement activity on it.
// Days already closed are skipped, so repeated calls are no-ops.
func (e *RewardsEngine) CloseDay(ctx context.Context, day time.Time) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.begin()
	target := startOfDay(day)
	first := target
	if !c.next.StreakDay.IsZero() {
		if !target.After(c.next.StreakDay) {
			return e.outcome(c), nil
		}
		first = startOfDay(c.next.StreakDay.In(target.Location())).AddDate(0, 0, 1)
		// a gap longer than a year cannot keep a streak alive
		if target.Sub(first) > 366*24*time.Hour {
			c.next.Streak = 0
			first = target
		}
	}
	for d := first; !d.After(target); d = d.AddDate(0, 0, 1) {
		if activeOn(c.next, d) {
			c.next.Streak++
			if c.next.Streak > c.next.LongestStreak {
				c.next.LongestStreak = c.next.Streak
			}
		} else {
			c.next.Streak = 0
		}
	}
	c.next.StreakDay = target
	c.events = append(c.events, core.NewStreakUpdated(c.now, c.next.UserID, c.next.Streak))

	if err := e.evaluate(c); err != nil {
		return Outcome{}, err
	}
	return e.commit(ctx, c)
}

// Snapshot returns a deep copy of the profile.
func (e *RewardsEngine) Snapshot() core.UserProfile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profile.Clone()
}

// View returns the render view of the current profile.
func (e *RewardsEngine) View() core.View {
	return core.NewView(e.opts.Catalog, e.Snapshot())
}

// Impact recomputes impact statistics from the activity history.
func (e *RewardsEngine) Impact() core.ImpactStats {
	return core.ComputeImpact(e.Snapshot())
}

// Progress reports progress toward every catalog achievement.
func (e *RewardsEngine) Progress() []core.AchievementProgress {
	return core.ProgressReport(e.opts.Catalog, e.opts.Rules, e.Snapshot())
}

// relevel raises the level to match the balance. Levels never go down.
func (e *RewardsEngine) relevel(c *change) {
	lvl := e.opts.Catalog.Levels.Level(c.next.Points)
	if lvl <= c.next.Level {
		return
	}
	lc := LevelChange{From: c.next.Level, To: lvl}
	if b, ok := e.opts.Catalog.Levels.Bonus(lvl); ok {
		lc.Bonus = &b
	}
	c.next.Level = lvl
	c.out.LevelUps = append(c.out.LevelUps, lc)
	c.events = append(c.events, core.NewLevelUp(c.now, c.next.UserID, lc.From, lc.To, lc.Bonus))
}

// evaluate walks the catalog in order, repeating until a full pass unlocks nothing.
func (e *RewardsEngine) evaluate(c *change) error {
	for {
		unlocked := false
		for _, a := range e.opts.Catalog.Achievements {
			if c.next.HasAchievement(a.ID) || !e.opts.Rules.Unlocked(a.ID, c.next) {
				continue
			}
			total, err := core.AddSafe(c.next.Points, a.PointReward)
			if err != nil {
				return err
			}
			c.next.Achievements = append(c.next.Achievements, a.ID)
			c.next.Points = total
			c.next.Prepend(core.ActivityRecord{
				ID:          e.opts.NewID(),
				Type:        core.ActivityAchievement,
				Description: fmt.Sprintf("Unlocked %q achievement", a.Name),
				Points:      a.PointReward,
				Timestamp:   c.now,
				Impact:      "Achievement unlocked",
			})
			c.out.Unlocked = append(c.out.Unlocked, a)
			c.events = append(c.events, core.NewAchievementUnlocked(c.now, c.next.UserID, a, total))
			e.relevel(c)
			unlocked = true
		}
		if !unlocked {
			return nil
		}
	}
}

// commit installs the new profile, saves it once and then emits the queued notifications
// followed by a single profile_changed. A failed save keeps the in-memory change.
func (e *RewardsEngine) commit(ctx context.Context, c *change) (Outcome, error) {
	c.next.Retain(e.opts.MaxActivities)
	c.next.Updated = c.now
	e.profile = c.next

	saveErr := e.store.Save(ctx, e.profile.Clone())
	for _, ev := range c.events {
		e.bus.Publish(ctx, ev)
	}
	if saveErr != nil {
		e.opts.Logger.Warn("profile save failed", "user", e.profile.UserID, "error", saveErr)
		e.bus.Publish(ctx, core.NewPersistenceFailed(c.now, e.profile.UserID, saveErr.Error()))
	}
	e.bus.Publish(ctx, core.NewProfileChanged(c.now, core.NewView(e.opts.Catalog, e.profile.Clone())))

	out := e.outcome(c)
	if saveErr != nil {
		return out, fmt.Errorf("%w: %w", core.ErrPersistence, saveErr)
	}
	return out, nil
}

func (e *RewardsEngine) outcome(c *change) Outcome {
	out := c.out
	out.Points = c.next.Points
	out.Level = c.next.Level
	out.Streak = c.next.Streak
	return out
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func activeOn(p core.UserProfile, day time.Time) bool {
	end := day.AddDate(0, 0, 1)
	for _, a := range p.Activities {
		if a.Type == core.ActivityAchievement {
			continue
		}
		ts := a.Timestamp.In(day.Location())
		if !ts.Before(day) && ts.Before(end) {
			return true
		}
		// newest first: nothing older can match
		if ts.Before(day) {
			return false
		}
	}
	return false
}
