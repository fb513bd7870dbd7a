package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"ecorewards/core"
)

// RewardsService owns one RewardsEngine per user and loads them lazily from the store.
type RewardsService struct {
	store    Store
	bus      *EventBus
	opts     Options
	seedDemo bool

	mu      sync.RWMutex
	engines map[core.UserID]*RewardsEngine
	loads   singleflight.Group
}

// ServiceOption tweaks a RewardsService.
type ServiceOption func(*RewardsService)

// WithDemoSeed makes unknown users start from the showcase profile instead of an empty one.
func WithDemoSeed(on bool) ServiceOption { return func(s *RewardsService) { s.seedDemo = on } }

func NewRewardsService(store Store, bus *EventBus, opts Options, sopts ...ServiceOption) *RewardsService {
	if store == nil || bus == nil {
		panic("NewRewardsService requires non-nil store and bus")
	}
	s := &RewardsService{
		store:   store,
		bus:     bus,
		opts:    opts.withDefaults(),
		engines: map[core.UserID]*RewardsEngine{},
	}
	for _, o := range sopts {
		o(s)
	}
	return s
}

// Subscribe convenience method.
func (s *RewardsService) Subscribe(typ core.EventType, handler Handler) func() {
	return s.bus.Subscribe(typ, handler)
}

// SubscribeAll registers handler for every event type.
func (s *RewardsService) SubscribeAll(handler Handler) func() {
	return s.bus.SubscribeAll(handler)
}

// OnRender registers a render sink: it receives the view after every committed change.
func (s *RewardsService) OnRender(fn func(context.Context, core.View)) func() {
	return s.bus.Subscribe(core.EventProfileChanged, func(ctx context.Context, e core.Event) {
		if e.View != nil {
			fn(ctx, *e.View)
		}
	})
}

func (s *RewardsService) Publish(ctx context.Context, ev core.Event) {
	s.bus.Publish(ctx, ev)
}

func (s *RewardsService) Catalog() core.Catalog { return s.opts.Catalog }

func (s *RewardsService) Logger() *slog.Logger { return s.opts.Logger }

// Engine returns the engine of user, loading or creating its profile on first use.
func (s *RewardsService) Engine(ctx context.Context, user core.UserID) (*RewardsEngine, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	eng, ok := s.engines[normalized]
	s.mu.RUnlock()
	if ok {
		return eng, nil
	}

	v, err, _ := s.loads.Do(string(normalized), func() (any, error) {
		s.mu.RLock()
		eng, ok := s.engines[normalized]
		s.mu.RUnlock()
		if ok {
			return eng, nil
		}
		profile, created, err := s.load(ctx, normalized)
		if err != nil {
			return nil, err
		}
		eng = NewRewardsEngine(profile, s.store, s.bus, s.opts)
		s.mu.Lock()
		s.engines[normalized] = eng
		s.mu.Unlock()
		if created {
			if err := s.store.Save(ctx, profile); err != nil {
				s.opts.Logger.Warn("initial profile save failed", "user", normalized, "error", err)
			}
		}
		return eng, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*RewardsEngine), nil
}

func (s *RewardsService) load(ctx context.Context, user core.UserID) (core.UserProfile, bool, error) {
	profile, err := s.store.Load(ctx, user)
	switch {
	case err == nil:
		return profile, false, nil
	case errors.Is(err, core.ErrNotFound):
		now := s.opts.Clock.Now()
		if s.seedDemo {
			return core.DemoProfile(user, now), true, nil
		}
		return core.NewProfile(user, now), true, nil
	default:
		return core.UserProfile{}, false, fmt.Errorf("%w: load %s: %w", core.ErrPersistence, user, err)
	}
}

func (s *RewardsService) EarnPoints(ctx context.Context, user core.UserID, amount int64, reason string, meta ActivityMeta) (Outcome, error) {
	if amount <= 0 {
		return Outcome{}, core.ErrInvalidAmount
	}
	eng, err := s.Engine(ctx, user)
	if err != nil {
		return Outcome{}, err
	}
	return eng.EarnPoints(ctx, amount, reason, meta)
}

func (s *RewardsService) Redeem(ctx context.Context, user core.UserID, reward core.RewardID) (Outcome, error) {
	eng, err := s.Engine(ctx, user)
	if err != nil {
		return Outcome{}, err
	}
	return eng.Redeem(ctx, reward)
}

func (s *RewardsService) EvaluateAchievements(ctx context.Context, user core.UserID) (Outcome, error) {
	eng, err := s.Engine(ctx, user)
	if err != nil {
		return Outcome{}, err
	}
	return eng.EvaluateAchievements(ctx)
}

func (s *RewardsService) CloseDay(ctx context.Context, user core.UserID, day time.Time) (Outcome, error) {
	eng, err := s.Engine(ctx, user)
	if err != nil {
		return Outcome{}, err
	}
	return eng.CloseDay(ctx, day)
}

// Profile returns a snapshot of the user's profile.
func (s *RewardsService) Profile(ctx context.Context, user core.UserID) (core.UserProfile, error) {
	eng, err := s.Engine(ctx, user)
	if err != nil {
		return core.UserProfile{}, err
	}
	return eng.Snapshot(), nil
}

func (s *RewardsService) View(ctx context.Context, user core.UserID) (core.View, error) {
	eng, err := s.Engine(ctx, user)
	if err != nil {
		return core.View{}, err
	}
	return eng.View(), nil
}

func (s *RewardsService) Impact(ctx context.Context, user core.UserID) (core.ImpactStats, error) {
	eng, err := s.Engine(ctx, user)
	if err != nil {
		return core.ImpactStats{}, err
	}
	return eng.Impact(), nil
}

func (s *RewardsService) Progress(ctx context.Context, user core.UserID) ([]core.AchievementProgress, error) {
	eng, err := s.Engine(ctx, user)
	if err != nil {
		return nil, err
	}
	return eng.Progress(), nil
}

// Users lists loaded users merged with those the store can enumerate, sorted.
func (s *RewardsService) Users(ctx context.Context) ([]core.UserID, error) {
	seen := map[core.UserID]struct{}{}
	s.mu.RLock()
	for u := range s.engines {
		seen[u] = struct{}{}
	}
	s.mu.RUnlock()
	if lister, ok := s.store.(UserLister); ok {
		stored, err := lister.Users(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: list users: %w", core.ErrPersistence, err)
		}
		for _, u := range stored {
			seen[u] = struct{}{}
		}
	}
	out := make([]core.UserID, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Sweep closes the day before now for every known user. CloseDay evaluates
// achievements itself, and every other mutation does too, so nothing is left to recheck.
// Failures are logged per user; the first one is returned after all users were visited.
func (s *RewardsService) Sweep(ctx context.Context, now time.Time) error {
	users, err := s.Users(ctx)
	if err != nil {
		return err
	}
	yesterday := startOfDay(now).AddDate(0, 0, -1)
	var first error
	for _, u := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := s.CloseDay(ctx, u, yesterday); err != nil {
			s.opts.Logger.Warn("sweep close day failed", "user", u, "error", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func (s *RewardsService) Close() { s.bus.Close() }
