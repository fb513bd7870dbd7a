// Package rewards assembles a ready-to-use RewardsService from optional parts.
package rewards

import (
	"context"
	"log/slog"

	mem "ecorewards/adapters/memory"
	"ecorewards/core"
	"ecorewards/engine"
	"ecorewards/realtime"
)

// Option configures the service builder.
type Option func(*config)

type config struct {
	store    engine.Store
	mode     engine.DispatchMode
	opts     engine.Options
	seedDemo bool
	hub      *realtime.Hub
	handlers []engine.Handler
}

// WithStore sets the persistence adapter.
func WithStore(s engine.Store) Option { return func(c *config) { c.store = s } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithCatalog replaces the built-in achievements, rewards and level policy.
func WithCatalog(cat core.Catalog) Option { return func(c *config) { c.opts.Catalog = cat } }

// WithRules replaces the achievement predicate table.
func WithRules(r core.Rules) Option { return func(c *config) { c.opts.Rules = r } }

func WithClock(clock engine.Clock) Option { return func(c *config) { c.opts.Clock = clock } }

func WithLogger(l *slog.Logger) Option { return func(c *config) { c.opts.Logger = l } }

// WithMaxActivities bounds the activity history kept per profile.
func WithMaxActivities(n int) Option { return func(c *config) { c.opts.MaxActivities = n } }

// WithDemoSeed starts unknown users from the showcase profile.
func WithDemoSeed(on bool) Option { return func(c *config) { c.seedDemo = on } }

// WithRealtime wires a realtime hub to receive all engine events.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithSubscriber registers a handler for every event type.
func WithSubscriber(h engine.Handler) Option {
	return func(c *config) { c.handlers = append(c.handlers, h) }
}

// New builds a configured RewardsService. If not provided, defaults are used:
//   - store: in-memory
//   - catalog and rules: the built-in e-waste program
//   - dispatch: async
func New(opts ...Option) *engine.RewardsService {
	cfg := &config{mode: engine.DispatchAsync}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.store == nil {
		cfg.store = mem.New()
	}
	bus := engine.NewEventBus(cfg.mode)
	svc := engine.NewRewardsService(cfg.store, bus, cfg.opts, engine.WithDemoSeed(cfg.seedDemo))
	if cfg.hub != nil {
		hub := cfg.hub
		svc.SubscribeAll(func(ctx context.Context, e core.Event) { hub.Broadcast(ctx, e) })
	}
	for _, h := range cfg.handlers {
		svc.SubscribeAll(h)
	}
	return svc
}
