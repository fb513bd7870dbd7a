package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ecorewards/adapters/jsonfile"
	mem "ecorewards/adapters/memory"
	mongoAdapter "ecorewards/adapters/mongo"
	redisAdapter "ecorewards/adapters/redis"
	sqlxAdapter "ecorewards/adapters/sqlx"
	"ecorewards/analytics"
	"ecorewards/api/httpapi"
	"ecorewards/config"
	"ecorewards/core"
	"ecorewards/engine"
	"ecorewards/integrations/webhook"
	"ecorewards/leaderboard"
	"ecorewards/realtime"
	"ecorewards/rewards"
	"ecorewards/scheduler"
)

// App aggregates the assembled server components.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Hub       *realtime.Hub
	Store     engine.Store
	Service   *engine.RewardsService
	Board     leaderboard.Board
	Analytics *analytics.Service
	Sweeper   *scheduler.Sweeper
	Handler   http.Handler
	Server    *http.Server
	Metrics   *MetricsServer
}

// MetricsServer exposes the Prometheus registry on its own listener. Server is nil when disabled.
type MetricsServer struct {
	Server *http.Server
}

func provideConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.LoadAuto()
	if err != nil {
		return nil, err
	}
	if cfg.Environment == config.EnvProduction {
		config.LoadSecretsFromEnv(ctx, cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg, os.Stdout, os.Stderr)
}

func provideRegistry(cfg *config.Config) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	if cfg.Metrics.CollectSystem {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return reg
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideBoard() leaderboard.Board {
	return leaderboard.NewSkipList()
}

func provideStorage(cfg *config.Config, log *slog.Logger) (engine.Store, func(), error) {
	store, err := setupStorage(cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if c, ok := store.(io.Closer); ok {
			if err := c.Close(); err != nil {
				log.Warn("closing storage failed", "adapter", cfg.Storage.Adapter, "error", err)
			}
		}
	}
	return store, cleanup, nil
}

func provideAnalytics(cfg *config.Config, reg *prometheus.Registry, log *slog.Logger) (*analytics.Service, func()) {
	svc := analytics.NewService(cfg.Analytics, reg, log)
	return svc, func() {
		if err := svc.Close(); err != nil {
			log.Warn("closing analytics failed", "error", err)
		}
	}
}

func provideService(ctx context.Context, cfg *config.Config, log *slog.Logger, store engine.Store, hub *realtime.Hub, board leaderboard.Board, an *analytics.Service) (*engine.RewardsService, func(), error) {
	mode := engine.DispatchSync
	if cfg.Rewards.Dispatch == "async" {
		mode = engine.DispatchAsync
	}
	opts := []rewards.Option{
		rewards.WithStore(store),
		rewards.WithDispatchMode(mode),
		rewards.WithCatalog(catalogFor(cfg.Rewards)),
		rewards.WithLogger(log),
		rewards.WithMaxActivities(cfg.Rewards.MaxActivities),
		rewards.WithDemoSeed(cfg.Rewards.SeedDemo),
		rewards.WithRealtime(hub),
		rewards.WithSubscriber(leaderboard.Track(board)),
		rewards.WithSubscriber(func(_ context.Context, e core.Event) { an.Hook().OnEvent(e) }),
	}
	if sink := setupWebhooks(cfg.Notifications, log); sink != nil {
		opts = append(opts, rewards.WithSubscriber(sink.Handle))
	}
	svc := rewards.New(opts...)
	if err := leaderboard.Seed(ctx, board, svc, log); err != nil {
		svc.Close()
		return nil, nil, fmt.Errorf("seed leaderboard: %w", err)
	}
	return svc, svc.Close, nil
}

func provideSweeper(cfg *config.Config, svc *engine.RewardsService, log *slog.Logger) *scheduler.Sweeper {
	return scheduler.New(svc,
		scheduler.WithInterval(cfg.Rewards.SweepInterval),
		scheduler.WithLogger(log),
	)
}

func provideHandler(cfg *config.Config, log *slog.Logger, svc *engine.RewardsService, hub *realtime.Hub, store engine.Store, board leaderboard.Board, reg *prometheus.Registry) http.Handler {
	return httpapi.NewMux(svc, hub, httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		RateLimitCleanup: cfg.Security.RateLimit.CleanupInterval,
		Leaderboard:      board,
		Health:           storageHealth(store),
		Registerer:       reg,
		Logger:           log,
	})
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

func provideMetricsServer(cfg *config.Config, reg *prometheus.Registry) *MetricsServer {
	if !cfg.Metrics.Enabled {
		return &MetricsServer{}
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return &MetricsServer{Server: &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// catalogFor applies the configured level policy to the built-in catalog.
func catalogFor(rc config.RewardsConfig) core.Catalog {
	cat := core.DefaultCatalog()
	if rc.PointsPerLevel > 0 {
		cat.Levels.PointsPerLevel = rc.PointsPerLevel
	}
	if rc.MaxLevel > 0 {
		cat.Levels.MaxLevel = rc.MaxLevel
	}
	return cat
}

// setupWebhooks returns nil when no endpoint is configured.
func setupWebhooks(nc config.NotificationsConfig, log *slog.Logger) *webhook.Sink {
	if len(nc.Webhooks) == 0 {
		return nil
	}
	types := make([]core.EventType, 0, len(nc.WebhookEvents))
	for _, t := range nc.WebhookEvents {
		types = append(types, core.EventType(t))
	}
	return webhook.New(nc.Webhooks,
		webhook.WithClient(&http.Client{Timeout: nc.WebhookTimeout}),
		webhook.WithLogger(log),
		webhook.WithTypes(types...),
	)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// storageHealth pings stores that support it; the rest are always healthy.
func storageHealth(store engine.Store) func(context.Context) error {
	p, ok := store.(pinger)
	if !ok {
		return nil
	}
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return p.Ping(ctx)
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config, stdout, stderr io.Writer) *slog.Logger {
	var handler slog.Handler

	out := stdout
	if cfg.Logging.Output == "stderr" {
		out = stderr
	}
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler).With("service", "ecorewards")
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// convertAttributes converts map[string]string to []slog.Attr.
func convertAttributes(attrs map[string]string) []slog.Attr {
	result := make([]slog.Attr, 0, len(attrs))
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// setupStorage creates the appropriate storage adapter based on configuration.
func setupStorage(cfg *config.Config) (engine.Store, error) {
	switch cfg.Storage.Adapter {
	case "memory":
		return mem.New(), nil
	case "file":
		return jsonfile.New(cfg.Storage.File.Path)
	case "redis":
		return redisAdapter.New(cfg.Storage.Redis)
	case "sql":
		return sqlxAdapter.New(cfg.Storage.SQL)
	case "mongo":
		return mongoAdapter.New(cfg.Storage.Mongo)
	default:
		return nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}
}
