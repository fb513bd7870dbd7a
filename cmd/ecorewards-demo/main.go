// Command ecorewards-demo plays a short recycling session against an in-memory engine seeded with
// the showcase profile, then keeps serving the HTTP and WebSocket API for exploration.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ecorewards/api/httpapi"
	"ecorewards/core"
	"ecorewards/engine"
	"ecorewards/leaderboard"
	"ecorewards/realtime"
	"ecorewards/rewards"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address; empty runs the session and exits")
	user := flag.String("user", "demo", "user id of the scripted session")
	flag.Parse()

	// Use readable text logging for development/demo
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub()
	board := leaderboard.NewSkipList()
	svc := rewards.New(
		rewards.WithDispatchMode(engine.DispatchSync),
		rewards.WithDemoSeed(true),
		rewards.WithLogger(log),
		rewards.WithRealtime(hub),
		rewards.WithSubscriber(leaderboard.Track(board)),
		rewards.WithSubscriber(narrate(log)),
	)
	defer svc.Close()

	svc.OnRender(func(_ context.Context, v core.View) {
		log.Info("render",
			"user", v.Profile.UserID,
			"points", v.Profile.Points,
			"level", v.Level.Level,
			"level_percent", v.Level.Percent,
			"streak", v.Profile.Streak,
			"kg", v.Impact.TotalWeightKg)
	})

	if err := play(ctx, svc, core.UserID(*user)); err != nil {
		log.Error("demo session failed", "error", err)
		os.Exit(1)
	}
	if *addr == "" {
		return
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           httpapi.NewMux(svc, hub, httpapi.Options{AllowCORSOrigin: "*", Leaderboard: board, Logger: log}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("starting demo server", "address", *addr, "user", *user)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("demo server crashed", "error", err)
		os.Exit(1)
	}
}

// play runs the scripted session. An insufficient balance for the last redemption is expected
// and only logged.
func play(ctx context.Context, svc *engine.RewardsService, user core.UserID) error {
	log := svc.Logger()
	steps := []struct {
		amount int64
		reason string
		meta   engine.ActivityMeta
	}{
		{25, "Dropped off an old router", engine.ActivityMeta{Type: core.ActivityPickup, WeightKg: 0.8, Impact: "0.8kg e-waste recycled"}},
		{50, "Referred a neighbour", engine.ActivityMeta{Type: core.ActivityReferral, Impact: "New user joined"}},
		{10, "Reviewed the collection point", engine.ActivityMeta{Type: core.ActivityReview}},
	}
	for _, s := range steps {
		if _, err := svc.EarnPoints(ctx, user, s.amount, s.reason, s.meta); err != nil {
			return err
		}
	}

	if _, err := svc.Redeem(ctx, user, "plant_tree"); err != nil {
		return err
	}
	if _, err := svc.Redeem(ctx, user, "free_pickup"); err != nil {
		if !errors.Is(err, core.ErrInsufficientPoints) {
			return err
		}
		log.Info("free pickup not affordable yet", "error", err)
	}

	if _, err := svc.CloseDay(ctx, user, time.Now()); err != nil {
		return err
	}

	rows, err := svc.Progress(ctx, user)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if !r.Unlocked {
			log.Info("progress", "achievement", r.Achievement.ID, "current", r.Current, "target", r.Target)
		}
	}
	return nil
}

// narrate logs the notifications a UI would toast.
func narrate(log *slog.Logger) engine.Handler {
	return func(_ context.Context, e core.Event) {
		switch e.Type {
		case core.EventLevelUp:
			log.Info("level up", "from", e.FromLevel, "to", e.ToLevel)
		case core.EventAchievementUnlocked:
			log.Info("achievement unlocked", "id", e.Achievement.ID, "reward", e.Amount)
		case core.EventRedeemed:
			log.Info("redeemed", "reward", e.Reward.ID, "cost", e.Amount)
		case core.EventRedeemFailed:
			log.Info("redeem failed", "reward", e.Reward.ID, "reason", e.Reason)
		}
	}
}
