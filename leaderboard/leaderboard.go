package leaderboard

import (
	"context"
	"log/slog"

	"ecorewards/core"
)

// Entry represents a ranked profile.
type Entry struct {
	User  core.UserID `json:"user_id"`
	Score int64       `json:"points"`
	Level int64       `json:"level"`
	Rank  int         `json:"rank,omitempty"`
}

// Board abstracts leaderboard operations.
type Board interface {
	Update(user core.UserID, score, level int64)
	Remove(user core.UserID)
	TopN(n int) []Entry
	Get(user core.UserID) (Entry, bool)
	Rank(user core.UserID) (int, bool)
	Len() int
}

// ProfileSource is what Seed needs to rebuild the board at start-up.
type ProfileSource interface {
	Users(ctx context.Context) ([]core.UserID, error)
	Profile(ctx context.Context, user core.UserID) (core.UserProfile, error)
}

// Seed loads every known profile into the board. Profiles that fail to load are skipped.
func Seed(ctx context.Context, b Board, src ProfileSource, log *slog.Logger) error {
	users, err := src.Users(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		p, err := src.Profile(ctx, u)
		if err != nil {
			log.Warn("leaderboard seed skipped user", "user", u, "error", err)
			continue
		}
		b.Update(p.UserID, p.Points, p.Level)
	}
	return nil
}

// Track keeps the board current from profile_changed notifications.
func Track(b Board) func(context.Context, core.Event) {
	return func(_ context.Context, e core.Event) {
		if e.Type != core.EventProfileChanged || e.View == nil {
			return
		}
		b.Update(e.UserID, e.View.Profile.Points, e.View.Profile.Level)
	}
}
