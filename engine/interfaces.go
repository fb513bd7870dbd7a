package engine

import (
	"context"
	"time"

	"ecorewards/core"
)

// Store is the persistence collaborator. Load returns core.ErrNotFound when no profile exists.
// Save writes the whole profile; implementations must not retain the passed value's slices.
type Store interface {
	Load(ctx context.Context, user core.UserID) (core.UserProfile, error)
	Save(ctx context.Context, profile core.UserProfile) error
}

// UserLister is implemented by stores able to enumerate persisted profiles.
type UserLister interface {
	Users(ctx context.Context) ([]core.UserID, error)
}

// Clock supplies the current time. Tests inject a fixed or manual clock.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)
