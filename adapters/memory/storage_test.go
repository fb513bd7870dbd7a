package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"ecorewards/core"
)

func TestMemoryStore(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, err := s.Load(ctx, "u"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	p := core.NewProfile("u", time.Now())
	p.Points = 5
	p.Achievements = append(p.Achievements, core.AchievementFirstPickup)
	if err := s.Save(ctx, p); err != nil {
		t.Fatal(err)
	}
	p.Achievements[0] = core.AchievementLevel5

	got, err := s.Load(ctx, "u")
	if err != nil || got.Points != 5 {
		t.Fatalf("got %+v %v", got, err)
	}
	if got.Achievements[0] != core.AchievementFirstPickup {
		t.Fatal("store retained caller slice")
	}

	users, _ := s.Users(ctx)
	if len(users) != 1 || users[0] != "u" {
		t.Fatalf("users %v", users)
	}
}

func TestMemoryStoreFailSaves(t *testing.T) {
	s := New()
	boom := errors.New("disk on fire")
	s.FailSaves(boom)
	if err := s.Save(context.Background(), core.NewProfile("u", time.Now())); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	s.FailSaves(nil)
	if err := s.Save(context.Background(), core.NewProfile("u", time.Now())); err != nil {
		t.Fatal(err)
	}
}
