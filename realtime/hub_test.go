package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ecorewards/core"
)

func TestHubSubscribeBroadcastUnsubscribe(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe(1)

	ev := core.NewPointsEarned(time.Now(), "bob", 10, 10, "pickup", core.ActivityPickup)
	h.Broadcast(context.Background(), ev)

	received := <-ch
	if received.UserID != "bob" || received.Type != core.EventPointsEarned {
		t.Fatalf("unexpected event: %+v", received)
	}

	h.Unsubscribe(id)
	_, ok := <-ch
	if ok {
		t.Fatal("expected channel closed after unsubscribe")
	}
	if h.Len() != 0 {
		t.Fatalf("expected no subscribers, got %d", h.Len())
	}
}

func TestHubUserFilter(t *testing.T) {
	h := NewHub()
	_, alice := h.SubscribeUser(4, "alice")

	h.Broadcast(context.Background(), core.NewStreakUpdated(time.Now(), "bob", 1))
	h.Broadcast(context.Background(), core.NewStreakUpdated(time.Now(), "alice", 2))

	got := <-alice
	if got.UserID != "alice" || got.Streak != 2 {
		t.Fatalf("unexpected event: %+v", got)
	}
	select {
	case extra := <-alice:
		t.Fatalf("filter leaked event: %+v", extra)
	default:
	}
}

func TestHubDropsWhenFull(t *testing.T) {
	h := NewHub()
	_, ch := h.Subscribe(1)
	for i := 0; i < 3; i++ {
		h.Broadcast(context.Background(), core.NewStreakUpdated(time.Now(), "u", int64(i)))
	}
	if got := <-ch; got.Streak != 0 {
		t.Fatalf("expected first event kept, got %+v", got)
	}
}

func TestMarshalJSON(t *testing.T) {
	a, _ := core.DefaultCatalog().Achievement(core.AchievementFirstPickup)
	ev := core.NewAchievementUnlocked(time.Now(), "alice", a, 50)
	b := MarshalJSON(ev)
	var out core.Event
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Achievement == nil || out.Achievement.ID != core.AchievementFirstPickup {
		t.Fatalf("unexpected achievement: %+v", out.Achievement)
	}
}
