package sdk

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecorewards/api/httpapi"
	"ecorewards/core"
	"ecorewards/engine"
	"ecorewards/leaderboard"
	"ecorewards/realtime"
	"ecorewards/rewards"
)

type stack struct {
	srv   *httptest.Server
	hub   *realtime.Hub
	board *leaderboard.SkipList
}

func newStack(t *testing.T, opts httpapi.Options) *stack {
	t.Helper()
	hub := realtime.NewHub()
	board := leaderboard.NewSkipList()
	svc := rewards.New(
		rewards.WithDispatchMode(engine.DispatchSync),
		rewards.WithRealtime(hub),
		rewards.WithSubscriber(leaderboard.Track(board)),
	)
	t.Cleanup(svc.Close)

	opts.PathPrefix = "/api"
	opts.Leaderboard = board
	srv := httptest.NewServer(httpapi.NewMux(svc, hub, opts))
	t.Cleanup(srv.Close)
	return &stack{srv: srv, hub: hub, board: board}
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient("  ")
	require.Error(t, err)

	c, err := NewClient("https://rewards.example.com/api/")
	require.NoError(t, err)
	assert.Equal(t, "https://rewards.example.com/api", c.baseURL)
	assert.Equal(t, "wss://rewards.example.com/api/ws", c.wsURL)
}

func TestClientEarnRedeemAndRead(t *testing.T) {
	s := newStack(t, httpapi.Options{})
	client, err := NewClient(s.srv.URL + "/api")
	require.NoError(t, err)
	ctx := context.Background()

	out, err := client.EarnPoints(ctx, "alice", EarnRequest{
		Amount:   150,
		Reason:   "laptop pickup",
		Type:     core.ActivityPickup,
		WeightKg: 2.5,
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, out.Points, int64(150))
	assert.GreaterOrEqual(t, out.Level, int64(1))

	before := out.Points
	out, err = client.Redeem(ctx, "alice", "discount_5")
	require.NoError(t, err)
	assert.Equal(t, before-100, out.Points)

	view, err := client.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, core.UserID("alice"), view.Profile.UserID)
	assert.Equal(t, out.Points, view.Profile.Points)
	assert.NotEmpty(t, view.Rewards)

	impact, err := client.Impact(ctx, "alice")
	require.NoError(t, err)
	assert.InDelta(t, 2.5, impact.TotalWeightKg, 0.001)

	progress, err := client.Progress(ctx, "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, progress)

	evaluated, err := client.EvaluateAchievements(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, out.Points, evaluated.Points)

	cat, err := client.Catalog(ctx)
	require.NoError(t, err)
	_, ok := cat.Reward("plant_tree")
	assert.True(t, ok)

	lb, err := client.Leaderboard(ctx, 5)
	require.NoError(t, err)
	require.Len(t, lb.Entries, 1)
	assert.Equal(t, "alice", lb.Entries[0].UserID)
	assert.Equal(t, out.Points, lb.Entries[0].Points)
	assert.Equal(t, 1, lb.Total)

	health, err := client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
}

func TestClientMapsAPIErrors(t *testing.T) {
	s := newStack(t, httpapi.Options{})
	client, err := NewClient(s.srv.URL + "/api")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = client.Redeem(ctx, "bob", "free_pickup")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInsufficientPoints))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "insufficient_points", apiErr.Code)

	_, err = client.Redeem(ctx, "bob", "gold_bar")
	assert.ErrorIs(t, err, core.ErrUnknownReward)

	_, err = client.EarnPoints(ctx, "bob", EarnRequest{Amount: 0})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = client.GetUser(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyUserID)
}

func TestClientSendsAPIKey(t *testing.T) {
	s := newStack(t, httpapi.Options{APIKeys: []string{"k1"}})
	ctx := context.Background()

	anon, err := NewClient(s.srv.URL + "/api")
	require.NoError(t, err)
	_, err = anon.Catalog(ctx)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	keyed, err := NewClient(s.srv.URL+"/api", WithAPIKey("k1"))
	require.NoError(t, err)
	_, err = keyed.Catalog(ctx)
	assert.NoError(t, err)

	bearer, err := NewClient(s.srv.URL+"/api", WithAuthToken("k1"))
	require.NoError(t, err)
	_, err = bearer.Catalog(ctx)
	assert.NoError(t, err)
}

func TestClientSubscribeEvents(t *testing.T) {
	s := newStack(t, httpapi.Options{})
	client, err := NewClient(s.srv.URL + "/api")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	events, err := client.SubscribeEvents(ctx, "alice")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.hub.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	_, err = client.EarnPoints(ctx, "bob", EarnRequest{Amount: 5, Reason: "share"})
	require.NoError(t, err)
	_, err = client.EarnPoints(ctx, "alice", EarnRequest{Amount: 10, Reason: "review"})
	require.NoError(t, err)

	select {
	case evt := <-events:
		assert.Equal(t, core.EventPointsEarned, evt.Type)
		assert.Equal(t, core.UserID("alice"), evt.UserID)
		assert.Equal(t, int64(10), evt.Amount)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}
