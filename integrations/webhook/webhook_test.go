package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecorewards/core"
)

var at = time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)

func TestSink_OnEventPostsToEndpoints(t *testing.T) {
	var hits int32
	var (
		mu   sync.Mutex
		got  core.Event
		kind string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		mu.Lock()
		defer mu.Unlock()
		kind = r.Header.Get("X-Ecorewards-Event")
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	sink := New([]string{srv.URL, srv.URL})
	sink.OnEvent(core.NewPointsEarned(at, "u1", 5, 5, "share", core.ActivityShare))

	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "points_earned", kind)
	assert.Equal(t, int64(5), got.Amount)
	assert.Equal(t, core.UserID("u1"), got.UserID)
}

func TestSink_TypeFilter(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	sink := New([]string{srv.URL}, WithTypes(core.EventLevelUp))
	sink.Handle(context.Background(), core.NewPointsEarned(at, "u1", 5, 5, "", core.ActivityPoints))
	sink.Handle(context.Background(), core.NewLevelUp(at, "u1", 1, 2, nil))

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestSink_FailuresAreSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	url := srv.URL
	srv.Close()

	sink := New([]string{url, "://bad"}, WithClient(&http.Client{Timeout: 100 * time.Millisecond}))
	require.NotPanics(t, func() {
		sink.OnEvent(core.NewRedeemFailed(at, "u1", "x", "unknown reward"))
	})
}
