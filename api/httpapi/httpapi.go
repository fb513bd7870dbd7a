package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	wsadapter "ecorewards/adapters/websocket"
	"ecorewards/core"
	"ecorewards/engine"
	"ecorewards/leaderboard"
	"ecorewards/realtime"
)

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// RateLimitCleanup is how often idle client buckets are dropped.
	RateLimitCleanup time.Duration
	// Leaderboard backs GET /leaderboard when set.
	Leaderboard leaderboard.Board
	// Health reports storage readiness for /healthz; nil means always healthy.
	Health func(context.Context) error
	// Registerer receives HTTP request metrics when set.
	Registerer prometheus.Registerer
	Logger     *slog.Logger
}

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
	maxBodyBytes            = 1 << 16
)

type api struct {
	svc   *engine.RewardsService
	board leaderboard.Board
	opts  Options
	log   *slog.Logger
}

// NewMux builds an http.Handler exposing the rewards REST API and WebSocket stream.
// Routes:
//   - GET  {prefix}/healthz
//   - GET  {prefix}/catalog
//   - GET  {prefix}/users/{id}
//   - POST {prefix}/users/{id}/points
//   - POST {prefix}/users/{id}/redemptions/{reward}
//   - POST {prefix}/users/{id}/achievements/evaluate
//   - GET  {prefix}/users/{id}/impact
//   - GET  {prefix}/users/{id}/progress
//   - GET  {prefix}/leaderboard?limit=
//   - WS   {prefix}/ws?user=
func NewMux(svc *engine.RewardsService, hub *realtime.Hub, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	a := &api{svc: svc, board: opts.Leaderboard, opts: opts, log: opts.Logger}

	root := mux.NewRouter()
	r := root
	if p := strings.TrimSuffix(opts.PathPrefix, "/"); p != "" {
		r = root.PathPrefix(p).Subrouter()
	}
	root.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
	})
	root.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})

	r.HandleFunc("/healthz", a.health).Methods(http.MethodGet)
	r.HandleFunc("/catalog", a.catalog).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}", a.profile).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/points", a.earn).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}/redemptions/{reward}", a.redeem).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}/achievements/evaluate", a.evaluate).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}/impact", a.impact).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/progress", a.progress).Methods(http.MethodGet)
	if a.board != nil {
		r.HandleFunc("/leaderboard", a.leaderboard).Methods(http.MethodGet)
	}
	if hub != nil {
		r.Handle("/ws", wsadapter.Handler(hub)).Methods(http.MethodGet)
	}

	root.Use(requestLog(opts.Logger))
	if opts.Registerer != nil {
		root.Use(instrument(opts.Registerer))
	}

	var handler http.Handler = root
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		handler = withRateLimit(handler, opts.RateLimitRPM, opts.RateLimitBurst, opts.RateLimitCleanup)
	}
	if len(opts.APIKeys) > 0 {
		handler = withAPIKeyAuth(handler, opts.APIKeys)
	}
	if opts.AllowCORSOrigin != "" {
		handler = withCORS(handler, opts.AllowCORSOrigin)
	}
	return withRecovery(handler, opts.Logger)
}

// health verifies the store is reachable without touching any profile.
func (a *api) health(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status": "healthy",
		"checks": map[string]any{"storage": "ok"},
	}
	code := http.StatusOK
	if a.opts.Health != nil {
		if err := a.opts.Health(r.Context()); err != nil {
			a.log.Warn("health check failed", "error", err)
			code = http.StatusServiceUnavailable
			status["status"] = "unhealthy"
			status["checks"] = map[string]any{"storage": "failed"}
		}
	}
	writeJSONStatus(w, code, status)
}

func (a *api) catalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, a.svc.Catalog())
}

func (a *api) profile(w http.ResponseWriter, r *http.Request) {
	view, err := a.svc.View(r.Context(), core.UserID(mux.Vars(r)["id"]))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, view)
}

// earnRequest is the body of POST /users/{id}/points.
type earnRequest struct {
	Amount   int64             `json:"amount"`
	Reason   string            `json:"reason"`
	Type     core.ActivityType `json:"type,omitempty"`
	Impact   string            `json:"impact,omitempty"`
	WeightKg float64           `json:"weight_kg,omitempty"`
	Items    int64             `json:"items,omitempty"`
}

func (a *api) earn(w http.ResponseWriter, r *http.Request) {
	var req earnRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed JSON body: "+err.Error(), nil)
		return
	}
	if req.WeightKg < 0 || req.Items < 0 {
		writeError(w, http.StatusBadRequest, "invalid_input", "weight_kg and items cannot be negative", nil)
		return
	}
	if req.Type != "" {
		if err := core.ValidateCatalogID(string(req.Type)); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "type: "+err.Error(), nil)
			return
		}
		// achievement rows are written by the engine when a reward is paid out
		if req.Type == core.ActivityAchievement {
			writeError(w, http.StatusBadRequest, "invalid_input", "type: achievement activities cannot be recorded by clients", nil)
			return
		}
	}
	// a typed activity without an amount earns the catalog's default value
	if req.Amount == 0 && req.Type != "" {
		req.Amount = a.svc.Catalog().PointValue(req.Type)
	}
	out, err := a.svc.EarnPoints(r.Context(), core.UserID(mux.Vars(r)["id"]), req.Amount, req.Reason, engine.ActivityMeta{
		Type:     req.Type,
		Impact:   req.Impact,
		WeightKg: req.WeightKg,
		Items:    req.Items,
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, out)
}

func (a *api) redeem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	out, err := a.svc.Redeem(r.Context(), core.UserID(vars["id"]), core.RewardID(vars["reward"]))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, out)
}

func (a *api) evaluate(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.EvaluateAchievements(r.Context(), core.UserID(mux.Vars(r)["id"]))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, out)
}

func (a *api) impact(w http.ResponseWriter, r *http.Request) {
	stats, err := a.svc.Impact(r.Context(), core.UserID(mux.Vars(r)["id"]))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, stats)
}

func (a *api) progress(w http.ResponseWriter, r *http.Request) {
	rows, err := a.svc.Progress(r.Context(), core.UserID(mux.Vars(r)["id"]))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, rows)
}

func (a *api) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_input", "limit must be a positive integer", nil)
			return
		}
		limit = min(n, maxLeaderboardLimit)
	}
	writeJSON(w, map[string]any{"entries": a.board.TopN(limit), "total": a.board.Len()})
}

// fail maps domain errors onto API error codes.
func (a *api) fail(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		a.log.Error("request failed", "code", code, "error", err)
	}
	writeError(w, status, code, err.Error(), nil)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_amount"
	case errors.Is(err, core.ErrInvalidUser):
		return http.StatusBadRequest, "invalid_user"
	case errors.Is(err, core.ErrOverflow):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, core.ErrUnknownReward):
		return http.StatusNotFound, "unknown_reward"
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, core.ErrInsufficientPoints):
		return http.StatusConflict, "insufficient_points"
	case errors.Is(err, core.ErrPersistence):
		return http.StatusServiceUnavailable, "persistence_failure"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	writeJSONStatus(w, status, apiError{Code: code, Message: msg, Details: details})
}
