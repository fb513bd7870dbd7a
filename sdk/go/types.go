package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"ecorewards/core"
)

// EarnRequest is the body of a point award.
type EarnRequest struct {
	Amount   int64             `json:"amount"`
	Reason   string            `json:"reason,omitempty"`
	Type     core.ActivityType `json:"type,omitempty"`
	Impact   string            `json:"impact,omitempty"`
	WeightKg float64           `json:"weight_kg,omitempty"`
	Items    int64             `json:"items,omitempty"`
}

// LevelChange is one level transition reported by the server.
type LevelChange struct {
	From  int64            `json:"from"`
	To    int64            `json:"to"`
	Bonus *core.LevelBonus `json:"bonus,omitempty"`
}

// Outcome mirrors the server's operation summary.
type Outcome struct {
	Points   int64              `json:"points"`
	Level    int64              `json:"level"`
	Streak   int64              `json:"streak"`
	Unlocked []core.Achievement `json:"unlocked,omitempty"`
	LevelUps []LevelChange      `json:"level_ups,omitempty"`
}

// LeaderboardEntry is one ranked profile.
type LeaderboardEntry struct {
	UserID string `json:"user_id"`
	Points int64  `json:"points"`
	Level  int64  `json:"level"`
	Rank   int    `json:"rank"`
}

// Leaderboard is a page of the ranking.
type Leaderboard struct {
	Entries []LeaderboardEntry `json:"entries"`
	Total   int                `json:"total"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string                 `json:"status"`
	Checks map[string]interface{} `json:"checks"`
}

// APIError is a non-2xx response. errors.Is matches the core sentinel of its code.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ecorewards: %d %s: %s", e.Status, e.Code, e.Message)
}

var codeErrors = map[string]error{
	"invalid_amount":      core.ErrInvalidAmount,
	"invalid_user":        core.ErrInvalidUser,
	"unknown_reward":      core.ErrUnknownReward,
	"insufficient_points": core.ErrInsufficientPoints,
	"persistence_failure": core.ErrPersistence,
	"not_found":           core.ErrNotFound,
}

func (e *APIError) Unwrap() error { return codeErrors[e.Code] }

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = "http_error"
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if target == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrEmptyUserID is returned when user id is empty.
var ErrEmptyUserID = errors.New("user id is required")
