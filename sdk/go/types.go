package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"travelkit/core"
	"travelkit/leaderboard"
)

// Profile, Snapshot and the ranked records share the server's JSON surface.
type (
	Profile           = core.TravelProfile
	Snapshot          = core.ActivitySnapshot
	Preferences       = core.Preferences
	RankedDestination = core.RankedDestination
	RankedPlan        = core.RankedPlan
	LeaderboardEntry  = leaderboard.Entry
)

// Activity is the body of POST /users/{id}/activity.
type Activity struct {
	Kind          string `json:"kind"`
	Count         int64  `json:"count,omitempty"`
	DestinationID string `json:"destination_id,omitempty"`
}

// ProfileUpdate is the body of PATCH /users/{id}. Nil fields are left unchanged.
type ProfileUpdate struct {
	Verified    *bool        `json:"verified,omitempty"`
	Preferences *Preferences `json:"preferences,omitempty"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string         `json:"status"`
	Checks map[string]any `json:"checks"`
}

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed: status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsInvalidInput reports whether err is a 400 response from the server.
func IsInvalidInput(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(body, apiErr)
		return apiErr
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrEmptyUserID is returned when user id is empty.
var ErrEmptyUserID = errors.New("user id is required")
