package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Progress mirrors the public JSON surface of the user progress endpoint.
type Progress struct {
	UserID         string    `json:"user_id"`
	XP             int64     `json:"xp"`
	Level          int       `json:"level"`
	CurrentLevelXP int64     `json:"current_level_xp"`
	NextLevelXP    int64     `json:"next_level_xp"`
	Updated        time.Time `json:"updated"`
}

// Grant mirrors the grant endpoints' JSON response.
type Grant struct {
	Granted        bool  `json:"granted"`
	XPAwarded      int64 `json:"xp_awarded"`
	XP             int64 `json:"xp"`
	Level          int   `json:"level"`
	LeveledUp      bool  `json:"leveled_up"`
	CurrentLevelXP int64 `json:"current_level_xp"`
	NextLevelXP    int64 `json:"next_level_xp"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// APIError is the structured error body returned by the server.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, apiErr) != nil || apiErr.Code == "" {
			apiErr.Code = "unknown"
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrEmptyUserID is returned when user id is empty.
var ErrEmptyUserID = errors.New("user id is required")
