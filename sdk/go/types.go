package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// InstallState mirrors the JSON view of one installation.
type InstallState struct {
	InstallID    string     `json:"install_id"`
	InstallDate  *time.Time `json:"install_date,omitempty"`
	LaunchCount  int64      `json:"launch_count"`
	OptedOut     bool       `json:"opted_out"`
	ShouldPrompt bool       `json:"should_prompt"`
	ListingURL   string     `json:"listing_url,omitempty"`
}

// DialogText holds the labels to render.
type DialogText struct {
	Title          string `json:"title"`
	Message        string `json:"message"`
	RateButton     string `json:"rate_button"`
	LaterButton    string `json:"later_button"`
	NoThanksButton string `json:"no_thanks_button"`
}

// PromptResponse tells the client whether to render the dialog.
type PromptResponse struct {
	Shown  bool        `json:"shown"`
	Dialog *DialogText `json:"dialog,omitempty"`
}

// Choice is the user's answer to the dialog.
type Choice string

const (
	ChoiceAccept  Choice = "accept"
	ChoiceDecline Choice = "decline"
	ChoiceDefer   Choice = "defer"
	ChoiceDismiss Choice = "dismiss"
)

func (c Choice) valid() bool {
	switch c {
	case ChoiceAccept, ChoiceDecline, ChoiceDefer, ChoiceDismiss:
		return true
	}
	return false
}

// DayStats is one row of the prompt funnel.
type DayStats struct {
	Day       string `json:"day"`
	Sessions  int64  `json:"sessions"`
	Installs  int    `json:"active_installs"`
	Shown     int64  `json:"shown"`
	Accepted  int64  `json:"accepted"`
	Declined  int64  `json:"declined"`
	Deferred  int64  `json:"deferred"`
	Dismissed int64  `json:"dismissed"`
}

// Stats describes the /stats response.
type Stats struct {
	Generated time.Time  `json:"generated"`
	Days      []DayStats `json:"days"`
	Totals    DayStats   `json:"totals"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status   string                 `json:"status"`
	Checks   map[string]interface{} `json:"checks"`
	Installs int                    `json:"installs"`
}

// APIError is the server's error envelope.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed: status %d", e.Status)
	}
	return fmt.Sprintf("request failed: status %d: %s: %s", e.Status, e.Code, e.Message)
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrEmptyInstallID is returned when install id is empty.
var ErrEmptyInstallID = errors.New("install id is required")
