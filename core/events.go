package core

import "time"

// EventType enumerates domain events.
type EventType string

const (
	EventSessionStarted  EventType = "session_started"
	EventPromptShown     EventType = "prompt_shown"
	EventPromptAccepted  EventType = "prompt_accepted"
	EventPromptDeclined  EventType = "prompt_declined"
	EventPromptDeferred  EventType = "prompt_deferred"
	EventPromptDismissed EventType = "prompt_dismissed"
)

// AllEventTypes lists every event the engine publishes.
var AllEventTypes = []EventType{
	EventSessionStarted,
	EventPromptShown,
	EventPromptAccepted,
	EventPromptDeclined,
	EventPromptDeferred,
	EventPromptDismissed,
}

// Event represents an immutable domain event.
type Event struct {
	Type        EventType      `json:"type"`
	Time        time.Time      `json:"time"`
	InstallID   InstallID      `json:"install_id,omitempty"`
	LaunchCount int64          `json:"launch_count,omitempty"`
	InstallDate time.Time      `json:"install_date,omitempty"`
	OptedOut    bool           `json:"opted_out,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewEvent stamps an event of the given type with the state it was derived from.
func NewEvent(typ EventType, at time.Time, state UsageState) Event {
	return Event{
		Type:        typ,
		Time:        at.UTC(),
		InstallID:   state.InstallID,
		LaunchCount: state.LaunchCount,
		InstallDate: state.InstallDate,
		OptedOut:    state.OptedOut,
	}
}
