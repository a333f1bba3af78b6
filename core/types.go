package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// InstallID identifies one installation of the host application.
type InstallID string

// UsageState is a snapshot of the persisted prompt state for one installation.
type UsageState struct {
	InstallID   InstallID `json:"install_id,omitempty"`
	InstallDate time.Time `json:"install_date"`
	LaunchCount int64     `json:"launch_count"`
	OptedOut    bool      `json:"opted_out"`
}

// Installed reports whether the install date has been recorded.
func (s UsageState) Installed() bool { return !s.InstallDate.IsZero() }

// NextLaunch increments the launch counter ensuring no signed overflow occurs.
func NextLaunch(count int64) (int64, error) {
	if count < 0 {
		return 1, nil
	}
	if count == math.MaxInt64 {
		return 0, errors.New("launch counter overflow")
	}
	return count + 1, nil
}

// ErrInvalidInstallID reports an empty or malformed installation identifier.
var ErrInvalidInstallID = errors.New("invalid install id")

// NormalizeInstallID trims and lowercases installation identifiers.
func NormalizeInstallID(id InstallID) (InstallID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidInstallID)
	}
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' || r == '.' {
			continue
		}
		return "", fmt.Errorf("%w: %q", ErrInvalidInstallID, s)
	}
	return InstallID(strings.ToLower(s)), nil
}

// UnixMillis converts t to milliseconds since epoch; the zero time maps to 0.
func UnixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromUnixMillis is the inverse of UnixMillis.
func FromUnixMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
