package core

import "time"

// Day is the unit of the install-age criterion.
const Day = 24 * time.Hour

// ShouldPrompt applies the static threshold policy to state at time now.
// An opted-out state never prompts. Otherwise either threshold suffices.
// A state without an install date never satisfies the age criterion.
func ShouldPrompt(state UsageState, cfg PromptConfig, now time.Time) bool {
	if state.OptedOut {
		return false
	}
	if state.LaunchCount >= int64(cfg.MinLaunches) {
		return true
	}
	if !state.Installed() {
		return false
	}
	return elapsedDays(state.InstallDate, now) >= int64(cfg.MinInstallDays)
}

// elapsedDays counts whole days from since to now, rounding down. It works in
// Unix milliseconds because a Duration saturates near 292 years.
func elapsedDays(since, now time.Time) int64 {
	const msPerDay = int64(Day / time.Millisecond)
	elapsed := now.UnixMilli() - since.UnixMilli()
	days := elapsed / msPerDay
	if elapsed < 0 && elapsed%msPerDay != 0 {
		days--
	}
	return days
}
