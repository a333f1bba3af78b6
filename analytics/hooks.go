package analytics

import (
	"sort"
	"sync"
	"time"

	"ratekit/core"
)

// Hook receives engine events for funnel tracking.
type Hook interface {
	OnEvent(e core.Event)
}

// DayStats counts prompt funnel steps for one UTC day.
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

// AcceptRate is accepted/shown, or 0 when nothing was shown.
func (d DayStats) AcceptRate() float64 {
	if d.Shown == 0 {
		return 0
	}
	return float64(d.Accepted) / float64(d.Shown)
}

// Snapshot is a point-in-time copy of the funnel.
type Snapshot struct {
	Generated time.Time  `json:"generated"`
	Days      []DayStats `json:"days"`
	Totals    DayStats   `json:"totals"`
}

type dayBucket struct {
	stats    DayStats
	installs map[core.InstallID]struct{}
}

// Funnel tracks how prompts convert, bucketed by day.
type Funnel struct {
	mu   sync.Mutex
	days map[string]*dayBucket
	now  func() time.Time
}

func NewFunnel() *Funnel { return &Funnel{days: map[string]*dayBucket{}, now: time.Now} }

func (f *Funnel) OnEvent(e core.Event) {
	day := e.Time.UTC().Format("2006-01-02")
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.days[day]
	if b == nil {
		b = &dayBucket{stats: DayStats{Day: day}, installs: map[core.InstallID]struct{}{}}
		f.days[day] = b
	}
	switch e.Type {
	case core.EventSessionStarted:
		b.stats.Sessions++
		b.installs[e.InstallID] = struct{}{}
		b.stats.Installs = len(b.installs)
	case core.EventPromptShown:
		b.stats.Shown++
	case core.EventPromptAccepted:
		b.stats.Accepted++
	case core.EventPromptDeclined:
		b.stats.Declined++
	case core.EventPromptDeferred:
		b.stats.Deferred++
	case core.EventPromptDismissed:
		b.stats.Dismissed++
	}
}

// Day returns the stats for a day formatted as 2006-01-02.
func (f *Funnel) Day(day string) DayStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.days[day]; ok {
		return b.stats
	}
	return DayStats{Day: day}
}

// Snapshot copies every day in ascending order plus totals.
func (f *Funnel) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := Snapshot{Generated: f.now().UTC(), Days: make([]DayStats, 0, len(f.days))}
	for _, b := range f.days {
		snap.Days = append(snap.Days, b.stats)
	}
	sort.Slice(snap.Days, func(i, j int) bool { return snap.Days[i].Day < snap.Days[j].Day })
	for _, d := range snap.Days {
		snap.Totals.Sessions += d.Sessions
		snap.Totals.Shown += d.Shown
		snap.Totals.Accepted += d.Accepted
		snap.Totals.Declined += d.Declined
		snap.Totals.Deferred += d.Deferred
		snap.Totals.Dismissed += d.Dismissed
	}
	snap.Totals.Day = "total"
	return snap
}
