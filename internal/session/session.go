// Package session classifies the current time into a trading window
// (prime/acceptable/closed) with an associated risk multiplier (spec §4.6,
// §4.10 step 1, §8 boundary behavior on midnight-crossing windows).
package session

import (
	"time"

	"github.com/dtshaba/goldengine/internal/core"
)

// Window is one configured trading window, e.g. {Start: "07:00", End:
// "16:00", Enabled: true}. Start/End are HH:MM in the engine's reference
// timezone (UTC, per spec §6 CLI's UTC convention).
type Window struct {
	Start   string
	End     string
	Enabled bool
}

// Config mirrors spec §6's sessions.* config surface.
type Config struct {
	Prime      []Window
	Acceptable []Window

	PrimeRiskMultiplier      float64
	AcceptableRiskMultiplier float64
}

// Manager classifies the current time against configured windows.
type Manager struct {
	cfg Config
}

// New builds a session Manager.
func New(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// IsTradingWindow classifies now, checking prime windows first (full risk),
// then acceptable windows (reduced risk), else closed.
func (m *Manager) IsTradingWindow(now time.Time) core.SessionInfo {
	for _, w := range m.cfg.Prime {
		if w.Enabled && timeInWindow(now, w) {
			return core.SessionInfo{Active: true, Type: core.SessionPrime, RiskMultiplier: m.cfg.PrimeRiskMultiplier}
		}
	}
	for _, w := range m.cfg.Acceptable {
		if w.Enabled && timeInWindow(now, w) {
			return core.SessionInfo{Active: true, Type: core.SessionAcceptable, RiskMultiplier: m.cfg.AcceptableRiskMultiplier}
		}
	}
	return core.SessionInfo{Active: false, Type: core.SessionClosed, RiskMultiplier: 0}
}

// GetNextWindow returns the start time of the next enabled window (prime or
// acceptable) on or after now, for status-line reporting.
func (m *Manager) GetNextWindow(now time.Time) (time.Time, bool) {
	var best time.Time
	found := false

	consider := func(w Window) {
		if !w.Enabled {
			return
		}
		start, err := parseClock(w.Start)
		if err != nil {
			return
		}
		candidate := time.Date(now.Year(), now.Month(), now.Day(), start.Hour(), start.Minute(), 0, 0, now.Location())
		if candidate.Before(now) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		if !found || candidate.Before(best) {
			best = candidate
			found = true
		}
	}

	for _, w := range m.cfg.Prime {
		consider(w)
	}
	for _, w := range m.cfg.Acceptable {
		consider(w)
	}

	return best, found
}

// timeInWindow reports whether now's time-of-day falls within [start, end),
// correctly handling windows that cross midnight (e.g. 22:00-02:00 contains
// 00:30).
func timeInWindow(now time.Time, w Window) bool {
	start, err := parseClock(w.Start)
	if err != nil {
		return false
	}
	end, err := parseClock(w.End)
	if err != nil {
		return false
	}

	nowMinutes := now.Hour()*60 + now.Minute()
	startMinutes := start.Hour()*60 + start.Minute()
	endMinutes := end.Hour()*60 + end.Minute()

	if startMinutes <= endMinutes {
		return nowMinutes >= startMinutes && nowMinutes < endMinutes
	}
	// Crosses midnight.
	return nowMinutes >= startMinutes || nowMinutes < endMinutes
}

func parseClock(hhmm string) (time.Time, error) {
	return time.Parse("15:04", hhmm)
}
