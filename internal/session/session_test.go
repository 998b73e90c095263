package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dtshaba/goldengine/internal/core"
	"github.com/dtshaba/goldengine/internal/session"
)

func newManager() *session.Manager {
	return session.New(session.Config{
		Prime: []session.Window{
			{Start: "22:00", End: "02:00", Enabled: true},
		},
		Acceptable: []session.Window{
			{Start: "07:00", End: "16:00", Enabled: true},
		},
		PrimeRiskMultiplier:      1.0,
		AcceptableRiskMultiplier: 0.5,
	})
}

func TestIsTradingWindow_CrossesMidnight(t *testing.T) {
	m := newManager()

	at := func(hour, minute int) time.Time {
		return time.Date(2026, time.March, 2, hour, minute, 0, 0, time.UTC)
	}

	// 00:30 falls inside the 22:00-02:00 prime window.
	info := m.IsTradingWindow(at(0, 30))
	assert.True(t, info.Active)
	assert.Equal(t, core.SessionPrime, info.Type)

	// 23:00 is also inside the window, on the other side of midnight.
	info = m.IsTradingWindow(at(23, 0))
	assert.True(t, info.Active)
	assert.Equal(t, core.SessionPrime, info.Type)

	// 02:00 itself is the exclusive end boundary.
	info = m.IsTradingWindow(at(2, 0))
	assert.False(t, info.Active)

	// 12:00 falls outside the prime window but inside the acceptable one.
	info = m.IsTradingWindow(at(12, 0))
	assert.True(t, info.Active)
	assert.Equal(t, core.SessionAcceptable, info.Type)

	// 18:00 is closed by either window.
	info = m.IsTradingWindow(at(18, 0))
	assert.False(t, info.Active)
	assert.Equal(t, core.SessionClosed, info.Type)
}
