// Package stats tracks the per-session counters shown in the client sidebar.
package stats

import (
	"fmt"
	"time"
)

// Session holds the command counter, session start time and the identifier
// assigned by the server.
type Session struct {
	CommandCount int
	StartTime    time.Time
	SessionID    string
}

// New starts a session at now.
func New(now time.Time) *Session {
	return &Session{StartTime: now}
}

// CountResponse records one received response.
func (s *Session) CountResponse() {
	s.CommandCount++
}

// Identify applies server-provided metadata. A zero connectedAt keeps the
// current start time.
func (s *Session) Identify(id string, connectedAt time.Time) {
	s.SessionID = id
	if !connectedAt.IsZero() {
		s.StartTime = connectedAt
	}
}

// Uptime returns the whole seconds elapsed since the session started.
func (s *Session) Uptime(now time.Time) int {
	d := now.Sub(s.StartTime)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

// FormatUptime renders seconds as "1h 2m", "3m 4s" or "5s".
func FormatUptime(seconds int) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}
