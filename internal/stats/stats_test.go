package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0s"},
		{59, "59s"},
		{60, "1m 0s"},
		{125, "2m 5s"},
		{3600, "1h 0m"},
		{3725, "1h 2m"},
		{90061, "25h 1m"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, FormatUptime(tt.seconds), "seconds=%d", tt.seconds)
	}
}

func TestSessionIdentifyAndUptime(t *testing.T) {
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	s := New(start)
	require.Equal(t, 90, s.Uptime(start.Add(90*time.Second+400*time.Millisecond)))

	connected := start.Add(-time.Hour)
	s.Identify("abc", connected)
	require.Equal(t, "abc", s.SessionID)
	require.Equal(t, connected, s.StartTime)

	s.Identify("def", time.Time{})
	require.Equal(t, connected, s.StartTime)
	require.Equal(t, 0, s.Uptime(connected.Add(-time.Minute)))
}

func TestCountResponse(t *testing.T) {
	s := New(time.Now())
	s.CountResponse()
	s.CountResponse()
	require.Equal(t, 2, s.CommandCount)
}
