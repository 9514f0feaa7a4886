package chrome

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFilterEmptyQueryShowsFirstFive(t *testing.T) {
	got := Filter(Catalog, "")
	require.Len(t, got, 5)
	require.Equal(t, "ls -la", got[0].Command)
	require.Equal(t, "top -n 1", got[4].Command)
}

func TestFilterMatchesCommandOrDescription(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"CBASH", []string{"cbash status", "cbash history"}},
		{"disk", []string{"df -h"}},
		{"current", []string{"pwd", "whoami", "date"}},
		{"zzz", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var got []string
			for _, e := range Filter(Catalog, tt.query) {
				got = append(got, e.Command)
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestPaletteToggleResetsQuery(t *testing.T) {
	p := NewPalette(Catalog)
	require.False(t, p.Visible())

	p.Toggle()
	require.True(t, p.Visible())
	p.SetQuery("proc")
	require.Len(t, p.Results(), 2)

	p.Toggle()
	require.False(t, p.Visible())
	p.Toggle()
	require.Equal(t, "", p.Query())
	require.Len(t, p.Results(), 5)
}

func TestPaletteChoice(t *testing.T) {
	p := NewPalette(Catalog)
	p.Toggle()
	p.SetQuery("  uname -a ")
	require.Equal(t, "uname -a", p.Choice(), "typed text runs when nothing was picked")

	p.SetQuery("cbash")
	p.Move(1)
	require.Equal(t, "cbash history", p.Choice())
	p.Move(10)
	require.Equal(t, 1, p.Selected())
	p.Move(-10)
	require.Equal(t, 0, p.Selected())
}

func TestSidebarToggleCallsBack(t *testing.T) {
	var calls []bool
	s := NewSidebar(func(c bool) { calls = append(calls, c) })
	s.Toggle()
	s.Toggle()
	require.Equal(t, []bool{true, false}, calls)
	require.False(t, s.Collapsed())
}

func TestNotifierExpires(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	n := NewNotifier(func() time.Time { return now })
	n.Show("connected", LevelSuccess, 0)
	n.Show("slow", LevelWarning, 10*time.Second)
	require.Len(t, n.Active(), 2)

	now = now.Add(DefaultDuration)
	require.True(t, n.Prune())
	active := n.Active()
	require.Len(t, active, 1)
	require.Equal(t, "slow", active[0].Message)

	require.False(t, n.Prune())
}

func TestChartEvictsOldest(t *testing.T) {
	c := NewChart(ChartLimit)
	for i := 0; i < ChartLimit; i++ {
		c.Push(fmt.Sprintf("t%d", i), float64(i), float64(i*2))
	}
	require.Equal(t, ChartLimit, c.Len())

	c.Push("t20", 20, 40)
	require.Equal(t, ChartLimit, c.Len())
	require.Len(t, c.CPU, ChartLimit)
	require.Len(t, c.Memory, ChartLimit)
	require.Equal(t, "t1", c.Labels[0])
	require.Equal(t, 1.0, c.CPU[0])
	require.Equal(t, 40.0, c.Memory[ChartLimit-1])
}

func TestSparkline(t *testing.T) {
	require.Equal(t, "▁█▁█", Sparkline([]float64{0, 100, -5, 250}))
	require.Equal(t, 3, len([]rune(Sparkline([]float64{10, 50, 90}))))
}

func TestFormatPercent(t *testing.T) {
	require.Equal(t, "43%", FormatPercent(42.6))
	require.Equal(t, "10%", FormatPercent(10.1))
	require.Equal(t, "5%", FormatPercent(5))
	require.Equal(t, "43%", FormatPercent(42.5))
}

func TestPerfMonitorPoll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/system-info", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"cpu_percent": 42.6, "memory_percent": 10.1, "disk_percent": 5}`)
	}))
	defer srv.Close()

	chart := NewChart(ChartLimit)
	m := NewPerfMonitor(srv.URL+"/api/system-info", srv.Client(), chart, nil)
	m.now = func() time.Time { return time.Date(2025, 1, 1, 14, 7, 0, 0, time.UTC) }
	require.Equal(t, Readout{"--", "--", "--"}, m.Readout())

	m.Poll(context.Background())
	require.Equal(t, Readout{CPU: "43%", Memory: "10%", Disk: "5%"}, m.Readout())
	require.Equal(t, []string{"14:07"}, chart.Labels)
	require.Equal(t, []float64{42.6}, chart.CPU)
	require.Equal(t, []float64{10.1}, chart.Memory)
}

func TestPerfMonitorWithoutChart(t *testing.T) {
	m := NewPerfMonitor("http://unused", nil, nil, nil)
	m.Apply(SystemInfo{CPUPercent: 1.4})
	require.Equal(t, "1%", m.Readout().CPU)
	require.Nil(t, m.Chart())
}

func TestPerfMonitorFailureKeepsReadout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Rate limit exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	m := NewPerfMonitor(srv.URL, srv.Client(), NewChart(0), nil)
	m.Apply(SystemInfo{CPUPercent: 50, MemoryPercent: 50, DiskPercent: 50})
	m.Poll(context.Background())
	require.Equal(t, "50%", m.Readout().CPU)
	require.Equal(t, 1, m.Chart().Len())
}
