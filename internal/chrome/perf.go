package chrome

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"pkt.systems/pslog"
)

// SystemInfo is the payload of the server's system-info endpoint.
type SystemInfo struct {
	CPUPercent     float64 `json:"cpu_percent"`
	MemoryPercent  float64 `json:"memory_percent"`
	DiskPercent    float64 `json:"disk_percent"`
	ActiveSessions int     `json:"active_sessions,omitempty"`
	Uptime         float64 `json:"uptime,omitempty"`
}

// Readout is the formatted utilization shown to the user.
type Readout struct {
	CPU    string
	Memory string
	Disk   string
}

// FormatPercent rounds half up, matching how the browser client displayed it.
func FormatPercent(v float64) string {
	return fmt.Sprintf("%d%%", int(math.Floor(v+0.5)))
}

// PerfMonitor polls the system-info endpoint and keeps the latest readout
// and, when a chart is attached, the rolling history. Fetches are not
// de-duplicated: a slow response may land after a newer one.
type PerfMonitor struct {
	url     string
	client  *http.Client
	chart   *Chart
	readout Readout
	now     func() time.Time
	log     pslog.Logger
}

// NewPerfMonitor polls url. chart may be nil when charting is unavailable.
func NewPerfMonitor(url string, client *http.Client, chart *Chart, log pslog.Logger) *PerfMonitor {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &PerfMonitor{
		url:     url,
		client:  client,
		chart:   chart,
		readout: Readout{CPU: "--", Memory: "--", Disk: "--"},
		now:     time.Now,
		log:     log,
	}
}

// Readout returns the latest formatted values.
func (m *PerfMonitor) Readout() Readout { return m.readout }

// Chart returns the attached chart, or nil.
func (m *PerfMonitor) Chart() *Chart { return m.chart }

// Fetch requests one sample. It does not touch monitor state, so it may run
// off the UI goroutine.
func (m *PerfMonitor) Fetch(ctx context.Context) (SystemInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		return SystemInfo{}, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return SystemInfo{}, fmt.Errorf("fetch system info: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return SystemInfo{}, fmt.Errorf("fetch system info: %s", resp.Status)
	}
	var info SystemInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return SystemInfo{}, fmt.Errorf("decode system info: %w", err)
	}
	return info, nil
}

// Apply records a sample in the readout and chart.
func (m *PerfMonitor) Apply(info SystemInfo) {
	m.readout = Readout{
		CPU:    FormatPercent(info.CPUPercent),
		Memory: FormatPercent(info.MemoryPercent),
		Disk:   FormatPercent(info.DiskPercent),
	}
	if m.chart != nil {
		m.chart.Push(m.now().Format("15:04"), info.CPUPercent, info.MemoryPercent)
	}
}

// Fail logs a failed fetch. There is no retry; the next tick tries again.
func (m *PerfMonitor) Fail(err error) {
	if m.log != nil {
		m.log.Warn("failed to fetch system info", "err", err)
	}
}

// Poll fetches and applies one sample, logging failures.
func (m *PerfMonitor) Poll(ctx context.Context) {
	info, err := m.Fetch(ctx)
	if err != nil {
		m.Fail(err)
		return
	}
	m.Apply(info)
}
