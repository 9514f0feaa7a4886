// Package sysinfo samples host utilization for the system-info endpoint.
package sysinfo

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// Usage holds utilization percentages in [0, 100].
type Usage struct {
	CPUPercent    float64
	MemoryPercent float64
	DiskPercent   float64
}

// Sampler reports current utilization.
type Sampler interface {
	Sample(ctx context.Context) (Usage, error)
}

// SamplerFunc adapts a function to Sampler.
type SamplerFunc func(ctx context.Context) (Usage, error)

func (f SamplerFunc) Sample(ctx context.Context) (Usage, error) { return f(ctx) }

// Host samples the local machine through gopsutil.
type Host struct {
	// DiskPath is the mount whose usage is reported. Defaults to the root
	// of the filesystem.
	DiskPath string
}

// Sample reads CPU usage since the previous call, memory and disk usage.
// A failing reading fails the whole sample.
func (h Host) Sample(ctx context.Context) (Usage, error) {
	var u Usage
	cpus, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return u, fmt.Errorf("cpu: %w", err)
	}
	if len(cpus) > 0 {
		u.CPUPercent = cpus[0]
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return u, fmt.Errorf("memory: %w", err)
	}
	u.MemoryPercent = vm.UsedPercent
	du, err := disk.UsageWithContext(ctx, h.diskPath())
	if err != nil {
		return u, fmt.Errorf("disk: %w", err)
	}
	u.DiskPercent = du.UsedPercent
	return u, nil
}

func (h Host) diskPath() string {
	if h.DiskPath != "" {
		return h.DiskPath
	}
	if runtime.GOOS == "windows" {
		return `C:\`
	}
	return "/"
}
