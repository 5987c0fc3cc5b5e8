// Package sysstat samples host CPU and memory load.
package sysstat

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// Usage is one CPU and memory sample, both in percent
type Usage struct {
	CPUPercent    float64
	MemoryPercent float64
}

// Sampler returns the current system load
type Sampler interface {
	Sample(ctx context.Context) (Usage, error)
}

// HostSampler reads system load through gopsutil. CPU usage is measured over
// Window; a zero Window compares against the previous call.
type HostSampler struct {
	Window time.Duration
}

func NewHostSampler(window time.Duration) *HostSampler {
	return &HostSampler{Window: window}
}

func (s *HostSampler) Sample(ctx context.Context) (Usage, error) {
	total, err := cpu.PercentWithContext(ctx, s.Window, false)
	if err != nil || len(total) == 0 {
		return Usage{}, fmt.Errorf("failed to get total cpu percent: %w", err)
	}

	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Usage{CPUPercent: total[0]}, fmt.Errorf("failed to get virtual memory: %w", err)
	}

	return Usage{
		CPUPercent:    total[0],
		MemoryPercent: v.UsedPercent,
	}, nil
}
