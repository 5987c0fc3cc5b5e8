package activity

import (
	"math"
	"time"

	"daypulse/internal/config"
	"daypulse/pkg/sysstat"
)

// Components are the per-dimension scores, each within [0, 100]
type Components struct {
	Mouse    float64
	Keyboard float64
	Window   float64
	System   float64
}

// BusyCalculator scores a snapshot against per-minute expectations
type BusyCalculator struct {
	cfg           config.BusyConfig
	flushInterval time.Duration
}

func NewBusyCalculator(cfg config.BusyConfig, flushInterval time.Duration) *BusyCalculator {
	return &BusyCalculator{cfg: cfg, flushInterval: flushInterval}
}

// intervalFactor scales per-minute expectations to the span the snapshot covers
func (c *BusyCalculator) intervalFactor(snap Snapshot) float64 {
	intervals := snap.Intervals
	if intervals < 1 {
		intervals = 1
	}
	return c.flushInterval.Seconds() / 60 * float64(intervals)
}

// Components returns the unweighted dimension scores
func (c *BusyCalculator) Components(snap Snapshot, usage sysstat.Usage) Components {
	f := c.intervalFactor(snap)

	mouse := snap.MouseDistance/(c.cfg.DistancePerMinute*f)*50 +
		float64(snap.MouseClicks)/(c.cfg.ClicksPerMinute*f)*30 +
		float64(snap.MouseMoves)/(c.cfg.MovesPerMinute*f)*20

	return Components{
		Mouse:    math.Min(100, mouse),
		Keyboard: math.Min(100, float64(snap.KeyboardPresses)/(c.cfg.KeysPerMinute*f)*100),
		Window:   math.Min(100, float64(snap.WindowSwitches)/(c.cfg.SwitchesPerMinute*f)*100),
		System:   (clamp(usage.CPUPercent) + clamp(usage.MemoryPercent)) / 2,
	}
}

// Compute returns the weighted busy index within [0, 100]. Idle intervals
// always score 0.
func (c *BusyCalculator) Compute(snap Snapshot, usage sysstat.Usage, idle bool) float64 {
	if idle {
		return 0
	}
	comp := c.Components(snap, usage)
	busy := comp.Mouse*c.cfg.MouseWeight +
		comp.Keyboard*c.cfg.KeyboardWeight +
		comp.Window*c.cfg.WindowWeight +
		comp.System*c.cfg.SystemWeight
	return clamp(busy)
}

// Round2 rounds to two decimal places
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}
