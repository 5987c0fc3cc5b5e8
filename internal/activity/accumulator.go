// Package activity reduces raw input events into per-interval counters and
// scores them.
package activity

import (
	"math"
	"time"

	"daypulse/pkg/window"
)

// Snapshot is the set of counters collected over one or more flush intervals
type Snapshot struct {
	MouseDistance   float64
	MouseClicks     int64
	MouseMoves      int64
	KeyboardPresses int64
	WindowSwitches  int64

	// Intervals is the number of flush intervals the counters cover. It is 1
	// for a fresh snapshot and grows when an unsaved snapshot is merged in.
	Intervals int
}

// Merge adds other's counters to s
func (s Snapshot) Merge(other Snapshot) Snapshot {
	return Snapshot{
		MouseDistance:   s.MouseDistance + other.MouseDistance,
		MouseClicks:     s.MouseClicks + other.MouseClicks,
		MouseMoves:      s.MouseMoves + other.MouseMoves,
		KeyboardPresses: s.KeyboardPresses + other.KeyboardPresses,
		WindowSwitches:  s.WindowSwitches + other.WindowSwitches,
		Intervals:       s.Intervals + other.Intervals,
	}
}

// HasInput reports whether any input event was counted
func (s Snapshot) HasInput() bool {
	return s.MouseClicks > 0 || s.MouseMoves > 0 || s.KeyboardPresses > 0
}

type point struct {
	x, y int
}

// Accumulator counts input events between flushes. It is not safe for
// concurrent use; the tracker loop owns it.
type Accumulator struct {
	identity window.Identity
	idle     *IdleDetector

	current Snapshot

	lastPos    *point
	lastWindow string
}

// NewAccumulator returns an empty accumulator that marks activity on idle
func NewAccumulator(identity window.Identity, idle *IdleDetector) *Accumulator {
	if identity == nil {
		identity = window.TitleIdentity{}
	}
	return &Accumulator{
		identity: identity,
		idle:     idle,
		current:  Snapshot{Intervals: 1},
	}
}

// RecordMouseMove adds the straight-line distance from the previous position
func (a *Accumulator) RecordMouseMove(x, y int, at time.Time) {
	if a.lastPos != nil {
		dx := float64(x - a.lastPos.x)
		dy := float64(y - a.lastPos.y)
		a.current.MouseDistance += math.Hypot(dx, dy)
	}
	a.lastPos = &point{x: x, y: y}
	a.current.MouseMoves++
	a.idle.Mark(at)
}

// RecordMouseClick counts a click on press. Releases are ignored.
func (a *Accumulator) RecordMouseClick(pressed bool, at time.Time) {
	if !pressed {
		return
	}
	a.current.MouseClicks++
	a.idle.Mark(at)
}

func (a *Accumulator) RecordKeyPress(at time.Time) {
	a.current.KeyboardPresses++
	a.idle.Mark(at)
}

// RecordWindowSample counts a switch when the foreground window differs from
// the previous known one. The first sample and unknown windows never count.
// Sampling is not user activity and leaves the idle clock alone.
func (a *Accumulator) RecordWindowSample(info window.Info) {
	key := a.identity.Key(info)
	if key == "" {
		return
	}
	if a.lastWindow != "" && key != a.lastWindow {
		a.current.WindowSwitches++
	}
	a.lastWindow = key
}

// Current returns the counters collected so far without resetting them
func (a *Accumulator) Current() Snapshot {
	return a.current
}

// SnapshotAndReset returns the counters and zeroes them. The last pointer
// position and window are kept so the next interval continues from them.
func (a *Accumulator) SnapshotAndReset() Snapshot {
	snap := a.current
	a.current = Snapshot{Intervals: 1}
	return snap
}
