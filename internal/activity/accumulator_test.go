package activity

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daypulse/pkg/window"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newAccumulator() (*Accumulator, *IdleDetector) {
	idle := NewIdleDetector(10*time.Minute, t0)
	return NewAccumulator(window.TitleIdentity{}, idle), idle
}

func TestMouseDistance(t *testing.T) {
	acc, _ := newAccumulator()

	acc.RecordMouseMove(0, 0, t0)
	acc.RecordMouseMove(3, 4, t0)
	acc.RecordMouseMove(3, 10, t0)

	snap := acc.SnapshotAndReset()
	assert.InDelta(t, 11, snap.MouseDistance, 1e-9)
	assert.EqualValues(t, 3, snap.MouseMoves)
}

func TestMouseClickCountsPressesOnly(t *testing.T) {
	acc, idle := newAccumulator()
	later := t0.Add(time.Minute)

	acc.RecordMouseClick(false, later)
	assert.Equal(t, t0, idle.LastActivity(), "release must not mark activity")

	acc.RecordMouseClick(true, later)
	acc.RecordMouseClick(false, later)
	assert.EqualValues(t, 1, acc.Current().MouseClicks)
	assert.Equal(t, later, idle.LastActivity())
}

func TestWindowSwitches(t *testing.T) {
	acc, idle := newAccumulator()

	for _, title := range []string{"Editor", "Editor", "", "Browser", "Editor"} {
		acc.RecordWindowSample(window.Info{Title: title})
	}

	// First sample never counts; an empty title is unknown and skipped.
	assert.EqualValues(t, 2, acc.Current().WindowSwitches)
	assert.Equal(t, t0, idle.LastActivity(), "window sampling is not user activity")
}

func TestSnapshotAndResetKeepsPosition(t *testing.T) {
	acc, _ := newAccumulator()

	acc.RecordMouseMove(0, 0, t0)
	acc.RecordWindowSample(window.Info{Title: "Editor"})
	acc.SnapshotAndReset()

	acc.RecordMouseMove(6, 8, t0)
	acc.RecordWindowSample(window.Info{Title: "Terminal"})
	snap := acc.SnapshotAndReset()

	assert.InDelta(t, 10, snap.MouseDistance, 1e-9)
	assert.EqualValues(t, 1, snap.WindowSwitches)
}

func TestSnapshotEqualsSumOfEvents(t *testing.T) {
	acc, _ := newAccumulator()
	rng := rand.New(rand.NewSource(42))

	var moves, clicks, keys int64
	for i := 0; i < 1000; i++ {
		switch rng.Intn(4) {
		case 0:
			acc.RecordMouseMove(rng.Intn(1920), rng.Intn(1080), t0)
			moves++
		case 1:
			pressed := rng.Intn(2) == 0
			acc.RecordMouseClick(pressed, t0)
			if pressed {
				clicks++
			}
		case 2:
			acc.RecordKeyPress(t0)
			keys++
		case 3:
			acc.RecordWindowSample(window.Info{Title: "w"})
		}
	}

	snap := acc.SnapshotAndReset()
	assert.Equal(t, moves, snap.MouseMoves)
	assert.Equal(t, clicks, snap.MouseClicks)
	assert.Equal(t, keys, snap.KeyboardPresses)
	assert.Equal(t, 1, snap.Intervals)

	after := acc.Current()
	assert.Zero(t, after.MouseMoves)
	assert.Zero(t, after.MouseClicks)
	assert.Zero(t, after.KeyboardPresses)
	assert.Zero(t, after.WindowSwitches)
	assert.Zero(t, after.MouseDistance)
}

func TestSnapshotMerge(t *testing.T) {
	a := Snapshot{MouseDistance: 1.5, MouseClicks: 2, MouseMoves: 3, KeyboardPresses: 4, WindowSwitches: 5, Intervals: 1}
	b := Snapshot{MouseDistance: 0.5, MouseClicks: 1, MouseMoves: 1, KeyboardPresses: 1, WindowSwitches: 1, Intervals: 2}

	m := a.Merge(b)
	require.Equal(t, Snapshot{MouseDistance: 2, MouseClicks: 3, MouseMoves: 4, KeyboardPresses: 5, WindowSwitches: 6, Intervals: 3}, m)
	assert.True(t, m.HasInput())
	assert.False(t, Snapshot{Intervals: 1}.HasInput())
}
