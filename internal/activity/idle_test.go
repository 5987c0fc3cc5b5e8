package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIdleThreshold(t *testing.T) {
	d := NewIdleDetector(600*time.Second, t0)

	tests := []struct {
		name    string
		elapsed time.Duration
		want    bool
	}{
		{"just started", 0, false},
		{"under threshold", 599 * time.Second, false},
		{"exactly threshold", 600 * time.Second, false},
		{"over threshold", 601 * time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.IsIdle(t0.Add(tt.elapsed)))
		})
	}
}

func TestMarkNeverMovesBackwards(t *testing.T) {
	d := NewIdleDetector(time.Minute, t0)

	d.Mark(t0.Add(5 * time.Minute))
	d.Mark(t0.Add(time.Minute))

	assert.Equal(t, t0.Add(5*time.Minute), d.LastActivity())
	assert.False(t, d.IsIdle(t0.Add(5*time.Minute+30*time.Second)))
}

func TestIdleMonotonicWhileQuiet(t *testing.T) {
	d := NewIdleDetector(time.Minute, t0)

	became := false
	for s := 0; s <= 600; s += 7 {
		idle := d.IsIdle(t0.Add(time.Duration(s) * time.Second))
		if became {
			assert.True(t, idle, "idle flipped back at +%ds without activity", s)
		}
		became = became || idle
	}
	assert.True(t, became)
}
