package activity

import (
	"sync"
	"time"
)

// IdleDetector tracks the time of the last user input
type IdleDetector struct {
	threshold time.Duration

	mu           sync.RWMutex
	lastActivity time.Time
}

// NewIdleDetector starts the activity clock at start
func NewIdleDetector(threshold time.Duration, start time.Time) *IdleDetector {
	return &IdleDetector{threshold: threshold, lastActivity: start}
}

// Mark records activity at the given instant. Earlier instants are ignored.
func (d *IdleDetector) Mark(at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if at.After(d.lastActivity) {
		d.lastActivity = at
	}
}

// IsIdle reports whether more than the threshold has passed since the last activity
func (d *IdleDetector) IsIdle(now time.Time) bool {
	return now.Sub(d.LastActivity()) > d.threshold
}

func (d *IdleDetector) LastActivity() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastActivity
}

func (d *IdleDetector) Threshold() time.Duration {
	return d.threshold
}
