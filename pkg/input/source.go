// Package input defines how raw input events reach the tracker.
package input

import "context"

// Sink receives raw input events. Implementations must be safe for
// concurrent use: sources call it from their own goroutines.
type Sink interface {
	MouseMove(x, y int)
	MouseClick(button int, pressed bool)
	KeyPress()
}

// Source delivers input events to a Sink until its context is canceled or
// Close is called.
type Source interface {
	Start(ctx context.Context, sink Sink) error
	Close() error
}

// Noop is a Source that never produces events. It is used when no input
// backend is available; the tracker then reports every minute as idle.
type Noop struct{}

func (Noop) Start(ctx context.Context, sink Sink) error { return nil }

func (Noop) Close() error { return nil }
