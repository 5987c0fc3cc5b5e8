// Package metrics exports tracker activity as OpenTelemetry metrics.
package metrics

import (
	"context"

	"daypulse/internal/models"
)

// Recorder receives one notification per flush
type Recorder interface {
	FlushSucceeded(ctx context.Context, rec *models.MinuteRecord)
	FlushFailed(ctx context.Context)
	EventsDropped(ctx context.Context, n int64)
	Close(ctx context.Context) error
}

// NoOp is a Recorder that does nothing
type NoOp struct{}

func (NoOp) FlushSucceeded(ctx context.Context, rec *models.MinuteRecord) {}

func (NoOp) FlushFailed(ctx context.Context) {}

func (NoOp) EventsDropped(ctx context.Context, n int64) {}

func (NoOp) Close(ctx context.Context) error { return nil }
