package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"daypulse/internal/config"
	"daypulse/internal/models"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumWhere(t *testing.T, data metricdata.Aggregation, key, value string) int64 {
	t.Helper()

	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "unexpected aggregation %T", data)

	var total int64
	for _, dp := range sum.DataPoints {
		if key == "" {
			total += dp.Value
			continue
		}
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.Emit() == value {
			total += dp.Value
		}
	}
	return total
}

func TestExporter(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	e, err := newExporter(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)

	e.FlushSucceeded(ctx, &models.MinuteRecord{MouseClicks: 3, KeyboardPresses: 10, WindowSwitches: 2, BusyIndex: 42})
	e.FlushSucceeded(ctx, &models.MinuteRecord{IsIdle: true})
	e.FlushFailed(ctx)
	e.EventsDropped(ctx, 5)
	e.EventsDropped(ctx, 0)

	data := collect(t, reader)
	assert.EqualValues(t, 2, sumWhere(t, data["daypulse_flushes_total"], "result", "ok"))
	assert.EqualValues(t, 1, sumWhere(t, data["daypulse_flushes_total"], "result", "failed"))
	assert.EqualValues(t, 1, sumWhere(t, data["daypulse_minutes_total"], "idle", "true"))
	assert.EqualValues(t, 3, sumWhere(t, data["daypulse_input_events_total"], "kind", "click"))
	assert.EqualValues(t, 10, sumWhere(t, data["daypulse_input_events_total"], "kind", "key"))
	assert.EqualValues(t, 2, sumWhere(t, data["daypulse_window_switches_total"], "", ""))
	assert.EqualValues(t, 5, sumWhere(t, data["daypulse_dropped_events_total"], "", ""))

	hist, ok := data["daypulse_busy_index"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.EqualValues(t, 2, hist.DataPoints[0].Count)
	assert.InDelta(t, 42, hist.DataPoints[0].Sum, 1e-9)

	require.NoError(t, e.Close(ctx))
}

func TestNewDisabled(t *testing.T) {
	rec, err := New(context.Background(), config.MetricsConfig{}, "dev")
	require.NoError(t, err)
	assert.IsType(t, NoOp{}, rec)
	assert.NoError(t, rec.Close(context.Background()))
}

func TestNewRequiresEndpoint(t *testing.T) {
	_, err := New(context.Background(), config.MetricsConfig{Enabled: true}, "dev")
	assert.Error(t, err)
}
