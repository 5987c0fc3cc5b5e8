package reporter

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daypulse/internal/config"
	"daypulse/internal/models"
)

type fakeStore struct {
	stats     []models.DailyStat
	lastStart string
	lastEnd   string
}

func (f *fakeStore) GetDailyStats(ctx context.Context, startDate, endDate string) ([]models.DailyStat, error) {
	f.lastStart, f.lastEnd = startDate, endDate
	var out []models.DailyStat
	for _, s := range f.stats {
		if s.StatDate >= startDate && s.StatDate <= endDate {
			out = append(out, s)
		}
	}
	return out, nil
}

func boot(date string, h, m int) *time.Time {
	d, _ := time.ParseInLocation(models.DateLayout, date, time.UTC)
	t := d.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
	return &t
}

func newReporter(t *testing.T, store Store, now time.Time) *Reporter {
	t.Helper()

	cfg := config.Default()
	cfg.Rollup.TimeZone = "UTC"
	clock := quartz.NewMock(t)
	clock.Set(now)

	r, err := New(cfg, store, clock)
	require.NoError(t, err)
	return r
}

func TestGetPeriod(t *testing.T) {
	// Wednesday
	now := time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)
	r := newReporter(t, &fakeStore{}, now)

	tests := []struct {
		period    string
		wantStart string
		wantEnd   string
	}{
		{"day", "2025-03-12", "2025-03-13"},
		{"today", "2025-03-12", "2025-03-13"},
		{"week", "2025-03-06", "2025-03-13"},
		{"month", "2025-03-01", "2025-04-01"},
	}

	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			p, err := r.getPeriod(tt.period)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, p.Start.Format(models.DateLayout))
			assert.Equal(t, tt.wantEnd, p.End.Format(models.DateLayout))
		})
	}

	_, err := r.getPeriod("year")
	assert.Error(t, err)
}

func TestGenerateReport(t *testing.T) {
	store := &fakeStore{stats: []models.DailyStat{
		{StatDate: "2025-03-10", FirstBootTime: boot("2025-03-10", 9, 0), TotalActiveMinutes: 300, TotalIdleMinutes: 60, AverageBusyIndex: 40, TotalMouseDistance: 52000, TotalMouseClicks: 100, WorkSessions: 1},
		{StatDate: "2025-03-11", FirstBootTime: boot("2025-03-11", 9, 30), TotalActiveMinutes: 420, TotalIdleMinutes: 30, AverageBusyIndex: 50, TotalMouseDistance: 26000, TotalKeyPresses: 900, WorkSessions: 2},
		{StatDate: "2025-02-28", TotalActiveMinutes: 999},
	}}
	r := newReporter(t, store, time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC))

	report, err := r.GenerateReport(context.Background(), "week")
	require.NoError(t, err)

	assert.Equal(t, "2025-03-06", store.lastStart)
	assert.Equal(t, "2025-03-12", store.lastEnd)
	assert.Equal(t, 7, report.TotalDays)
	assert.Equal(t, 2, report.WorkDays)
	assert.EqualValues(t, 720, report.TotalActiveMinutes)
	assert.EqualValues(t, 90, report.TotalIdleMinutes)
	assert.InDelta(t, 6, report.AvgActiveHours, 1e-9)
	assert.InDelta(t, 45, report.AvgBusyIndex, 1e-9)
	assert.InDelta(t, 15, report.MouseDistanceM, 1e-9)
	assert.InDelta(t, 9.25, report.AvgBootHour, 1e-9)
	// Sample std of {9, 9.5} is ~0.354.
	assert.InDelta(t, 96.46, report.RegularityScore, 1e-9)
	require.Len(t, report.Days, 2)
	assert.InDelta(t, 10, report.Days[0].MouseDistanceM, 1e-9)

	text := r.FormatReportText(report)
	assert.Contains(t, text, "Activity Report - week")
	assert.Contains(t, text, "Work Days: 2 of 7")
	assert.Contains(t, text, "2025-03-11")
	assert.Contains(t, text, "09:30")

	out, err := r.FormatReportJSON(report)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.EqualValues(t, 2, decoded["work_days"])
}

func TestGenerateReportEmpty(t *testing.T) {
	r := newReporter(t, &fakeStore{}, time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC))

	report, err := r.GenerateReport(context.Background(), "day")
	require.NoError(t, err)
	assert.Zero(t, report.WorkDays)
	assert.Zero(t, report.AvgActiveHours)
	assert.NotNil(t, report.Days)

	text := r.FormatReportText(report)
	assert.True(t, strings.Contains(text, "No activity recorded"))
}

func TestGenerateCustomReport(t *testing.T) {
	store := &fakeStore{}
	r := newReporter(t, store, time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC))

	from := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)
	report, err := r.GenerateCustomReport(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, 28, report.TotalDays)
	assert.Equal(t, "2025-02-28", store.lastEnd)

	_, err = r.GenerateCustomReport(context.Background(), to, from)
	assert.Error(t, err)
}

func TestGenerateReportScores(t *testing.T) {
	store := &fakeStore{stats: []models.DailyStat{
		// 2h at busy 50, 10 switches per hour, 242 inputs over 121 minutes.
		{StatDate: "2025-03-10", FirstBootTime: boot("2025-03-10", 8, 0), TotalActiveMinutes: 120, AverageBusyIndex: 50,
			TotalWindowSwitches: 20, TotalMouseClicks: 100, TotalKeyPresses: 142},
		// Switch rate and input rate both clip at 100.
		{StatDate: "2025-03-11", FirstBootTime: boot("2025-03-11", 10, 30), TotalActiveMinutes: 60, AverageBusyIndex: 100,
			TotalWindowSwitches: 200, TotalKeyPresses: 6100},
		// No active time and no switches: no focus score.
		{StatDate: "2025-03-12"},
	}}
	r := newReporter(t, store, time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC))

	report, err := r.GenerateReport(context.Background(), "week")
	require.NoError(t, err)

	assert.InDelta(t, 0.67, report.AvgWorkIntensity, 1e-9)
	assert.InDelta(t, 1, report.MaxWorkIntensity, 1e-9)
	assert.InDelta(t, 45, report.AvgFocusScore, 1e-9)
	assert.InDelta(t, 34, report.AvgEfficiency, 1e-9)
	assert.InDelta(t, 8, report.EarliestBootHour, 1e-9)
	assert.InDelta(t, 10.5, report.LatestBootHour, 1e-9)
	require.Len(t, report.Days, 3)
	assert.InDelta(t, 1, report.Days[0].WorkIntensity, 1e-9)

	text := r.FormatReportText(report)
	assert.Contains(t, text, "Work Intensity: avg 0.67  max 1.00  Focus: 45  Efficiency: 34.00")
	assert.Contains(t, text, "Boot: earliest 08:00  latest 10:30  avg 09:15")

	out, err := r.FormatReportJSON(report)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.InDelta(t, 45, decoded["avg_focus_score"], 1e-9)
	assert.InDelta(t, 10.5, decoded["latest_boot_hour"], 1e-9)
}

func TestFocusScoreWithoutActiveTime(t *testing.T) {
	_, ok := focusScore(models.DailyStat{})
	assert.False(t, ok)

	score, ok := focusScore(models.DailyStat{TotalWindowSwitches: 3})
	assert.True(t, ok)
	assert.Zero(t, score)
}
