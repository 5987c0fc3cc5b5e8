package reporter

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/coder/quartz"

	"daypulse/internal/activity"
	"daypulse/internal/config"
	"daypulse/internal/models"
	"daypulse/pkg/utils"
)

// Store is the persistence the reporter reads from
type Store interface {
	GetDailyStats(ctx context.Context, startDate, endDate string) ([]models.DailyStat, error)
}

// Reporter handles report generation
type Reporter struct {
	config *config.Config
	repo   Store
	clock  quartz.Clock
	loc    *time.Location
}

// New creates a new reporter
func New(cfg *config.Config, repo Store, clock quartz.Clock) (*Reporter, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Reporter{
		config: cfg,
		repo:   repo,
		clock:  clock,
		loc:    loc,
	}, nil
}

// GenerateReport generates a report for the specified period
func (r *Reporter) GenerateReport(ctx context.Context, periodType string) (*models.Report, error) {
	period, err := r.getPeriod(periodType)
	if err != nil {
		return nil, err
	}
	return r.generate(ctx, *period)
}

// GenerateCustomReport covers the inclusive date range [from, to]
func (r *Reporter) GenerateCustomReport(ctx context.Context, from, to time.Time) (*models.Report, error) {
	start := startOfDay(from.In(r.loc))
	end := startOfDay(to.In(r.loc)).AddDate(0, 0, 1)
	if !end.After(start) {
		return nil, fmt.Errorf("invalid range: %s is after %s",
			from.Format(models.DateLayout), to.Format(models.DateLayout))
	}
	return r.generate(ctx, models.ReportPeriod{Start: start, End: end, Type: "custom"})
}

func (r *Reporter) generate(ctx context.Context, period models.ReportPeriod) (*models.Report, error) {
	stats, err := r.repo.GetDailyStats(ctx,
		period.Start.Format(models.DateLayout),
		period.End.AddDate(0, 0, -1).Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to get daily stats: %w", err)
	}

	report := &models.Report{
		Period:      period,
		Days:        make([]models.DaySummary, 0, len(stats)),
		TotalDays:   int(math.Round(period.End.Sub(period.Start).Hours() / 24)),
		WorkDays:    len(stats),
		GeneratedAt: r.clock.Now(),
	}

	var busySum, distance, intensitySum, efficiencySum float64
	var bootHours, focusScores []float64
	for _, s := range stats {
		day := r.summarize(s)
		report.Days = append(report.Days, day)

		report.TotalActiveMinutes += s.TotalActiveMinutes
		report.TotalIdleMinutes += s.TotalIdleMinutes
		report.TotalClicks += s.TotalMouseClicks
		report.TotalKeyPresses += s.TotalKeyPresses
		report.TotalSwitches += s.TotalWindowSwitches
		distance += s.TotalMouseDistance
		busySum += s.AverageBusyIndex

		intensitySum += day.WorkIntensity
		report.MaxWorkIntensity = math.Max(report.MaxWorkIntensity, day.WorkIntensity)
		efficiencySum += efficiency(s)
		if score, ok := focusScore(s); ok {
			focusScores = append(focusScores, score)
		}

		if s.FirstBootTime != nil {
			boot := s.FirstBootTime.In(r.loc)
			bootHours = append(bootHours, float64(boot.Hour())+float64(boot.Minute())/60)
		}
	}

	if report.WorkDays > 0 {
		report.AvgActiveHours = activity.Round2(float64(report.TotalActiveMinutes) / 60 / float64(report.WorkDays))
		report.AvgBusyIndex = activity.Round2(busySum / float64(report.WorkDays))
		report.AvgWorkIntensity = activity.Round2(intensitySum / float64(report.WorkDays))
		report.MaxWorkIntensity = activity.Round2(report.MaxWorkIntensity)
		report.AvgEfficiency = activity.Round2(efficiencySum / float64(report.WorkDays))
	}
	if len(focusScores) > 0 {
		mean, _ := meanStd(focusScores)
		report.AvgFocusScore = activity.Round2(mean)
	}
	report.MouseDistanceM = activity.Round2(distance / r.config.Report.PixelsPerMeter)

	if len(bootHours) > 0 {
		mean, std := meanStd(bootHours)
		report.AvgBootHour = activity.Round2(mean)
		report.EarliestBootHour = activity.Round2(slices.Min(bootHours))
		report.LatestBootHour = activity.Round2(slices.Max(bootHours))
		report.RegularityScore = activity.Round2(math.Max(0, 100-std*10))
	}

	return report, nil
}

func (r *Reporter) summarize(s models.DailyStat) models.DaySummary {
	return models.DaySummary{
		Date:             s.StatDate,
		FirstBoot:        s.FirstBootTime,
		LastShutdown:     s.LastShutdownTime,
		ActiveMinutes:    s.TotalActiveMinutes,
		IdleMinutes:      s.TotalIdleMinutes,
		NapMinutes:       s.NapMinutes,
		Clicks:           s.TotalMouseClicks,
		KeyPresses:       s.TotalKeyPresses,
		WindowSwitches:   s.TotalWindowSwitches,
		MouseDistanceM:   activity.Round2(s.TotalMouseDistance / r.config.Report.PixelsPerMeter),
		AverageBusyIndex: s.AverageBusyIndex,
		MaxBusyIndex:     s.MaxBusyIndex,
		WorkSessions:     s.WorkSessions,
		WorkIntensity:    activity.Round2(workIntensity(s)),
	}
}

// workIntensity weighs a day's active hours by its average busy index
func workIntensity(s models.DailyStat) float64 {
	return float64(s.TotalActiveMinutes) / 60 * s.AverageBusyIndex / 100
}

// focusScore is 100 minus window switches per active hour, the rate clipped
// to [0, 100]. A day without active time or switches has no score.
func focusScore(s models.DailyStat) (float64, bool) {
	hours := float64(s.TotalActiveMinutes) / 60
	if hours == 0 {
		if s.TotalWindowSwitches == 0 {
			return 0, false
		}
		return 0, true
	}
	return 100 - clip(float64(s.TotalWindowSwitches)/hours, 0, 100), true
}

// efficiency is clicks plus key presses per active minute, clipped to [0, 100]
func efficiency(s models.DailyStat) float64 {
	return clip(float64(s.TotalMouseClicks+s.TotalKeyPresses)/float64(s.TotalActiveMinutes+1), 0, 100)
}

func clip(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// meanStd returns the mean and sample standard deviation. A single value has
// no spread.
func meanStd(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if len(values) < 2 {
		return mean, 0
	}

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)-1))
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Today returns local midnight of the current day
func (r *Reporter) Today() time.Time {
	return startOfDay(r.clock.Now().In(r.loc))
}

// getPeriod calculates the time range for the report
func (r *Reporter) getPeriod(periodType string) (*models.ReportPeriod, error) {
	today := r.Today()
	var start, end time.Time

	switch periodType {
	case "day", "today":
		start = today
		end = start.AddDate(0, 0, 1)

	case "week":
		// The last seven days, today included
		end = today.AddDate(0, 0, 1)
		start = today.AddDate(0, 0, -6)

	case "month":
		start = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, r.loc)
		end = start.AddDate(0, 1, 0)

	default:
		return nil, fmt.Errorf("invalid period type: %s (valid: day, week, month)", periodType)
	}

	return &models.ReportPeriod{
		Start: start,
		End:   end,
		Type:  periodType,
	}, nil
}

// FormatReportText formats the report as human-readable text
func (r *Reporter) FormatReportText(report *models.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Activity Report - %s\n", report.Period.Type)
	fmt.Fprintf(&b, "Period: %s to %s\n",
		report.Period.Start.Format(models.DateLayout),
		report.Period.End.AddDate(0, 0, -1).Format(models.DateLayout))

	if len(report.Days) == 0 {
		b.WriteString("\nNo activity recorded for this period.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Work Days: %d of %d\n", report.WorkDays, report.TotalDays)
	fmt.Fprintf(&b, "Active: %s (avg %.2fh/day)  Idle: %s\n",
		utils.FormatMinutes(report.TotalActiveMinutes),
		report.AvgActiveHours,
		utils.FormatMinutes(report.TotalIdleMinutes))
	fmt.Fprintf(&b, "Avg Busy Index: %.2f  Regularity: %.0f\n", report.AvgBusyIndex, report.RegularityScore)
	fmt.Fprintf(&b, "Work Intensity: avg %.2f  max %.2f  Focus: %.0f  Efficiency: %.2f\n",
		report.AvgWorkIntensity, report.MaxWorkIntensity, report.AvgFocusScore, report.AvgEfficiency)
	fmt.Fprintf(&b, "Boot: earliest %s  latest %s  avg %s\n",
		hourClock(report.EarliestBootHour), hourClock(report.LatestBootHour), hourClock(report.AvgBootHour))
	fmt.Fprintf(&b, "Clicks: %d  Keys: %d  Switches: %d  Mouse: %.2fm\n\n",
		report.TotalClicks, report.TotalKeyPresses, report.TotalSwitches, report.MouseDistanceM)

	fmt.Fprintf(&b, "%-10s %6s %6s %9s %9s %6s %6s %8s\n",
		"Date", "Boot", "Off", "Active", "Idle", "Nap", "Busy", "Sessions")
	b.WriteString(strings.Repeat("-", 68) + "\n")

	for _, d := range report.Days {
		fmt.Fprintf(&b, "%-10s %6s %6s %9s %9s %6s %6.1f %8d\n",
			d.Date,
			r.clockTime(d.FirstBoot),
			r.clockTime(d.LastShutdown),
			utils.FormatMinutes(d.ActiveMinutes),
			utils.FormatMinutes(d.IdleMinutes),
			utils.FormatMinutes(d.NapMinutes),
			d.AverageBusyIndex,
			d.WorkSessions)
	}

	return b.String()
}

// hourClock renders a fractional hour of day as HH:MM
func hourClock(h float64) string {
	minutes := int(math.Round(h * 60))
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func (r *Reporter) clockTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.In(r.loc).Format("15:04")
}

// FormatReportJSON formats the report as JSON
func (r *Reporter) FormatReportJSON(report *models.Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}
