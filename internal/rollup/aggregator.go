// Package rollup reduces minute records and sessions into one DailyStat per
// activity day. An activity day D spans [D 00:00, D+1 DayEndHour:00) so late
// nights count toward the day they started.
package rollup

import (
	"context"
	"fmt"
	"math"
	"time"

	"cdr.dev/slog"

	"daypulse/internal/activity"
	"daypulse/internal/models"
)

// Store is the persistence the aggregator needs
type Store interface {
	GetActivityWindow(ctx context.Context, from, until time.Time) ([]models.MinuteRecord, error)
	GetSessionsByDates(ctx context.Context, dates ...string) ([]models.Session, error)
	UpsertDailyStat(ctx context.Context, stat *models.DailyStat) error
}

// Options configures the day boundary and nap window
type Options struct {
	Location     *time.Location
	DayEndHour   int
	NapStartHour int
	NapEndHour   int
}

type Aggregator struct {
	store  Store
	opts   Options
	logger slog.Logger
}

func NewAggregator(store Store, opts Options, logger slog.Logger) *Aggregator {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Aggregator{store: store, opts: opts, logger: logger.Named("rollup")}
}

// Window returns the half-open activity window of the calendar date in loc
func (o Options) Window(date time.Time) (from, until time.Time) {
	y, m, d := date.In(o.Location).Date()
	from = time.Date(y, m, d, 0, 0, 0, 0, o.Location)
	until = time.Date(y, m, d+1, o.DayEndHour, 0, 0, 0, o.Location)
	return from, until
}

// ActivityDay returns the activity day an instant belongs to
func (o Options) ActivityDay(t time.Time) time.Time {
	local := t.In(o.Location)
	y, m, d := local.Date()
	if local.Hour() < o.DayEndHour {
		d--
	}
	return time.Date(y, m, d, 0, 0, 0, 0, o.Location)
}

// Summarize derives the DailyStat for date from the records inside its window
// and the sessions dated D or D+1. It has no side effects.
func (o Options) Summarize(date time.Time, records []models.MinuteRecord, sessions []models.Session) *models.DailyStat {
	from, until := o.Window(date)
	dayKey := from.Format(models.DateLayout)
	nextKey := from.AddDate(0, 0, 1).Format(models.DateLayout)

	stat := &models.DailyStat{StatDate: dayKey}

	for i := range sessions {
		s := &sessions[i]
		switch s.SessionDate {
		case dayKey:
		case nextKey:
			if s.StartTime.In(o.Location).Hour() >= o.DayEndHour {
				continue
			}
		default:
			continue
		}

		stat.WorkSessions++
		if stat.FirstBootTime == nil || s.StartTime.Before(*stat.FirstBootTime) {
			start := s.StartTime
			stat.FirstBootTime = &start
		}
		if s.EndTime != nil {
			end := *s.EndTime
			if end.After(until) {
				end = until
			}
			if stat.LastShutdownTime == nil || end.After(*stat.LastShutdownTime) {
				stat.LastShutdownTime = &end
			}
		}
	}

	var busySum float64
	n := 0
	for _, r := range records {
		if r.Timestamp.Before(from) || !r.Timestamp.Before(until) {
			continue
		}
		n++

		if r.IsIdle {
			stat.TotalIdleMinutes++
			if h := r.Timestamp.In(o.Location).Hour(); h >= o.NapStartHour && h <= o.NapEndHour {
				stat.NapMinutes++
			}
		} else {
			stat.TotalActiveMinutes++
		}

		stat.TotalMouseClicks += r.MouseClicks
		stat.TotalKeyPresses += r.KeyboardPresses
		stat.TotalWindowSwitches += r.WindowSwitches
		stat.TotalMouseDistance += r.MouseDistance
		busySum += r.BusyIndex
		stat.MaxBusyIndex = math.Max(stat.MaxBusyIndex, r.BusyIndex)
	}
	if n > 0 {
		stat.AverageBusyIndex = activity.Round2(busySum / float64(n))
	}
	stat.TotalMouseDistance = activity.Round2(stat.TotalMouseDistance)

	return stat
}

// Rollup recomputes and stores the DailyStat for date. Running it again over
// unchanged data writes an identical row.
func (a *Aggregator) Rollup(ctx context.Context, date time.Time) (*models.DailyStat, error) {
	from, until := a.opts.Window(date)

	records, err := a.store.GetActivityWindow(ctx, from, until)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}

	sessions, err := a.store.GetSessionsByDates(ctx,
		from.Format(models.DateLayout),
		from.AddDate(0, 0, 1).Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	stat := a.opts.Summarize(date, records, sessions)
	if err := a.store.UpsertDailyStat(ctx, stat); err != nil {
		return nil, fmt.Errorf("store daily stat: %w", err)
	}

	a.logger.Debug(ctx, "daily rollup stored",
		slog.F("date", stat.StatDate),
		slog.F("active_minutes", stat.TotalActiveMinutes),
		slog.F("idle_minutes", stat.TotalIdleMinutes),
		slog.F("work_sessions", stat.WorkSessions))

	return stat, nil
}

// RollupAt rolls up the calendar day containing now, and also the previous
// day while its window is still open (before DayEndHour).
func (a *Aggregator) RollupAt(ctx context.Context, now time.Time) error {
	local := now.In(a.opts.Location)
	y, m, d := local.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, a.opts.Location)

	days := []time.Time{today}
	if open := a.opts.ActivityDay(now); open.Before(today) {
		days = append([]time.Time{open}, days...)
	}

	for _, day := range days {
		if _, err := a.Rollup(ctx, day); err != nil {
			return err
		}
	}
	return nil
}
