// Package tracker runs the flush loop: it owns the activity counters, turns
// them into one MinuteRecord per tick and drives sessions, rollups and
// retention.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"cdr.dev/slog"
	"github.com/cenkalti/backoff/v4"
	"github.com/coder/quartz"
	"github.com/hashicorp/go-multierror"
	"github.com/robfig/cron/v3"

	"daypulse/internal/activity"
	"daypulse/internal/config"
	"daypulse/internal/metrics"
	"daypulse/internal/models"
	"daypulse/internal/rollup"
	"daypulse/internal/session"
	"daypulse/pkg/input"
	"daypulse/pkg/sysstat"
	"daypulse/pkg/utils"
	"daypulse/pkg/window"
)

// Store is the persistence the tracker needs
type Store interface {
	session.Store
	rollup.Store
	UpsertMinuteRecord(ctx context.Context, rec *models.MinuteRecord) error
	CreateErrorLog(ctx context.Context, errorLog *models.ErrorLog) error
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	GetDailyStats(ctx context.Context, startDate, endDate string) ([]models.DailyStat, error)
}

// Options wires a Service to its collaborators. Identity, Metrics and Clock
// are optional.
type Options struct {
	Config   *config.Config
	Store    Store
	Window   window.Sampler
	Identity window.Identity
	System   sysstat.Sampler
	Input    input.Source
	Metrics  metrics.Recorder
	Clock    quartz.Clock
	Logger   slog.Logger
}

type eventKind uint8

const (
	eventMove eventKind = iota
	eventClick
	eventKey
)

type event struct {
	kind    eventKind
	x, y    int
	pressed bool
	at      time.Time
}

type stopRequest struct {
	ctx  context.Context
	done chan error
}

// Status is a point-in-time view of the tracker
type Status struct {
	Running       bool
	DisplayServer string
	SessionID     uint
	SessionStart  *time.Time
	Current       activity.Snapshot
	Pending       bool
	Idle          bool
	LastActivity  time.Time
	LastFlush     time.Time
	LastRecord    *models.MinuteRecord
	Dropped       int64
}

// Service accumulates input between flushes and persists one record per tick.
// Input events arrive through a bounded channel; a single loop goroutine owns
// the counters, so producers never block and never share state with flushes.
type Service struct {
	cfg      *config.Config
	store    Store
	window   window.Sampler
	identity window.Identity
	system   sysstat.Sampler
	input    input.Source
	metrics  metrics.Recorder
	clock    quartz.Clock
	logger   slog.Logger
	loc      *time.Location

	busy     *activity.BusyCalculator
	sessions *session.Manager
	rollup   *rollup.Aggregator

	rollupSchedule    cron.Schedule
	retentionSchedule cron.Schedule

	events    chan event
	statusReq chan chan Status
	stopReq   chan stopRequest
	dropped   atomic.Int64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	// Owned by the loop goroutine while running.
	acc             *activity.Accumulator
	idle            *activity.IdleDetector
	pending         *activity.Snapshot
	lastFlush       time.Time
	lastRecord      *models.MinuteRecord
	lastSnapshot    activity.Snapshot
	nextRollup      time.Time
	nextRetention   time.Time
	droppedReported int64
}

func NewService(opts Options) (*Service, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	rollupSchedule, err := cron.ParseStandard(cfg.Rollup.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid rollup schedule: %w", err)
	}
	retentionSchedule, err := cron.ParseStandard(cfg.Retention.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid retention schedule: %w", err)
	}

	if opts.Identity == nil {
		opts.Identity = window.TitleIdentity{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoOp{}
	}
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Input == nil {
		opts.Input = input.Noop{}
	}

	logger := opts.Logger.Named("tracker")
	s := &Service{
		cfg:      cfg,
		store:    opts.Store,
		window:   opts.Window,
		identity: opts.Identity,
		system:   opts.System,
		input:    opts.Input,
		metrics:  opts.Metrics,
		clock:    opts.Clock,
		logger:   logger,
		loc:      loc,
		busy:     activity.NewBusyCalculator(cfg.Busy, cfg.Tracker.FlushInterval),
		sessions: session.NewManager(session.Options{
			Store:      opts.Store,
			Clock:      opts.Clock,
			Location:   loc,
			StaleGrace: cfg.Session.StaleGrace,
			Logger:     opts.Logger,
		}),
		rollup: rollup.NewAggregator(opts.Store, rollup.Options{
			Location:     loc,
			DayEndHour:   cfg.Rollup.DayEndHour,
			NapStartHour: cfg.Rollup.NapStartHour,
			NapEndHour:   cfg.Rollup.NapEndHour,
		}, opts.Logger),
		rollupSchedule:    rollupSchedule,
		retentionSchedule: retentionSchedule,
		events:            make(chan event, cfg.Tracker.EventBuffer),
		statusReq:         make(chan chan Status),
		stopReq:           make(chan stopRequest),
	}
	s.reset(s.clock.Now())
	return s, nil
}

// reset starts fresh counters and schedules at now
func (s *Service) reset(now time.Time) {
	s.idle = activity.NewIdleDetector(s.cfg.Tracker.IdleThreshold, now)
	s.acc = activity.NewAccumulator(s.identity, s.idle)
	s.pending = nil
	s.lastRecord = nil
	s.lastSnapshot = activity.Snapshot{}
	s.lastFlush = now
	s.nextRollup = s.rollupSchedule.Next(now.In(s.loc))
	s.nextRetention = s.retentionSchedule.Next(now.In(s.loc))
}

// Start recovers stale sessions, opens a new one and begins the flush loop.
// Canceling ctx stops the loop after a final flush; Stop must still be called
// to close the session.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("tracker is already running")
	}

	s.reset(s.clock.Now())

	if n, err := s.sessions.RecoverStale(ctx); err != nil {
		s.logger.Warn(ctx, "stale session recovery failed", slog.Error(err))
	} else if n > 0 {
		s.logger.Info(ctx, "closed stale sessions", slog.F("count", n))
	}

	if _, err := s.sessions.Start(ctx); err != nil {
		if !errors.Is(err, session.ErrSessionActive) {
			return fmt.Errorf("start session: %w", err)
		}
		s.logger.Warn(ctx, "session already active", slog.Error(err))
	}

	loopCtx, cancel := context.WithCancel(ctx)
	ticker := s.clock.NewTicker(s.cfg.Tracker.FlushInterval)

	if err := s.input.Start(loopCtx, s); err != nil {
		s.captureFailure(ctx, "input", err)
	}

	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})

	s.logger.Info(ctx, "tracker started",
		slog.F("flush_interval", s.cfg.Tracker.FlushInterval),
		slog.F("idle_threshold", s.cfg.Tracker.IdleThreshold),
		slog.F("display_server", s.displayServer()))

	go s.loop(loopCtx, ticker, s.done)
	return nil
}

func (s *Service) loop(ctx context.Context, ticker *quartz.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case ev := <-s.events:
			s.apply(ev)

		case <-ticker.C:
			_ = s.flush(ctx)

		case reply := <-s.statusReq:
			reply <- s.status(true)

		case req := <-s.stopReq:
			req.done <- s.flush(req.ctx)
			return

		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Daemon.ShutdownGrace)
			_ = s.flush(flushCtx)
			cancel()
			s.logger.Info(flushCtx, "tracker loop stopped by context")
			return
		}
	}
}

// Stop performs a final flush, closes the session, rolls up the current day
// and releases the input source. It is bounded by the shutdown grace period.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return fmt.Errorf("tracker is not running")
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Daemon.ShutdownGrace)
	defer cancel()

	var result *multierror.Error

	req := stopRequest{ctx: ctx, done: make(chan error, 1)}
	select {
	case s.stopReq <- req:
		select {
		case err := <-req.done:
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("final flush: %w", err))
			}
		case <-ctx.Done():
			result = multierror.Append(result, fmt.Errorf("final flush: %w", ctx.Err()))
		}
	case <-s.done:
		// The loop already flushed when its context was canceled.
	}
	s.cancel()
	<-s.done
	s.running = false

	if _, err := s.sessions.End(ctx); err != nil && !errors.Is(err, session.ErrNoActiveSession) {
		result = multierror.Append(result, fmt.Errorf("end session: %w", err))
	}

	if err := s.rollup.RollupAt(ctx, s.clock.Now()); err != nil {
		result = multierror.Append(result, fmt.Errorf("final rollup: %w", err))
	}

	if err := s.input.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close input: %w", err))
	}

	err := result.ErrorOrNil()
	if err != nil {
		s.logger.Error(ctx, "tracker stopped with errors", slog.Error(err))
	} else {
		s.logger.Info(ctx, "tracker stopped")
	}
	return err
}

func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// MouseMove implements input.Sink
func (s *Service) MouseMove(x, y int) {
	s.enqueue(event{kind: eventMove, x: x, y: y})
}

// MouseClick implements input.Sink
func (s *Service) MouseClick(button int, pressed bool) {
	s.enqueue(event{kind: eventClick, pressed: pressed})
}

// KeyPress implements input.Sink
func (s *Service) KeyPress() {
	s.enqueue(event{kind: eventKey})
}

// enqueue never blocks: when the buffer is full the event is dropped
func (s *Service) enqueue(ev event) {
	ev.at = s.clock.Now()
	select {
	case s.events <- ev:
	default:
		s.dropped.Add(1)
	}
}

func (s *Service) apply(ev event) {
	switch ev.kind {
	case eventMove:
		s.acc.RecordMouseMove(ev.x, ev.y, ev.at)
	case eventClick:
		s.acc.RecordMouseClick(ev.pressed, ev.at)
	case eventKey:
		s.acc.RecordKeyPress(ev.at)
	}
}

func (s *Service) drain() {
	for {
		select {
		case ev := <-s.events:
			s.apply(ev)
		default:
			return
		}
	}
}

// flush turns the counters collected since the previous tick into a
// MinuteRecord. A failed write keeps the counters and merges them into the
// next tick.
func (s *Service) flush(ctx context.Context) error {
	s.drain()
	now := s.clock.Now()

	info, err := s.window.Sample(ctx)
	if err != nil {
		s.captureFailure(ctx, "window", err)
		info = window.Info{}
	}
	s.acc.RecordWindowSample(info)

	usage, err := s.system.Sample(ctx)
	if err != nil {
		s.captureFailure(ctx, "system", err)
		usage = sysstat.Usage{}
	}

	snap := s.acc.SnapshotAndReset()
	if s.pending != nil {
		snap = s.pending.Merge(snap)
	}

	unsaved := snap
	ts := now.Truncate(time.Millisecond)
	if s.lastRecord != nil && !ts.After(s.lastRecord.Timestamp) {
		// Same instant as the previous record: extend it rather than
		// overwrite it with a near-empty one.
		merged := s.lastSnapshot.Merge(snap)
		merged.Intervals = s.lastSnapshot.Intervals
		snap = merged
		ts = s.lastRecord.Timestamp
	}

	idle := s.idle.IsIdle(now)
	rec := &models.MinuteRecord{
		Timestamp:         ts,
		MouseDistance:     activity.Round2(snap.MouseDistance),
		MouseClicks:       snap.MouseClicks,
		MouseMoves:        snap.MouseMoves,
		KeyboardPresses:   snap.KeyboardPresses,
		WindowSwitches:    snap.WindowSwitches,
		ActiveWindows:     info.VisibleCount,
		CPUUsage:          activity.Round2(usage.CPUPercent),
		MemoryUsage:       activity.Round2(usage.MemoryPercent),
		BusyIndex:         activity.Round2(s.busy.Compute(snap, usage, idle)),
		IsIdle:            idle,
		ActiveWindowTitle: utils.Truncate(info.Title, s.cfg.Tracker.TitleMaxLength),
	}

	s.reportDropped(ctx)

	if err := s.persist(ctx, rec); err != nil {
		s.pending = &unsaved
		s.metrics.FlushFailed(ctx)
		s.logger.Error(ctx, "failed to persist minute record, keeping counters for next tick",
			slog.F("timestamp", rec.Timestamp),
			slog.F("intervals", snap.Intervals),
			slog.Error(err))
		return err
	}

	s.pending = nil
	s.lastFlush = now
	s.lastRecord = rec
	s.lastSnapshot = snap
	s.metrics.FlushSucceeded(ctx, rec)
	s.logger.Debug(ctx, "minute record stored",
		slog.F("timestamp", rec.Timestamp),
		slog.F("busy_index", rec.BusyIndex),
		slog.F("idle", rec.IsIdle),
		slog.F("intervals", snap.Intervals))

	s.runSchedules(ctx, now)
	return nil
}

func (s *Service) persist(ctx context.Context, rec *models.MinuteRecord) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Tracker.WriteTimeout)
	defer cancel()

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 200 * time.Millisecond
	exp.MaxElapsedTime = s.cfg.Tracker.WriteTimeout
	b := backoff.WithContext(backoff.WithMaxRetries(exp, s.cfg.Tracker.WriteRetries), ctx)

	return backoff.Retry(func() error {
		return s.store.UpsertMinuteRecord(ctx, rec)
	}, b)
}

func (s *Service) reportDropped(ctx context.Context) {
	total := s.dropped.Load()
	delta := total - s.droppedReported
	if delta <= 0 {
		return
	}
	s.droppedReported = total
	s.metrics.EventsDropped(ctx, delta)
	s.logger.Warn(ctx, "input events dropped, event buffer full",
		slog.F("dropped", delta),
		slog.F("total_dropped", total),
		slog.F("buffer", s.cfg.Tracker.EventBuffer))
}

// runSchedules fires the rollup and retention jobs whose scheduled instant
// has passed. Missed instants collapse into one run.
func (s *Service) runSchedules(ctx context.Context, now time.Time) {
	local := now.In(s.loc)

	if !local.Before(s.nextRollup) {
		if err := s.rollup.RollupAt(ctx, now); err != nil {
			s.logger.Error(ctx, "scheduled rollup failed", slog.Error(err))
		}
		s.nextRollup = s.rollupSchedule.Next(local)
	}

	if !local.Before(s.nextRetention) {
		if days := s.cfg.Retention.Days; days > 0 {
			cutoff := local.AddDate(0, 0, -days)
			n, err := s.store.DeleteBefore(ctx, cutoff)
			if err != nil {
				s.logger.Error(ctx, "retention cleanup failed", slog.Error(err))
			} else if n > 0 {
				s.logger.Info(ctx, "retention cleanup removed old data",
					slog.F("rows", n),
					slog.F("cutoff", cutoff))
			}
		}
		s.nextRetention = s.retentionSchedule.Next(local)
	}
}

func (s *Service) captureFailure(ctx context.Context, source string, err error) {
	s.logger.Warn(ctx, "capture failed", slog.F("source", source), slog.Error(err))

	errorLog := &models.ErrorLog{
		Timestamp: s.clock.Now(),
		Source:    source,
		ErrorMsg:  err.Error(),
	}
	if dbErr := s.store.CreateErrorLog(ctx, errorLog); dbErr != nil {
		s.logger.Error(ctx, "failed to store error in database",
			slog.F("original_error", err.Error()),
			slog.Error(dbErr))
	}
}

func (s *Service) displayServer() string {
	if s.window == nil {
		return "unknown"
	}
	return s.window.GetDisplayServer()
}

func (s *Service) status(running bool) Status {
	st := Status{
		Running:       running,
		DisplayServer: s.displayServer(),
		Current:       s.acc.Current(),
		Pending:       s.pending != nil,
		Idle:          s.idle.IsIdle(s.clock.Now()),
		LastActivity:  s.idle.LastActivity(),
		LastFlush:     s.lastFlush,
		Dropped:       s.dropped.Load(),
	}
	if s.lastRecord != nil {
		rec := *s.lastRecord
		st.LastRecord = &rec
	}
	if active := s.sessions.Active(); active != nil {
		st.SessionID = active.ID
		start := active.StartTime
		st.SessionStart = &start
	}
	return st
}

// GetCurrentStatus reports the live counters. While the loop runs the
// request is answered by the loop itself.
func (s *Service) GetCurrentStatus(ctx context.Context) Status {
	s.mu.Lock()
	running, done := s.running, s.done
	s.mu.Unlock()

	if running {
		reply := make(chan Status, 1)
		select {
		case s.statusReq <- reply:
			return <-reply
		case <-done:
		case <-ctx.Done():
			return Status{Running: true, DisplayServer: s.displayServer(), Dropped: s.dropped.Load()}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status(false)
}

// GetActivityRecords returns records in [start, end], oldest first. Errors
// are logged and yield an empty slice.
func (s *Service) GetActivityRecords(ctx context.Context, start, end time.Time) []models.MinuteRecord {
	records, err := s.store.GetActivityRecords(ctx, start, end)
	if err != nil {
		s.logger.Error(ctx, "failed to query activity records", slog.Error(err))
		return []models.MinuteRecord{}
	}
	return records
}

// GetDailyStats returns stats with startDate <= date <= endDate, oldest first.
// Errors are logged and yield an empty slice.
func (s *Service) GetDailyStats(ctx context.Context, startDate, endDate string) []models.DailyStat {
	stats, err := s.store.GetDailyStats(ctx, startDate, endDate)
	if err != nil {
		s.logger.Error(ctx, "failed to query daily stats", slog.Error(err))
		return []models.DailyStat{}
	}
	return stats
}

// Rollup recomputes the DailyStat for one date
func (s *Service) Rollup(ctx context.Context, date time.Time) (*models.DailyStat, error) {
	return s.rollup.Rollup(ctx, date)
}
