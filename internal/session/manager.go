// Package session tracks machine-on periods as rows in the sessions table.
package session

import (
	"context"
	"math"
	"sync"
	"time"

	"cdr.dev/slog"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"daypulse/internal/activity"
	"daypulse/internal/models"
)

var (
	ErrSessionActive   = errors.New("session already active")
	ErrNoActiveSession = errors.New("no active session")
)

// Store is the persistence the manager needs
type Store interface {
	CreateSession(ctx context.Context, s *models.Session) error
	UpdateSession(ctx context.Context, s *models.Session) error
	GetOpenSessions(ctx context.Context) ([]models.Session, error)
	GetActivityRecords(ctx context.Context, start, end time.Time) ([]models.MinuteRecord, error)
	GetLatestRecordBetween(ctx context.Context, start, end time.Time) (*models.MinuteRecord, error)
	GetNextSessionStart(ctx context.Context, after time.Time) (*time.Time, error)
}

// Options configures a Manager
type Options struct {
	Store      Store
	Clock      quartz.Clock
	Location   *time.Location
	StaleGrace time.Duration
	Logger     slog.Logger
}

// Manager owns at most one open session for this process
type Manager struct {
	store      Store
	clock      quartz.Clock
	loc        *time.Location
	staleGrace time.Duration
	logger     slog.Logger
	instanceID string

	mu     sync.Mutex
	active *models.Session
}

func NewManager(opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Manager{
		store:      opts.Store,
		clock:      opts.Clock,
		loc:        opts.Location,
		staleGrace: opts.StaleGrace,
		logger:     opts.Logger.Named("session"),
		instanceID: uuid.NewString(),
	}
}

// InstanceID identifies sessions opened by this manager
func (m *Manager) InstanceID() string {
	return m.instanceID
}

// Active returns a copy of the open session, or nil
func (m *Manager) Active() *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	s := *m.active
	return &s
}

// Start opens a new session at the current time
func (m *Manager) Start(ctx context.Context) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return nil, ErrSessionActive
	}

	now := m.clock.Now()
	s := &models.Session{
		InstanceID:  m.instanceID,
		SessionDate: now.In(m.loc).Format(models.DateLayout),
		StartTime:   now,
	}
	if err := m.store.CreateSession(ctx, s); err != nil {
		return nil, err
	}

	m.active = s
	m.logger.Info(ctx, "session started",
		slog.F("session_id", s.ID),
		slog.F("session_date", s.SessionDate))

	c := *s
	return &c, nil
}

// End closes the open session at the current time. If the update cannot be
// persisted the session stays open so End can be retried.
func (m *Manager) End(ctx context.Context) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return nil, ErrNoActiveSession
	}

	closed := *m.active
	if err := m.close(ctx, &closed, m.clock.Now()); err != nil {
		return nil, err
	}

	m.active = nil
	m.logger.Info(ctx, "session ended",
		slog.F("session_id", closed.ID),
		slog.F("duration_minutes", closed.DurationMinutes),
		slog.F("active_minutes", closed.ActiveMinutes),
		slog.F("idle_minutes", closed.IdleMinutes))

	return &closed, nil
}

// close fills the aggregates of s over [start, end] and persists it
func (m *Manager) close(ctx context.Context, s *models.Session, end time.Time) error {
	if end.Before(s.StartTime) {
		end = s.StartTime
	}

	records, err := m.store.GetActivityRecords(ctx, s.StartTime, end)
	if err != nil {
		return err
	}

	Aggregate(s, records)
	s.EndTime = &end
	s.DurationMinutes = int64(math.Round(end.Sub(s.StartTime).Minutes()))

	return m.store.UpdateSession(ctx, s)
}

// Aggregate computes a session's activity totals from its records
func Aggregate(s *models.Session, records []models.MinuteRecord) {
	s.ActiveMinutes, s.IdleMinutes = 0, 0
	s.TotalMouseClicks, s.TotalKeyPresses = 0, 0
	s.AverageBusyIndex = 0

	var busySum float64
	for _, r := range records {
		if r.IsIdle {
			s.IdleMinutes++
		} else {
			s.ActiveMinutes++
		}
		s.TotalMouseClicks += r.MouseClicks
		s.TotalKeyPresses += r.KeyboardPresses
		busySum += r.BusyIndex
	}
	if len(records) > 0 {
		s.AverageBusyIndex = activity.Round2(busySum / float64(len(records)))
	}
}

// RecoverStale closes sessions left open by processes that died without
// ending them. A session is stale when its last-seen time is older than the
// grace period. Last-seen is the newest record between its start and the
// start of the next session, or its start when there is none. Each stale
// session is closed at its last-seen time. Returns the number closed.
func (m *Manager) RecoverStale(ctx context.Context) (int, error) {
	open, err := m.store.GetOpenSessions(ctx)
	if err != nil {
		return 0, err
	}

	now := m.clock.Now()
	recovered := 0
	for i := range open {
		s := &open[i]
		if s.InstanceID == m.instanceID {
			continue
		}

		bound := now
		next, err := m.store.GetNextSessionStart(ctx, s.StartTime)
		if err != nil {
			return recovered, err
		}
		if next != nil && next.Before(bound) {
			bound = next.Add(-time.Millisecond)
		}

		lastSeen := s.StartTime
		latest, err := m.store.GetLatestRecordBetween(ctx, s.StartTime, bound)
		if err != nil {
			return recovered, err
		}
		if latest != nil {
			lastSeen = latest.Timestamp
		}

		if now.Sub(lastSeen) <= m.staleGrace {
			m.logger.Warn(ctx, "open session is still recent, leaving it alone",
				slog.F("session_id", s.ID),
				slog.F("instance_id", s.InstanceID),
				slog.F("last_seen", lastSeen))
			continue
		}

		s.Recovered = true
		if err := m.close(ctx, s, lastSeen); err != nil {
			return recovered, err
		}
		recovered++
		m.logger.Info(ctx, "recovered stale session",
			slog.F("session_id", s.ID),
			slog.F("end_time", lastSeen),
			slog.F("duration_minutes", s.DurationMinutes))
	}

	return recovered, nil
}
