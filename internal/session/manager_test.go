package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cdr.dev/slog/sloggers/slogtest"
	"github.com/coder/quartz"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daypulse/internal/database"
	"daypulse/internal/models"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) *database.Repository {
	t.Helper()

	db, err := database.Connect(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Initialize())

	return database.NewRepository(db)
}

func newManager(t *testing.T, store Store, clock quartz.Clock) *Manager {
	return NewManager(Options{
		Store:      store,
		Clock:      clock,
		Location:   time.UTC,
		StaleGrace: 5 * time.Minute,
		Logger:     slogtest.Make(t, &slogtest.Options{IgnoreErrors: true}),
	})
}

func TestStartEnd(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	clock := quartz.NewMock(t)
	clock.Set(t0)
	m := newManager(t, repo, clock)

	_, err := m.End(ctx)
	require.ErrorIs(t, err, ErrNoActiveSession)

	started, err := m.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", started.SessionDate)
	assert.Equal(t, m.InstanceID(), started.InstanceID)

	_, err = m.Start(ctx)
	require.ErrorIs(t, err, ErrSessionActive)

	for i := 1; i <= 30; i++ {
		require.NoError(t, repo.UpsertMinuteRecord(ctx, &models.MinuteRecord{
			Timestamp:       t0.Add(time.Duration(i) * time.Minute),
			IsIdle:          i > 20,
			MouseClicks:     2,
			KeyboardPresses: 3,
			BusyIndex:       map[bool]float64{true: 0, false: 30}[i > 20],
		}))
	}
	// Outside the session window.
	require.NoError(t, repo.UpsertMinuteRecord(ctx, &models.MinuteRecord{Timestamp: t0.Add(-time.Minute), MouseClicks: 100}))

	clock.Advance(30 * time.Minute)
	ended, err := m.End(ctx)
	require.NoError(t, err)
	assert.Nil(t, m.Active())

	assert.EqualValues(t, 30, ended.DurationMinutes)
	assert.EqualValues(t, 20, ended.ActiveMinutes)
	assert.EqualValues(t, 10, ended.IdleMinutes)
	assert.EqualValues(t, 60, ended.TotalMouseClicks)
	assert.EqualValues(t, 90, ended.TotalKeyPresses)
	assert.InDelta(t, 20, ended.AverageBusyIndex, 1e-9)
	assert.False(t, ended.Recovered)

	records, err := repo.GetActivityRecords(ctx, ended.StartTime, *ended.EndTime)
	require.NoError(t, err)
	assert.EqualValues(t, len(records), ended.ActiveMinutes+ended.IdleMinutes)

	stored, err := repo.GetSession(ctx, ended.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.EndTime)
	assert.True(t, stored.EndTime.Equal(t0.Add(30*time.Minute)))
}

type failingUpdates struct {
	Store
	fail bool
}

func (f *failingUpdates) UpdateSession(ctx context.Context, s *models.Session) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Store.UpdateSession(ctx, s)
}

func TestEndFailureKeepsSessionActive(t *testing.T) {
	ctx := context.Background()
	store := &failingUpdates{Store: newTestRepo(t), fail: true}
	clock := quartz.NewMock(t)
	clock.Set(t0)
	m := newManager(t, store, clock)

	_, err := m.Start(ctx)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = m.End(ctx)
	require.Error(t, err)

	active := m.Active()
	require.NotNil(t, active)
	assert.Nil(t, active.EndTime)

	store.fail = false
	ended, err := m.End(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, ended.DurationMinutes)
}

func TestRecoverStale(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	staleStart := t0.Add(-3 * time.Hour)
	stale := &models.Session{InstanceID: "crashed", SessionDate: "2025-03-10", StartTime: staleStart}
	require.NoError(t, repo.CreateSession(ctx, stale))
	for i := 0; i < 45; i++ {
		require.NoError(t, repo.UpsertMinuteRecord(ctx, &models.MinuteRecord{
			Timestamp: staleStart.Add(time.Duration(i) * time.Minute),
			IsIdle:    i >= 40,
		}))
	}

	// No records before the next session began: last seen is the start time.
	bare := &models.Session{InstanceID: "crashed-too", SessionDate: "2025-03-10", StartTime: t0.Add(-time.Hour)}
	require.NoError(t, repo.CreateSession(ctx, bare))

	// Still writing a minute ago: another live instance.
	live := &models.Session{InstanceID: "alive", SessionDate: "2025-03-10", StartTime: t0.Add(-30 * time.Minute)}
	require.NoError(t, repo.CreateSession(ctx, live))
	require.NoError(t, repo.UpsertMinuteRecord(ctx, &models.MinuteRecord{Timestamp: t0.Add(-time.Minute)}))

	clock := quartz.NewMock(t)
	clock.Set(t0)
	m := newManager(t, repo, clock)

	n, err := m.RecoverStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := repo.GetSession(ctx, stale.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EndTime)
	assert.True(t, got.Recovered)
	assert.True(t, got.EndTime.Equal(staleStart.Add(44*time.Minute)))
	assert.EqualValues(t, 44, got.DurationMinutes)
	assert.EqualValues(t, 40, got.ActiveMinutes)
	assert.EqualValues(t, 5, got.IdleMinutes)

	got, err = repo.GetSession(ctx, bare.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EndTime)
	assert.True(t, got.EndTime.Equal(bare.StartTime))
	assert.Zero(t, got.DurationMinutes)

	open, err := repo.GetOpenSessions(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "alive", open[0].InstanceID)

	// An hour later the other instance has gone quiet, but this manager's
	// own session is never recovered.
	own, err := m.Start(ctx)
	require.NoError(t, err)
	clock.Advance(time.Hour)
	n, err = m.RecoverStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err = repo.GetSession(ctx, live.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EndTime)
	assert.True(t, got.EndTime.Equal(t0.Add(-time.Minute)))

	got, err = repo.GetSession(ctx, own.ID)
	require.NoError(t, err)
	assert.Nil(t, got.EndTime)
	assert.NotNil(t, m.Active())
}

func TestSessionDateUsesLocation(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	clock := quartz.NewMock(t)
	clock.Set(time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC))

	m := NewManager(Options{
		Store:    repo,
		Clock:    clock,
		Location: time.FixedZone("UTC+2", 2*3600),
		Logger:   slogtest.Make(t, &slogtest.Options{IgnoreErrors: true}),
	})

	s, err := m.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-11", s.SessionDate)
}
