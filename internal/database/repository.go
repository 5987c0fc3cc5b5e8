package database

import (
	"context"
	"sync"
	"time"

	"daypulse/internal/models"

	"github.com/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository handles all database operations. Writes are serialized so the
// store behaves as a single writer; reads go straight to the pool.
type Repository struct {
	db *DB
	mu sync.Mutex
}

// NewRepository creates a new repository instance
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

func utc(t time.Time) time.Time {
	return t.UTC()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// UpsertMinuteRecord inserts the record, overwriting any existing record with
// the same timestamp.
func (r *Repository) UpsertMinuteRecord(ctx context.Context, rec *models.MinuteRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec.Timestamp = utc(rec.Timestamp)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "timestamp"}},
			UpdateAll: true,
		}).
		Create(rec)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to upsert activity record")
	}
	return nil
}

// GetActivityRecords returns records with start <= timestamp <= end, oldest first.
func (r *Repository) GetActivityRecords(ctx context.Context, start, end time.Time) ([]models.MinuteRecord, error) {
	var records []models.MinuteRecord
	result := r.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp <= ?", utc(start), utc(end)).
		Order("timestamp ASC").
		Find(&records)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query activity records")
	}
	return records, nil
}

// GetActivityWindow returns records with from <= timestamp < until, oldest first.
func (r *Repository) GetActivityWindow(ctx context.Context, from, until time.Time) ([]models.MinuteRecord, error) {
	var records []models.MinuteRecord
	result := r.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp < ?", utc(from), utc(until)).
		Order("timestamp ASC").
		Find(&records)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query activity window")
	}
	return records, nil
}

// GetLatestRecordBetween returns the newest record in [start, end], or nil.
func (r *Repository) GetLatestRecordBetween(ctx context.Context, start, end time.Time) (*models.MinuteRecord, error) {
	var rec models.MinuteRecord
	result := r.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp <= ?", utc(start), utc(end)).
		Order("timestamp DESC").
		First(&rec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(result.Error, "failed to get latest activity record")
	}
	return &rec, nil
}

// CreateSession inserts a new session row and fills in its ID
func (r *Repository) CreateSession(ctx context.Context, s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s.StartTime = utc(s.StartTime)
	s.EndTime = utcPtr(s.EndTime)
	result := r.db.WithContext(ctx).Create(s)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert session")
	}
	return nil
}

// UpdateSession writes every column of an existing session
func (r *Repository) UpdateSession(ctx context.Context, s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s.StartTime = utc(s.StartTime)
	s.EndTime = utcPtr(s.EndTime)
	result := r.db.WithContext(ctx).Save(s)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update session")
	}
	if result.RowsAffected == 0 {
		return errors.Errorf("session %d not found", s.ID)
	}
	return nil
}

// GetSession retrieves a session by its ID
func (r *Repository) GetSession(ctx context.Context, id uint) (*models.Session, error) {
	var s models.Session
	result := r.db.WithContext(ctx).First(&s, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, errors.Wrap(result.Error, "failed to get session")
	}
	return &s, nil
}

// GetOpenSessions returns sessions without an end time, oldest first
func (r *Repository) GetOpenSessions(ctx context.Context) ([]models.Session, error) {
	var sessions []models.Session
	result := r.db.WithContext(ctx).
		Where("end_time IS NULL").
		Order("start_time ASC").
		Find(&sessions)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query open sessions")
	}
	return sessions, nil
}

// GetNextSessionStart returns the start of the earliest session that began
// after the given instant, or nil when none did.
func (r *Repository) GetNextSessionStart(ctx context.Context, after time.Time) (*time.Time, error) {
	var s models.Session
	result := r.db.WithContext(ctx).
		Where("start_time > ?", utc(after)).
		Order("start_time ASC").
		First(&s)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(result.Error, "failed to query next session")
	}
	return &s.StartTime, nil
}

// GetSessionsByDates returns sessions whose session_date is one of dates
func (r *Repository) GetSessionsByDates(ctx context.Context, dates ...string) ([]models.Session, error) {
	var sessions []models.Session
	if len(dates) == 0 {
		return sessions, nil
	}
	result := r.db.WithContext(ctx).
		Where("session_date IN ?", dates).
		Order("start_time ASC").
		Find(&sessions)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query sessions")
	}
	return sessions, nil
}

// UpsertDailyStat writes the stat, overwriting any existing row for its date
func (r *Repository) UpsertDailyStat(ctx context.Context, stat *models.DailyStat) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stat.FirstBootTime = utcPtr(stat.FirstBootTime)
	stat.LastShutdownTime = utcPtr(stat.LastShutdownTime)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stat_date"}},
			UpdateAll: true,
		}).
		Create(stat)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to upsert daily stat")
	}
	return nil
}

// GetDailyStat returns the stat for one date, or nil
func (r *Repository) GetDailyStat(ctx context.Context, date string) (*models.DailyStat, error) {
	var stat models.DailyStat
	result := r.db.WithContext(ctx).Where("stat_date = ?", date).First(&stat)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(result.Error, "failed to get daily stat")
	}
	return &stat, nil
}

// GetDailyStats returns stats with startDate <= stat_date <= endDate, oldest first.
// Dates use models.DateLayout.
func (r *Repository) GetDailyStats(ctx context.Context, startDate, endDate string) ([]models.DailyStat, error) {
	var stats []models.DailyStat
	result := r.db.WithContext(ctx).
		Where("stat_date >= ? AND stat_date <= ?", startDate, endDate).
		Order("stat_date ASC").
		Find(&stats)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query daily stats")
	}
	return stats, nil
}

// CreateErrorLog inserts a new error log into the database
func (r *Repository) CreateErrorLog(ctx context.Context, errorLog *models.ErrorLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	errorLog.Timestamp = utc(errorLog.Timestamp)
	result := r.db.WithContext(ctx).Create(errorLog)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert error log")
	}
	return nil
}

// GetRecentErrorLogs returns up to limit error logs, newest first
func (r *Repository) GetRecentErrorLogs(ctx context.Context, limit int) ([]models.ErrorLog, error) {
	var logs []models.ErrorLog
	result := r.db.WithContext(ctx).
		Order("timestamp DESC").
		Limit(limit).
		Find(&logs)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query error logs")
	}
	return logs, nil
}

// DeleteBefore removes records, sessions, daily stats and error logs older
// than cutoff. Returns the number of rows deleted.
func (r *Repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoffDate := cutoff.Format(models.DateLayout)
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		steps := []struct {
			model any
			query string
			arg   any
		}{
			{&models.MinuteRecord{}, "timestamp < ?", utc(cutoff)},
			{&models.Session{}, "session_date < ? AND end_time IS NOT NULL", cutoffDate},
			{&models.DailyStat{}, "stat_date < ?", cutoffDate},
			{&models.ErrorLog{}, "timestamp < ?", utc(cutoff)},
		}
		for _, step := range steps {
			result := tx.Where(step.query, step.arg).Delete(step.model)
			if result.Error != nil {
				return result.Error
			}
			deleted += result.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete old data")
	}
	return deleted, nil
}

// Clear removes all tracking data from the database
func (r *Repository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"activity_records", "sessions", "daily_stats", "error_logs"} {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to clear database")
	}
	return nil
}
