package cli

import (
	"fmt"
	"time"

	"daypulse/internal/config"
	"daypulse/internal/database"
	"daypulse/internal/models"
)

// openRepository connects to the configured database and makes sure the
// schema exists. The returned func closes the connection.
func openRepository(cfg *config.Config) (*database.Repository, func(), error) {
	db, err := database.Connect(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Initialize(); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return database.NewRepository(db), func() { _ = db.Close() }, nil
}

// parseDate reads a YYYY-MM-DD flag value as midnight in loc. An empty value
// yields fallback.
func parseDate(value string, loc *time.Location, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	t, err := time.ParseInLocation(models.DateLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return t, nil
}

func formatTime(t *time.Time, loc *time.Location) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.In(loc).Format("2006-01-02 15:04:05")
}
