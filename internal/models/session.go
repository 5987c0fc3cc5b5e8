package models

import "time"

// Session is one continuous run of the monitoring process. EndTime stays nil
// while the session is open.
type Session struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	InstanceID       string     `gorm:"not null;index" json:"instance_id"`
	SessionDate      string     `gorm:"type:text;not null;index:idx_session_date" json:"session_date"` // YYYY-MM-DD, local
	StartTime        time.Time  `gorm:"not null" json:"start_time"`
	EndTime          *time.Time `gorm:"index" json:"end_time"`
	DurationMinutes  int64      `gorm:"not null;default:0" json:"duration_minutes"`
	ActiveMinutes    int64      `gorm:"not null;default:0" json:"active_minutes"`
	IdleMinutes      int64      `gorm:"not null;default:0" json:"idle_minutes"`
	TotalMouseClicks int64      `gorm:"not null;default:0" json:"total_mouse_clicks"`
	TotalKeyPresses  int64      `gorm:"not null;default:0" json:"total_key_presses"`
	AverageBusyIndex float64    `gorm:"not null;default:0" json:"average_busy_index"`
	Recovered        bool       `gorm:"not null;default:false" json:"recovered"`
}

func (Session) TableName() string {
	return "sessions"
}

// IsOpen reports whether the session has not been closed yet.
func (s *Session) IsOpen() bool {
	return s.EndTime == nil
}
