package models

import "time"

// MinuteRecord is one persisted aggregate per flush tick. Timestamp is the
// upsert key: writing a record with an existing timestamp overwrites it.
type MinuteRecord struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Timestamp         time.Time `gorm:"not null;uniqueIndex:idx_activity_timestamp" json:"timestamp"`
	MouseDistance     float64   `gorm:"not null;default:0" json:"mouse_distance"` // pixels, sum of per-step displacement
	MouseClicks       int64     `gorm:"not null;default:0" json:"mouse_clicks"`
	MouseMoves        int64     `gorm:"not null;default:0" json:"mouse_moves"`
	KeyboardPresses   int64     `gorm:"not null;default:0" json:"keyboard_presses"`
	WindowSwitches    int64     `gorm:"not null;default:0" json:"window_switches"`
	ActiveWindows     int       `gorm:"not null;default:0" json:"active_windows"`
	CPUUsage          float64   `gorm:"not null;default:0" json:"cpu_usage"`
	MemoryUsage       float64   `gorm:"not null;default:0" json:"memory_usage"`
	BusyIndex         float64   `gorm:"not null;default:0" json:"busy_index"`
	IsIdle            bool      `gorm:"not null;default:false" json:"is_idle"`
	ActiveWindowTitle string    `gorm:"not null;default:''" json:"active_window_title"`
}

func (MinuteRecord) TableName() string {
	return "activity_records"
}
