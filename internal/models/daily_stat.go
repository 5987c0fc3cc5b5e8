package models

import "time"

// DateLayout is the storage format of calendar dates.
const DateLayout = "2006-01-02"

// DailyStat is the derived per-day summary. It carries no bookkeeping
// timestamps so recomputing it from unchanged inputs yields an identical row.
type DailyStat struct {
	ID                  uint       `gorm:"primaryKey" json:"-"`
	StatDate            string     `gorm:"type:text;not null;uniqueIndex:idx_daily_date" json:"stat_date"`
	FirstBootTime       *time.Time `json:"first_boot_time"`
	LastShutdownTime    *time.Time `json:"last_shutdown_time"`
	TotalActiveMinutes  int64      `gorm:"not null;default:0" json:"total_active_minutes"`
	TotalIdleMinutes    int64      `gorm:"not null;default:0" json:"total_idle_minutes"`
	NapMinutes          int64      `gorm:"not null;default:0" json:"nap_minutes"`
	TotalMouseClicks    int64      `gorm:"not null;default:0" json:"total_mouse_clicks"`
	TotalKeyPresses     int64      `gorm:"not null;default:0" json:"total_key_presses"`
	TotalWindowSwitches int64      `gorm:"not null;default:0" json:"total_window_switches"`
	TotalMouseDistance  float64    `gorm:"not null;default:0" json:"total_mouse_distance"`
	AverageBusyIndex    float64    `gorm:"not null;default:0" json:"average_busy_index"`
	MaxBusyIndex        float64    `gorm:"not null;default:0" json:"max_busy_index"`
	WorkSessions        int64      `gorm:"not null;default:0" json:"work_sessions"`
}

func (DailyStat) TableName() string {
	return "daily_stats"
}
