package models

import "time"

type ReportPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Type  string    `json:"type"` // "day", "week", "month", "custom"
}

// DaySummary is one DailyStat prepared for display.
type DaySummary struct {
	Date             string     `json:"date"`
	FirstBoot        *time.Time `json:"first_boot"`
	LastShutdown     *time.Time `json:"last_shutdown"`
	ActiveMinutes    int64      `json:"active_minutes"`
	IdleMinutes      int64      `json:"idle_minutes"`
	NapMinutes       int64      `json:"nap_minutes"`
	Clicks           int64      `json:"clicks"`
	KeyPresses       int64      `json:"key_presses"`
	WindowSwitches   int64      `json:"window_switches"`
	MouseDistanceM   float64    `json:"mouse_distance_m"`
	AverageBusyIndex float64    `json:"average_busy_index"`
	MaxBusyIndex     float64    `json:"max_busy_index"`
	WorkSessions     int64      `json:"work_sessions"`
	WorkIntensity    float64    `json:"work_intensity"` // active hours weighted by the average busy index
}

type Report struct {
	Period             ReportPeriod `json:"period"`
	Days               []DaySummary `json:"days"`
	TotalDays          int          `json:"total_days"`
	WorkDays           int          `json:"work_days"`
	TotalActiveMinutes int64        `json:"total_active_minutes"`
	TotalIdleMinutes   int64        `json:"total_idle_minutes"`
	AvgActiveHours     float64      `json:"avg_active_hours"`
	AvgBusyIndex       float64      `json:"avg_busy_index"`
	TotalClicks        int64        `json:"total_clicks"`
	TotalKeyPresses    int64        `json:"total_key_presses"`
	TotalSwitches      int64        `json:"total_window_switches"`
	MouseDistanceM     float64      `json:"mouse_distance_m"`
	AvgWorkIntensity   float64      `json:"avg_work_intensity"`
	MaxWorkIntensity   float64      `json:"max_work_intensity"`
	AvgFocusScore      float64      `json:"avg_focus_score"` // 100 minus window switches per active hour
	AvgEfficiency      float64      `json:"avg_efficiency"`  // clicks and key presses per active minute
	EarliestBootHour   float64      `json:"earliest_boot_hour"`
	LatestBootHour     float64      `json:"latest_boot_hour"`
	AvgBootHour        float64      `json:"avg_boot_hour"`
	RegularityScore    float64      `json:"regularity_score"` // 100 minus ten times the boot hour standard deviation
	GeneratedAt        time.Time    `json:"generated_at"`
}
