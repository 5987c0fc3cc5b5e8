package models

import (
	"time"
)

// ErrorLog records a capture failure (window or system query) so a minute
// with empty title or zero CPU can be explained later.
type ErrorLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
	Source    string    `gorm:"not null;index" json:"source"` // "window", "system"
	ErrorMsg  string    `gorm:"not null" json:"error_msg"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
