package models

import (
	"time"
)

// Moderation actions.
const (
	ActionPin     = "pin"
	ActionUnpin   = "unpin"
	ActionLock    = "lock"
	ActionUnlock  = "unlock"
	ActionDelete  = "delete"
	ActionRestore = "restore"
)

// ModerationLogEntry is append-only. A row is written for every attempted
// moderation action, successful or not, so the audit trail never has gaps.
type ModerationLogEntry struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"` // uuid
	AdminID    uint      `gorm:"not null;index" json:"admin_id"`
	ActionType string    `gorm:"size:20;not null" json:"action_type"`
	TargetType string    `gorm:"size:10;not null" json:"target_type"` // thread or reply
	TargetID   uint      `gorm:"not null;index" json:"target_id"`
	Reason     string    `gorm:"size:500" json:"reason"`
	Succeeded  bool      `gorm:"default:true" json:"succeeded"`
	CreatedAt  time.Time `json:"created_at"`
}
