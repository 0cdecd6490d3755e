package models

import (
	"time"
)

type Category struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Slug        string `gorm:"uniqueIndex;size:80;not null" json:"slug"`
	Name        string `gorm:"not null;unique" json:"name"`
	Description string `json:"description"`
	Color       string `gorm:"size:20" json:"color"`
	Icon        string `gorm:"size:20" json:"icon"`

	// Derived counters, mutated only by thread/reply rollups.
	ThreadCount    int        `gorm:"default:0" json:"thread_count"`
	PostCount      int        `gorm:"default:0" json:"post_count"`
	LastActivityAt *time.Time `json:"last_activity_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
