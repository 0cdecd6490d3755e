package models

import (
	"strings"
	"time"
)

type Thread struct {
	ID         uint     `gorm:"primaryKey" json:"id"`
	Pid        string   `gorm:"uniqueIndex;size:8;not null" json:"pid"`
	CategoryID uint     `gorm:"not null;index;uniqueIndex:idx_category_slug" json:"category_id"`
	Category   Category `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"category"`
	AuthorID   uint     `gorm:"not null;index" json:"author_id"`
	Author     User     `gorm:"foreignKey:AuthorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Title      string   `gorm:"not null" json:"title"`
	// Slug is unique within a category, not globally.
	Slug    string `gorm:"uniqueIndex:idx_category_slug;size:120;not null" json:"slug"`
	Content string `gorm:"type:text" json:"content"`
	Tags    string `gorm:"size:255" json:"tags"` // comma separated

	IsPinned  bool `gorm:"default:false;index" json:"is_pinned"`
	IsLocked  bool `gorm:"default:false" json:"is_locked"`
	IsDeleted bool `gorm:"default:false;index" json:"is_deleted"`

	// Derived counters. ReplyCount/LastReplyAt are owned by the reply service,
	// Upvotes/Downvotes by the vote service.
	ViewCount   int        `gorm:"default:0" json:"view_count"`
	ReplyCount  int        `gorm:"default:0" json:"reply_count"`
	Upvotes     int        `gorm:"default:0" json:"upvotes"`
	Downvotes   int        `gorm:"default:0" json:"downvotes"`
	LastReplyAt *time.Time `json:"last_reply_at"`
	LastReplyBy uint       `json:"last_reply_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TagList splits the stored comma separated tags.
func (t *Thread) TagList() []string {
	if t.Tags == "" {
		return nil
	}
	var out []string
	for _, tag := range strings.Split(t.Tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
