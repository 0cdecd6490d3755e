package models

import (
	"time"
)

// TombstoneContent replaces the body of a soft deleted reply. The row stays
// so children keep a valid parent.
const TombstoneContent = "[deleted]"

type Reply struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	ThreadID uint   `gorm:"not null;index" json:"thread_id"`
	Thread   Thread `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	AuthorID uint   `gorm:"not null;index" json:"author_id"`
	Author   User   `gorm:"foreignKey:AuthorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	ParentID *uint  `gorm:"index" json:"parent_id"` // nil for top-level replies
	Content  string `gorm:"type:text;not null" json:"content"`
	// DeletedContent parks the body while the reply is tombstoned so a
	// restore can bring it back. Never serialized.
	DeletedContent string `gorm:"type:text" json:"-"`

	Upvotes   int  `gorm:"default:0" json:"upvotes"`
	Downvotes int  `gorm:"default:0" json:"downvotes"`
	IsEdited  bool `gorm:"default:false" json:"is_edited"`
	IsActive  bool `gorm:"default:true;index" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
