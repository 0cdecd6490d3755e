package models

import (
	"time"
)

// Votable kinds.
const (
	VotableThread = "thread"
	VotableReply  = "reply"
)

// Vote values.
const (
	VoteUp   = 1
	VoteDown = -1
)

// Vote holds one row per (voter, votable). Switching vote type overwrites the
// row; retracting deletes it. The unique index enforces the one-vote rule at
// the store so concurrent casts cannot duplicate.
type Vote struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	VoterID     uint      `gorm:"not null;uniqueIndex:idx_voter_votable" json:"voter_id"`
	VotableType string    `gorm:"size:10;not null;uniqueIndex:idx_voter_votable" json:"votable_type"`
	VotableID   uint      `gorm:"not null;uniqueIndex:idx_voter_votable;index" json:"votable_id"`
	Value       int       `gorm:"not null" json:"value"` // 1 or -1
	CreatedAt   time.Time `json:"created_at"`
}
