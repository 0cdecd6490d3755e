package services

import (
	"errors"
	"fmt"
	"log"
	"math"

	"evforum/internal/metrics"
	"evforum/internal/models"

	"gorm.io/gorm"
)

// Quality descriptors derived from a votable's vote distribution.
const (
	QualityUnrated       = "unrated"
	QualityExcellent     = "excellent"
	QualityGood          = "good"
	QualityMixed         = "mixed"
	QualityControversial = "controversial"
	QualityPoor          = "poor"
)

type VoteService struct {
	db *gorm.DB
}

func NewVoteService(g *gorm.DB) *VoteService {
	return &VoteService{db: g}
}

// CastVote records a vote with upsert semantics: an identical repeat is a
// no-op, a changed vote type swaps both counter buckets atomically, and a
// fresh vote inserts one row and bumps one bucket.
func (s *VoteService) CastVote(votableType string, votableID, voterID uint, value int) error {
	if votableType != models.VotableThread && votableType != models.VotableReply {
		return invalid("votable_type", "must be thread or reply")
	}
	if value != models.VoteUp && value != models.VoteDown {
		return invalid("vote_type", "must be upvote or downvote")
	}
	if err := s.checkVotable(votableType, votableID); err != nil {
		return err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Vote
		err := tx.Where("voter_id = ? AND votable_type = ? AND votable_id = ?",
			voterID, votableType, votableID).First(&existing).Error
		switch {
		case err == nil:
			if existing.Value == value {
				return nil // idempotent repeat
			}
			// Update mutates existing.Value, so remember the old bucket first.
			old := existing.Value
			if err := tx.Model(&existing).Update("value", value).Error; err != nil {
				return err
			}
			if err := s.adjustBucket(tx, votableType, votableID, old, -1); err != nil {
				return err
			}
			return s.adjustBucket(tx, votableType, votableID, value, +1)
		case errors.Is(err, gorm.ErrRecordNotFound):
			vote := models.Vote{
				VoterID:     voterID,
				VotableType: votableType,
				VotableID:   votableID,
				Value:       value,
			}
			if err := tx.Create(&vote).Error; err != nil {
				return err
			}
			return s.adjustBucket(tx, votableType, votableID, value, +1)
		default:
			return err
		}
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	voteType := "upvote"
	if value == models.VoteDown {
		voteType = "downvote"
	}
	metrics.VotesCast.WithLabelValues(votableType, voteType).Inc()
	return nil
}

// RetractVote removes a voter's vote. A no-op when no vote exists.
func (s *VoteService) RetractVote(votableType string, votableID, voterID uint) error {
	if votableType != models.VotableThread && votableType != models.VotableReply {
		return invalid("votable_type", "must be thread or reply")
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Vote
		err := tx.Where("voter_id = ? AND votable_type = ? AND votable_id = ?",
			voterID, votableType, votableID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Delete(&existing).Error; err != nil {
			return err
		}
		return s.adjustBucket(tx, votableType, votableID, existing.Value, -1)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	return nil
}

// checkVotable rejects votes on missing or deleted targets.
func (s *VoteService) checkVotable(votableType string, votableID uint) error {
	switch votableType {
	case models.VotableThread:
		var thread models.Thread
		if err := s.db.First(&thread, votableID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("votable thread %d: %w", votableID, ErrNotFound)
			}
			return fmt.Errorf("%w: %v", ErrStoreFailure, err)
		}
		if thread.IsDeleted {
			return fmt.Errorf("votable thread %d: %w", votableID, ErrNotFound)
		}
	case models.VotableReply:
		var reply models.Reply
		if err := s.db.First(&reply, votableID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("votable reply %d: %w", votableID, ErrNotFound)
			}
			return fmt.Errorf("%w: %v", ErrStoreFailure, err)
		}
		if !reply.IsActive {
			return fmt.Errorf("votable reply %d: %w", votableID, ErrNotFound)
		}
	}
	return nil
}

// adjustBucket moves a cached counter by delta. Decrements are floored at
// zero at the store so concurrent retractions cannot drive them negative.
func (s *VoteService) adjustBucket(tx *gorm.DB, votableType string, votableID uint, voteValue, delta int) error {
	column := "upvotes"
	if voteValue == models.VoteDown {
		column = "downvotes"
	}

	query := tx.Model(&models.Thread{})
	if votableType == models.VotableReply {
		query = tx.Model(&models.Reply{})
	}
	query = query.Where("id = ?", votableID)
	if delta < 0 {
		query = query.Where(column + " > 0")
	}
	return query.UpdateColumn(column, gorm.Expr(column+" + ?", delta)).Error
}

// QualityOf classifies a vote distribution for display. Controversial wins
// over the percentage bands once enough votes are in.
func QualityOf(upvotes, downvotes int) string {
	total := upvotes + downvotes
	if total == 0 {
		return QualityUnrated
	}
	percentage := int(math.Round(float64(upvotes) / float64(total) * 100))

	switch {
	case percentage >= 90 && total >= 10:
		return QualityExcellent
	case total >= 20 && math.Abs(float64(percentage)-50) < 10:
		return QualityControversial
	case percentage >= 70:
		return QualityGood
	case percentage >= 40:
		return QualityMixed
	default:
		return QualityPoor
	}
}

// ReconcileReport describes one reconciliation pass over a votable.
type ReconcileReport struct {
	VotableType      string `json:"votable_type"`
	VotableID        uint   `json:"votable_id"`
	CachedUpvotes    int    `json:"cached_upvotes"`
	CachedDownvotes  int    `json:"cached_downvotes"`
	CountedUpvotes   int    `json:"counted_upvotes"`
	CountedDownvotes int    `json:"counted_downvotes"`
	Drifted          bool   `json:"drifted"`
}

// Reconcile recounts a votable's votes from the rows and repairs the cached
// counters when they disagree. Drift is logged; this is the only path that
// may correct a counter outside the normal increment flow.
func (s *VoteService) Reconcile(votableType string, votableID uint) (*ReconcileReport, error) {
	report := &ReconcileReport{VotableType: votableType, VotableID: votableID}

	switch votableType {
	case models.VotableThread:
		var thread models.Thread
		if err := s.db.First(&thread, votableID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("votable thread %d: %w", votableID, ErrNotFound)
			}
			return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
		}
		report.CachedUpvotes = thread.Upvotes
		report.CachedDownvotes = thread.Downvotes
	case models.VotableReply:
		var reply models.Reply
		if err := s.db.First(&reply, votableID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("votable reply %d: %w", votableID, ErrNotFound)
			}
			return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
		}
		report.CachedUpvotes = reply.Upvotes
		report.CachedDownvotes = reply.Downvotes
	default:
		return nil, invalid("votable_type", "must be thread or reply")
	}

	var up, down int64
	if err := s.db.Model(&models.Vote{}).
		Where("votable_type = ? AND votable_id = ? AND value = ?", votableType, votableID, models.VoteUp).
		Count(&up).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	if err := s.db.Model(&models.Vote{}).
		Where("votable_type = ? AND votable_id = ? AND value = ?", votableType, votableID, models.VoteDown).
		Count(&down).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	report.CountedUpvotes = int(up)
	report.CountedDownvotes = int(down)

	if report.CountedUpvotes != report.CachedUpvotes || report.CountedDownvotes != report.CachedDownvotes {
		report.Drifted = true
		metrics.CounterDrift.Inc()
		log.Printf("vote counter drift on %s %d: cached %d/%d, counted %d/%d",
			votableType, votableID,
			report.CachedUpvotes, report.CachedDownvotes,
			report.CountedUpvotes, report.CountedDownvotes)

		query := s.db.Model(&models.Thread{})
		if votableType == models.VotableReply {
			query = s.db.Model(&models.Reply{})
		}
		err := query.Where("id = ?", votableID).Updates(map[string]interface{}{
			"upvotes":   report.CountedUpvotes,
			"downvotes": report.CountedDownvotes,
		}).Error
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
		}
	}
	return report, nil
}
