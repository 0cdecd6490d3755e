package services

import (
	"errors"
	"fmt"
	"log"

	"evforum/internal/metrics"
	"evforum/internal/models"
	"evforum/internal/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Moderation flags.
const (
	FlagPinned  = "pinned"
	FlagLocked  = "locked"
	FlagDeleted = "deleted"
)

// TargetSummary is returned after a flag change so the caller can refresh
// its view without a second query.
type TargetSummary struct {
	TargetType string `json:"target_type"`
	TargetID   uint   `json:"target_id"`
	IsPinned   bool   `json:"is_pinned"`
	IsLocked   bool   `json:"is_locked"`
	IsDeleted  bool   `json:"is_deleted"`
}

type ModerationService struct {
	db      *gorm.DB
	replies *ReplyService
}

func NewModerationService(g *gorm.DB, replies *ReplyService) *ModerationService {
	return &ModerationService{db: g, replies: replies}
}

// ApplyFlag toggles one moderation flag on a thread or reply. Every attempt
// is recorded in the moderation log, including ones that fail, so the audit
// trail covers denied and misdirected actions too.
func (s *ModerationService) ApplyFlag(targetType string, targetID uint, flag string, value bool, actor *models.User, reason string) (*TargetSummary, error) {
	action := actionFor(flag, value)
	if action == "" {
		return nil, invalid("flag", "must be pinned, locked or deleted")
	}

	summary, err := s.applyFlag(targetType, targetID, flag, value, actor)
	s.appendLog(actor.ID, action, targetType, targetID, reason, err == nil)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.ModerationActions.WithLabelValues(action, outcome).Inc()
	if err != nil {
		return nil, err
	}

	utils.GetCache().DeletePrefix(threadCachePrefix)
	return summary, nil
}

func (s *ModerationService) applyFlag(targetType string, targetID uint, flag string, value bool, actor *models.User) (*TargetSummary, error) {
	if !actor.CanModerate() {
		return nil, ErrForbidden
	}

	switch targetType {
	case models.VotableThread:
		return s.applyThreadFlag(targetID, flag, value)
	case models.VotableReply:
		return s.applyReplyFlag(targetID, flag, value, actor)
	default:
		return nil, invalid("target_type", "must be thread or reply")
	}
}

func (s *ModerationService) applyThreadFlag(threadID uint, flag string, value bool) (*TargetSummary, error) {
	var thread models.Thread
	if err := s.db.First(&thread, threadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("thread %d: %w", threadID, ErrNotFound)
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	column := map[string]string{
		FlagPinned:  "is_pinned",
		FlagLocked:  "is_locked",
		FlagDeleted: "is_deleted",
	}[flag]

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&thread).Update(column, value).Error; err != nil {
			return err
		}
		// Deleting or restoring a thread moves the category thread counter.
		// Reply rows are untouched; visibility cascades in the queries.
		if flag == FlagDeleted && value != thread.IsDeleted {
			if value {
				return tx.Model(&models.Category{}).
					Where("id = ? AND thread_count > 0", thread.CategoryID).
					UpdateColumn("thread_count", gorm.Expr("thread_count - 1")).Error
			}
			return tx.Model(&models.Category{}).Where("id = ?", thread.CategoryID).
				UpdateColumn("thread_count", gorm.Expr("thread_count + 1")).Error
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	summary := &TargetSummary{
		TargetType: models.VotableThread,
		TargetID:   threadID,
		IsPinned:   thread.IsPinned,
		IsLocked:   thread.IsLocked,
		IsDeleted:  thread.IsDeleted,
	}
	switch flag {
	case FlagPinned:
		summary.IsPinned = value
	case FlagLocked:
		summary.IsLocked = value
	case FlagDeleted:
		summary.IsDeleted = value
	}
	return summary, nil
}

// applyReplyFlag delegates to the reply engine so the thread reply counter
// only ever moves through the one authoritative path.
func (s *ModerationService) applyReplyFlag(replyID uint, flag string, value bool, actor *models.User) (*TargetSummary, error) {
	// Replies only carry the deleted flag; pin and lock are thread concepts.
	if flag != FlagDeleted {
		return nil, invalid("flag", "replies only support the deleted flag")
	}

	var err error
	if value {
		err = s.replies.SoftDeleteReply(replyID, actor)
	} else {
		err = s.replies.RestoreReply(replyID)
	}
	if err != nil {
		return nil, err
	}

	return &TargetSummary{
		TargetType: models.VotableReply,
		TargetID:   replyID,
		IsDeleted:  value,
	}, nil
}

// appendLog writes the audit row. Failures to log are themselves logged;
// they never mask the moderation result.
func (s *ModerationService) appendLog(adminID uint, action, targetType string, targetID uint, reason string, succeeded bool) {
	entry := models.ModerationLogEntry{
		ID:         uuid.NewString(),
		AdminID:    adminID,
		ActionType: action,
		TargetType: targetType,
		TargetID:   targetID,
		Reason:     reason,
		Succeeded:  succeeded,
	}
	if err := s.db.Create(&entry).Error; err != nil {
		log.Printf("failed to append moderation log for %s %d: %v", targetType, targetID, err)
	}
}

// ListLog pages through the audit trail, newest first.
func (s *ModerationService) ListLog(page, perPage int) ([]models.ModerationLogEntry, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 || perPage > 100 {
		perPage = 50
	}

	var total int64
	if err := s.db.Model(&models.ModerationLogEntry{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	var entries []models.ModerationLogEntry
	err := s.db.Order("created_at DESC, id DESC").
		Limit(perPage).Offset((page - 1) * perPage).Find(&entries).Error
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	return entries, total, nil
}

func actionFor(flag string, value bool) string {
	switch flag {
	case FlagPinned:
		if value {
			return models.ActionPin
		}
		return models.ActionUnpin
	case FlagLocked:
		if value {
			return models.ActionLock
		}
		return models.ActionUnlock
	case FlagDeleted:
		if value {
			return models.ActionDelete
		}
		return models.ActionRestore
	}
	return ""
}
