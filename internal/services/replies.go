package services

import (
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"evforum/internal/metrics"
	"evforum/internal/models"
	"evforum/internal/utils"

	"gorm.io/gorm"
)

// MaxReplyLength caps reply bodies.
const MaxReplyLength = 10000

// DefaultDepthLimit is the deepest nesting level rendered before the tree is
// flattened for display.
const DefaultDepthLimit = 5

type ReplyService struct {
	db *gorm.DB
}

func NewReplyService(g *gorm.DB) *ReplyService {
	return &ReplyService{db: g}
}

// CreateReply inserts a reply and rolls the thread and category counters
// forward in the same transaction, so a failed insert never bumps a counter.
func (s *ReplyService) CreateReply(threadID, authorID uint, content string, parentID *uint) (*models.Reply, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid("content", "must not be empty")
	}
	if len(content) > MaxReplyLength {
		return nil, invalid("content", fmt.Sprintf("exceeds %d characters", MaxReplyLength))
	}

	var thread models.Thread
	if err := s.db.First(&thread, threadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrThreadNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	if thread.IsDeleted {
		return nil, ErrThreadNotFound
	}
	if thread.IsLocked {
		return nil, ErrThreadLocked
	}

	if parentID != nil {
		var parent models.Reply
		if err := s.db.First(&parent, *parentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrParentNotFound
			}
			return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
		}
		if parent.ThreadID != threadID {
			return nil, ErrParentNotFound
		}
	}

	reply := models.Reply{
		ThreadID: threadID,
		AuthorID: authorID,
		ParentID: parentID,
		Content:  content,
		IsActive: true,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&reply).Error; err != nil {
			return err
		}
		now := time.Now()
		if err := tx.Model(&models.Thread{}).Where("id = ?", threadID).
			Updates(map[string]interface{}{
				"reply_count":   gorm.Expr("reply_count + 1"),
				"last_reply_at": now,
				"last_reply_by": authorID,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Category{}).Where("id = ?", thread.CategoryID).
			Updates(map[string]interface{}{
				"post_count":       gorm.Expr("post_count + 1"),
				"last_activity_at": now,
			}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	metrics.RepliesCreated.Inc()
	utils.GetCache().DeletePrefix(threadCachePrefix)
	return &reply, nil
}

// EditReply updates the body. Only the author may edit.
func (s *ReplyService) EditReply(id, actorID uint, content string) (*models.Reply, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid("content", "must not be empty")
	}
	if len(content) > MaxReplyLength {
		return nil, invalid("content", fmt.Sprintf("exceeds %d characters", MaxReplyLength))
	}

	var reply models.Reply
	if err := s.db.First(&reply, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("reply %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	if !reply.IsActive {
		return nil, fmt.Errorf("reply %d: %w", id, ErrNotFound)
	}
	if reply.AuthorID != actorID {
		return nil, ErrForbidden
	}

	if err := s.db.Model(&reply).Updates(map[string]interface{}{
		"content":   content,
		"is_edited": true,
	}).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	return &reply, nil
}

// SoftDeleteReply tombstones a reply. Children stay attached and keep
// rendering under the tombstone. Idempotent: deleting an already inactive
// reply changes nothing, so counters are never decremented twice.
func (s *ReplyService) SoftDeleteReply(id uint, actor *models.User) error {
	var reply models.Reply
	if err := s.db.First(&reply, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("reply %d: %w", id, ErrNotFound)
		}
		return fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	if reply.AuthorID != actor.ID && !actor.CanModerate() {
		return ErrForbidden
	}
	if !reply.IsActive {
		return nil
	}

	var thread models.Thread
	if err := s.db.First(&thread, reply.ThreadID).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&reply).Updates(map[string]interface{}{
			"content":         models.TombstoneContent,
			"deleted_content": reply.Content,
			"is_active":       false,
		}).Error; err != nil {
			return err
		}
		// Floor at zero; a prior reconciliation may already have lowered it.
		if err := tx.Model(&models.Thread{}).
			Where("id = ? AND reply_count > 0", reply.ThreadID).
			UpdateColumn("reply_count", gorm.Expr("reply_count - 1")).Error; err != nil {
			return err
		}
		return tx.Model(&models.Category{}).
			Where("id = ? AND post_count > 0", thread.CategoryID).
			UpdateColumn("post_count", gorm.Expr("post_count - 1")).Error
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	utils.GetCache().DeletePrefix(threadCachePrefix)
	return nil
}

// RestoreReply reactivates a tombstoned reply, brings the parked body back
// and rolls the counters forward again. No-op when the reply is already
// active.
func (s *ReplyService) RestoreReply(id uint) error {
	var reply models.Reply
	if err := s.db.First(&reply, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("reply %d: %w", id, ErrNotFound)
		}
		return fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	if reply.IsActive {
		return nil
	}

	var thread models.Thread
	if err := s.db.First(&thread, reply.ThreadID).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	restored := reply.DeletedContent
	if restored == "" {
		// Rows tombstoned before the body was parked keep the marker.
		restored = reply.Content
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&reply).Updates(map[string]interface{}{
			"content":         restored,
			"deleted_content": "",
			"is_active":       true,
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Thread{}).Where("id = ?", reply.ThreadID).
			UpdateColumn("reply_count", gorm.Expr("reply_count + 1")).Error; err != nil {
			return err
		}
		return tx.Model(&models.Category{}).Where("id = ?", thread.CategoryID).
			UpdateColumn("post_count", gorm.Expr("post_count + 1")).Error
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	utils.GetCache().DeletePrefix(threadCachePrefix)
	return nil
}

// ReplyNode is one entry of the display tree. Depth and DisplayParentID are
// derived per read; storage keeps the true parent reference.
type ReplyNode struct {
	models.Reply
	Depth           int           `json:"depth"`
	DisplayParentID *uint         `json:"display_parent_id"`
	ContentHTML     template.HTML `json:"content_html"`
}

// ListReplies returns the thread's replies ordered by (created_at, id) with
// depth computed from the parent chain. Nodes deeper than depthLimit are
// re-parented to their nearest ancestor above the limit so the rendered tree
// never nests unboundedly. afterID restarts the sequence past a known reply;
// limit caps the page size (0 means everything).
func (s *ReplyService) ListReplies(threadID uint, depthLimit int, afterID uint, limit int) ([]ReplyNode, error) {
	if depthLimit <= 0 {
		depthLimit = DefaultDepthLimit
	}

	var thread models.Thread
	if err := s.db.First(&thread, threadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrThreadNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	if thread.IsDeleted {
		return nil, ErrThreadNotFound
	}

	var replies []models.Reply
	if err := s.db.Preload("Author").Where("thread_id = ?", threadID).
		Order("created_at ASC, id ASC").Find(&replies).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	nodes := buildReplyTree(replies, depthLimit)

	if afterID != 0 {
		for i, n := range nodes {
			if n.ID == afterID {
				nodes = nodes[i+1:]
				break
			}
		}
	}
	if limit > 0 && len(nodes) > limit {
		nodes = nodes[:limit]
	}
	return nodes, nil
}

// buildReplyTree derives depth and display parents in one ordered pass.
// Parents are always created before their children, so by the time a node is
// visited its parent's depth is known.
func buildReplyTree(replies []models.Reply, depthLimit int) []ReplyNode {
	depthOf := make(map[uint]int, len(replies))
	// anchorOf[id] is the nearest ancestor (or the node itself) shallow
	// enough to act as a display parent for flattened descendants.
	anchorOf := make(map[uint]uint, len(replies))

	nodes := make([]ReplyNode, 0, len(replies))
	for _, reply := range replies {
		depth := 0
		if reply.ParentID != nil {
			if parentDepth, ok := depthOf[*reply.ParentID]; ok {
				depth = parentDepth + 1
			}
		}
		depthOf[reply.ID] = depth

		if depth < depthLimit {
			anchorOf[reply.ID] = reply.ID
		} else if reply.ParentID != nil {
			anchorOf[reply.ID] = anchorOf[*reply.ParentID]
		}

		node := ReplyNode{Reply: reply, Depth: depth}
		if reply.IsActive {
			node.ContentHTML = utils.RenderMarkdown(reply.Content)
		} else {
			node.ContentHTML = template.HTML(models.TombstoneContent)
		}
		switch {
		case reply.ParentID == nil:
			node.DisplayParentID = nil
		case depth <= depthLimit:
			node.DisplayParentID = reply.ParentID
		default:
			// Flatten: hang the node off the anchor ancestor.
			anchor := anchorOf[*reply.ParentID]
			node.DisplayParentID = &anchor
			node.Depth = depthLimit
		}
		nodes = append(nodes, node)
	}
	return nodes
}

// ActiveReplyCount recounts active replies straight from the rows. Used by
// tests and the reconciliation endpoint to verify the cached thread counter.
func (s *ReplyService) ActiveReplyCount(threadID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.Reply{}).
		Where("thread_id = ? AND is_active = ?", threadID, true).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	return count, nil
}
