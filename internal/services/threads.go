package services

import (
	"errors"
	"fmt"
	"html/template"
	"log"
	"strings"
	"time"

	"evforum/internal/models"
	"evforum/internal/utils"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// Thread input limits.
const (
	MaxTitleLength    = 255
	MaxThreadLength   = 20000
	threadsPerPage    = 30
	threadCacheTTL    = time.Minute
	threadCachePrefix = "threads:"
)

// Sort orders for thread listings.
const (
	SortNewest      = "newest"
	SortOldest      = "oldest"
	SortMostViews   = "most_views"
	SortMostReplies = "most_replies"
)

// Status filters for thread listings.
const (
	StatusAll        = "all"
	StatusPinned     = "pinned"
	StatusLocked     = "locked"
	StatusUnanswered = "unanswered"
)

type ThreadService struct {
	db *gorm.DB
}

func NewThreadService(g *gorm.DB) *ThreadService {
	return &ThreadService{db: g}
}

// CreateThread inserts a thread and bumps the category counters in one
// transaction. The slug is derived from the title and must be unique within
// the category; on collision one retry with a random suffix is attempted
// before the conflict is surfaced.
func (s *ThreadService) CreateThread(authorID, categoryID uint, title, content string, tags []string) (*models.Thread, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, invalid("title", "must not be empty")
	}
	if len(title) > MaxTitleLength {
		return nil, invalid("title", fmt.Sprintf("exceeds %d characters", MaxTitleLength))
	}
	content = strings.TrimSpace(content)
	if len(content) > MaxThreadLength {
		return nil, invalid("content", fmt.Sprintf("exceeds %d characters", MaxThreadLength))
	}

	var category models.Category
	if err := s.db.First(&category, categoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("category %d: %w", categoryID, ErrNotFound)
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	thread := models.Thread{
		Pid:        utils.RandString(8),
		CategoryID: categoryID,
		AuthorID:   authorID,
		Title:      title,
		Content:    content,
		Tags:       strings.Join(tags, ","),
	}

	baseSlug := slug.Make(title)
	if len(baseSlug) > 100 {
		baseSlug = baseSlug[:100]
	}
	candidates := []string{baseSlug, baseSlug + "-" + strings.ToLower(utils.RandString(4))}

	var lastErr error
	for _, candidate := range candidates {
		thread.Slug = candidate
		lastErr = s.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&thread).Error; err != nil {
				return err
			}
			return tx.Model(&models.Category{}).Where("id = ?", categoryID).
				Updates(map[string]interface{}{
					"thread_count":     gorm.Expr("thread_count + 1"),
					"last_activity_at": time.Now(),
				}).Error
		})
		if lastErr == nil {
			utils.GetCache().DeletePrefix(threadCachePrefix)
			return &thread, nil
		}
		if !errors.Is(lastErr, gorm.ErrDuplicatedKey) && !isUniqueViolation(lastErr) {
			return nil, fmt.Errorf("%w: %v", ErrStoreFailure, lastErr)
		}
		thread.ID = 0 // retry with a fresh insert
	}
	return nil, fmt.Errorf("slug %q already taken: %w", baseSlug, ErrConflict)
}

// isUniqueViolation sniffs driver-specific duplicate key errors the gorm
// translator misses.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

// EditThread lets the author change title and content. Flags are the
// moderation service's business, never touched here.
func (s *ThreadService) EditThread(pid string, actorID uint, title, content string) (*models.Thread, error) {
	thread, err := s.getByPid(pid, false)
	if err != nil {
		return nil, err
	}
	if thread.AuthorID != actorID {
		return nil, ErrForbidden
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, invalid("title", "must not be empty")
	}
	if len(title) > MaxTitleLength {
		return nil, invalid("title", fmt.Sprintf("exceeds %d characters", MaxTitleLength))
	}
	content = strings.TrimSpace(content)
	if len(content) > MaxThreadLength {
		return nil, invalid("content", fmt.Sprintf("exceeds %d characters", MaxThreadLength))
	}

	if err := s.db.Model(thread).Updates(map[string]interface{}{
		"title":   title,
		"content": content,
	}).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	utils.GetCache().DeletePrefix(threadCachePrefix)
	return thread, nil
}

// ThreadDetail is the read model for a single thread page.
type ThreadDetail struct {
	models.Thread
	ContentHTML template.HTML `json:"content_html"`
	Quality     string        `json:"quality"`
	TagNames    []string      `json:"tag_list"`
}

// GetThread loads a thread by public id and counts the view. Deleted threads
// are only visible to moderators.
func (s *ThreadService) GetThread(pid string, viewer *models.User) (*ThreadDetail, error) {
	includeDeleted := viewer != nil && viewer.CanModerate()
	thread, err := s.getByPid(pid, includeDeleted)
	if err != nil {
		return nil, err
	}

	// Atomic at the store; concurrent readers must not lose increments. A
	// failed count is logged, not surfaced; the page still renders.
	if err := s.db.Model(thread).UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error; err != nil {
		log.Printf("failed to count view on thread %s: %v", pid, err)
	} else {
		thread.ViewCount++
	}

	return &ThreadDetail{
		Thread:      *thread,
		ContentHTML: utils.RenderMarkdown(thread.Content),
		Quality:     QualityOf(thread.Upvotes, thread.Downvotes),
		TagNames:    thread.TagList(),
	}, nil
}

// ResolvePid maps a public thread id to the row id. Deleted threads resolve
// too; moderation needs to reach them for restore.
func (s *ThreadService) ResolvePid(pid string) (uint, error) {
	thread, err := s.getByPid(pid, true)
	if err != nil {
		return 0, err
	}
	return thread.ID, nil
}

func (s *ThreadService) getByPid(pid string, includeDeleted bool) (*models.Thread, error) {
	var thread models.Thread
	query := s.db.Preload("Author").Preload("Category").Where("pid = ?", pid)
	if !includeDeleted {
		query = query.Where("is_deleted = ?", false)
	}
	if err := query.First(&thread).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("thread %q: %w", pid, ErrNotFound)
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	return &thread, nil
}

// ListOptions narrows and orders a thread listing.
type ListOptions struct {
	CategoryID uint
	Sort       string
	Status     string
	Search     string
	Page       int
	PerPage    int
}

// ThreadPage is one page of a listing plus pagination totals.
type ThreadPage struct {
	Threads    []models.Thread `json:"threads"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	TotalPages int             `json:"total_pages"`
}

// ListThreads composes the read side: status filter, search, sort with a
// stable id tie-break, and pinned threads surfaced first except in the
// literal locked/unanswered views. Hot pages are cached briefly; every write
// path evicts the cache by prefix.
func (s *ThreadService) ListThreads(opts ListOptions) (*ThreadPage, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PerPage <= 0 || opts.PerPage > 100 {
		opts.PerPage = threadsPerPage
	}
	if opts.Sort == "" {
		opts.Sort = SortNewest
	}
	if opts.Status == "" {
		opts.Status = StatusAll
	}

	cacheKey := fmt.Sprintf("%scat:%d:sort:%s:status:%s:q:%s:page:%d:per:%d",
		threadCachePrefix, opts.CategoryID, opts.Sort, opts.Status, opts.Search, opts.Page, opts.PerPage)
	if cached := utils.GetCache().Get(cacheKey); cached != nil {
		if page, ok := cached.(*ThreadPage); ok {
			return page, nil
		}
	}

	filter := func() (*gorm.DB, error) {
		query := s.db.Model(&models.Thread{}).Where("is_deleted = ?", false)
		if opts.CategoryID != 0 {
			query = query.Where("category_id = ?", opts.CategoryID)
		}
		switch opts.Status {
		case StatusPinned:
			query = query.Where("is_pinned = ?", true)
		case StatusLocked:
			query = query.Where("is_locked = ?", true)
		case StatusUnanswered:
			query = query.Where("reply_count = 0")
		case StatusAll:
		default:
			return nil, invalid("status", "must be all, pinned, locked or unanswered")
		}
		if opts.Search != "" {
			pattern := "%" + strings.ToLower(opts.Search) + "%"
			query = query.Where("LOWER(title) LIKE ? OR LOWER(content) LIKE ?", pattern, pattern)
		}
		return query, nil
	}

	countQuery, err := filter()
	if err != nil {
		return nil, err
	}
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	order, err := orderClause(opts.Sort, opts.Status)
	if err != nil {
		return nil, err
	}

	listQuery, err := filter()
	if err != nil {
		return nil, err
	}
	var threads []models.Thread
	err = listQuery.Preload("Author").Preload("Category").
		Order(order).
		Limit(opts.PerPage).
		Offset((opts.Page - 1) * opts.PerPage).
		Find(&threads).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	totalPages := int((total + int64(opts.PerPage) - 1) / int64(opts.PerPage))
	if totalPages == 0 {
		totalPages = 1
	}

	page := &ThreadPage{
		Threads:    threads,
		Total:      total,
		Page:       opts.Page,
		TotalPages: totalPages,
	}
	utils.GetCache().Set(cacheKey, page, threadCacheTTL)
	return page, nil
}

// orderClause builds the ORDER BY for a listing. Pin priority is suppressed
// for the locked and unanswered status views so those stay literal.
func orderClause(sort, status string) (string, error) {
	var primary string
	switch sort {
	case SortNewest:
		primary = "created_at DESC"
	case SortOldest:
		primary = "created_at ASC"
	case SortMostViews:
		primary = "view_count DESC"
	case SortMostReplies:
		primary = "reply_count DESC"
	default:
		return "", invalid("sort", "must be newest, oldest, most_views or most_replies")
	}

	if status == StatusLocked || status == StatusUnanswered {
		return primary + ", id DESC", nil
	}
	return "is_pinned DESC, " + primary + ", id DESC", nil
}
