package handlers

import (
	"errors"
	"net/http"

	"evforum/internal/middleware"
	"evforum/internal/models"
	"evforum/internal/services"
	"evforum/internal/utils"

	"github.com/gin-gonic/gin"
)

type ThreadHandler struct {
	threads *services.ThreadService
	replies *services.ReplyService
}

func NewThreadHandler(threads *services.ThreadService, replies *services.ReplyService) *ThreadHandler {
	return &ThreadHandler{threads: threads, replies: replies}
}

func (h *ThreadHandler) List(c *gin.Context) {
	opts := services.ListOptions{
		CategoryID: utils.StringToUint(c.Query("category_id")),
		Sort:       c.Query("sort"),
		Status:     c.Query("filter"),
		Search:     c.Query("search"),
		Page:       utils.StringToInt(c.Query("page")),
		PerPage:    utils.StringToInt(c.Query("limit")),
	}

	page, err := h.threads.ListThreads(opts)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Detail returns the thread with its reply tree, bounded-depth flattened.
func (h *ThreadHandler) Detail(c *gin.Context) {
	viewer := middleware.CurrentUser(c)

	detail, err := h.threads.GetThread(c.Param("pid"), viewer)
	if err != nil {
		RenderError(c, err)
		return
	}

	depthLimit := utils.StringToInt(c.Query("depth"))
	afterID := utils.StringToUint(c.Query("after"))
	limit := utils.StringToInt(c.Query("limit"))
	replies, err := h.replies.ListReplies(detail.ID, depthLimit, afterID, limit)
	if err != nil {
		// Moderators can open deleted threads; the reply engine refuses them.
		if detail.IsDeleted && errors.Is(err, services.ErrThreadNotFound) {
			replies = nil
		} else {
			RenderError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"thread":  detail,
		"replies": replies,
	})
}

type createThreadRequest struct {
	CategoryID uint     `json:"category_id" binding:"required"`
	Title      string   `json:"title" binding:"required"`
	Content    string   `json:"content"`
	Tags       []string `json:"tags"`
}

func (h *ThreadHandler) Create(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)

	var req createThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "category_id and title are required"})
		return
	}

	thread, err := h.threads.CreateThread(user.ID, req.CategoryID, req.Title, req.Content, req.Tags)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, thread)
}

type editThreadRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content"`
}

func (h *ThreadHandler) Update(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)

	var req editThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "title is required"})
		return
	}

	thread, err := h.threads.EditThread(c.Param("pid"), user.ID, req.Title, req.Content)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}
