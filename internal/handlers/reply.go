package handlers

import (
	"net/http"

	"evforum/internal/middleware"
	"evforum/internal/models"
	"evforum/internal/services"
	"evforum/internal/utils"

	"github.com/gin-gonic/gin"
)

type ReplyHandler struct {
	threads *services.ThreadService
	replies *services.ReplyService
}

func NewReplyHandler(threads *services.ThreadService, replies *services.ReplyService) *ReplyHandler {
	return &ReplyHandler{threads: threads, replies: replies}
}

type createReplyRequest struct {
	Content  string `json:"content" binding:"required"`
	ParentID *uint  `json:"parent_id"`
}

func (h *ReplyHandler) Create(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)

	var req createReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "content is required", "field": "content"})
		return
	}

	threadID, err := h.threads.ResolvePid(c.Param("pid"))
	if err != nil {
		RenderError(c, err)
		return
	}

	reply, err := h.replies.CreateReply(threadID, user.ID, req.Content, req.ParentID)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reply)
}

type editReplyRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *ReplyHandler) Update(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)

	var req editReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "content is required", "field": "content"})
		return
	}

	reply, err := h.replies.EditReply(utils.StringToUint(c.Param("id")), user.ID, req.Content)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

// Delete tombstones a reply. Authors may delete their own; moderators any.
func (h *ReplyHandler) Delete(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)

	if err := h.replies.SoftDeleteReply(utils.StringToUint(c.Param("id")), user); err != nil {
		RenderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
