package handlers

import (
	"net/http"

	"evforum/internal/middleware"
	"evforum/internal/models"
	"evforum/internal/services"
	"evforum/internal/utils"

	"github.com/gin-gonic/gin"
)

type ModerationHandler struct {
	moderation *services.ModerationService
	threads    *services.ThreadService
}

func NewModerationHandler(moderation *services.ModerationService, threads *services.ThreadService) *ModerationHandler {
	return &ModerationHandler{moderation: moderation, threads: threads}
}

type flagRequest struct {
	Flag   string `json:"flag" binding:"required"`
	Value  *bool  `json:"value" binding:"required"`
	Reason string `json:"reason"`
}

// ThreadFlags toggles pinned/locked/deleted on a thread.
func (h *ModerationHandler) ThreadFlags(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)

	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "flag and value are required"})
		return
	}

	threadID, err := h.threads.ResolvePid(c.Param("pid"))
	if err != nil {
		RenderError(c, err)
		return
	}

	summary, err := h.moderation.ApplyFlag(models.VotableThread, threadID, req.Flag, *req.Value, user, req.Reason)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ReplyFlags handles moderator deletes and restores of replies.
func (h *ModerationHandler) ReplyFlags(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)

	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "flag and value are required"})
		return
	}

	summary, err := h.moderation.ApplyFlag(models.VotableReply, utils.StringToUint(c.Param("id")), req.Flag, *req.Value, user, req.Reason)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *ModerationHandler) Log(c *gin.Context) {
	entries, total, err := h.moderation.ListLog(
		utils.StringToInt(c.Query("page")),
		utils.StringToInt(c.Query("limit")),
	)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "total": total})
}
