package handlers

import (
	"io"
	"net/http"

	"evforum/internal/middleware"
	"evforum/internal/models"
	"evforum/internal/services"

	"github.com/gin-gonic/gin"
)

type PresenceHandler struct {
	tracker *services.PresenceTracker
}

func NewPresenceHandler(tracker *services.PresenceTracker) *PresenceHandler {
	return &PresenceHandler{tracker: tracker}
}

type heartbeatRequest struct {
	Page   string `json:"page" binding:"required"`
	Status string `json:"status"`
}

func (h *PresenceHandler) Heartbeat(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)

	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "page is required", "field": "page"})
		return
	}

	h.tracker.Heartbeat(user.ID, user.Username, user.Avatar, req.Page, req.Status)
	c.Status(http.StatusNoContent)
}

type typingRequest struct {
	ContextID string `json:"context_id" binding:"required"`
	IsTyping  bool   `json:"is_typing"`
}

func (h *PresenceHandler) Typing(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)

	var req typingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "context_id is required", "field": "context_id"})
		return
	}

	h.tracker.SetTyping(user.ID, req.ContextID, req.IsTyping)
	c.Status(http.StatusNoContent)
}

func (h *PresenceHandler) ListOnline(c *gin.Context) {
	records := h.tracker.ListOnline(c.Query("context_id"))
	c.JSON(http.StatusOK, gin.H{"online": records, "count": len(records)})
}

// Stream pushes presence snapshots for one context over SSE. The first event
// carries the current snapshot; subsequent events follow on every change.
func (h *PresenceHandler) Stream(c *gin.Context) {
	contextID := c.Query("context_id")

	id, updates := h.tracker.Subscribe(contextID)
	defer h.tracker.Unsubscribe(id)

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.SSEvent("presence", h.tracker.ListOnline(contextID))
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case snapshot, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("presence", snapshot)
			return true
		case <-clientGone:
			return false
		}
	})
}
