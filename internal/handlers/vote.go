package handlers

import (
	"net/http"

	"evforum/internal/middleware"
	"evforum/internal/models"
	"evforum/internal/services"

	"github.com/gin-gonic/gin"
)

type VoteHandler struct {
	votes *services.VoteService
}

func NewVoteHandler(votes *services.VoteService) *VoteHandler {
	return &VoteHandler{votes: votes}
}

type voteRequest struct {
	VotableType string `json:"votable_type" binding:"required"`
	VotableID   uint   `json:"votable_id" binding:"required"`
	VoteType    string `json:"vote_type"`
}

func (r *voteRequest) value() int {
	if r.VoteType == "downvote" {
		return models.VoteDown
	}
	return models.VoteUp
}

func (h *VoteHandler) Cast(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)

	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "votable_type and votable_id are required"})
		return
	}
	if req.VoteType != "upvote" && req.VoteType != "downvote" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "vote_type must be upvote or downvote", "field": "vote_type"})
		return
	}

	if err := h.votes.CastVote(req.VotableType, req.VotableID, user.ID, req.value()); err != nil {
		RenderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *VoteHandler) Retract(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)

	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "votable_type and votable_id are required"})
		return
	}

	if err := h.votes.RetractVote(req.VotableType, req.VotableID, user.ID); err != nil {
		RenderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Reconcile recounts the cached vote buckets for one votable. Moderator-only
// repair entry point.
func (h *VoteHandler) Reconcile(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "votable_type and votable_id are required"})
		return
	}

	report, err := h.votes.Reconcile(req.VotableType, req.VotableID)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
