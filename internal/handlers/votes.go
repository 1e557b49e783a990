package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/threadly/backend/internal/apperrors"
	"github.com/threadly/backend/internal/vote"
)

type VoteHandler struct {
	engine *vote.Engine
}

func NewVoteHandler(engine *vote.Engine) *VoteHandler {
	return &VoteHandler{engine: engine}
}

// VotePost casts a vote on a post (PROTECTED - requires authentication)
func (h *VoteHandler) VotePost(c *gin.Context) {
	h.castVote(c, c.Param("id"), vote.KindPost)
}

// VoteComment casts a vote on a comment (PROTECTED - requires authentication)
func (h *VoteHandler) VoteComment(c *gin.Context) {
	h.castVote(c, c.Param("commentId"), vote.KindComment)
}

func (h *VoteHandler) castVote(c *gin.Context, rawTargetID string, kind vote.TargetKind) {
	voterID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	targetID, err := strconv.Atoi(rawTargetID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target id"})
		return
	}

	var input struct {
		VoteType int `json:"vote_type" binding:"required,oneof=-1 1"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Vote type must be -1 or 1"})
		return
	}

	result, err := h.engine.CastVote(c.Request.Context(), voterID, targetID, kind, input.VoteType)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetPostVote returns the caller's current vote on a post: -1, 0 or 1.
func (h *VoteHandler) GetPostVote(c *gin.Context) {
	h.getUserVote(c, c.Param("id"), vote.KindPost)
}

// GetCommentVote returns the caller's current vote on a comment.
func (h *VoteHandler) GetCommentVote(c *gin.Context) {
	h.getUserVote(c, c.Param("commentId"), vote.KindComment)
}

func (h *VoteHandler) getUserVote(c *gin.Context, rawTargetID string, kind vote.TargetKind) {
	voterID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	targetID, err := strconv.Atoi(rawTargetID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target id"})
		return
	}

	direction, err := h.engine.GetUserVote(c.Request.Context(), voterID, targetID, kind)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_vote": direction})
}
