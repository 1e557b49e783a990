package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/threadly/backend/internal/cache"
	"github.com/threadly/backend/internal/database"
	"github.com/threadly/backend/internal/vote"
)

// Handler combines all handler types
type Handler struct {
	Post    *PostHandler
	Comment *CommentHandler
	Vote    *VoteHandler
}

// NewHandler creates a unified handler with all sub-handlers sharing one
// engine and one cache store.
func NewHandler(dbService database.Service, cacheStore *cache.Store) *Handler {
	gormDB := dbService.GetDB()

	engine := vote.NewEngine(
		vote.NewGormLedger(gormDB),
		vote.NewPostScores(gormDB),
		vote.NewCommentScores(gormDB),
		cacheStore,
	)

	return &Handler{
		Post:    NewPostHandler(gormDB, cacheStore),
		Comment: NewCommentHandler(gormDB),
		Vote:    NewVoteHandler(engine),
	}
}

func extractUserID(c *gin.Context) (int, bool) {
	raw, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}
	switch v := raw.(type) {
	case int:
		return v, true
	case uint:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
