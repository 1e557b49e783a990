package vote

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/threadly/backend/internal/apperrors"
	"github.com/threadly/backend/internal/models"
)

// ScoreStore is the capability a target kind must provide: atomically add a
// delta to the target's score and return the new value, or report that the
// target does not exist. The engine never reads-then-writes a score itself;
// concurrent deltas from different voters must all apply with no lost
// updates.
type ScoreStore interface {
	AddScoreDelta(ctx context.Context, targetID, delta int) (int, error)
}

// PostScores applies score deltas to the posts table with a single
// UPDATE ... SET score = score + ? ... RETURNING score.
type PostScores struct {
	db *gorm.DB
}

func NewPostScores(db *gorm.DB) *PostScores {
	return &PostScores{db: db}
}

func (s *PostScores) AddScoreDelta(ctx context.Context, targetID, delta int) (int, error) {
	var post models.Post
	res := s.db.WithContext(ctx).
		Model(&post).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "score"}}}).
		Where("id = ?", targetID).
		UpdateColumn("score", gorm.Expr("score + ?", delta))
	if res.Error != nil {
		return 0, fmt.Errorf("updating post score: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, apperrors.NotFound("post not found")
	}
	return post.Score, nil
}

// CommentScores is the comment-kind counterpart of PostScores.
type CommentScores struct {
	db *gorm.DB
}

func NewCommentScores(db *gorm.DB) *CommentScores {
	return &CommentScores{db: db}
}

func (s *CommentScores) AddScoreDelta(ctx context.Context, targetID, delta int) (int, error) {
	var comment models.Comment
	res := s.db.WithContext(ctx).
		Model(&comment).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "score"}}}).
		Where("id = ?", targetID).
		UpdateColumn("score", gorm.Expr("score + ?", delta))
	if res.Error != nil {
		return 0, fmt.Errorf("updating comment score: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, apperrors.NotFound("comment not found")
	}
	return comment.Score, nil
}
