// Package vote implements the vote state engine: one directional vote per
// (voter, target) pair, atomic score propagation, and a short-lived read
// cache of vote state.
package vote

import (
	"context"
	"fmt"
	"time"

	"github.com/threadly/backend/internal/apperrors"
	"github.com/threadly/backend/internal/cache"
)

const (
	// userVotePrefix namespaces cached per-user vote directions.
	userVotePrefix = "vote"
	// PostListPrefix namespaces cached post listings; every key under it is
	// invalidated when a post's score changes.
	PostListPrefix = "posts"

	userVoteTTL = 10 * time.Minute
)

// UserVoteKey is the cache key holding one voter's direction on one target.
// Kind is part of the key for the same reason it is part of the ledger key:
// post ids and comment ids come from separate sequences and can collide.
func UserVoteKey(voterID, targetID int, kind TargetKind) string {
	return cache.GenerateKey(userVotePrefix, map[string]any{
		"userId":   voterID,
		"targetId": targetID,
		"kind":     string(kind),
	})
}

// Result is what a cast returns to the HTTP layer: the target's new score
// and the voter's resulting vote (-1, 0 after a toggle-off, or 1).
type Result struct {
	Score    int `json:"score"`
	UserVote int `json:"user_vote"`
}

// Engine orchestrates the vote state transition. It is explicitly
// constructed with its collaborators; nothing here is a package-level
// singleton.
type Engine struct {
	ledger   Ledger
	posts    ScoreStore
	comments ScoreStore
	cache    *cache.Store
}

func NewEngine(ledger Ledger, posts, comments ScoreStore, cacheStore *cache.Store) *Engine {
	return &Engine{
		ledger:   ledger,
		posts:    posts,
		comments: comments,
		cache:    cacheStore,
	}
}

func (e *Engine) scoresFor(kind TargetKind) (ScoreStore, error) {
	switch kind {
	case KindPost:
		return e.posts, nil
	case KindComment:
		return e.comments, nil
	default:
		return nil, apperrors.Validation(fmt.Sprintf("unknown target kind %q", kind))
	}
}

// CastVote applies one requested direction to the (voter, target) pair.
//
// The transition table, driven by the existing vote:
//
//	no vote            -> create, score delta = direction
//	same direction     -> delete (toggle-off), score delta = -direction
//	opposite direction -> flip, score delta = 2*direction
//
// Repeating the same direction alternates between voted and no-vote states:
// the operation is a 2-cycle, not idempotent. Every call performs exactly
// one ledger mutation; there is no pure no-op transition.
//
// The ledger mutation is not rolled back if the score update then reports
// the target missing; the stores may diverge on that path and no
// compensation is attempted.
func (e *Engine) CastVote(ctx context.Context, voterID, targetID int, kind TargetKind, direction int) (Result, error) {
	if direction != -1 && direction != 1 {
		return Result{}, apperrors.Validation("direction must be -1 or 1")
	}
	scores, err := e.scoresFor(kind)
	if err != nil {
		return Result{}, err
	}

	existing, err := e.ledger.Find(ctx, voterID, targetID, kind)
	if err != nil {
		return Result{}, err
	}

	var delta, userVote int
	switch {
	case existing == nil:
		if _, err := e.ledger.Create(ctx, voterID, targetID, kind, direction); err != nil {
			return Result{}, err
		}
		delta, userVote = direction, direction

	case existing.Direction == direction:
		// Toggle-off: same direction removes the vote and reverts its
		// score contribution.
		if err := e.ledger.Delete(ctx, existing.ID); err != nil {
			return Result{}, err
		}
		delta, userVote = -direction, 0

	default:
		// Flip: undo the old contribution and apply the new one.
		if err := e.ledger.SetDirection(ctx, existing.ID, direction); err != nil {
			return Result{}, err
		}
		delta, userVote = 2*direction, direction
	}

	score, err := scores.AddScoreDelta(ctx, targetID, delta)
	if err != nil {
		return Result{}, err
	}

	e.cache.Invalidate(UserVoteKey(voterID, targetID, kind))
	if kind == KindPost {
		e.cache.InvalidateByPrefix(PostListPrefix)
	}

	return Result{Score: score, UserVote: userVote}, nil
}

// GetUserVote returns the voter's current direction on the target: -1, 0 or
// 1. Zero is cached explicitly; it is a legitimate value, not an absence
// marker.
func (e *Engine) GetUserVote(ctx context.Context, voterID, targetID int, kind TargetKind) (int, error) {
	key := UserVoteKey(voterID, targetID, kind)
	if cached, ok := e.cache.Get(key); ok {
		if direction, ok := cached.(int); ok {
			return direction, nil
		}
	}

	existing, err := e.ledger.Find(ctx, voterID, targetID, kind)
	if err != nil {
		return 0, err
	}
	direction := 0
	if existing != nil {
		direction = existing.Direction
	}

	e.cache.Set(key, direction, userVoteTTL)
	return direction, nil
}

// VoteOnPost casts a vote with the post kind fixed.
func (e *Engine) VoteOnPost(ctx context.Context, voterID, postID, direction int) (Result, error) {
	return e.CastVote(ctx, voterID, postID, KindPost, direction)
}

// VoteOnComment casts a vote with the comment kind fixed.
func (e *Engine) VoteOnComment(ctx context.Context, voterID, commentID, direction int) (Result, error) {
	return e.CastVote(ctx, voterID, commentID, KindComment, direction)
}
