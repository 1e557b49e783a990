package vote

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/threadly/backend/internal/apperrors"
	"github.com/threadly/backend/internal/models"
)

// TargetKind identifies what a vote points at. The set is closed; score
// updates are dispatched by matching on it, never by runtime model lookup.
type TargetKind string

const (
	KindPost    TargetKind = "post"
	KindComment TargetKind = "comment"
)

// Ledger is the durable source of truth for "who voted which way on what".
// Uniqueness of (voter, target, kind) is enforced by the backing store as the
// last line of defense against races, not by application logic alone. Kind is
// part of the key: post 1 and comment 1 are different targets.
type Ledger interface {
	// Find returns the current vote for (voterID, targetID, kind), or nil
	// when the voter has no vote on the target.
	Find(ctx context.Context, voterID, targetID int, kind TargetKind) (*models.Vote, error)

	// Create inserts a new vote row. It fails with a conflict error when a
	// row already exists for the pair.
	Create(ctx context.Context, voterID, targetID int, kind TargetKind, direction int) (*models.Vote, error)

	// SetDirection flips the direction of an existing vote in place. The
	// creation timestamp is not re-dated.
	SetDirection(ctx context.Context, voteID, direction int) error

	// Delete removes the row, returning the pair to the no-vote state.
	Delete(ctx context.Context, voteID int) error
}

// GormLedger stores votes in the votes table. The composite unique index on
// (user_id, target_id, target_kind) backs the one-vote-per-pair invariant;
// duplicate-key errors surface as conflicts via GORM error translation.
type GormLedger struct {
	db *gorm.DB
}

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

func (l *GormLedger) Find(ctx context.Context, voterID, targetID int, kind TargetKind) (*models.Vote, error) {
	var vote models.Vote
	err := l.db.WithContext(ctx).
		Where("user_id = ? AND target_id = ? AND target_kind = ?", voterID, targetID, string(kind)).
		First(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding vote: %w", err)
	}
	return &vote, nil
}

func (l *GormLedger) Create(ctx context.Context, voterID, targetID int, kind TargetKind, direction int) (*models.Vote, error) {
	vote := models.Vote{
		UserID:     voterID,
		TargetID:   targetID,
		TargetKind: string(kind),
		Direction:  direction,
	}
	err := l.db.WithContext(ctx).Create(&vote).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, apperrors.Conflict("vote already exists for voter and target", err)
	}
	if err != nil {
		return nil, fmt.Errorf("creating vote: %w", err)
	}
	return &vote, nil
}

func (l *GormLedger) SetDirection(ctx context.Context, voteID, direction int) error {
	// UpdateColumn so only the direction changes; no timestamps are touched.
	res := l.db.WithContext(ctx).
		Model(&models.Vote{}).
		Where("id = ?", voteID).
		UpdateColumn("direction", direction)
	if res.Error != nil {
		return fmt.Errorf("updating vote direction: %w", res.Error)
	}
	return nil
}

func (l *GormLedger) Delete(ctx context.Context, voteID int) error {
	if err := l.db.WithContext(ctx).Delete(&models.Vote{}, voteID).Error; err != nil {
		return fmt.Errorf("deleting vote: %w", err)
	}
	return nil
}
