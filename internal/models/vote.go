package models

import "time"

// Vote model - tracks one user's current vote on a post or comment.
// At most one row exists per (user_id, target_id, target_kind); absence of a
// row is the "no vote" state. The kind is part of the key because posts and
// comments draw ids from separate sequences, so the same id can name one of
// each. Direction is always -1 or 1, never 0.
type Vote struct {
	ID         int       `gorm:"primaryKey" json:"id"`
	UserID     int       `gorm:"uniqueIndex:idx_votes_user_target" json:"user_id"`
	TargetID   int       `gorm:"uniqueIndex:idx_votes_user_target" json:"target_id"`
	TargetKind string    `gorm:"uniqueIndex:idx_votes_user_target" json:"target_kind"` // "post" or "comment"
	Direction  int       `json:"direction"`   // -1 or 1
	CreatedAt  time.Time `json:"created_at"`
}
