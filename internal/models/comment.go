package models

import "time"

type Comment struct {
	ID              int       `gorm:"primaryKey" json:"id"`
	Body            string    `gorm:"not null" json:"body"`
	AuthorID        int       `json:"author_id"`
	User            User      `gorm:"foreignKey:AuthorID" json:"user"`
	PostID          int       `json:"post_id"`
	ParentCommentID *int      `json:"parent_comment_id,omitempty"`
	Score           int       `gorm:"default:0" json:"score"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
