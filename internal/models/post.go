package models

import "time"

type Post struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"not null" json:"title"`
	Body      string    `json:"body,omitempty"`
	AuthorID  int       `json:"author_id"`
	User      User      `gorm:"foreignKey:AuthorID" json:"user"`
	Score     int       `gorm:"default:0" json:"score"`
	Comments  int       `gorm:"-" json:"comments"` // computed on read, not stored
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
