package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Comment is a reply under a post. Comments are never edited.
type Comment struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PostID     string    `gorm:"type:varchar(36);not null;index:idx_comment_post" json:"postId"`
	AuthorID   string    `gorm:"type:varchar(36);not null" json:"authorId"`
	AuthorName string    `gorm:"type:varchar(64);not null" json:"authorName"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Karma      int       `gorm:"not null;default:0" json:"karma"`
	CreatedAt  time.Time `gorm:"index:idx_comment_post" json:"createdAt"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}

// Thread is one post with its comments, oldest first. Post is nil once the
// post has been deleted.
type Thread struct {
	Post     *Post     `json:"post"`
	Comments []Comment `json:"comments"`
}
