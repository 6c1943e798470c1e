package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post is a whisper.
//
// AuthorName is the pseudonym derived from AuthorID when the post was written.
// It is stored, not recomputed, so a post keeps its name even if the naming
// scheme changes later.
type Post struct {
	ID         string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AuthorID   string `gorm:"type:varchar(36);not null;index:idx_post_author" json:"authorId"`
	AuthorName string `gorm:"type:varchar(64);not null" json:"authorName"`
	Title      string `gorm:"type:varchar(255)" json:"title"`
	Content    string `gorm:"type:text;not null" json:"content"`
	ChannelID  string `gorm:"type:varchar(32);not null;index:idx_post_feed" json:"channelId"`

	Karma        int `gorm:"not null;default:0" json:"karma"`
	CommentCount int `gorm:"not null;default:0" json:"commentCount"`

	// Missing flags are treated as false: both columns are NOT NULL DEFAULT false.
	IsFlagged      bool `gorm:"not null;default:false;index:idx_post_feed" json:"isFlagged"`
	IsShadowBanned bool `gorm:"not null;default:false;index:idx_post_feed" json:"isShadowBanned"`
	ReportCount    int  `gorm:"not null;default:0" json:"reportCount"`

	// Version is bumped by every write that touches the row.
	Version int64 `gorm:"not null;default:0" json:"version"`

	CreatedAt time.Time `gorm:"index:idx_post_feed,sort:desc" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return
}

// Visible reports whether the post may appear in any feed.
func (p Post) Visible() bool {
	return !p.IsFlagged && !p.IsShadowBanned
}
