package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeletedPostPlaceholder is shown in the review queue when the reported post is gone.
const DeletedPostPlaceholder = "[Deleted Post]"

// Report is one user's complaint against a post.
// A reporter can file at most one report per post.
type Report struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PostID     string    `gorm:"type:varchar(36);not null;index;uniqueIndex:ux_report_reporter_post" json:"postId"`
	ReporterID string    `gorm:"type:varchar(36);not null;uniqueIndex:ux_report_reporter_post" json:"-"`
	Reason     string    `gorm:"type:text;not null" json:"reason"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}

func (r *Report) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}

// ReportView is a queue entry with the post snapshot taken at query time.
type ReportView struct {
	Report
	PostContent string `json:"postContent"`
	PostAuthor  string `json:"postAuthor,omitempty"`
	PostExists  bool   `json:"postExists"`
}
