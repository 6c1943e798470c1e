package models

import (
	"fmt"
	"time"
)

// VoteDirection is the state of one user's vote on one post.
// The zero value is "no vote".
type VoteDirection string

const (
	VoteNone VoteDirection = ""
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

func ParseVoteDirection(s string) (VoteDirection, error) {
	switch VoteDirection(s) {
	case VoteUp, VoteDown:
		return VoteDirection(s), nil
	}
	return VoteNone, fmt.Errorf("invalid vote direction %q", s)
}

// Vote is keyed by (UserID, PostID); the composite primary key keeps it unique.
type Vote struct {
	UserID    string        `gorm:"primaryKey;type:varchar(36)" json:"userId"`
	PostID    string        `gorm:"primaryKey;type:varchar(36);index" json:"postId"`
	Direction VoteDirection `gorm:"type:varchar(4);not null" json:"direction"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// VoteReceipt is what a committed vote transaction reports back.
type VoteReceipt struct {
	PostID      string        `json:"postId"`
	Direction   VoteDirection `json:"direction"`
	Delta       int           `json:"delta"`
	Karma       int           `json:"karma"`
	PostVersion int64         `json:"postVersion"`
	VoteSeq     int64         `json:"voteSeq"`
}

// VoteMap is one snapshot of a user's votes across all posts.
// Seq is the user's VoteSeq read in the same query.
type VoteMap struct {
	Seq   int64                    `json:"seq"`
	Votes map[string]VoteDirection `json:"votes"`
}
