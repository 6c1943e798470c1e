package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// User is a registered student account.
// Username is what the user picked at registration; posts never show it, they
// carry the derived pseudonym instead.
type User struct {
	ID           string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Username     string `gorm:"type:varchar(32);not null" json:"username"`
	UsernameKey  string `gorm:"type:varchar(32);uniqueIndex;not null" json:"-"` // lower-cased Username
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null" json:"-"`
	PasswordHash string `gorm:"type:varchar(72);not null" json:"-"`

	Karma    int       `gorm:"not null;default:0" json:"karma"`
	JoinedAt time.Time `gorm:"not null" json:"joinedAt"`

	Gender string `gorm:"type:varchar(32)" json:"gender,omitempty"`
	Major  string `gorm:"type:varchar(64)" json:"major,omitempty"`
	Bio    string `gorm:"type:text" json:"bio,omitempty"`

	Role           string `gorm:"type:varchar(16);not null;default:student" json:"role,omitempty"`
	IsShadowBanned bool   `gorm:"not null;default:false" json:"-"`

	// VoteSeq grows by one with every vote transaction of this user. The live
	// vote map carries it so clients can tell whether a snapshot already
	// includes their last committed vote.
	VoteSeq int64 `gorm:"not null;default:0" json:"-"`
}

// BeforeCreate — це хук GORM, який викликається перед створенням запису.
// Він генерує новий UUID, якщо ID ще не встановлено, і нормалізує UsernameKey.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.UsernameKey == "" {
		u.UsernameKey = UsernameKey(u.Username)
	}
	if u.Role == "" {
		u.Role = RoleStudent
	}
	if u.JoinedAt.IsZero() {
		u.JoinedAt = time.Now()
	}
	return
}

// UsernameKey is the case-insensitive form used for the uniqueness check.
func UsernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// ProfileUpdate holds the fields a user may change on their own profile.
// Nil means "leave as is".
type ProfileUpdate struct {
	Gender *string `json:"gender" binding:"omitempty,max=32"`
	Major  *string `json:"major" binding:"omitempty,max=64"`
	Bio    *string `json:"bio" binding:"omitempty,max=500"`
}
