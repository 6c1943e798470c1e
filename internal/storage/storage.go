// Package storage is the document store of the service: users, posts,
// comments, votes and reports in SQL via GORM. Every multi-row write runs in
// one transaction, and after commit the affected live-query topics are
// published through the Notifier.
package storage

import (
	"campuswhisper/backend/internal/models"
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage is the full document store. The service consumers each take the
// narrower interface they need; the admin CLI works against all of it.
type Storage interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.User, error)
	SetShadowBan(ctx context.Context, userID string, banned bool) error

	CreatePost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, postID string) (*models.Post, error)
	ListFeedPosts(ctx context.Context, channelID string) ([]models.Post, error)
	DeleteOwnPost(ctx context.Context, userID, postID string) error

	AddComment(ctx context.Context, comment *models.Comment) error
	ListComments(ctx context.Context, postID string) ([]models.Comment, error)

	CastVote(ctx context.Context, userID, postID string, action models.VoteDirection) (models.VoteReceipt, error)
	UserVoteMap(ctx context.Context, userID string) (models.VoteMap, error)

	FileReport(ctx context.Context, report *models.Report) (*models.Post, error)
	ListReports(ctx context.Context) ([]models.ReportView, error)
	DismissReport(ctx context.Context, reportID string) error
	DeleteReportedPost(ctx context.Context, reportID string) error
}

// Notifier publishes change notifications. Publishing is best effort:
// subscribers also re-query on (re)subscribe.
type Notifier interface {
	Publish(ctx context.Context, topics ...string)
}

var _ Storage = (*Service)(nil)

type Service struct {
	DB       *gorm.DB
	Notifier Notifier
	log      zerolog.Logger
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{
		DB:       db,
		Notifier: notifier,
		log:      log,
	}
}

// OpenDB connects with the configured driver. TranslateError makes unique
// violations surface as gorm.ErrDuplicatedKey on every driver.
func OpenDB(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite" {
		// одне з'єднання: in-memory база існує лише в межах з'єднання
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// AutoMigrate creates or updates the schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.Comment{},
		&models.Vote{},
		&models.Report{},
	)
}

func (s *Service) publish(ctx context.Context, topics ...string) {
	if s.Notifier == nil || len(topics) == 0 {
		return
	}
	s.Notifier.Publish(context.WithoutCancel(ctx), topics...)
}

// isNotFound reports gorm.ErrRecordNotFound.
func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
