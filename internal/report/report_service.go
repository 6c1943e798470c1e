// Package report handles user reports against posts and the administrator's
// review queue.
package report

import (
	"campuswhisper/backend/internal/apperrors"
	"campuswhisper/backend/internal/config"
	"campuswhisper/backend/internal/models"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

type Store interface {
	FileReport(ctx context.Context, report *models.Report) (*models.Post, error)
	ListReports(ctx context.Context) ([]models.ReportView, error)
	DismissReport(ctx context.Context, reportID string) error
	DeleteReportedPost(ctx context.Context, reportID string) error
}

// FlagNotifier is told about posts the reports just flagged.
type FlagNotifier interface {
	PostFlagged(ctx context.Context, post *models.Post) error
}

// Service handles the business logic for reports.
type Service struct {
	Storage     Store
	Notifier    FlagNotifier
	adminUserID string
	log         zerolog.Logger
}

// NewService creates a new report service. An empty adminUserID locks
// everybody out of the review queue.
func NewService(s Store, n FlagNotifier, adminUserID string, log zerolog.Logger) *Service {
	return &Service{Storage: s, Notifier: n, adminUserID: adminUserID, log: log}
}

// FileReport records a report. The report that reaches the threshold flags
// the post and, if a notifier is configured, alerts the administrators.
func (s *Service) FileReport(ctx context.Context, reporterID, postID, reason string) error {
	if reporterID == "" {
		return apperrors.Unauthenticated("sign in to report")
	}
	if postID == "" {
		return apperrors.Validation(apperrors.CodeInvalidInput, "post id is required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return apperrors.Validation(apperrors.CodeEmptyContent, "reason cannot be empty")
	}
	if utf8.RuneCountInString(reason) > config.MaxReasonRunes {
		return apperrors.Validation(apperrors.CodeContentTooLong,
			fmt.Sprintf("reason is longer than %d characters", config.MaxReasonRunes))
	}

	post, err := s.Storage.FileReport(ctx, &models.Report{PostID: postID, ReporterID: reporterID, Reason: reason})
	if err != nil {
		return err
	}

	if post.IsFlagged && post.ReportCount == config.ReportFlagThreshold {
		s.log.Info().Str("postId", post.ID).Int("reports", post.ReportCount).Msg("post auto-flagged")
		if s.Notifier != nil {
			if err := s.Notifier.PostFlagged(ctx, post); err != nil {
				s.log.Warn().Err(err).Str("postId", post.ID).Msg("failed to notify admins")
			}
		}
	}
	return nil
}

// IsAdmin is an exact match against the configured administrator id.
func (s *Service) IsAdmin(userID string) bool {
	return s.adminUserID != "" && userID == s.adminUserID
}

func (s *Service) authorize(userID string) error {
	if userID == "" {
		return apperrors.Unauthenticated("sign in first")
	}
	if !s.IsAdmin(userID) {
		return apperrors.Forbidden("administrator access required")
	}
	return nil
}

// ListReports returns the queue, newest first. Non-admins get ErrForbidden
// and the queue is not read.
func (s *Service) ListReports(ctx context.Context, userID string) ([]models.ReportView, error) {
	if err := s.authorize(userID); err != nil {
		return nil, err
	}
	return s.Storage.ListReports(ctx)
}

// Dismiss deletes a report and leaves its post alone.
func (s *Service) Dismiss(ctx context.Context, userID, reportID string) error {
	if err := s.authorize(userID); err != nil {
		return err
	}
	if err := s.Storage.DismissReport(ctx, reportID); err != nil {
		return err
	}
	s.log.Info().Str("reportId", reportID).Msg("report dismissed")
	return nil
}

// DeletePost deletes the reported post together with all its reports.
func (s *Service) DeletePost(ctx context.Context, userID, reportID string) error {
	if err := s.authorize(userID); err != nil {
		return err
	}
	if err := s.Storage.DeleteReportedPost(ctx, reportID); err != nil {
		return err
	}
	s.log.Info().Str("reportId", reportID).Msg("reported post deleted")
	return nil
}
