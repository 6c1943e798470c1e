package storage

import (
	"campuswhisper/backend/internal/apperrors"
	"campuswhisper/backend/internal/config"
	"campuswhisper/backend/internal/livequery"
	"campuswhisper/backend/internal/models"
	"context"
	"errors"

	"gorm.io/gorm"
)

// FileReport records a report and bumps the post's report count. The report
// that brings the count to config.ReportFlagThreshold flags the post in the
// same update. The returned post reflects the committed counters.
func (s *Service) FileReport(ctx context.Context, report *models.Report) (*models.Post, error) {
	var post models.Post

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPost(tx, report.PostID, &post); err != nil {
			return err
		}
		if err := tx.Create(report).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.Integrity(apperrors.CodeAlreadyReported, "you already reported this post")
			}
			return err
		}

		updates := map[string]interface{}{
			"report_count": gorm.Expr("report_count + ?", 1),
			"version":      gorm.Expr("version + ?", 1),
		}
		if post.ReportCount+1 >= config.ReportFlagThreshold {
			updates["is_flagged"] = true
		}
		if err := tx.Model(&models.Post{}).Where("id = ?", post.ID).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", post.ID).Take(&post).Error
	})
	if err != nil {
		return nil, s.txError("report", err)
	}

	s.publish(ctx, append(postTopics(&post), livequery.ReportsTopic)...)
	return &post, nil
}

// ListReports returns the queue newest first, each with a snapshot of its
// post taken now.
func (s *Service) ListReports(ctx context.Context) ([]models.ReportView, error) {
	db := s.DB.WithContext(ctx)

	var reports []models.Report
	if err := db.Order("created_at desc").Find(&reports).Error; err != nil {
		return nil, apperrors.Transient("reports", err)
	}

	ids := make([]string, 0, len(reports))
	for _, r := range reports {
		ids = append(ids, r.PostID)
	}
	var posts []models.Post
	if len(ids) > 0 {
		if err := db.Select("id", "content", "author_name").Where("id IN ?", ids).Find(&posts).Error; err != nil {
			return nil, apperrors.Transient("reports", err)
		}
	}
	byID := make(map[string]models.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}

	views := make([]models.ReportView, 0, len(reports))
	for _, r := range reports {
		v := models.ReportView{Report: r, PostContent: models.DeletedPostPlaceholder}
		if p, ok := byID[r.PostID]; ok {
			v.PostContent, v.PostAuthor, v.PostExists = p.Content, p.AuthorName, true
		}
		views = append(views, v)
	}
	return views, nil
}

// DismissReport deletes the report only. The post keeps its counters.
func (s *Service) DismissReport(ctx context.Context, reportID string) error {
	res := s.DB.WithContext(ctx).Where("id = ?", reportID).Delete(&models.Report{})
	if res.Error != nil {
		return apperrors.Transient("dismiss report", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("report", reportID)
	}
	s.publish(ctx, livequery.ReportsTopic)
	return nil
}

// DeleteReportedPost deletes the reported post and all of its reports at once.
func (s *Service) DeleteReportedPost(ctx context.Context, reportID string) error {
	var report models.Report
	var post models.Post
	var voters []string

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", reportID).Take(&report).Error; err != nil {
			if isNotFound(err) {
				return apperrors.NotFound("report", reportID)
			}
			return err
		}
		// the post may already be gone; its reports still go
		if err := tx.Where("id = ?", report.PostID).Take(&post).Error; err != nil && !isNotFound(err) {
			return err
		}
		var err error
		voters, err = deletePostRows(tx, report.PostID)
		return err
	})
	if err != nil {
		return s.txError("delete reported post", err)
	}

	topics := []string{livequery.ReportsTopic, livequery.PostTopic(report.PostID)}
	if post.ID != "" {
		topics = append(topics, postTopics(&post)...)
	}
	s.publish(ctx, append(topics, voteTopics(voters)...)...)
	return nil
}
