package storage

import (
	"campuswhisper/backend/internal/apperrors"
	"campuswhisper/backend/internal/config"
	"campuswhisper/backend/internal/livequery"
	"campuswhisper/backend/internal/models"
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func postTopics(p *models.Post) []string {
	return []string{
		livequery.PostsTopic(p.ChannelID),
		livequery.PostsTopic(models.AllChannels),
		livequery.PostTopic(p.ID),
	}
}

// CreatePost writes a new post with zero karma and comment count.
func (s *Service) CreatePost(ctx context.Context, post *models.Post) error {
	post.Karma, post.CommentCount, post.ReportCount, post.Version = 0, 0, 0, 0
	if err := s.DB.WithContext(ctx).Create(post).Error; err != nil {
		s.log.Error().Err(err).Str("channelId", post.ChannelID).Msg("failed to create post")
		return apperrors.Transient("posting", err)
	}
	s.publish(ctx, postTopics(post)...)
	return nil
}

func (s *Service) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	var post models.Post
	err := s.DB.WithContext(ctx).Where("id = ?", postID).First(&post).Error
	if isNotFound(err) {
		return nil, apperrors.NotFound("post", postID)
	}
	if err != nil {
		return nil, apperrors.Transient("post lookup", err)
	}
	return &post, nil
}

// ListFeedPosts returns the visible posts of a channel, newest first.
// The "all" channel spans every channel.
func (s *Service) ListFeedPosts(ctx context.Context, channelID string) ([]models.Post, error) {
	q := s.DB.WithContext(ctx).
		Where("is_flagged = ? AND is_shadow_banned = ?", false, false)
	if channelID != models.AllChannels {
		q = q.Where("channel_id = ?", channelID)
	}

	var posts []models.Post
	if err := q.Order("created_at desc").Limit(config.FeedLimit).Find(&posts).Error; err != nil {
		return nil, apperrors.Transient("feed", err)
	}
	return posts, nil
}

// DeleteOwnPost removes a post together with its comments, votes and reports.
// Only the author may do this.
func (s *Service) DeleteOwnPost(ctx context.Context, userID, postID string) error {
	var post models.Post
	var voters []string

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPost(tx, postID, &post); err != nil {
			return err
		}
		if post.AuthorID != userID {
			return apperrors.Forbidden("only the author can delete this post")
		}
		var err error
		voters, err = deletePostRows(tx, postID)
		return err
	})
	if err != nil {
		return s.txError("post delete", err)
	}

	s.publish(ctx, append(postTopics(&post), voteTopics(voters)...)...)
	return nil
}

// AddComment inserts the comment and bumps the parent's comment count in one
// transaction. A missing parent is an integrity error.
func (s *Service) AddComment(ctx context.Context, comment *models.Comment) error {
	var post models.Post

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPost(tx, comment.PostID, &post); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.Integrity(apperrors.CodeNotFound, "post does not exist")
			}
			return err
		}
		if err := tx.Create(comment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", post.ID).Updates(map[string]interface{}{
			"comment_count": gorm.Expr("comment_count + ?", 1),
			"version":       gorm.Expr("version + ?", 1),
		}).Error
	})
	if err != nil {
		return s.txError("commenting", err)
	}

	s.publish(ctx, postTopics(&post)...)
	return nil
}

// ListComments returns a thread oldest first.
func (s *Service) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	var comments []models.Comment
	err := s.DB.WithContext(ctx).Where("post_id = ?", postID).Order("created_at asc").Find(&comments).Error
	if err != nil {
		return nil, apperrors.Transient("comments", err)
	}
	return comments, nil
}

// lockPost reads a post under a row lock (SELECT ... FOR UPDATE).
func lockPost(tx *gorm.DB, postID string, post *models.Post) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", postID).First(post).Error
	if isNotFound(err) {
		return apperrors.NotFound("post", postID)
	}
	return err
}

// deletePostRows removes a post and everything hanging off it. It returns the
// users whose vote maps changed.
func deletePostRows(tx *gorm.DB, postID string) ([]string, error) {
	var voters []string
	if err := tx.Model(&models.Vote{}).Where("post_id = ?", postID).Pluck("user_id", &voters).Error; err != nil {
		return nil, err
	}
	for _, m := range []interface{}{&models.Vote{}, &models.Comment{}, &models.Report{}} {
		if err := tx.Where("post_id = ?", postID).Delete(m).Error; err != nil {
			return nil, err
		}
	}
	if err := tx.Where("id = ?", postID).Delete(&models.Post{}).Error; err != nil {
		return nil, err
	}
	return voters, nil
}

func voteTopics(userIDs []string) []string {
	topics := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		topics = append(topics, livequery.VotesTopic(id))
	}
	return topics
}

// txError maps an error out of a transaction to an app error.
func (s *Service) txError(op string, err error) error {
	if apperrors.CodeOf(err) != "" {
		return err
	}
	s.log.Error().Err(err).Str("op", op).Msg("transaction failed")
	return apperrors.Transient(op, err)
}
