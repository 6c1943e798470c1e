// Package submission validates, moderates and writes new posts and comments.
package submission

import (
	"campuswhisper/backend/internal/apperrors"
	"campuswhisper/backend/internal/config"
	"campuswhisper/backend/internal/models"
	"campuswhisper/backend/internal/moderation"
	"campuswhisper/backend/internal/namegen"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

type Store interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	CreatePost(ctx context.Context, post *models.Post) error
	AddComment(ctx context.Context, comment *models.Comment) error
}

type Moderator interface {
	Check(ctx context.Context, text string) moderation.Verdict
}

type PostInput struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	ChannelID string `json:"channelId"`
}

type Pipeline struct {
	store     Store
	moderator Moderator
	log       zerolog.Logger
}

func NewPipeline(store Store, moderator Moderator, log zerolog.Logger) *Pipeline {
	return &Pipeline{store: store, moderator: moderator, log: log}
}

// SubmitPost checks and writes a post. Nothing reaches the backend unless the
// input is valid and the moderation gate lets it through.
func (p *Pipeline) SubmitPost(ctx context.Context, userID string, in PostInput) (*models.Post, error) {
	if userID == "" {
		return nil, apperrors.Unauthenticated("sign in to post")
	}
	if err := validateText(in.Content, config.MaxPostRunes); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(in.Title) > config.MaxTitleRunes {
		return nil, apperrors.Validation(apperrors.CodeContentTooLong,
			fmt.Sprintf("title is longer than %d characters", config.MaxTitleRunes))
	}
	if !models.IsKnownChannel(in.ChannelID) {
		return nil, apperrors.Validation(apperrors.CodeUnknownChannel, "unknown channel "+in.ChannelID)
	}

	if err := p.moderate(ctx, in.Content); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) != "" {
		if err := p.moderate(ctx, in.Title); err != nil {
			return nil, err
		}
	}

	author, err := p.author(ctx, userID)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		AuthorID:   userID,
		AuthorName: namegen.Derive(userID),
		Title:      strings.TrimSpace(in.Title),
		Content:    in.Content,
		ChannelID:  in.ChannelID,
		// тіньовий бан: автор бачить успіх, стрічка поста не показує
		IsShadowBanned: author.IsShadowBanned,
	}
	if err := p.store.CreatePost(ctx, post); err != nil {
		return nil, err
	}

	p.log.Info().Str("postId", post.ID).Str("channelId", post.ChannelID).Msg("post created")
	return post, nil
}

// SubmitComment checks and writes a comment. A missing parent post is an
// integrity error from the store; no comment is written then.
func (p *Pipeline) SubmitComment(ctx context.Context, userID, postID, content string) (*models.Comment, error) {
	if userID == "" {
		return nil, apperrors.Unauthenticated("sign in to comment")
	}
	if postID == "" {
		return nil, apperrors.Validation(apperrors.CodeInvalidInput, "post id is required")
	}
	if err := validateText(content, config.MaxCommentRunes); err != nil {
		return nil, err
	}
	if err := p.moderate(ctx, content); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		PostID:     postID,
		AuthorID:   userID,
		AuthorName: namegen.Derive(userID),
		Content:    content,
	}
	if err := p.store.AddComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

func validateText(text string, max int) error {
	if strings.TrimSpace(text) == "" {
		return apperrors.Validation(apperrors.CodeEmptyContent, "content cannot be empty")
	}
	if utf8.RuneCountInString(text) > max {
		return apperrors.Validation(apperrors.CodeContentTooLong,
			fmt.Sprintf("content is longer than %d characters", max))
	}
	return nil
}

func (p *Pipeline) moderate(ctx context.Context, text string) error {
	v := p.moderator.Check(ctx, text)
	if v.Safe {
		return nil
	}
	reason := v.Reason
	if reason == "" {
		reason = config.BlockedReason
	}
	p.log.Info().Str("reason", reason).Msg("submission blocked by moderation")
	return apperrors.ModerationBlocked(reason)
}

func (p *Pipeline) author(ctx context.Context, userID string) (*models.User, error) {
	user, err := p.store.GetUser(ctx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.Unauthenticated("account not found")
	}
	return user, err
}
