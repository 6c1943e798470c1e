package livequery

import (
	"campuswhisper/backend/internal/apperrors"
	"campuswhisper/backend/internal/models"
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Reader is the part of the document store the live queries read.
type Reader interface {
	ListFeedPosts(ctx context.Context, channelID string) ([]models.Post, error)
	UserVoteMap(ctx context.Context, userID string) (models.VoteMap, error)
	GetPost(ctx context.Context, postID string) (*models.Post, error)
	ListComments(ctx context.Context, postID string) ([]models.Comment, error)
}

type PresenceCounter interface {
	Count(ctx context.Context, channelID string) (int, error)
}

// Source offers the live queries a feed session needs.
type Source struct {
	hub      *Hub
	reader   Reader
	presence PresenceCounter
	log      zerolog.Logger
}

func NewSource(hub *Hub, reader Reader, presence PresenceCounter, log zerolog.Logger) *Source {
	return &Source{hub: hub, reader: reader, presence: presence, log: log}
}

// Posts delivers the visible posts of a channel, newest first.
func (s *Source) Posts(ctx context.Context, channelID string, deliver func([]models.Post)) Subscription {
	return Subscribe(ctx, s.hub, s.log, []string{PostsTopic(channelID)},
		func(ctx context.Context) ([]models.Post, error) {
			return s.reader.ListFeedPosts(ctx, channelID)
		}, deliver)
}

// Votes delivers the user's vote map.
func (s *Source) Votes(ctx context.Context, userID string, deliver func(models.VoteMap)) Subscription {
	return Subscribe(ctx, s.hub, s.log, []string{VotesTopic(userID)},
		func(ctx context.Context) (models.VoteMap, error) {
			return s.reader.UserVoteMap(ctx, userID)
		}, deliver)
}

// Presence delivers the number of users in a channel.
func (s *Source) Presence(ctx context.Context, channelID string, deliver func(int)) Subscription {
	return Subscribe(ctx, s.hub, s.log, []string{PresenceTopic(channelID)},
		func(ctx context.Context) (int, error) {
			return s.presence.Count(ctx, channelID)
		}, deliver)
}

// Thread delivers a post and its comments. A deleted post yields an empty
// thread instead of an error.
func (s *Source) Thread(ctx context.Context, postID string, deliver func(models.Thread)) Subscription {
	return Subscribe(ctx, s.hub, s.log, []string{PostTopic(postID)},
		func(ctx context.Context) (models.Thread, error) {
			post, err := s.reader.GetPost(ctx, postID)
			if errors.Is(err, apperrors.ErrNotFound) {
				return models.Thread{}, nil
			}
			if err != nil {
				return models.Thread{}, err
			}
			comments, err := s.reader.ListComments(ctx, postID)
			if err != nil {
				return models.Thread{}, err
			}
			return models.Thread{Post: post, Comments: comments}, nil
		}, deliver)
}
