package storage

import (
	"campuswhisper/backend/internal/apperrors"
	"campuswhisper/backend/internal/livequery"
	"campuswhisper/backend/internal/models"
	"campuswhisper/backend/internal/vote"
	"context"

	"gorm.io/gorm"
)

// CastVote applies one vote action in a single transaction:
// the post row is locked, the existing vote read, the transition computed,
// the vote row written or deleted, and the delta applied to both the post
// and its author. The voter's VoteSeq is bumped so vote-map snapshots can be
// ordered against this write.
func (s *Service) CastVote(ctx context.Context, userID, postID string, action models.VoteDirection) (models.VoteReceipt, error) {
	if _, err := models.ParseVoteDirection(string(action)); err != nil {
		return models.VoteReceipt{}, apperrors.Validation(apperrors.CodeInvalidInput, err.Error())
	}

	var post models.Post
	receipt := models.VoteReceipt{PostID: postID}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPost(tx, postID, &post); err != nil {
			return err
		}

		current := models.VoteNone
		var existing models.Vote
		err := tx.Where("user_id = ? AND post_id = ?", userID, postID).Take(&existing).Error
		switch {
		case err == nil:
			current = existing.Direction
		case !isNotFound(err):
			return err
		}

		next, delta := vote.Transition(current, action)
		switch {
		case next == models.VoteNone:
			err = tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.Vote{}).Error
		case current == models.VoteNone:
			err = tx.Create(&models.Vote{UserID: userID, PostID: postID, Direction: next}).Error
		default:
			err = tx.Model(&models.Vote{}).Where("user_id = ? AND post_id = ?", userID, postID).
				Update("direction", next).Error
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&models.Post{}).Where("id = ?", postID).Updates(map[string]interface{}{
			"karma":   gorm.Expr("karma + ?", delta),
			"version": gorm.Expr("version + ?", 1),
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", post.AuthorID).
			Update("karma", gorm.Expr("karma + ?", delta)).Error; err != nil {
			return err
		}

		res := tx.Model(&models.User{}).Where("id = ?", userID).Update("vote_seq", gorm.Expr("vote_seq + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.Unauthenticated("account not found")
		}

		var voter models.User
		if err := tx.Select("vote_seq").Where("id = ?", userID).Take(&voter).Error; err != nil {
			return err
		}
		if err := tx.Select("karma", "version").Where("id = ?", postID).Take(&post).Error; err != nil {
			return err
		}

		receipt.Direction = next
		receipt.Delta = delta
		receipt.Karma = post.Karma
		receipt.PostVersion = post.Version
		receipt.VoteSeq = voter.VoteSeq
		return nil
	})
	if err != nil {
		return models.VoteReceipt{}, s.txError("vote", err)
	}

	s.log.Debug().Str("postId", postID).Str("direction", string(receipt.Direction)).
		Int("delta", receipt.Delta).Msg("vote committed")
	s.publish(ctx, append(postTopics(&post), livequery.VotesTopic(userID))...)
	return receipt, nil
}

// UserVoteMap returns every vote of a user with the VoteSeq it is at least
// as fresh as. The seq is read before the votes: a vote committed in between
// only makes the map newer than its seq claims, never older.
func (s *Service) UserVoteMap(ctx context.Context, userID string) (models.VoteMap, error) {
	db := s.DB.WithContext(ctx)

	var user models.User
	err := db.Select("vote_seq").Where("id = ?", userID).Take(&user).Error
	if isNotFound(err) {
		return models.VoteMap{}, apperrors.NotFound("user", userID)
	}
	if err != nil {
		return models.VoteMap{}, apperrors.Transient("votes", err)
	}

	var votes []models.Vote
	if err := db.Where("user_id = ?", userID).Find(&votes).Error; err != nil {
		return models.VoteMap{}, apperrors.Transient("votes", err)
	}

	m := models.VoteMap{Seq: user.VoteSeq, Votes: make(map[string]models.VoteDirection, len(votes))}
	for _, v := range votes {
		m.Votes[v.PostID] = v.Direction
	}
	return m, nil
}
