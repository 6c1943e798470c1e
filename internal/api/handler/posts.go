package handler

import (
	"campuswhisper/backend/internal/apperrors"
	"campuswhisper/backend/internal/models"
	"campuswhisper/backend/internal/submission"
	"net/http"

	"github.com/gin-gonic/gin"
)

type createPostRequest struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	ChannelID string `json:"channelId"`
}

type commentRequest struct {
	Content string `json:"content"`
}

type voteRequest struct {
	Direction string `json:"direction" binding:"required"`
}

type reportRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) ListChannels(c *gin.Context) {
	c.JSON(http.StatusOK, models.Channels)
}

func (h *Handler) CreatePost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, badRequest(err))
		return
	}

	post, err := h.Submitter.SubmitPost(c.Request.Context(), identity(c).UserID, submission.PostInput{
		Title:     req.Title,
		Content:   req.Content,
		ChannelID: req.ChannelID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// GetPost returns one post. Hidden posts are visible to their author only.
func (h *Handler) GetPost(c *gin.Context) {
	post, err := h.visiblePost(c, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *Handler) DeletePost(c *gin.Context) {
	if err := h.Store.DeleteOwnPost(c.Request.Context(), identity(c).UserID, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListComments(c *gin.Context) {
	postID := c.Param("id")
	if _, err := h.visiblePost(c, postID); err != nil {
		h.respondError(c, err)
		return
	}

	comments, err := h.Store.ListComments(c.Request.Context(), postID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (h *Handler) CreateComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, badRequest(err))
		return
	}

	comment, err := h.Submitter.SubmitComment(c.Request.Context(), identity(c).UserID, c.Param("id"), req.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// Vote applies one vote action and returns the committed receipt. Live
// sessions vote over the socket instead and get optimistic updates.
func (h *Handler) Vote(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, badRequest(err))
		return
	}
	dir, err := models.ParseVoteDirection(req.Direction)
	if err != nil {
		h.respondError(c, apperrors.Validation(apperrors.CodeInvalidInput, err.Error()))
		return
	}

	receipt, err := h.Store.CastVote(c.Request.Context(), identity(c).UserID, c.Param("id"), dir)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (h *Handler) ReportPost(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, badRequest(err))
		return
	}

	if err := h.Reports.FileReport(c.Request.Context(), identity(c).UserID, c.Param("id"), req.Reason); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *Handler) visiblePost(c *gin.Context, postID string) (*models.Post, error) {
	post, err := h.Store.GetPost(c.Request.Context(), postID)
	if err != nil {
		return nil, err
	}
	if !post.Visible() && post.AuthorID != identity(c).UserID {
		return nil, apperrors.NotFound("post", postID)
	}
	return post, nil
}
