package handler

import (
	"campuswhisper/backend/internal/auth"
	"campuswhisper/backend/internal/models"
	"net/http"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register створює акаунт і одразу повертає сесію
func (h *Handler) Register(c *gin.Context) {
	var req auth.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, badRequest(err))
		return
	}

	sess, err := h.Auth.Register(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, badRequest(err))
		return
	}

	sess, err := h.Auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// Logout revokes the calling session; open live connections of that session close.
func (h *Handler) Logout(c *gin.Context) {
	if err := h.Auth.SignOut(c.Request.Context(), c.GetString(ctxToken)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type meResponse struct {
	*models.User
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
}

func (h *Handler) GetMe(c *gin.Context) {
	user, err := h.Store.GetUser(c.Request.Context(), identity(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.me(user))
}

func (h *Handler) UpdateMe(c *gin.Context) {
	var req models.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, badRequest(err))
		return
	}

	user, err := h.Store.UpdateProfile(c.Request.Context(), identity(c).UserID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.me(user))
}

func (h *Handler) me(user *models.User) meResponse {
	return meResponse{User: user, Email: user.Email, IsAdmin: h.Reports.IsAdmin(user.ID)}
}
