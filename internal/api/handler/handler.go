// Package handler is the HTTP and WebSocket surface of the service.
package handler

import (
	"campuswhisper/backend/internal/auth"
	"campuswhisper/backend/internal/feed"
	"campuswhisper/backend/internal/hub"
	"campuswhisper/backend/internal/localization"
	"campuswhisper/backend/internal/models"
	"campuswhisper/backend/internal/submission"
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AuthService is the identity provider.
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Session, error)
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	SignOut(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (*auth.Identity, error)
}

// Store is the part of the document store read or written directly by
// handlers.
type Store interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.User, error)
	GetPost(ctx context.Context, postID string) (*models.Post, error)
	ListComments(ctx context.Context, postID string) ([]models.Comment, error)
	DeleteOwnPost(ctx context.Context, userID, postID string) error
	CastVote(ctx context.Context, userID, postID string, action models.VoteDirection) (models.VoteReceipt, error)
}

type Submitter interface {
	SubmitPost(ctx context.Context, userID string, in submission.PostInput) (*models.Post, error)
	SubmitComment(ctx context.Context, userID, postID, content string) (*models.Comment, error)
}

type Reports interface {
	FileReport(ctx context.Context, reporterID, postID, reason string) error
	ListReports(ctx context.Context, userID string) ([]models.ReportView, error)
	Dismiss(ctx context.Context, userID, reportID string) error
	DeletePost(ctx context.Context, userID, reportID string) error
	IsAdmin(userID string) bool
}

// Handler містить залежності HTTP-шару
type Handler struct {
	Auth      AuthService
	Store     Store
	Submitter Submitter
	Reports   Reports
	Messages  *localization.Localizer

	// live sessions
	Hub      *hub.Manager
	Live     feed.Source
	Presence feed.Presence

	Log zerolog.Logger
}

// RegisterRoutes mounts every route on r.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.Use(RequestLogger(h.Log))

	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	r.GET("/channels", h.ListChannels)

	authGroup := r.Group("/auth")
	authGroup.POST("/register", h.Register)
	authGroup.POST("/login", h.Login)
	authGroup.POST("/logout", h.RequireAuth(), h.Logout)

	api := r.Group("/", h.RequireAuth())
	api.GET("/me", h.GetMe)
	api.PATCH("/me", h.UpdateMe)

	api.POST("/posts", h.CreatePost)
	api.GET("/posts/:id", h.GetPost)
	api.DELETE("/posts/:id", h.DeletePost)
	api.GET("/posts/:id/comments", h.ListComments)
	api.POST("/posts/:id/comments", h.CreateComment)
	api.POST("/posts/:id/vote", h.Vote)
	api.POST("/posts/:id/report", h.ReportPost)

	admin := api.Group("/admin")
	admin.GET("/reports", h.ListReports)
	admin.DELETE("/reports/:id", h.DismissReport)
	admin.DELETE("/reports/:id/post", h.DeleteReportedPost)

	api.GET("/ws", h.ServeWebSocket)
}
