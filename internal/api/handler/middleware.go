package handler

import (
	"campuswhisper/backend/internal/apperrors"
	"campuswhisper/backend/internal/auth"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	ctxIdentity = "identity"
	ctxToken    = "token"
)

// RequireAuth accepts a Bearer token in the Authorization header. Browsers
// cannot set headers on a WebSocket handshake, so a token query parameter is
// accepted as well.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ExtractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			token = c.Query("token")
		}
		if token == "" {
			h.abortWithError(c, apperrors.Unauthenticated("authorization token missing"))
			return
		}

		id, err := h.Auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			h.abortWithError(c, err)
			return
		}

		c.Set(ctxIdentity, id)
		c.Set(ctxToken, token)
		c.Next()
	}
}

func identity(c *gin.Context) *auth.Identity {
	id, _ := c.MustGet(ctxIdentity).(*auth.Identity)
	return id
}

// RequestLogger logs one line per request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}
