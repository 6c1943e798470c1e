package handler

import (
	"campuswhisper/backend/internal/apperrors"
	"campuswhisper/backend/internal/localization"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusOf maps an error kind to an HTTP status.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrModerationBlocked):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperrors.ErrAuth):
		switch apperrors.CodeOf(err) {
		case apperrors.CodeEmailInUse, apperrors.CodeUsernameTaken:
			return http.StatusConflict
		case apperrors.CodeInvalidCredentials, apperrors.CodeSessionExpired:
			return http.StatusUnauthorized
		default:
			return http.StatusBadRequest
		}
	case errors.Is(err, apperrors.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrIntegrity):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorDetail picks the user-facing message: the moderation reason verbatim,
// otherwise the catalog entry for the code.
func (h *Handler) errorDetail(c *gin.Context, err error) ErrorDetail {
	code := apperrors.CodeOf(err)
	if code == "" {
		return ErrorDetail{Code: "internal", Message: "Internal server error"}
	}
	if errors.Is(err, apperrors.ErrModerationBlocked) {
		return ErrorDetail{Code: code, Message: err.Error()}
	}
	if h.Messages != nil {
		if msg, ok := h.Messages.Lookup(language(c), code); ok {
			return ErrorDetail{Code: code, Message: msg}
		}
	}
	return ErrorDetail{Code: code, Message: err.Error()}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		h.Log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, ErrorResponse{Error: h.errorDetail(c, err)})
}

func (h *Handler) abortWithError(c *gin.Context, err error) {
	h.respondError(c, err)
	c.Abort()
}

// language returns the primary tag of Accept-Language, e.g. "bn" for "bn-BD,bn;q=0.9".
func language(c *gin.Context) string {
	header := c.GetHeader("Accept-Language")
	if header == "" {
		return localization.DefaultLanguage
	}
	tag := strings.SplitN(header, ",", 2)[0]
	tag = strings.SplitN(tag, ";", 2)[0]
	tag = strings.SplitN(strings.TrimSpace(tag), "-", 2)[0]
	if tag == "" {
		return localization.DefaultLanguage
	}
	return strings.ToLower(tag)
}

func badRequest(err error) error {
	return apperrors.Validation(apperrors.CodeInvalidInput, err.Error())
}
