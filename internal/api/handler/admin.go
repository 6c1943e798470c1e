package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListReports(c *gin.Context) {
	reports, err := h.Reports.ListReports(c.Request.Context(), identity(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}

// DismissReport drops the report and keeps the post.
func (h *Handler) DismissReport(c *gin.Context) {
	if err := h.Reports.Dismiss(c.Request.Context(), identity(c).UserID, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) DeleteReportedPost(c *gin.Context) {
	if err := h.Reports.DeletePost(c.Request.Context(), identity(c).UserID, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
