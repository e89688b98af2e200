package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/service"
)

// ActivityLogHandler serves the caller's audit trail.
type ActivityLogHandler struct {
	svc *service.Service // Credential facade.
}

// NewActivityLogHandler constructs an activity log handler.
func NewActivityLogHandler(svc *service.Service) *ActivityLogHandler {
	return &ActivityLogHandler{svc: svc}
}

// List returns the newest audit entries, bounded by ?limit=.
func (h *ActivityLogHandler) List(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, errParse := strconv.Atoi(raw)
		if errParse != nil || parsed < 0 {
			writeBindError(c, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	entries, errList := h.svc.ListActivity(c.Request.Context(), userID(c), limit)
	if errList != nil {
		writeError(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": entries})
}
