package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/service"
)

// AuthHandler records dashboard sessions.
type AuthHandler struct {
	svc *service.Service // Credential facade.
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(svc *service.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Sync upserts the token subject into the gateway user table.
func (h *AuthHandler) Sync(c *gin.Context) {
	email := c.GetString(ContextUserEmail)
	if errSync := h.svc.SyncGatewayUser(c.Request.Context(), userID(c), email); errSync != nil {
		writeError(c, errSync)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID(c), "email": email})
}
