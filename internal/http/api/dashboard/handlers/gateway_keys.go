package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/security"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/service"
)

// GatewayKeyHandler serves the caller's gateway keys.
type GatewayKeyHandler struct {
	svc *service.Service // Credential facade.
}

// NewGatewayKeyHandler constructs a gateway key handler.
func NewGatewayKeyHandler(svc *service.Service) *GatewayKeyHandler {
	return &GatewayKeyHandler{svc: svc}
}

// createGatewayKeyRequest captures the payload for issuing a gateway key.
type createGatewayKeyRequest struct {
	Name string `json:"name"` // Optional display name.
}

// updateGatewayKeyRequest captures the activation payload.
type updateGatewayKeyRequest struct {
	IsActive *bool `json:"is_active" binding:"required"` // Only true is accepted.
}

// Create issues a gateway key. The full key is only present in this response.
func (h *GatewayKeyHandler) Create(c *gin.Context) {
	var body createGatewayKeyRequest
	if c.Request.ContentLength != 0 {
		if errBind := c.ShouldBindJSON(&body); errBind != nil {
			writeBindError(c, "invalid json")
			return
		}
	}
	created, errCreate := h.svc.CreateGatewayKey(c.Request.Context(), userID(c), body.Name)
	if errCreate != nil {
		writeError(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// List returns the caller's gateway keys by prefix.
func (h *GatewayKeyHandler) List(c *gin.Context) {
	keys, errList := h.svc.ListGatewayKeys(c.Request.Context(), userID(c))
	if errList != nil {
		writeError(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

// Activate re-enables a deactivated gateway key.
func (h *GatewayKeyHandler) Activate(c *gin.Context) {
	prefix, ok := prefixParam(c)
	if !ok {
		return
	}
	var body updateGatewayKeyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		writeBindError(c, "is_active is required")
		return
	}
	if !*body.IsActive {
		writeUnprocessable(c, "use DELETE to deactivate a gateway key")
		return
	}
	key, errActivate := h.svc.ActivateGatewayKey(c.Request.Context(), userID(c), prefix)
	if errActivate != nil {
		writeError(c, errActivate)
		return
	}
	c.JSON(http.StatusOK, key)
}

// Deactivate disables a gateway key without deleting it.
func (h *GatewayKeyHandler) Deactivate(c *gin.Context) {
	prefix, ok := prefixParam(c)
	if !ok {
		return
	}
	key, errDeactivate := h.svc.DeactivateGatewayKey(c.Request.Context(), userID(c), prefix)
	if errDeactivate != nil {
		writeError(c, errDeactivate)
		return
	}
	c.JSON(http.StatusOK, key)
}

// DeletePermanently removes a gateway key and retires its prefix.
func (h *GatewayKeyHandler) DeletePermanently(c *gin.Context) {
	prefix, ok := prefixParam(c)
	if !ok {
		return
	}
	if errDelete := h.svc.DeleteGatewayKeyPermanently(c.Request.Context(), userID(c), prefix); errDelete != nil {
		writeError(c, errDelete)
		return
	}
	c.Status(http.StatusNoContent)
}

// prefixParam reads :prefix and rejects values of the wrong length with 422.
func prefixParam(c *gin.Context) (string, bool) {
	prefix := strings.TrimSpace(c.Param("prefix"))
	if len(prefix) != security.GatewayKeyPrefixLength {
		writeUnprocessable(c, "gateway key prefix must be 6 characters")
		return "", false
	}
	return prefix, true
}
