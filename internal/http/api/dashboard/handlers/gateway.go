package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/credential"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/service"
)

// GatewayHandler serves calls made by the LLM gateway with a gateway key.
type GatewayHandler struct {
	svc *service.Service // Credential facade.
}

// NewGatewayHandler constructs a gateway handler.
func NewGatewayHandler(svc *service.Service) *GatewayHandler {
	RegisterValidators()
	return &GatewayHandler{svc: svc}
}

// failoverRequest captures an upstream failure report.
type failoverRequest struct {
	ProviderName string `json:"provider_name" binding:"required,provider"` // Provider of the failed key.
	FailedKeyID  string `json:"failed_key_id" binding:"required"`          // Key that failed upstream.
	ErrorCode    int    `json:"error_code" binding:"required"`             // Upstream HTTP status.
	ErrorMessage string `json:"error_message"`                             // Upstream error text.
}

// WhoAmI reports the owner of the presented gateway key.
func (h *GatewayHandler) WhoAmI(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		writeError(c, credential.UnauthenticatedError("gateway key required"))
		return
	}
	c.JSON(http.StatusOK, p)
}

// Failover rotates the owner's selection away from a failed provider key.
func (h *GatewayHandler) Failover(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		writeError(c, credential.UnauthenticatedError("gateway key required"))
		return
	}
	var body failoverRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		writeBindError(c, "provider_name, failed_key_id and error_code are required")
		return
	}
	next, errFailover := h.svc.ReportProviderFailure(c.Request.Context(), p.UserID, service.ProviderFailure{
		Provider:     body.ProviderName,
		FailedKeyID:  body.FailedKeyID,
		ErrorCode:    body.ErrorCode,
		ErrorMessage: body.ErrorMessage,
	})
	if errFailover != nil {
		writeError(c, errFailover)
		return
	}
	c.JSON(http.StatusOK, gin.H{"switched": next != nil, "key": next})
}
