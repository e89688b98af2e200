package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/credential"
	log "github.com/sirupsen/logrus"
)

// Gin context keys populated by the dashboard middleware.
const (
	ContextUserID    = "userID"
	ContextUserEmail = "userEmail"
	ContextPrincipal = "gatewayPrincipal"
)

// statusForKind maps a credential error kind to an HTTP status.
func statusForKind(kind credential.Kind) int {
	switch kind {
	case credential.KindValidation:
		return http.StatusBadRequest
	case credential.KindNotFound:
		return http.StatusNotFound
	case credential.KindConflict:
		return http.StatusConflict
	case credential.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	case credential.KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err with its stable kind. Untyped errors are logged and hidden.
func writeError(c *gin.Context, err error) {
	kind := credential.KindOf(err)
	status := statusForKind(kind)
	if kind == "" {
		log.WithError(err).WithField("route", c.FullPath()).Error("dashboard: unexpected error")
		kind = "internal"
	} else if kind == credential.KindStoreUnavailable {
		log.WithError(err).WithField("route", c.FullPath()).Warn("dashboard: store unavailable")
	}
	c.JSON(status, gin.H{"error": credential.Message(err), "kind": string(kind)})
}

// writeBindError renders a request decoding failure as a validation error.
func writeBindError(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "kind": string(credential.KindValidation)})
}

// writeUnprocessable renders a 422 for well-formed but unacceptable input.
func writeUnprocessable(c *gin.Context, message string) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"error": message, "kind": string(credential.KindValidation)})
}

// userID returns the authenticated dashboard user.
func userID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// principal returns the authenticated gateway key owner.
func principal(c *gin.Context) (credential.Principal, bool) {
	value, ok := c.Get(ContextPrincipal)
	if !ok {
		return credential.Principal{}, false
	}
	p, ok := value.(credential.Principal)
	return p, ok
}
