package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger reports store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler provides the liveness endpoint.
type HealthHandler struct {
	store Pinger // Store checked on every probe.
}

// NewHealthHandler constructs a health handler.
func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

// Healthz reports ok when the store answers a ping.
func (h *HealthHandler) Healthz(c *gin.Context) {
	if h == nil || h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if errPing := h.store.Ping(ctx); errPing != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
