package dashboard

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	handlers "github.com/router-for-me/CLIProxyAPIKeyManager/internal/http/api/dashboard/handlers"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/observability"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/ratelimit"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/security"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/service"
)

// Deps groups what the dashboard routes need.
type Deps struct {
	Service  *service.Service        // Credential facade.
	Verifier *security.TokenVerifier // Dashboard bearer token verifier.
	Limiter  *ratelimit.Manager      // Mutation rate limiter, optional.
	Metrics  *observability.Metrics  // Request metrics, optional.
	Gatherer prometheus.Gatherer     // Source of /metrics, optional.
}

// RegisterDashboardRoutes registers the dashboard and gateway routes with their middleware.
func RegisterDashboardRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.Service == nil || deps.Verifier == nil {
		return
	}
	handlers.RegisterValidators()

	r.Use(requestLogMiddleware(deps.Metrics))

	healthHandler := handlers.NewHealthHandler(deps.Service)
	r.GET("/healthz", healthHandler.Healthz)
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/api/v1")

	authed := v1.Group("")
	authed.Use(authMiddleware(deps.Verifier))
	authed.Use(rateLimitMiddleware(deps.Limiter, deps.Metrics, userCounter))

	authHandler := handlers.NewAuthHandler(deps.Service)
	authed.POST("/auth/sync", authHandler.Sync)

	providerKeyHandler := handlers.NewProviderKeyHandler(deps.Service)
	authed.POST("/provider-keys", providerKeyHandler.Create)
	authed.GET("/provider-keys", providerKeyHandler.List)
	authed.DELETE("/provider-keys", providerKeyHandler.DeleteAll)
	authed.POST("/provider-keys/import", providerKeyHandler.Import)
	authed.GET("/provider-keys/:id", providerKeyHandler.Get)
	authed.PATCH("/provider-keys/:id", providerKeyHandler.Update)
	authed.DELETE("/provider-keys/:id", providerKeyHandler.Delete)

	gatewayKeyHandler := handlers.NewGatewayKeyHandler(deps.Service)
	authed.POST("/keys", gatewayKeyHandler.Create)
	authed.GET("/keys", gatewayKeyHandler.List)
	authed.PATCH("/keys/:prefix", gatewayKeyHandler.Activate)
	authed.DELETE("/keys/:prefix", gatewayKeyHandler.Deactivate)
	authed.DELETE("/keys/:prefix/permanent", gatewayKeyHandler.DeletePermanently)

	activityHandler := handlers.NewActivityLogHandler(deps.Service)
	authed.GET("/activity-logs", activityHandler.List)

	gateway := v1.Group("/gateway")
	gateway.Use(gatewayKeyMiddleware(deps.Service))
	gateway.Use(rateLimitMiddleware(deps.Limiter, deps.Metrics, gatewayKeyCounter))

	gatewayHandler := handlers.NewGatewayHandler(deps.Service)
	gateway.GET("/whoami", gatewayHandler.WhoAmI)
	gateway.POST("/failover", gatewayHandler.Failover)
}
