package dashboard

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/credential"
	handlers "github.com/router-for-me/CLIProxyAPIKeyManager/internal/http/api/dashboard/handlers"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/observability"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/ratelimit"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/security"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/service"
	log "github.com/sirupsen/logrus"
)

// bearerToken extracts the token of an "Authorization: Bearer" header.
func bearerToken(c *gin.Context) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", "missing authorization header"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader {
		return "", "invalid authorization format"
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

func abortUnauthenticated(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message, "kind": string(credential.KindUnauthenticated)})
}

// authMiddleware validates dashboard bearer tokens and loads the caller identity.
func authMiddleware(verifier *security.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, problem := bearerToken(c)
		if problem != "" {
			abortUnauthenticated(c, problem)
			return
		}
		identity, errVerify := verifier.Verify(token)
		if errVerify != nil {
			log.WithError(errVerify).Debug("dashboard: token rejected")
			abortUnauthenticated(c, "invalid token")
			return
		}
		c.Set(handlers.ContextUserID, identity.Subject)
		c.Set(handlers.ContextUserEmail, identity.Email)
		c.Next()
	}
}

// gatewayKeyMiddleware authenticates gateway keys sent as a bearer token or in X-API-Key.
func gatewayKeyMiddleware(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader("X-API-Key"))
		if key == "" {
			token, problem := bearerToken(c)
			if problem != "" {
				abortUnauthenticated(c, problem)
				return
			}
			key = token
		}
		p, errAuth := svc.AuthenticateGatewayKey(c.Request.Context(), key)
		if errAuth != nil {
			if credential.IsKind(errAuth, credential.KindUnauthenticated) {
				abortUnauthenticated(c, credential.Message(errAuth))
				return
			}
			log.WithError(errAuth).Warn("gateway: key lookup failed")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": credential.Message(errAuth), "kind": string(credential.KindOf(errAuth))})
			return
		}
		c.Set(handlers.ContextPrincipal, p)
		c.Set(handlers.ContextUserID, p.UserID)
		c.Next()
	}
}

// counterFunc picks the counter an authenticated request is charged to.
type counterFunc func(c *gin.Context, policy ratelimit.Policy) (ratelimit.Counter, string)

func userCounter(c *gin.Context, policy ratelimit.Policy) (ratelimit.Counter, string) {
	return policy.ForUser(c.GetString(handlers.ContextUserID)), "user"
}

func gatewayKeyCounter(c *gin.Context, policy ratelimit.Policy) (ratelimit.Counter, string) {
	value, _ := c.Get(handlers.ContextPrincipal)
	p, _ := value.(credential.Principal)
	return policy.ForGatewayKey(p.KeyPrefix), "gateway_key"
}

// rateLimitMiddleware rejects mutations beyond the per-second limit with 429.
func rateLimitMiddleware(limiter *ratelimit.Manager, metrics *observability.Metrics, resolve counterFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || !isMutation(c.Request.Method) {
			c.Next()
			return
		}
		counter, scope := resolve(c, limiter.Policy())
		result, errAllow := limiter.Charge(c.Request.Context(), counter)
		if errAllow != nil {
			log.WithError(errAllow).Warn("rate limit: check failed")
			c.Next()
			return
		}
		if !result.Allowed {
			metrics.RecordRateLimited(scope)
			resetSeconds := int(math.Ceil(time.Until(result.Reset).Seconds()))
			if resetSeconds < 0 {
				resetSeconds = 0
			}
			c.Header("Retry-After", strconv.Itoa(resetSeconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded", "kind": "rate_limited"})
			return
		}
		c.Next()
	}
}

func isMutation(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

// requestLogMiddleware logs each request with logrus and records request metrics.
func requestLogMiddleware(metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		metrics.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(status), elapsed)

		entry := log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"route":    route,
			"status":   status,
			"duration": elapsed.String(),
		})
		if status >= http.StatusInternalServerError {
			entry.Warn("http request")
			return
		}
		entry.Debug("http request")
	}
}
