package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	conversationapi "paper-agent-chat/backend/conversation/api"
	"paper-agent-chat/backend/pkg/di"
	"paper-agent-chat/backend/pkg/errors"
	"paper-agent-chat/backend/pkg/logger"
	"paper-agent-chat/backend/pkg/middleware"
	relayapi "paper-agent-chat/backend/relay/api"
	sessionapi "paper-agent-chat/backend/session/api"
)

// Router owns the gin engine and binds the HTTP surface to the container.
type Router struct {
	engine    *gin.Engine
	container *di.Container
	logger    *logger.Logger
}

// New creates a router with the standard middleware chain applied.
func New(container *di.Container) *Router {
	cfg := container.Config
	log := container.Logger

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(logger.Middleware(log))
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(errors.ErrorHandler())
	engine.Use(corsMiddleware(cfg.Security.AllowedOrigins))

	if cfg.Security.RateLimit > 0 {
		opts := middleware.DefaultRateLimiterOptions()
		opts.Limit = rate.Limit(cfg.Security.RateLimit)
		if cfg.Security.RateLimitBurst > 0 {
			opts.Burst = cfg.Security.RateLimitBurst
		}
		engine.Use(middleware.NewRateLimiter(log, opts).Middleware())
	}

	return &Router{
		engine:    engine,
		container: container,
		logger:    log,
	}
}

// SetupRoutes registers the API surface and operational endpoints.
func (r *Router) SetupRoutes() {
	r.setupHealthRoutes()

	api := r.engine.Group("/paperapi")
	sessionapi.RegisterSessionRoutes(api, r.container.SessionHandler)
	conversationapi.RegisterHistoryRoutes(api, r.container.HistoryHandler)
	relayapi.RegisterChatRoutes(api, r.container.ChatHandler)
}

// Engine exposes the underlying gin engine for http.Server wiring.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && originAllowed(origin, allowedOrigins) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
			c.Header("Access-Control-Max-Age", "86400")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}
