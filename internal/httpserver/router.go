package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"taskflow/config"
	"taskflow/internal/handler"
)

type Router struct {
	Engine *gin.Engine
}

// NewRouter wires middleware and the full route set. All API routes live
// under the single /api prefix.
func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	authHandler *handler.AuthHandler,
	taskHandler *handler.TaskHandler,
	authn Authenticator,
	limiter *RateLimiter,
	pool *pgxpool.Pool,
) *Router {
	if !cfg.Server.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Observe(logger))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = cfg.Server.CORSOrigins
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	corsCfg.AllowCredentials = true
	corsCfg.MaxAge = 12 * time.Hour
	r.Use(cors.New(corsCfg))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	// Health behaves differently, not exclusively, for authenticated callers.
	api.GET("/health", OptionalAuth(authn), func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"message": "database unreachable",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data": gin.H{
				"status":        "ok",
				"authenticated": handler.CurrentUserID(c) != 0,
			},
		})
	})

	authGroup := api.Group("/auth")
	{
		limited := authGroup.Group("", limiter.Middleware())
		limited.POST("/register", authHandler.Register)
		limited.POST("/login", authHandler.Login)
		limited.POST("/refresh-token", authHandler.Refresh)

		authGroup.POST("/logout", Auth(authn), authHandler.Logout)
		authGroup.GET("/profile", Auth(authn), authHandler.Profile)
	}

	tasks := api.Group("/tasks", Auth(authn))
	{
		tasks.GET("", taskHandler.List)
		tasks.POST("", taskHandler.Create)
		tasks.GET("/stats", taskHandler.Stats)
		tasks.POST("/bulk-delete", taskHandler.BulkDelete)
		tasks.POST("/bulk-update", taskHandler.BulkUpdate)
		tasks.GET("/:id", taskHandler.Get)
		tasks.PUT("/:id", taskHandler.Update)
		tasks.PATCH("/:id/status", taskHandler.UpdateStatus)
		tasks.PATCH("/:id/priority", taskHandler.UpdatePriority)
		tasks.DELETE("/:id", taskHandler.Delete)
	}

	return &Router{Engine: r}
}
