package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterConfig bundles what the router needs.
type RouterConfig struct {
	Handler     *Handler
	Auth        *AuthMiddleware
	RateLimiter *RateLimiter
	CORSOrigins []string
	Mode        string
}

// NewRouter builds the gin engine with the public healthcheck and the
// token-protected API group.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode == "prod" || cfg.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", HealthCheck)

	// Protected
	api := router.Group("/api")
	api.Use(cfg.Auth.RequireAuth())
	if cfg.RateLimiter != nil {
		api.Use(cfg.RateLimiter.Limit())
	}
	api.POST("/attempts", cfg.Handler.SubmitAttempt)
	api.GET("/recommendations", cfg.Handler.Recommend)
	api.GET("/progress", cfg.Handler.Progress)
	api.GET("/items/:id", cfg.Handler.ItemHistory)
	api.POST("/mentions/resolve", cfg.Handler.ResolveMentions)

	return router
}
