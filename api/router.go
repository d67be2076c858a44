package api

import (
	"github.com/gin-gonic/gin"
	"github.com/use-agent/scrapekit/api/handler"
	"github.com/use-agent/scrapekit/api/middleware"
	"github.com/use-agent/scrapekit/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(sc handler.Scraper, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())

	v1 := r.Group("/api/v1")

	// Health and service info — no auth required.
	v1.GET("/health", handler.Health(sc))
	v1.GET("/", handler.Info())

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/scrape", handler.Scrape(sc))

	return r
}
