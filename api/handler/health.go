package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/scrapekit/models"
)

// Service identity reported by the health and info endpoints.
const (
	ServiceName = "scrapekit"
	Version     = "0.1.0"
)

// Health returns a handler for GET /api/v1/health.
func Health(sc Scraper) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:      "healthy",
			Service:     ServiceName,
			Uptime:      sc.Uptime().Round(time.Second).String(),
			EngineStats: sc.Stats(),
			Version:     Version,
		})
	}
}

// Info returns a handler for GET /api/v1/ describing the service.
func Info() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": ServiceName,
			"version": Version,
			"endpoints": gin.H{
				"scrape": "POST /api/v1/scrape",
				"health": "GET /api/v1/health",
			},
		})
	}
}
