package main

import (
	"github.com/gin-gonic/gin"
	"github.com/postul/feedback-pipeline/internal/middleware"
	"github.com/postul/feedback-pipeline/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// Rate limiter for the public ingestion route
	ingestLimiter := middleware.NewRateLimiter(10, 20)

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "feedback-pipeline"})
	})

	api := r.Group("/api")
	{
		// Public ingestion (mobile clients)
		api.POST("/feedback", ingestLimiter.Middleware(), svc.feedbackHandler.Submit)

		// Labeling queue callbacks (expert review system)
		api.POST("/labels", svc.labelHandler.Attach)
		api.POST("/labels/preference", svc.labelHandler.RecordPreference)

		// Query surface
		api.GET("/events/:eventId", svc.eventHandler.Get)
		api.GET("/labeling/queue", svc.eventHandler.LabelingQueue)
		api.GET("/rewards/:eventId", svc.rewardHandler.Get)
		api.POST("/rewards/recompute", svc.rewardHandler.Recompute)

		// Training data export (streamed)
		api.GET("/trainingset", svc.exportHandler.TrainingSet)
		api.GET("/trainingset/pairs", svc.exportHandler.Pairs)

		// Operations
		api.GET("/stats", svc.statsHandler.Get)
		api.GET("/system-logs", svc.statsHandler.Logs)
	}
}
