package api

import (
	"net/http"

	"eventscout-backend/internal/auth/delivery"
	authUsecase "eventscout-backend/internal/auth/usecase"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, authUc authUsecase.AuthUsecase, handler *Handler) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Pipeline triggers (protected)
		sync := api.Group("/sync")
		sync.Use(delivery.AuthMiddleware(authUc))
		{
			sync.POST("", handler.TriggerSync)
			sync.POST("/watch", handler.WatchMailbox)
			sync.DELETE("/watch", handler.StopWatchMailbox)
			sync.POST("/schedule", handler.StartSchedule)
			sync.DELETE("/schedule", handler.StopSchedule)
		}

		// Materialized events (protected, read-only)
		events := api.Group("/events")
		events.Use(delivery.AuthMiddleware(authUc))
		{
			events.GET("", handler.ListEvents)
		}
	}
}
