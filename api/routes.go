package api

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/orgohq/mailgate/api/handlers"
	"github.com/orgohq/mailgate/api/middleware"
	"github.com/orgohq/mailgate/internal/logger"
	"github.com/orgohq/mailgate/internal/repository"
	"github.com/orgohq/mailgate/internal/tracing"
	"github.com/orgohq/mailgate/services"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(ctx context.Context, r *gin.Engine, log logger.Logger, svcs *services.Services, repos *repository.Repositories, apikey string) {
	if svcs == nil {
		panic("Services cannot be nil")
	}
	if repos == nil {
		panic("Repositories cannot be nil")
	}

	r.Use(gin.Recovery())

	apiHandlers := handlers.InitHandlers(log, svcs, repos)

	// Health check endpoint, no auth
	r.GET("/health", handlers.HealthCheck)

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  "X-MAILGATE-API-KEY",
		ValidAPIKey: apikey,
	})

	api := r.Group("/v1")
	api.Use(apiKeyMiddleware)
	{
		ingestion := api.Group("/ingestion")
		{
			ingestion.POST("/poll",
				tracing.TracingEnhancer(ctx, "POST /v1/ingestion/poll"),
				apiHandlers.Ingestion.TriggerPoll())
		}

		emails := api.Group("/emails")
		{
			emails.GET("/:id",
				tracing.TracingEnhancer(ctx, "GET /v1/emails/:id"),
				apiHandlers.Emails.Get())
			emails.POST("/:id/route",
				tracing.TracingEnhancer(ctx, "POST /v1/emails/:id/route"),
				apiHandlers.Emails.Route())
		}
	}
}
