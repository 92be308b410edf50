// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/sharpline/sharpline-go/internal/application/container"
	"github.com/sharpline/sharpline-go/internal/presentation/http/handlers"
	"github.com/sharpline/sharpline-go/internal/presentation/http/middleware"
	"github.com/sharpline/sharpline-go/pkg/config"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RequestLogger(container.Logger))
	r.Use(middleware.CORSMiddleware(config.CORSAllowedOrigins))

	// Initialize handlers
	healthHandlers := handlers.NewHealthHandlers(container.DB, container.ProfileService, container.Logger)
	pageHandlers := handlers.NewPageHandlers(container.PageRenderService, container.TokenGateService, container.Logger, container.PerfTracker)
	profileHandlers := handlers.NewProfileHandlers(
		container.ProfileService,
		container.AuthService,
		container.ProfileBroadcaster,
		handlers.StreamConfig{
			AllowedOrigins:   config.CORSAllowedOrigins,
			WriteTimeout:     config.WSWriteTimeout,
			PingInterval:     config.WSPingInterval,
			ClientBufferSize: config.WSClientBufferSize,
		},
		container.Logger,
		container.PerfTracker,
	)
	adminHandlers := handlers.NewAdminHandlers(
		container.AuthService,
		container.ProfileService,
		container.VisibilityEvaluationService,
		container.Logger,
		container.PerfTracker,
	)

	r.GET("/health", healthHandlers.GetHealth)

	api := r.Group("/api/v1")
	api.Use(middleware.ViewerMiddleware(container.AuthService))
	{
		api.GET("/pages/:slug", pageHandlers.GetPageBySlug)
		api.POST("/gate", pageHandlers.CheckGate)

		profile := api.Group("/profile")
		{
			profile.GET("", profileHandlers.GetProfile)
			profile.POST("/invalidate", profileHandlers.InvalidateProfile)
			profile.GET("/stream", profileHandlers.StreamProfileEvents)
		}

		admin := api.Group("/admin")
		{
			admin.POST("/login", adminHandlers.Login)

			protected := admin.Group("")
			protected.Use(middleware.AdminAuthMiddleware(container.AuthService))
			{
				protected.POST("/evaluate", adminHandlers.Evaluate)
				protected.POST("/profiles/:userId/invalidate", adminHandlers.InvalidateUserProfile)
				protected.GET("/performance", adminHandlers.GetPerformance)
				protected.GET("/logs/levels", adminHandlers.GetLogLevels)
				protected.POST("/logs/levels", adminHandlers.SetLogLevel)
			}
		}
	}

	return r
}
