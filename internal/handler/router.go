package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"loyalty/scanhub/internal/config"
	"loyalty/scanhub/internal/handler/middleware"
	jwtpkg "loyalty/scanhub/pkg/jwt"
)

func SetupRouter(
	cfg *config.Config,
	logger *zap.Logger,
	jwtManager *jwtpkg.Manager,
	scanHandler *ScanHandler,
	codeHandler *CodeHandler,
	pointsHandler *PointsHandler,
	authHandler *AuthHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Device credential exchange (unauthenticated by design)
	r.POST("/api/v1/auth/token", authHandler.Token)

	// Authenticated scanner/operator API
	api := r.Group("/api/v1")
	api.Use(middleware.JWTAuth(jwtManager))
	{
		// Scan pipeline (scanner devices)
		api.POST("/scan", scanHandler.Scan)

		api.GET("/codes/:unique_id", codeHandler.Get)

		// Code lifecycle (operators)
		operator := api.Group("")
		operator.Use(middleware.OperatorOnly())
		{
			operator.POST("/codes", codeHandler.Issue)
			operator.POST("/codes/:id/rotate", codeHandler.Rotate)
			operator.POST("/codes/:id/revoke", codeHandler.Revoke)
			operator.POST("/cards/:id/award", pointsHandler.Award)
			operator.POST("/devices", authHandler.Provision)
		}
	}

	return r
}
