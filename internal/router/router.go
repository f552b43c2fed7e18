package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "docfill/docs" // registers the OpenAPI document
	"docfill/internal/handler"
	"docfill/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	docH *handler.DocumentHandler,
	fillH *handler.FillHandler,
	healthH *handler.HealthHandler,
	corsOrigins []string,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(corsOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")

	docs := v1.Group("/documents")
	docs.POST("", docH.Upload)
	docs.GET("", docH.List)
	docs.GET("/:id", docH.GetByID)
	docs.POST("/:id/process", docH.Process)
	docs.POST("/:id/retry", docH.Retry)
	docs.PATCH("/:id/placeholders", docH.UpdatePlaceholders)
	docs.GET("/:id/placeholders/export", docH.ExportPlaceholders)
	docs.GET("/:id/download", docH.Download)
	docs.POST("/:id/chat", fillH.Chat)

	return r
}
