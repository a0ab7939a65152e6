package router

import (
	"github.com/gin-gonic/gin"

	"medparse/internal/handler"
	"medparse/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	corsOrigins []string,
	parseH *handler.ParseHandler,
	parserH *handler.ParserHandler,
	healthH *handler.HealthHandler,
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

	v1 := r.Group("/api/v1")

	healthData := v1.Group("/health-data")
	healthData.POST("/parse", parseH.Parse)
	healthData.POST("/export", parseH.Export)

	parsers := v1.Group("/parsers")
	parsers.GET("", parserH.List)
	parsers.GET("/vision/:name/models", parserH.VisionModels)
	parsers.GET("/document/:name/models", parserH.DocumentModels)

	return r
}
