package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/scenekit/builder-backend/internal/handler"
	"github.com/scenekit/builder-backend/internal/middleware"
	"github.com/scenekit/builder-backend/pkg/jwt"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Setup configures all API routes
func Setup(
	router *gin.Engine,
	curationHandler *handler.CurationHandler,
	healthHandler *handler.HealthHandler,
	jwtManager *jwt.Manager,
	redisClient *redis.Client,
	rateLimit int,
) {
	router.GET("/health", healthHandler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.NoRoute(handler.NotFound)

	limit := middleware.DefaultRateLimitConfig()
	limit.RequestsPerMinute = rateLimit
	api := router.Group("/v1", middleware.CallerAuth(jwtManager), middleware.RateLimit(redisClient, limit))

	api.GET("/curations", curationHandler.ListCurations)

	collections := api.Group("/collections/:id")
	{
		collections.GET("/itemCurations", curationHandler.ListItemCurations)
		collections.POST("/itemCurations", curationHandler.OpenItemCurations)

		collections.GET("/curation", curationHandler.GetCollectionCuration)
		collections.PATCH("/curation", curationHandler.UpdateCollectionCuration)
		collections.POST("/curation", curationHandler.InsertCollectionCuration)
		collections.POST("/curation/post", curationHandler.PostAssigneeNotification) // committee only
	}

	items := api.Group("/items/:id")
	{
		items.GET("/curation", curationHandler.GetItemCuration)
		items.PATCH("/curation", curationHandler.UpdateItemCuration)
		items.POST("/curation", curationHandler.InsertItemCuration)
	}
}
