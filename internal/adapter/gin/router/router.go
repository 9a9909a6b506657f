package router

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"user-settings-api/api"
	"user-settings-api/internal/adapter/gin/handler"
	"user-settings-api/internal/adapter/gin/middleware"
)

// Config controls the non-route parts of the router.
type Config struct {
	ServiceName    string
	AllowedOrigins []string
	RateLimit      middleware.RateLimiterConfig
}

// SetupRouter configures and returns a Gin router with all routes and middleware.
// A nil redisClient disables rate limiting.
func SetupRouter(
	userHandler *handler.UserHandler,
	redisClient *redis.Client,
	cfg Config,
	log *zap.Logger,
) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	if redisClient != nil {
		router.Use(middleware.RateLimiter(redisClient, cfg.RateLimit, log))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": cfg.ServiceName,
		})
	})

	// API docs
	router.GET("/openapi.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", api.OpenAPI)
	})
	router.GET("/swagger", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/swagger/index.html")
	})
	router.GET("/swagger/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL("/openapi.json"))))

	router.GET("/users/:limit/:page", userHandler.ListUsers)
	user := router.Group("/user")
	{
		user.POST("", userHandler.CreateUser)
		user.GET("/:id", userHandler.GetUser)
		user.PUT("/:id", userHandler.UpdateUser)
		user.DELETE("/:id", userHandler.DeleteUser)
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", middleware.HeaderRequestID},
		ExposeHeaders: []string{
			"Content-Length", "Content-Type", middleware.HeaderRequestID,
			handler.HeaderTotalCount, handler.HeaderPage, handler.HeaderLimit, handler.HeaderTotalPages,
		},
		MaxAge: 12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
