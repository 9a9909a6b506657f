package server

import (
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	ginhandler "user-settings-api/internal/adapter/gin/handler"
	"user-settings-api/internal/adapter/gin/middleware"
	ginrouter "user-settings-api/internal/adapter/gin/router"
	"user-settings-api/internal/config"
)

// SetupGinServer creates and configures the Gin REST API server.
// A nil redisClient disables rate limiting.
func SetupGinServer(
	cfg *config.Config,
	handler *ginhandler.UserHandler,
	redisClient *redis.Client,
	l *zap.Logger,
) *http.Server {
	router := ginrouter.SetupRouter(handler, redisClient, ginrouter.Config{
		ServiceName:    cfg.Logger.ServiceName,
		AllowedOrigins: cfg.App.CORSAllowedOrigins,
		RateLimit: middleware.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstCapacity:     cfg.RateLimit.BurstCapacity,
			Enabled:           cfg.RateLimit.Enabled,
		},
	}, l)

	addr := ":" + cfg.App.HTTPPort
	l.Info("Gin REST API configured", zap.String("address", addr))

	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
