package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"user-settings-api/cmd/api/infrastructure"
	"user-settings-api/internal/adapter/cache"
	"user-settings-api/internal/adapter/db/postgres"
	ginhandler "user-settings-api/internal/adapter/gin/handler"
	"user-settings-api/internal/adapter/repository/cached"
	"user-settings-api/internal/config"
	"user-settings-api/internal/usecase/user"
	redisclient "user-settings-api/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	DB          *gorm.DB
	RedisClient *redisclient.Client // nil unless REDIS_ENABLED
	NATS        *nats.Conn          // nil unless EVENTS_ENABLED
	UserUC      user.Usecase
	GinHandler  *ginhandler.UserHandler
}

// NewContainer creates and initializes all application dependencies.
// Anything already opened is closed again when a later step fails.
func NewContainer(ctx context.Context, cfg *config.Config, l *zap.Logger) (_ *Container, err error) {
	// Validate configuration before initializing any dependencies
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	c := &Container{Config: cfg, Logger: l}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	c.DB, err = infrastructure.NewDatabase(ctx, cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	var repo user.Repository = postgres.NewUserRepoPG(c.DB, l)

	if cfg.Redis.Enabled {
		c.RedisClient, err = infrastructure.NewRedisClient(ctx, cfg, l)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		userCache := cache.NewRedisUserCache(
			c.RedisClient.Client,
			time.Duration(cfg.Redis.CacheTTL)*time.Second,
			l,
		)
		repo = cached.NewCachedUserRepository(repo, userCache, l)
	}

	opts := []user.Option{}
	if cfg.Events.Enabled {
		nc, publisher, err := infrastructure.NewEventPublisher(cfg, l)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize events: %w", err)
		}
		c.NATS = nc
		opts = append(opts, user.WithEventPublisher(publisher))
	}

	c.UserUC = user.New(repo, l, opts...)
	c.GinHandler = ginhandler.NewUserHandler(c.UserUC, l)

	return c, nil
}

// Close closes all resources held by the container
func (c *Container) Close() error {
	var errs []error

	if c.NATS != nil {
		if err := c.NATS.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("failed to drain NATS: %w", err))
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	if c.DB != nil {
		if err := infrastructure.CloseDatabase(c.DB); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	return errors.Join(errs...)
}
