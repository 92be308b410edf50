// Package container provides dependency injection for all singleton services
package container

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sharpline/sharpline-go/internal/application/services"
	"github.com/sharpline/sharpline-go/internal/domain/repositories"
	domainservices "github.com/sharpline/sharpline-go/internal/domain/services"
	"github.com/sharpline/sharpline-go/internal/domain/user"
	"github.com/sharpline/sharpline-go/internal/infrastructure/caching/interfaces"
	"github.com/sharpline/sharpline-go/internal/infrastructure/caching/stores"
	"github.com/sharpline/sharpline-go/internal/infrastructure/messaging"
	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/logging"
	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/performance"
	contentpersistence "github.com/sharpline/sharpline-go/internal/infrastructure/persistence/content"
	"github.com/sharpline/sharpline-go/internal/infrastructure/persistence/database"
	userpersistence "github.com/sharpline/sharpline-go/internal/infrastructure/persistence/user"
	"github.com/sharpline/sharpline-go/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Domain Services (pure)
	VisibilityEvaluationService *domainservices.VisibilityEvaluationService

	// Application Services
	ProfileService    *services.ProfileService
	PageRenderService *services.PageRenderService
	TokenGateService  *services.TokenGateService
	AuthService       *services.AuthService

	// Repositories
	PageRepo         repositories.PageRepository
	BlockRepo        repositories.BlockRepository
	ProfileFactsRepo user.ProfileFactsRepository

	// Infrastructure Dependencies
	DB                 *database.DB
	ProfileCache       interfaces.ProfileCache
	ExpiringCache      interfaces.ExpiringCache // set for the in-memory backend only
	RedisClient        *redis.Client
	ProfileBroadcaster *messaging.ProfileBroadcaster
	Logger             *logging.ChanneledLogger
	PerfTracker        *performance.Tracker
}

// Options carries what the container cannot build itself.
type Options struct {
	DB        *database.DB
	Logger    *logging.ChanneledLogger
	JWTSecret string

	// RedisClient overrides REDIS_ADDR for the redis backend; used by tests.
	RedisClient *redis.Client
}

// NewContainer creates and wires all singleton services
func NewContainer(ctx context.Context, opts Options) *Container {
	logger := opts.Logger
	perfTracker := performance.NewTracker(&performance.TrackerConfig{
		MaxRecords:    1000,
		SlowThreshold: database.GetSlowQueryThreshold(),
	}, logger.Perf())

	c := &Container{
		DB:                          opts.DB,
		Logger:                      logger,
		PerfTracker:                 perfTracker,
		VisibilityEvaluationService: domainservices.NewVisibilityEvaluationService(),
		PageRepo:                    contentpersistence.NewSQLPageRepository(opts.DB, logger),
		BlockRepo:                   contentpersistence.NewSQLBlockRepository(opts.DB, logger),
		ProfileFactsRepo:            userpersistence.NewSQLProfileFactsRepository(opts.DB, logger),
		ProfileBroadcaster:          messaging.NewProfileBroadcaster(logger),
	}

	profileConfig := services.ProfileServiceConfigFromEnv()
	if profileConfig.CacheMode == config.ProfileCacheModeSession {
		c.ProfileCache = c.buildProfileCache(ctx, opts.RedisClient)
	}

	c.ProfileService = services.NewProfileService(
		c.ProfileFactsRepo, c.ProfileCache, c.ProfileBroadcaster, profileConfig, logger, perfTracker)
	c.PageRenderService = services.NewPageRenderService(
		c.PageRepo, c.BlockRepo, c.ProfileService, c.VisibilityEvaluationService, logger, perfTracker)
	c.TokenGateService = services.NewTokenGateService(c.ProfileService, c.VisibilityEvaluationService)
	c.AuthService = services.NewAuthService(services.AuthConfig{
		JWTSecret:         opts.JWTSecret,
		AdminPasswordHash: config.AdminPasswordHash,
		AdminTokenTTL:     config.AdminTokenTTL,
	}, logger)

	return c
}

// buildProfileCache picks the session cache backend. An unreachable Redis
// falls back to the in-memory store so the service still starts.
func (c *Container) buildProfileCache(ctx context.Context, client *redis.Client) interfaces.ProfileCache {
	if config.ProfileCacheBackend == config.ProfileCacheBackendRedis {
		if client == nil {
			connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			var err error
			client, err = stores.ConnectRedis(connectCtx, config.RedisAddr, config.RedisPassword, config.RedisDB)
			if err != nil {
				c.Logger.Cache().Error("Redis unavailable, falling back to in-memory profile cache", "error", err.Error(), "addr", config.RedisAddr)
			}
		}
		if client != nil {
			c.RedisClient = client
			return stores.NewRedisProfilesStore(client, config.RedisKeyPrefix, c.Logger)
		}
	}

	memory := stores.NewProfilesStore(c.Logger)
	c.ExpiringCache = memory
	return memory
}

// Close releases connections owned by the container.
func (c *Container) Close() error {
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Shutdown().Error("Error closing redis client", "error", err.Error())
		}
	}
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
