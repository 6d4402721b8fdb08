package di

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"account-service/cmd/api/infrastructure"
	"account-service/internal/adapter/cache"
	"account-service/internal/adapter/db/postgres"
	ginhandler "account-service/internal/adapter/gin/handler"
	ginrouter "account-service/internal/adapter/gin/router"
	grpcadapter "account-service/internal/adapter/grpc"
	"account-service/internal/adapter/repository/cached"
	"account-service/internal/config"
	"account-service/internal/metrics"
	"account-service/internal/usecase/user"
	redisclient "account-service/pkg/redis"
	"account-service/pkg/security"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	DB           *gorm.DB
	RedisClient  *redisclient.Client // nil when the cache is disabled
	Metrics      *metrics.Metrics
	UserUC       *user.Usecase
	GinHandler   *ginhandler.UserHandler
	GRPCService  *grpcadapter.AccountServiceServer
	HealthChecks map[string]ginrouter.HealthChecker
}

// NewContainer creates and initializes all application dependencies
func NewContainer(ctx context.Context, cfg *config.Config, l *zap.Logger) (*Container, error) {
	// Validate configuration before initializing any dependencies
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	c := &Container{Config: cfg, Logger: l}

	// Initialize database
	db, err := infrastructure.NewDatabase(cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	c.DB = db

	if cfg.DB.AutoMigrate {
		if err := postgres.AutoMigrate(db); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	// Initialize repository
	dbRepo := postgres.NewUserRepoPG(db, l)
	var repo user.Repository = dbRepo
	c.HealthChecks = map[string]ginrouter.HealthChecker{"database": dbRepo}

	// Initialize cache layer
	if cfg.Redis.Enabled {
		rdb, err := infrastructure.NewRedisClient(ctx, cfg, l)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		c.RedisClient = rdb
		c.HealthChecks["redis"] = rdb

		userCache := cache.NewRedisUserCache(rdb.Client, cfg.Redis.TTL, l)
		repo = cached.NewCachedUserRepository(dbRepo, userCache, l)
	}

	// Initialize password hashing
	hasher, err := security.NewHasher(security.Algorithm(cfg.Hash.Algorithm), cfg.Hash.BcryptCost)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize hasher: %w", err)
	}
	pool := security.NewPool(hasher, cfg.Hash.Concurrency)

	// Unknown usernames are verified against this so login timing matches known ones.
	decoy, err := pool.Hash(ctx, uuid.NewString())
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to prepare decoy hash: %w", err)
	}

	c.Metrics = metrics.New()

	// Initialize use case
	c.UserUC = user.New(repo, pool, user.NewValidator(), l,
		user.WithRecorder(c.Metrics),
		user.WithDecoyHash(decoy),
	)

	// Initialize transport handlers
	c.GinHandler = ginhandler.NewUserHandler(c.UserUC, l)
	c.GRPCService = grpcadapter.NewAccountServiceServer(c.UserUC)

	l.Info("dependencies initialized",
		zap.String("db_driver", cfg.DB.Driver),
		zap.Bool("cache_enabled", cfg.Redis.Enabled),
		zap.String("hash_algorithm", string(hasher.Algorithm())),
		zap.Int("hash_concurrency", pool.Size()),
	)

	return c, nil
}

// Close closes all resources held by the container
func (c *Container) Close() error {
	var errs []error

	// Close Redis connection
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	// Close database connection
	if c.DB != nil {
		if err := infrastructure.CloseDatabase(c.DB); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	return errors.Join(errs...)
}
