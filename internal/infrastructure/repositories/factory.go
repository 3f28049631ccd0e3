package repositories

import (
	"context"

	"kalonconnect/internal/core/ports"
	filerepo "kalonconnect/internal/infrastructure/repositories/file"
	"kalonconnect/internal/infrastructure/repositories/memory"
	redisrepo "kalonconnect/internal/infrastructure/repositories/redis"
	"kalonconnect/pkg/config"
	"kalonconnect/pkg/retry"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// RepositoryFactory creates repositories with fallback support
type RepositoryFactory struct {
	store       string
	cfg         *config.Config
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory picks the video config backend. A redis store whose
// server can't be reached degrades to the file store.
func NewRepositoryFactory(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		store:  cfg.Video.Store,
		cfg:    cfg,
		logger: logger,
	}
	if factory.store == "" {
		factory.store = StoreFile
	}

	if factory.store == StoreRedis {
		client, err := redisrepo.NewRedisClient(
			ctx,
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			retry.DefaultConfig(),
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to file store",
				"error", err,
			)
			factory.store = StoreFile
		} else {
			factory.redisClient = client
		}
	}

	logger.Infow("video config store selected", "store", factory.store)
	return factory, nil
}

func (f *RepositoryFactory) Store() string {
	return f.store
}

// CreateVideoConfigRepository returns the repository for the selected store.
func (f *RepositoryFactory) CreateVideoConfigRepository() ports.VideoConfigRepository {
	switch f.store {
	case StoreRedis:
		return redisrepo.NewVideoConfigRepository(f.redisClient, f.cfg.Video.RedisKey, f.logger)
	case StoreMemory:
		return memory.NewVideoConfigRepository()
	default:
		return filerepo.NewVideoConfigRepository(f.cfg.Video.ConfigPath)
	}
}

// Close closes Redis connection if used
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

// HealthCheck checks Redis connection health
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
