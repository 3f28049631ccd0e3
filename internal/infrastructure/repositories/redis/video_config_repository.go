package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"kalonconnect/internal/core/domain"
	"kalonconnect/pkg/circuitbreaker"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultVideoConfigKey = "kalon:video-systems"

// VideoConfigRepository keeps the document as one JSON string value. SET
// replaces it atomically, so readers see either the old or the new one.
// Calls go through a circuit breaker so an unreachable server fails fast
// and Load falls back to the default document without waiting on timeouts.
type VideoConfigRepository struct {
	client  *redis.Client
	key     string
	breaker *circuitbreaker.CircuitBreaker
}

func NewVideoConfigRepository(client *redis.Client, key string, logger *zap.SugaredLogger) *VideoConfigRepository {
	if key == "" {
		key = DefaultVideoConfigKey
	}
	cfg := circuitbreaker.DefaultConfig()
	cfg.Ignore = func(err error) bool { return errors.Is(err, redis.Nil) }

	breaker := circuitbreaker.New(cfg)
	if logger != nil {
		breaker.OnStateChange(func(from, to circuitbreaker.State) {
			logger.Warnw("redis config breaker changed state", "key", key, "from", from.String(), "to", to.String())
		})
	}
	return &VideoConfigRepository{client: client, key: key, breaker: breaker}
}

func (r *VideoConfigRepository) Load(ctx context.Context) (domain.VideoSystemConfig, error) {
	data, err := circuitbreaker.Run(ctx, r.breaker, func(ctx context.Context) ([]byte, error) {
		return r.client.Get(ctx, r.key).Bytes()
	})
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.VideoSystemConfig{}, domain.ErrConfigNotFound
		}
		return domain.VideoSystemConfig{}, fmt.Errorf("failed to get video config: %w", err)
	}
	return decodeVideoConfig(data)
}

func (r *VideoConfigRepository) Save(ctx context.Context, cfg domain.VideoSystemConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal video config: %w", err)
	}
	err = r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.client.Set(ctx, r.key, data, 0).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to set video config: %w", err)
	}
	return nil
}

func decodeVideoConfig(data []byte) (domain.VideoSystemConfig, error) {
	var cfg domain.VideoSystemConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return domain.VideoSystemConfig{}, fmt.Errorf("failed to unmarshal video config: %w", err)
	}
	return cfg, nil
}
