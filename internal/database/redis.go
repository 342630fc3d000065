package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// InitRedis connects to Redis from a redis:// URL. The caller tolerates a nil
// client: cross-instance fan-out is then disabled and presence runs
// single-instance.
func InitRedis(redisURL string, log *zap.Logger) (*redis.Client, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis url is not configured")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("redis connected", zap.String("addr", opt.Addr), zap.Int("db", opt.DB))
	return client, nil
}
