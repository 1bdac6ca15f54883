package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shrimpcod/RealTimeChat/internal/config"
	"github.com/shrimpcod/RealTimeChat/pkg/logger"
)

var Redis *redis.Client

// InitRedis connects the shared client. A failed ping keeps the service up;
// rate limiting and token revocation then degrade to permissive no-ops.
func InitRedis(ctx context.Context) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       0,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		logger.Warn().Err(err).Msg("Failed to connect to Redis. Rate limiting and token revocation will be disabled.")
		_ = client.Close()
		return nil
	}
	logger.Info().Str("addr", config.AppConfig.RedisAddr).Msg("Connected to Redis successfully")
	Redis = client
	return client
}

// RedisStore holds the Redis backed helpers. A nil client is valid.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// CheckRateLimit counts one hit for key in a fixed window and reports
// whether the caller is still within limit.
func (s *RedisStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if s == nil || s.client == nil || limit <= 0 {
		return true, nil
	}
	rk := fmt.Sprintf("rate_limit:%s", key)
	count, err := s.client.Incr(ctx, rk).Result()
	if err != nil {
		return true, err
	}
	if count == 1 {
		s.client.Expire(ctx, rk, window)
	}
	return count <= int64(limit), nil
}

// BlacklistToken revokes a token id until its natural expiry.
func (s *RedisStore) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	if s == nil || s.client == nil || jti == "" || ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, "blacklist:"+jti, 1, ttl).Err()
}

func (s *RedisStore) IsTokenBlacklisted(ctx context.Context, jti string) bool {
	if s == nil || s.client == nil || jti == "" {
		return false
	}
	n, err := s.client.Exists(ctx, "blacklist:"+jti).Result()
	if err != nil {
		logger.Warn().Err(err).Msg("Token blacklist lookup failed")
		return false
	}
	return n > 0
}

// MessageLimiter applies the per-user socket sendMessage limit.
type MessageLimiter struct {
	store  *RedisStore
	limit  int
	window time.Duration
}

func NewMessageLimiter(store *RedisStore, limit int, window time.Duration) *MessageLimiter {
	return &MessageLimiter{store: store, limit: limit, window: window}
}

func (l *MessageLimiter) Allow(ctx context.Context, userID string) bool {
	ok, err := l.store.CheckRateLimit(ctx, "socket_message:"+userID, l.limit, l.window)
	if err != nil {
		logger.Warn().Err(err).Str("user_id", userID).Msg("Rate limit check failed, allowing message")
	}
	return ok
}
