package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultKeyPrefix 是 Redis 键前缀的默认值
const DefaultKeyPrefix = "mediagw:idem:"

// RedisStore 基于 Redis 的幂等存储，过期由 Redis TTL 负责
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisStore 创建 Redis 幂等存储。Close 会关闭 client。
func NewRedisStore(client *redis.Client, prefix string, logger *zap.Logger) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: logger.With(zap.String("component", "idempotency"), zap.String("backend", "redis")),
	}
}

// Get 实现 Store.Get
func (s *RedisStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("从 Redis 获取失败: %w", err)
	}

	s.logger.Debug("幂等键命中", zap.String("key", key), zap.Int("data_size", len(data)))
	return data, true, nil
}

// Set 实现 Store.Set
func (s *RedisStore) Set(ctx context.Context, key string, result any, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("序列化结果失败: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	if err := s.client.Set(ctx, s.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("存储到 Redis 失败: %w", err)
	}

	s.logger.Debug("幂等键已存储", zap.String("key", key), zap.Duration("ttl", ttl))
	return nil
}

// Delete 实现 Store.Delete
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("从 Redis 删除失败: %w", err)
	}
	return nil
}

// Close 关闭 Redis 连接
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping 检查 Redis 连通性，供就绪探针使用
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
