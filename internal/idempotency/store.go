package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/mediagateway/config"
)

// DefaultTTL 是未指定 TTL 时的结果保留时间
const DefaultTTL = 24 * time.Hour

const cacheType = "idempotency"

// Store 保存按幂等键索引的操作结果
type Store interface {
	// Get 返回缓存的结果；键不存在或已过期时 found 为 false
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)

	// Set 以 JSON 保存结果，ttl <= 0 时使用 DefaultTTL
	Set(ctx context.Context, key string, result any, ttl time.Duration) error

	// Delete 删除缓存
	Delete(ctx context.Context, key string) error

	// Close 释放后台资源
	Close() error
}

// Key 将作用域与输入哈希为定长的幂等键。相同输入总是得到相同的键。
func Key(scope string, inputs ...any) (string, error) {
	if scope == "" {
		return "", errors.New("幂等键作用域不能为空")
	}
	data, err := json.Marshal(append([]any{scope}, inputs...))
	if err != nil {
		return "", fmt.Errorf("序列化输入失败: %w", err)
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// GetTyped 是 Store.Get 的类型化封装
func GetTyped[T any](ctx context.Context, s Store, key string) (T, bool, error) {
	var zero T
	raw, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return zero, found, err
	}
	var result T
	if err := json.Unmarshal(raw, &result); err != nil {
		return zero, false, fmt.Errorf("unmarshal cached result: %w", err)
	}
	return result, true, nil
}

// SetTyped 是 Store.Set 的类型化封装
func SetTyped[T any](ctx context.Context, s Store, key string, result T, ttl time.Duration) error {
	return s.Set(ctx, key, result, ttl)
}

// =============================================================================
// 📊 命中率记录
// =============================================================================

// CacheRecorder receives hit/miss signals. *metrics.Collector satisfies it.
type CacheRecorder interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

type instrumented struct {
	Store
	recorder CacheRecorder
}

// Instrument 包装 store，在每次 Get 时记录命中或未命中
func Instrument(s Store, r CacheRecorder) Store {
	if r == nil {
		return s
	}
	return &instrumented{Store: s, recorder: r}
}

func (i *instrumented) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	raw, found, err := i.Store.Get(ctx, key)
	if err != nil {
		return raw, found, err
	}
	if found {
		i.recorder.RecordCacheHit(cacheType)
	} else {
		i.recorder.RecordCacheMiss(cacheType)
	}
	return raw, found, nil
}

// =============================================================================
// 🏭 构建
// =============================================================================

// New 按配置构建 Store。禁用时返回 nil, nil。
// redis 后端会先 Ping 一次，连接失败直接返回错误。
func New(ctx context.Context, cfg config.IdempotencyConfig, rc config.RedisConfig, logger *zap.Logger) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(logger), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:         rc.Addr,
			Password:     rc.Password,
			DB:           rc.DB,
			PoolSize:     rc.PoolSize,
			MinIdleConns: rc.MinIdleConns,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info("idempotency store connected to redis", zap.String("addr", rc.Addr))
		return NewRedisStore(client, cfg.KeyPrefix, logger), nil
	default:
		return nil, fmt.Errorf("unsupported idempotency backend %q", cfg.Backend)
	}
}
