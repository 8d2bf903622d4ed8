package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MemoryStore 基于内存的幂等存储，单实例部署使用
type MemoryStore struct {
	mu              sync.RWMutex
	entries         map[string]memoryEntry
	now             func() time.Time
	cleanupInterval time.Duration
	stopCh          chan struct{}
	stopOnce        sync.Once
	logger          *zap.Logger
}

type memoryEntry struct {
	data      json.RawMessage
	expiresAt time.Time
}

// MemoryOption 配置 MemoryStore
type MemoryOption func(*MemoryStore)

// WithMemoryClock 注入时钟
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// WithCleanupInterval 设置过期条目清理间隔
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if d > 0 {
			s.cleanupInterval = d
		}
	}
}

// NewMemoryStore 创建内存幂等存储并启动后台清理
func NewMemoryStore(logger *zap.Logger, opts ...MemoryOption) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MemoryStore{
		entries:         make(map[string]memoryEntry),
		now:             time.Now,
		cleanupInterval: 5 * time.Minute,
		stopCh:          make(chan struct{}),
		logger:          logger.With(zap.String("component", "idempotency"), zap.String("backend", "memory")),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.cleanupLoop()
	return s
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.evictExpired(); n > 0 {
				s.logger.Debug("清理过期幂等键", zap.Int("count", n))
			}
		case <-s.stopCh:
			return
		}
	}
}

func (s *MemoryStore) evictExpired() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// Get 实现 Store.Get
func (s *MemoryStore) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if s.now().After(e.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	return e.data, true, nil
}

// Set 实现 Store.Set
func (s *MemoryStore) Set(_ context.Context, key string, result any, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("序列化结果失败: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.mu.Lock()
	s.entries[key] = memoryEntry{data: data, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

// Delete 实现 Store.Delete
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Len 返回当前条目数（含尚未清理的过期条目）
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close 停止后台清理，可重复调用
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	return nil
}
