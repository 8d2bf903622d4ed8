package credentials

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/BaSui01/mediagateway/types"
)

// 令牌时间参数
const (
	DefaultTokenTTL      = 1800 * time.Second
	DefaultRefreshMargin = 300 * time.Second
	DefaultNotBeforeSkew = 10 * time.Second
)

const cacheType = "video_token"

// Pair 是一组视频服务商的 AccessKey/SecretKey。
// 打印与序列化时两项都被掩码。
type Pair struct {
	AccessKey string
	SecretKey string
}

// Empty reports whether either half of the pair is missing.
func (p Pair) Empty() bool {
	return p.AccessKey == "" || p.SecretKey == ""
}

func (p Pair) String() string {
	if p.AccessKey == "" && p.SecretKey == "" {
		return "Pair{}"
	}
	return "Pair{AccessKey:***, SecretKey:***}"
}

func (p Pair) MarshalJSON() ([]byte, error) {
	type masked struct {
		AccessKey string `json:"access_key,omitempty"`
		SecretKey string `json:"secret_key,omitempty"`
	}
	out := masked{}
	if p.AccessKey != "" {
		out.AccessKey = "***"
	}
	if p.SecretKey != "" {
		out.SecretKey = "***"
	}
	return json.Marshal(out)
}

// CacheRecorder receives token cache hit/miss signals.
// *metrics.Collector satisfies it.
type CacheRecorder interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

type entry struct {
	token     string
	expiresAt time.Time
}

// Manager 签发并缓存 HS256 JWT。
// 整个缓存由一把互斥锁保护，读-判断-写在同一个临界区内完成。
type Manager struct {
	mu    sync.Mutex
	cache map[Pair]entry

	ttl      time.Duration
	margin   time.Duration
	skew     time.Duration
	now      func() time.Time
	recorder CacheRecorder
	logger   *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithCacheRecorder wires cache hit/miss metrics.
func WithCacheRecorder(r CacheRecorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithTimings overrides token lifetime, refresh margin and not-before skew.
// Zero values keep the defaults.
func WithTimings(ttl, margin, skew time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
		if margin > 0 {
			m.margin = margin
		}
		if skew > 0 {
			m.skew = skew
		}
	}
}

// NewManager creates a credential manager with an empty cache.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		cache:  make(map[Pair]entry),
		ttl:    DefaultTokenTTL,
		margin: DefaultRefreshMargin,
		skew:   DefaultNotBeforeSkew,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(zap.String("component", "credentials"))
	return m
}

// IssueToken returns a cached token for the pair while it has more than the
// refresh margin left, otherwise signs, stores and returns a new one.
func (m *Manager) IssueToken(accessKey, secretKey string) (string, error) {
	pair := Pair{AccessKey: accessKey, SecretKey: secretKey}
	if pair.Empty() {
		return "", types.NewError(types.ErrAuthentication, "认证失败: 缺少 AccessKey 或 SecretKey。").
			WithHTTPStatus(401)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.cache[pair]; ok {
		if e.expiresAt.Sub(now) > m.margin {
			m.recordHit()
			return e.token, nil
		}
		delete(m.cache, pair)
	}
	m.recordMiss()

	expiresAt := now.Add(m.ttl)
	token, err := m.sign(pair, now, expiresAt)
	if err != nil {
		return "", types.NewError(types.ErrInternalError, "生成认证令牌失败").
			WithHTTPStatus(500).
			WithCause(err)
	}
	m.cache[pair] = entry{token: token, expiresAt: expiresAt}

	m.logger.Debug("issued token", zap.Time("expires_at", expiresAt))
	return token, nil
}

// Invalidate evicts the cached token for the pair so the next IssueToken
// signs a fresh one.
func (m *Manager) Invalidate(accessKey, secretKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, Pair{AccessKey: accessKey, SecretKey: secretKey})
}

// Size returns the number of cached entries.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cache)
}

func (m *Manager) sign(pair Pair, now, expiresAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    pair.AccessKey,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		NotBefore: jwt.NewNumericDate(now.Add(-m.skew)),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(pair.SecretKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (m *Manager) recordHit() {
	if m.recorder != nil {
		m.recorder.RecordCacheHit(cacheType)
	}
}

func (m *Manager) recordMiss() {
	if m.recorder != nil {
		m.recorder.RecordCacheMiss(cacheType)
	}
}
