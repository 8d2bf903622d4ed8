package prompts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateName 同名提示词已存在
	ErrDuplicateName = errors.New("提示词名称已存在")
	// ErrNotFound 提示词不存在
	ErrNotFound = errors.New("提示词不存在")
	// ErrInvalidPrompt 名称或内容为空
	ErrInvalidPrompt = errors.New("提示词名称和内容不能为空")
)

// MaxNameLength 是提示词名称的最大长度（按字符计）
const MaxNameLength = 128

// Prompt 提示词库条目
type Prompt struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Name      string    `gorm:"size:128;uniqueIndex;not null" json:"name"`
	Prompt    string    `gorm:"type:text;not null" json:"prompt"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (Prompt) TableName() string { return "prompts" }

// QueryRecorder receives query latency. *metrics.Collector satisfies it.
type QueryRecorder interface {
	RecordDBQuery(database, operation string, duration time.Duration)
}

// Transactor runs fn inside a database transaction.
// *database.PoolManager satisfies it.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gormTransactor struct{ db *gorm.DB }

func (g gormTransactor) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

// Store 提示词库
type Store struct {
	db       *gorm.DB
	tx       Transactor
	recorder QueryRecorder
	logger   *zap.Logger
}

// Option 配置 Store
type Option func(*Store)

// WithQueryRecorder 记录每次查询耗时
func WithQueryRecorder(r QueryRecorder) Option {
	return func(s *Store) { s.recorder = r }
}

// WithTransactor 写操作改由 t 开启事务（例如连接池管理器，关闭后拒绝新事务）
func WithTransactor(t Transactor) Option {
	return func(s *Store) {
		if t != nil {
			s.tx = t
		}
	}
}

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore 创建提示词库
func NewStore(db *gorm.DB, opts ...Option) *Store {
	s := &Store{db: db, tx: gormTransactor{db: db}, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "prompts"))
	return s
}

// Migrate 创建或更新 prompts 表
func (s *Store) Migrate(ctx context.Context) error {
	defer s.observe("migrate", time.Now())
	if err := s.db.WithContext(ctx).AutoMigrate(&Prompt{}); err != nil {
		return fmt.Errorf("migrate prompts: %w", err)
	}
	return nil
}

// List 按添加顺序返回全部提示词
func (s *Store) List(ctx context.Context) ([]Prompt, error) {
	defer s.observe("list", time.Now())

	var out []Prompt
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	return out, nil
}

// Get 按名称查找
func (s *Store) Get(ctx context.Context, name string) (*Prompt, error) {
	defer s.observe("get", time.Now())

	var p Prompt
	err := s.db.WithContext(ctx).Where("name = ?", name).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get prompt: %w", err)
	}
	return &p, nil
}

// Add 新增提示词。名称已存在时返回 ErrDuplicateName，不覆盖原内容。
func (s *Store) Add(ctx context.Context, name, prompt string) (*Prompt, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(prompt) == "" {
		return nil, ErrInvalidPrompt
	}
	if len([]rune(name)) > MaxNameLength {
		return nil, fmt.Errorf("%w: 名称超过 %d 个字符", ErrInvalidPrompt, MaxNameLength)
	}

	defer s.observe("add", time.Now())

	p := &Prompt{Name: name, Prompt: prompt}
	err := s.tx.WithTransaction(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Prompt{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateName
		}
		return tx.Create(p).Error
	})
	switch {
	case errors.Is(err, ErrDuplicateName), errors.Is(err, gorm.ErrDuplicatedKey):
		return nil, ErrDuplicateName
	case err != nil:
		return nil, fmt.Errorf("add prompt: %w", err)
	}

	s.logger.Info("prompt saved", zap.String("name", name), zap.Int("prompt_length", len(prompt)))
	return p, nil
}

// Delete 按名称删除
func (s *Store) Delete(ctx context.Context, name string) error {
	defer s.observe("delete", time.Now())

	res := s.db.WithContext(ctx).Where("name = ?", name).Delete(&Prompt{})
	if res.Error != nil {
		return fmt.Errorf("delete prompt: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) observe(operation string, start time.Time) {
	if s.recorder != nil {
		s.recorder.RecordDBQuery("prompts", operation, time.Since(start))
	}
}
