// Package session 管理浏览器会话的生命周期：创建、按 ID 查找、闲置过期与容量淘汰。
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gridflow/internal/seed"
	"gridflow/internal/service"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// ErrNotFound 表示会话不存在或已过期。
var ErrNotFound = errors.New("session not found")

// 默认容量与闲置时长。
const (
	DefaultMaxSessions = 1024
	DefaultTTL         = 30 * time.Minute
)

// Config 控制注册表的容量与过期策略。
type Config struct {
	MaxSessions int
	TTL         time.Duration
}

// Registry 用带过期的 LRU 保存会话；被淘汰或过期的会话会立即 Close。
// 每次 Get 都会刷新会话的闲置计时。
type Registry struct {
	cache  *expirable.LRU[string, *service.Session]
	source seed.Source
	opts   service.Options
	logger *zap.Logger
}

// NewRegistry 创建注册表。opts 在所有会话间共享，其中的依赖必须可并发使用。
func NewRegistry(cfg Config, source seed.Source, opts service.Options, logger *zap.Logger) *Registry {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if source == nil {
		source = seed.Builtin{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Observer == nil {
		opts.Observer = Observer{}
	}
	if opts.Logger == nil {
		opts.Logger = logger
	}

	r := &Registry{source: source, opts: opts, logger: logger}
	r.cache = expirable.NewLRU[string, *service.Session](cfg.MaxSessions, r.onEvict, cfg.TTL)
	return r
}

func (r *Registry) onEvict(id string, s *service.Session) {
	s.Close()
	sessionsClosedTotal.Inc()
	sessionsActive.Dec()
	r.logger.Info("会话已关闭", zap.String("session", id))
}

// Create 从种子来源创建新会话。
func (r *Registry) Create(ctx context.Context) (*service.Session, error) {
	records, err := r.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load seed records: %w", err)
	}

	id := uuid.NewString()
	s, err := service.NewSession(id, records, r.opts)
	if err != nil {
		return nil, err
	}

	r.cache.Add(id, s)
	sessionsCreatedTotal.Inc()
	sessionsActive.Inc()
	r.logger.Info("会话已创建", zap.String("session", id), zap.Int("records", len(records)))
	return s, nil
}

// Get 查找会话并刷新其闲置计时。
func (r *Registry) Get(id string) (*service.Session, error) {
	s, ok := r.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	r.cache.Add(id, s)
	return s, nil
}

// Delete 关闭并移除会话。
func (r *Registry) Delete(id string) error {
	if !r.cache.Remove(id) {
		return ErrNotFound
	}
	return nil
}

// Len 返回存活的会话数。
func (r *Registry) Len() int {
	return r.cache.Len()
}

// Close 关闭全部会话。
func (r *Registry) Close() {
	r.cache.Purge()
}
