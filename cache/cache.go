package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/recserve/core"
)

// 默认值来自线上配置：TTL 10 分钟，key 前缀 "reco:"。
const (
	DefaultTTL       = 600 * time.Second
	DefaultKeyPrefix = "reco:"
	defaultOpTimeout = 2 * time.Second
)

// Cache 是按用户缓存推荐结果的 cache-aside 层。
//
// 读写语义（可用性优先于一致性）：
//   - Get：后端不可用或读取出错时按 miss 处理，调用方重算，错误不外抛
//   - Set：后端不可用或写入出错时静默放弃，本轮不缓存，下次读取重算
//   - Invalidate：显式删除；后端不可用时同样 no-op（写不进去也就无需失效）
//
// 同一用户的并发 Get/Set/Invalidate 不保证顺序，后写胜出；
// 条目另有 TTL 兜底过期，这是可接受的。
//
// 值以 JSON 字符串数组编码（自描述，与原有条目兼容）。
// 每个后端操作带独立短超时，后端挂起时降级而不是拖死请求。
type Cache struct {
	conns     *ConnManager
	prefix    string
	ttl       time.Duration
	opTimeout time.Duration
	log       zerolog.Logger
}

// Option 配置 Cache。
type Option func(*Cache)

// WithPrefix 设置 key 前缀（命名空间隔离，避免与后端其他数据冲突）。
func WithPrefix(p string) Option {
	return func(c *Cache) {
		if p != "" {
			c.prefix = p
		}
	}
}

// WithTTL 设置条目过期时间。
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithOpTimeout 设置单次后端操作的超时。
func WithOpTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.opTimeout = d
		}
	}
}

// WithLogger 设置日志器。
func WithLogger(l zerolog.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// New 创建 cache-aside 层。
func New(conns *ConnManager, opts ...Option) *Cache {
	c := &Cache{
		conns:     conns,
		prefix:    DefaultKeyPrefix,
		ttl:       DefaultTTL,
		opTimeout: defaultOpTimeout,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) key(userID string) string { return c.prefix + userID }

// Get 读取用户的缓存推荐列表。第二个返回值为 false 表示 miss（含降级）。
func (c *Cache) Get(ctx context.Context, userID string) ([]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	st, err := c.conns.Acquire(ctx)
	if err != nil {
		backendErrors.Inc()
		cacheMisses.Inc()
		c.log.Warn().Err(err).Str("user_id", userID).Msg("cache backend unavailable, degrading to miss")
		return nil, false
	}

	data, err := st.Get(ctx, c.key(userID))
	if err != nil {
		if !core.IsStoreNotFound(err) {
			backendErrors.Inc()
			c.log.Warn().Err(err).Str("user_id", userID).Msg("cache read failed, degrading to miss")
		}
		cacheMisses.Inc()
		return nil, false
	}

	var recs []string
	if err := json.Unmarshal(data, &recs); err != nil {
		// 损坏的条目按 miss 处理，等待下一次 Set 覆盖
		c.log.Warn().Err(err).Str("user_id", userID).Msg("corrupt cache entry, degrading to miss")
		cacheMisses.Inc()
		return nil, false
	}

	cacheHits.Inc()
	return recs, true
}

// Set 写入用户的推荐列表。后端故障时静默放弃。
func (c *Cache) Set(ctx context.Context, userID string, recs []string) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	st, err := c.conns.Acquire(ctx)
	if err != nil {
		backendErrors.Inc()
		c.log.Warn().Err(err).Str("user_id", userID).Msg("cache backend unavailable, skipping set")
		return
	}

	data, err := json.Marshal(recs)
	if err != nil {
		c.log.Error().Err(err).Str("user_id", userID).Msg("encode recommendations failed")
		return
	}
	if err := st.Set(ctx, c.key(userID), data, c.ttl); err != nil {
		backendErrors.Inc()
		c.log.Warn().Err(err).Str("user_id", userID).Msg("cache write failed, skipping set")
	}
}

// Invalidate 显式删除用户的缓存条目。后端故障时 no-op。
func (c *Cache) Invalidate(ctx context.Context, userID string) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	st, err := c.conns.Acquire(ctx)
	if err != nil {
		backendErrors.Inc()
		c.log.Warn().Err(err).Str("user_id", userID).Msg("cache backend unavailable, skipping invalidate")
		return
	}
	if err := st.Delete(ctx, c.key(userID)); err != nil {
		backendErrors.Inc()
		c.log.Warn().Err(err).Str("user_id", userID).Msg("cache invalidate failed")
	}
}
