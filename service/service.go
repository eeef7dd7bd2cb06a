package service

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/recserve/cache"
	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/filter"
	"github.com/rushteam/recserve/recommend"
)

const (
	// DefaultTopK 是落缓存的完整推荐列表长度（请求侧再按 limit 截断）。
	DefaultTopK = 10

	// DefaultWorkers 是计算工作池与刷新扇出的默认并发上限。
	DefaultWorkers = 4
)

// Service 对外暴露推荐核心的三个入口：
// GetRecommendations（先查缓存，miss 才计算）、RefreshAll（全量重算预热）、
// Invalidate（显式失效）。HTTP 层只做参数搬运，所有语义在这里。
//
// 计算路径每次独立重建自己的矩阵，请求之间不共享可变状态；
// 唯一共享的可变资源是缓存连接（由 cache.ConnManager 负责并发安全）。
type Service struct {
	source core.RatingSource
	cache  *cache.Cache
	engine *recommend.Engine
	rules  *filter.Rules
	pool   *Pool

	workers int
	topK    int
	log     zerolog.Logger
}

// Option 配置 Service。
type Option func(*Service)

// WithRules 设置推荐结果的排除规则。
func WithRules(r *filter.Rules) Option {
	return func(s *Service) { s.rules = r }
}

// WithWorkers 设置计算工作池与刷新扇出的并发上限。
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithTopK 设置落缓存的完整列表长度。
func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithLogger 设置日志器。
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// New 创建推荐服务。Close 负责停掉计算工作池。
func New(source core.RatingSource, c *cache.Cache, opts ...Option) *Service {
	s := &Service{
		source:  source,
		cache:   c,
		engine:  recommend.NewEngine(),
		workers: DefaultWorkers,
		topK:    DefaultTopK,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.pool = NewPool(s.workers)
	return s
}

// Close 停止计算工作池，等待在途计算完成。
func (s *Service) Close() {
	s.pool.Close()
}

// GetRecommendations 返回用户的前 limit 个推荐物品（cache-aside 读路径）。
//
// 只有评分数据源故障才返回错误；缓存故障对调用方不可见（只表现为变慢）。
// limit <= 0 返回空列表。
func (s *Service) GetRecommendations(ctx context.Context, userID string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	if recs, ok := s.cache.Get(ctx, userID); ok {
		if len(recs) > limit {
			recs = recs[:limit]
		}
		return recs, nil
	}

	ratings, err := s.source.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch ratings: %w", err)
	}

	// 缓存完整列表，返回截断后的前 limit 个
	topK := s.topK
	if limit > topK {
		topK = limit
	}
	recs, err := s.pool.Submit(ctx, func() []string {
		return s.compute(userID, ratings, topK)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, userID, recs)

	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// RefreshAll 为评分集中出现过的每个用户重算推荐并回填缓存。
//
// 离线触发（定时任务/运维开关），允许远慢于交互请求；
// 扇出被固定大小的工作上限约束，不持有任何会阻塞交互路径的锁。
// 返回已处理的去重用户数；没有任何评分时返回 (0, nil)。
func (s *Service) RefreshAll(ctx context.Context) (int, error) {
	ratings, err := s.source.FetchAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch ratings: %w", err)
	}

	users := distinctUsers(ratings)
	if len(users) == 0 {
		return 0, nil
	}

	var processed atomic.Int64
	eg, ctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, s.workers)

	for _, u := range users {
		u := u
		eg.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			defer func() { <-sem }()

			recs := s.compute(u, ratings, s.topK)
			s.cache.Set(ctx, u, recs)
			processed.Add(1)
			return nil
		})
	}

	err = eg.Wait()
	n := int(processed.Load())
	refreshUsers.Add(float64(n))
	refreshLastSize.Set(float64(n))
	s.log.Info().Int("users", n).Err(err).Msg("refresh finished")
	return n, err
}

// Invalidate 显式失效用户的缓存条目（评分写路径变更后调用）。
func (s *Service) Invalidate(ctx context.Context, userID string) {
	s.cache.Invalidate(ctx, userID)
}

// compute 是单个用户的完整计算路径：建矩阵 + 相似度 + 排除规则。
func (s *Service) compute(userID string, ratings []core.Rating, topK int) []string {
	recs := s.engine.Recommend(userID, ratings, topK)
	return s.rules.Apply(userID, recs)
}

// distinctUsers 按首次出现顺序提取去重用户 ID。
func distinctUsers(ratings []core.Rating) []string {
	seen := make(map[string]struct{}, len(ratings))
	users := make([]string, 0)
	for _, r := range ratings {
		if _, ok := seen[r.UserID]; ok {
			continue
		}
		seen[r.UserID] = struct{}{}
		users = append(users, r.UserID)
	}
	return users
}
