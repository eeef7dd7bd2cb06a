package service

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rushteam/recserve/cache"
	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/filter"
	"github.com/rushteam/recserve/ratings"
	"github.com/rushteam/recserve/store"
)

// countingSource 包装评分数据源，统计 FetchAll 调用次数（观测是否发生重算）。
type countingSource struct {
	inner core.RatingSource
	calls atomic.Int64
}

func (c *countingSource) FetchAll(ctx context.Context) ([]core.Rating, error) {
	c.calls.Add(1)
	return c.inner.FetchAll(ctx)
}

func (c *countingSource) FetchUser(ctx context.Context, userID string) ([]core.Rating, error) {
	return c.inner.FetchUser(ctx, userID)
}

func exampleRatings() []core.Rating {
	return []core.Rating{
		{UserID: "A", ItemID: "x", Rating: 5},
		{UserID: "A", ItemID: "y", Rating: 3},
		{UserID: "B", ItemID: "x", Rating: 4},
		{UserID: "B", ItemID: "z", Rating: 5},
	}
}

func liveCache(t *testing.T) *cache.Cache {
	t.Helper()
	ms := store.NewMemoryStore()
	t.Cleanup(func() { ms.Close() })
	conns := cache.NewConnManager(func() (core.CacheStore, error) { return ms, nil })
	return cache.New(conns)
}

func deadCache() *cache.Cache {
	conns := cache.NewConnManager(func() (core.CacheStore, error) {
		return nil, errors.New("dial tcp: connection refused")
	})
	return cache.New(conns)
}

func TestGetRecommendationsCacheAside(t *testing.T) {
	src := &countingSource{inner: ratings.NewMemory(exampleRatings()...)}
	s := New(src, liveCache(t))
	defer s.Close()
	ctx := context.Background()

	// miss -> 计算
	got, err := s.GetRecommendations(ctx, "A", 10)
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"z"}) {
		t.Fatalf("GetRecommendations = %v, want [z]", got)
	}
	if n := src.calls.Load(); n != 1 {
		t.Fatalf("source calls = %d, want 1", n)
	}

	// 幂等：第二次命中缓存，结果一致，不再拉取数据源
	again, err := s.GetRecommendations(ctx, "A", 10)
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if !reflect.DeepEqual(again, got) {
		t.Fatalf("second call = %v, want %v", again, got)
	}
	if n := src.calls.Load(); n != 1 {
		t.Fatalf("source calls after cache hit = %d, want 1", n)
	}
}

func TestGetRecommendationsLimit(t *testing.T) {
	src := ratings.NewMemory(exampleRatings()...)
	s := New(src, liveCache(t))
	defer s.Close()
	ctx := context.Background()

	tests := []struct {
		name  string
		user  string
		limit int
		want  []string
	}{
		{name: "zero limit returns empty", user: "A", limit: 0, want: nil},
		{name: "negative limit returns empty", user: "A", limit: -1, want: nil},
		{name: "cold user truncated to limit", user: "C", limit: 2, want: []string{"x", "z"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.GetRecommendations(ctx, tt.user, tt.limit)
			if err != nil {
				t.Fatalf("GetRecommendations: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("GetRecommendations = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetRecommendationsCachedListTruncatedOnHit(t *testing.T) {
	src := ratings.NewMemory(exampleRatings()...)
	s := New(src, liveCache(t))
	defer s.Close()
	ctx := context.Background()

	// 第一次请求缓存完整列表（冷用户 -> [x z y]）
	if _, err := s.GetRecommendations(ctx, "C", 10); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetRecommendations(ctx, "C", 1)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("hit truncated to limit = %v, want [x]", got)
	}
}

func TestInvalidateForcesRecompute(t *testing.T) {
	mem := ratings.NewMemory(exampleRatings()...)
	src := &countingSource{inner: mem}
	s := New(src, liveCache(t))
	defer s.Close()
	ctx := context.Background()

	if _, err := s.GetRecommendations(ctx, "A", 10); err != nil {
		t.Fatal(err)
	}

	// 评分变化 + 显式失效：下一次读取必须重算并反映新数据
	mem.Add(core.Rating{UserID: "A", ItemID: "z", Rating: 4})
	s.Invalidate(ctx, "A")

	got, err := s.GetRecommendations(ctx, "A", 10)
	if err != nil {
		t.Fatal(err)
	}
	if n := src.calls.Load(); n != 2 {
		t.Fatalf("source calls = %d, want 2 (recompute after invalidate)", n)
	}
	for _, item := range got {
		if item == "z" {
			t.Errorf("recommended already-rated item z after rating change: %v", got)
		}
	}
}

func TestGetRecommendationsDegradesWithoutCache(t *testing.T) {
	src := ratings.NewMemory(exampleRatings()...)
	s := New(src, deadCache())
	defer s.Close()
	ctx := context.Background()

	// 缓存后端完全不可用：结果仍然正确，错误不外抛
	got, err := s.GetRecommendations(ctx, "A", 10)
	if err != nil {
		t.Fatalf("GetRecommendations with dead cache: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"z"}) {
		t.Fatalf("GetRecommendations = %v, want [z]", got)
	}
}

func TestGetRecommendationsSourceErrorPropagates(t *testing.T) {
	mem := ratings.NewMemory()
	mem.SetFetchErr(errors.New("scan failed"))
	s := New(mem, liveCache(t))
	defer s.Close()

	if _, err := s.GetRecommendations(context.Background(), "A", 10); err == nil {
		t.Fatal("GetRecommendations with failing source: want error")
	}
}

func TestRefreshAll(t *testing.T) {
	src := &countingSource{inner: ratings.NewMemory(exampleRatings()...)}
	s := New(src, liveCache(t), WithWorkers(2))
	defer s.Close()
	ctx := context.Background()

	n, err := s.RefreshAll(ctx)
	if err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	if n != 2 {
		t.Fatalf("RefreshAll = %d, want 2 distinct users", n)
	}
	if c := src.calls.Load(); c != 1 {
		t.Fatalf("source calls = %d, want single bulk fetch", c)
	}

	// 刷新之后的读取全部命中缓存，不再触发数据源
	for _, u := range []string{"A", "B"} {
		if _, err := s.GetRecommendations(ctx, u, 10); err != nil {
			t.Fatalf("GetRecommendations(%s): %v", u, err)
		}
	}
	if c := src.calls.Load(); c != 1 {
		t.Fatalf("source calls after refresh = %d, want 1 (all hits)", c)
	}
}

// slowSetStore 的 Set 故意变慢并统计并发调用数，用来观测刷新扇出的上限。
type slowSetStore struct {
	running atomic.Int64
	peak    atomic.Int64
}

func (s *slowSetStore) Name() string { return "slowset" }

func (s *slowSetStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, core.ErrStoreNotFound
}

func (s *slowSetStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	n := s.running.Add(1)
	for {
		old := s.peak.Load()
		if n <= old || s.peak.CompareAndSwap(old, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	s.running.Add(-1)
	return nil
}

func (s *slowSetStore) Delete(ctx context.Context, key string) error { return nil }
func (s *slowSetStore) Ping(ctx context.Context) error               { return nil }
func (s *slowSetStore) Close() error                                 { return nil }

// 刷新扇出必须被 worker 上限约束，不能一个用户一个并发任务。
func TestRefreshAllBoundsConcurrency(t *testing.T) {
	ss := &slowSetStore{}
	conns := cache.NewConnManager(func() (core.CacheStore, error) { return ss, nil })
	src := ratings.NewMemory(
		core.Rating{UserID: "u1", ItemID: "x", Rating: 5},
		core.Rating{UserID: "u2", ItemID: "x", Rating: 4},
		core.Rating{UserID: "u3", ItemID: "y", Rating: 3},
		core.Rating{UserID: "u4", ItemID: "y", Rating: 5},
		core.Rating{UserID: "u5", ItemID: "z", Rating: 2},
	)
	s := New(src, cache.New(conns), WithWorkers(2))
	defer s.Close()

	n, err := s.RefreshAll(context.Background())
	if err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	if n != 5 {
		t.Fatalf("RefreshAll = %d, want 5", n)
	}
	if got := ss.peak.Load(); got > 2 {
		t.Errorf("peak concurrent cache writes = %d, want <= 2", got)
	}
}

func TestRefreshAllEmptySource(t *testing.T) {
	s := New(ratings.NewMemory(), liveCache(t))
	defer s.Close()

	n, err := s.RefreshAll(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("RefreshAll on empty source = %d, %v; want 0, nil", n, err)
	}
}

func TestRefreshAllSourceErrorPropagates(t *testing.T) {
	mem := ratings.NewMemory()
	mem.SetFetchErr(errors.New("scan failed"))
	s := New(mem, liveCache(t))
	defer s.Close()

	if _, err := s.RefreshAll(context.Background()); err == nil {
		t.Fatal("RefreshAll with failing source: want error")
	}
}

func TestServiceAppliesFilterRules(t *testing.T) {
	rules, err := filter.New([]string{`item == "z"`})
	if err != nil {
		t.Fatal(err)
	}
	src := ratings.NewMemory(exampleRatings()...)
	s := New(src, liveCache(t), WithRules(rules))
	defer s.Close()

	got, err := s.GetRecommendations(context.Background(), "A", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("GetRecommendations with exclusion rule = %v, want empty", got)
	}
}
