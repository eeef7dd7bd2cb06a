package ratings

import (
	"context"
	"sync"

	"github.com/rushteam/recserve/core"
)

// Memory 是内存实现的评分数据源，用于测试/开发。
// 记录按加入顺序返回，便于测试可复现。
type Memory struct {
	mu       sync.RWMutex
	records  []core.Rating
	fetchErr error
}

// NewMemory 创建内存评分数据源。
func NewMemory(records ...core.Rating) *Memory {
	return &Memory{records: records}
}

func (m *Memory) FetchAll(ctx context.Context) ([]core.Rating, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	out := make([]core.Rating, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *Memory) FetchUser(ctx context.Context, userID string) ([]core.Rating, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	var out []core.Rating
	for _, r := range m.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

// Add 追加评分记录。
func (m *Memory) Add(rs ...core.Rating) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rs...)
}

// SetFetchErr 注入数据源故障：不为空时后续 Fetch 调用返回该错误。
func (m *Memory) SetFetchErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErr = err
}

// 确保 Memory 实现了 core.RatingSource 接口
var _ core.RatingSource = (*Memory)(nil)
