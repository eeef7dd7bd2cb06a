package store

import (
	"context"
	"sync"
	"time"

	"github.com/rushteam/recserve/core"
)

// MemoryStore 是内存实现的 CacheStore，用于测试/开发/原型。
// 支持 TTL（惰性过期 + 后台清理），进程重启后数据丢失。
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string]*entry
	clean *time.Ticker
	done  chan struct{}
}

type entry struct {
	value []byte
	ttl   *time.Time
}

func NewMemoryStore() *MemoryStore {
	ms := &MemoryStore{
		data:  make(map[string]*entry),
		clean: time.NewTicker(10 * time.Second),
		done:  make(chan struct{}),
	}
	go ms.cleanup()
	return ms
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.data[key]
	if !ok {
		return nil, core.ErrStoreNotFound
	}
	if e.ttl != nil && time.Now().After(*e.ttl) {
		return nil, core.ErrStoreNotFound
	}
	return e.value, nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := &entry{value: value}
	if ttl > 0 {
		expire := time.Now().Add(ttl)
		e.ttl = &expire
	}
	m.data[key] = e
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error {
	m.clean.Stop()
	close(m.done)
	return nil
}

func (m *MemoryStore) cleanup() {
	for {
		select {
		case <-m.done:
			return
		case <-m.clean.C:
		}
		now := time.Now()
		m.mu.Lock()
		for k, e := range m.data {
			if e.ttl != nil && now.After(*e.ttl) {
				delete(m.data, k)
			}
		}
		m.mu.Unlock()
	}
}

// 确保 MemoryStore 实现了 core.CacheStore 接口
var _ core.CacheStore = (*MemoryStore)(nil)
