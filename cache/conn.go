package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/rushteam/recserve/core"
)

// ConnManager 管理到缓存后端的共享连接。
//
// 连接延迟建立、进程内复用；Acquire 每次带健康检查（Ping）。
// 后端故障由熔断器记忆：连续失败后打开，后续 Acquire 快速失败
// 而不是每个请求都去重试连接；超时后进入半开态惰性重试，
// 后端恢复即自动闭合，无需重启进程。
//
// 并发安全：所有请求 handler 与刷新任务可同时使用。
type ConnManager struct {
	dial func() (core.CacheStore, error)
	cb   *gobreaker.CircuitBreaker[core.CacheStore]

	mu sync.Mutex
	st core.CacheStore
}

// pingTimeout 是 Acquire 健康检查的独立超时。
// 探活不用调用方的 ctx：请求被取消不代表后端挂了。
const pingTimeout = time.Second

// NewConnManager 创建连接管理器。dial 负责真正建连（例如 store.NewRedisStore）。
func NewConnManager(dial func() (core.CacheStore, error)) *ConnManager {
	m := &ConnManager{dial: dial}
	m.cb = gobreaker.NewCircuitBreaker[core.CacheStore](gobreaker.Settings{
		Name:        "cache-store",
		MaxRequests: 1,
		Timeout:     5 * time.Second, // 打开 -> 半开的惰性重试间隔
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return m
}

// Acquire 返回可用的缓存后端连接。
// 熔断打开或建连/探活失败时返回错误，调用方按"缓存不可用"降级处理。
//
// 调用方 ctx 已取消时直接返回 ctx.Err()，不计熔断失败也不动共享连接：
// 客户端挂断不是后端故障，不能把健康连接从并发请求脚下抽走。
func (m *ConnManager) Acquire(ctx context.Context) (core.CacheStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st, err := m.cb.Execute(func() (core.CacheStore, error) {
		m.mu.Lock()
		defer m.mu.Unlock()

		pingCtx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()

		if m.st != nil {
			if err := m.st.Ping(pingCtx); err == nil {
				return m.st, nil
			}
			// 探活失败：丢弃旧连接，立刻重建一次
			_ = m.st.Close()
			m.st = nil
		}

		st, err := m.dial()
		if err != nil {
			return nil, err
		}
		m.st = st
		return st, nil
	})
	if err != nil {
		// 熔断打开/半开限流归一为"后端不可用"，调用方无需认识 gobreaker
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, core.ErrStoreUnavailable
		}
		return nil, err
	}
	return st, nil
}

// Close 关闭持有的连接。
func (m *ConnManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st == nil {
		return nil
	}
	err := m.st.Close()
	m.st = nil
	return err
}
