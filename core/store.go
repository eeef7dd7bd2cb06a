package core

import (
	"context"
	"time"
)

// CacheStore 是缓存后端的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（store）实现
//   - 遵循依赖倒置原则：领域层定义接口，基础设施层实现接口
//   - 后端是带 TTL 的 KV 存储，TTL 过期由后端负责
//
// 使用场景：
//   - 推荐结果缓存（cache.Cache 的读写穿透）
//
// 实现：
//   - store.RedisStore 实现此接口
//   - store.MemoryStore 实现此接口（测试/开发）
type CacheStore interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// Get 读取单个 key 的值；key 不存在返回 ErrStoreNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入单个 key-value；ttl <= 0 表示不过期
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete 删除单个 key；key 不存在不算错误
	Delete(ctx context.Context, key string) error

	// Ping 是轻量存活探测，供连接管理器健康检查使用
	Ping(ctx context.Context) error

	// Close 关闭连接/释放资源
	Close() error
}

// Store 错误定义（使用统一的 DomainError）
var (
	// ErrStoreNotFound 表示 key 不存在
	ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")

	// ErrStoreUnavailable 表示后端不可用（连接失败/熔断打开）
	ErrStoreUnavailable = NewDomainError(ModuleStore, ErrorCodeUnavailable, "store: backend unavailable")
)

// IsStoreNotFound 检查错误是否为 key 不存在
func IsStoreNotFound(err error) bool {
	if err == nil {
		return false
	}
	domainErr := GetDomainError(err)
	if domainErr != nil && domainErr.Module == ModuleStore {
		return domainErr.Code == ErrorCodeNotFound
	}
	return false
}
