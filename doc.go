// Package recserve 是一个协同过滤推荐服务（Recommendation Service）。
//
// 设计要点：
// - Cache-aside: 读路径先查缓存，miss 才触发计算，算完回填（TTL 兜底过期）
// - 可用性优先: 缓存后端故障一律降级为 miss / no-op，从不影响对外服务
// - 有界并发: CPU 密集的矩阵计算走固定工作池，全量刷新扇出有并发上限
//
// 包结构：
// - core: 领域类型与协作方契约（Rating / RatingSource / CacheStore）
// - recommend: 矩阵构建 + 余弦相似度推荐引擎 + 热门兜底
// - cache: cache-aside 层与带熔断的连接管理
// - service: 三个对外入口（GetRecommendations / RefreshAll / Invalidate）
// - store / ratings: Redis 与内存实现
// - filter: CEL 排除规则
// - server: HTTP 接入层
package recserve
