package core

import "context"

// Rating 是一条用户对物品的评分记录（user, item, rating 三元组）。
// 来源于外部评分库的全量扫描，本服务不做持久化。
//
// 约定：评分取值为正数（例如 1~5）。0 在矩阵中表示"未评分"，
// 因此 Rating <= 0 的记录在构建矩阵时会被跳过。
type Rating struct {
	UserID string  `json:"user_id"`
	ItemID string  `json:"item_id"`
	Rating float64 `json:"rating"`
}

// RatingSource 是评分数据源的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（ratings）实现
//   - 数据源是评分的唯一事实来源，本服务只读、全量扫描
//   - 实现必须支持分页扫描语义：内部循环直到游标耗尽
//
// 实现：
//   - ratings.Redis 基于 Redis SCAN 游标实现
//   - ratings.Memory 用于测试/开发
type RatingSource interface {
	// FetchAll 全量扫描所有评分记录。
	// 同一用户对同一物品的多条记录按扫描顺序保留，后写覆盖先写（建矩阵时）。
	FetchAll(ctx context.Context) ([]Rating, error)

	// FetchUser 获取单个用户的评分记录。
	FetchUser(ctx context.Context, userID string) ([]Rating, error)
}
