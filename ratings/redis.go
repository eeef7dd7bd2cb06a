package ratings

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/rushteam/recserve/core"
)

// defaultScanCount 是单页 SCAN 的建议条数。
const defaultScanCount = 256

// Redis 是 Redis 实现的评分数据源。
//
// 存储布局：每个用户一个 Hash，key 为 "<prefix><userID>"，
// field = 物品 ID，value = 评分。全量扫描用 SCAN 游标分页遍历
// 所有用户 key，循环直到游标耗尽（分页批量扫描语义）。
//
// 为了让下游的首次出现顺序可复现，每页 key 与每个 Hash 的
// field 都做了排序；代价是 O(N log N)，对离线重算可以接受。
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis 创建 Redis 评分数据源。prefix 为空时使用 "rating:"。
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "rating:"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(userID string) string { return r.prefix + userID }

// FetchAll 全量扫描所有评分记录。
func (r *Redis) FetchAll(ctx context.Context) ([]core.Rating, error) {
	var out []core.Rating
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", defaultScanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("scan ratings: %w", err)
		}
		sort.Strings(keys)
		for _, key := range keys {
			userID := key[len(r.prefix):]
			rs, err := r.fetchHash(ctx, key, userID)
			if err != nil {
				return nil, err
			}
			out = append(out, rs...)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

// FetchUser 获取单个用户的评分记录；用户不存在返回空列表。
func (r *Redis) FetchUser(ctx context.Context, userID string) ([]core.Rating, error) {
	return r.fetchHash(ctx, r.key(userID), userID)
}

// Add 写入/覆盖一条评分记录（运维种子数据、评分写路径用）。
func (r *Redis) Add(ctx context.Context, rating core.Rating) error {
	val := strconv.FormatFloat(rating.Rating, 'f', -1, 64)
	return r.client.HSet(ctx, r.key(rating.UserID), rating.ItemID, val).Err()
}

func (r *Redis) fetchHash(ctx context.Context, key, userID string) ([]core.Rating, error) {
	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch ratings for %s: %w", userID, err)
	}

	itemIDs := make([]string, 0, len(fields))
	for itemID := range fields {
		itemIDs = append(itemIDs, itemID)
	}
	sort.Strings(itemIDs)

	out := make([]core.Rating, 0, len(itemIDs))
	for _, itemID := range itemIDs {
		v, err := strconv.ParseFloat(fields[itemID], 64)
		if err != nil {
			// 脏数据按未评分处理，跳过
			continue
		}
		out = append(out, core.Rating{UserID: userID, ItemID: itemID, Rating: v})
	}
	return out, nil
}

// 确保 Redis 实现了 core.RatingSource 接口
var _ core.RatingSource = (*Redis)(nil)
