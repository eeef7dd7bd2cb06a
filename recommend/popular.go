package recommend

import (
	"sort"

	"github.com/rushteam/recserve/core"
)

// MostPopular 返回全局最热门的 topK 个物品，用于冷启动兜底。
//
// 排序规则：
//  1. 评分条数降序
//  2. 平均分降序
//  3. 首次出现顺序（保证结果可复现）
//
// 不涉及相似度计算，评分为空时返回空列表。
func MostPopular(ratings []core.Rating, topK int) []string {
	if topK <= 0 || len(ratings) == 0 {
		return nil
	}

	type stat struct {
		id    string
		count int
		sum   float64
		seen  int // 首次出现顺序，用于稳定 tie-break
	}
	stats := make(map[string]*stat)
	order := make([]*stat, 0)

	for _, r := range ratings {
		if r.Rating <= 0 {
			continue
		}
		s, ok := stats[r.ItemID]
		if !ok {
			s = &stat{id: r.ItemID, seen: len(order)}
			stats[r.ItemID] = s
			order = append(order, s)
		}
		s.count++
		s.sum += r.Rating
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.count != b.count {
			return a.count > b.count
		}
		meanA := a.sum / float64(a.count)
		meanB := b.sum / float64(b.count)
		if meanA != meanB {
			return meanA > meanB
		}
		return a.seen < b.seen
	})

	if topK > len(order) {
		topK = len(order)
	}
	out := make([]string, 0, topK)
	for _, s := range order[:topK] {
		out = append(out, s.id)
	}
	return out
}
